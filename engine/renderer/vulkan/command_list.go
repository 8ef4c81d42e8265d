package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type pendingClear struct {
	view  vk.ImageView
	image *VulkanImage
	value vk.ClearValue
	depth bool
}

// VulkanCommandList records into one primary command buffer.
//
// Render passes begin at the first draw after SetRenderTargets and end at the
// next barrier, clear, dispatch, copy or Close. Clears are folded into the
// load operation of the next pass that uses the view; clears nobody draws to
// are flushed as empty passes.
type VulkanCommandList struct {
	backend *Backend
	context *VulkanContext
	kind    rhi.QueueKind
	pool    vk.CommandPool
	buffer  *VulkanCommandBuffer

	// first recording error, reported by Close
	err error

	colors []attachment
	depth  *attachment
	clears []pendingClear
	pass   *VulkanRenderpass

	heap           *VulkanDescriptorHeap
	root           *VulkanRootSignature
	graphicsBound  bool
	computeBound   bool
	pipeline       *VulkanPipeline
	loggedTopology bool
}

func NewCommandList(backend *Backend, kind rhi.QueueKind) (*VulkanCommandList, error) {
	context := backend.context
	cl := &VulkanCommandList{backend: backend, context: context, kind: kind}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check(vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &cl.pool), "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	buffer, err := NewVulkanCommandBuffer(context, cl.pool, true)
	if err != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, cl.pool, context.Allocator)
		return nil, err
	}
	cl.buffer = buffer
	return cl, nil
}

func (cl *VulkanCommandList) fail(err error) {
	if err != nil && cl.err == nil {
		cl.err = err
		core.LogError("%s command list: %s", cl.kind, err)
	}
}

func (cl *VulkanCommandList) Reset() error {
	if cl.buffer.State != COMMAND_BUFFER_STATE_READY {
		if err := cl.buffer.Reset(); err != nil {
			return err
		}
	}
	cl.err = nil
	cl.colors, cl.depth, cl.clears, cl.pass = nil, nil, nil, nil
	cl.heap, cl.root, cl.pipeline = nil, nil, nil
	cl.graphicsBound, cl.computeBound = false, false
	return cl.buffer.Begin(true, false, false)
}

func (cl *VulkanCommandList) Close() error {
	cl.endPass()
	cl.flushClears()
	if err := cl.buffer.End(); err != nil {
		return err
	}
	return cl.err
}

func (cl *VulkanCommandList) endPass() {
	if cl.pass == nil {
		return
	}
	cl.pass.RenderpassEnd(cl.buffer)
	cl.pass = nil
}

// beginPass starts a pass over the bound render targets, consuming the clears
// pending on them.
func (cl *VulkanCommandList) beginPass() bool {
	if cl.pass != nil {
		return true
	}
	if len(cl.colors) == 0 && cl.depth == nil {
		cl.fail(fmt.Errorf("draw without render targets"))
		return false
	}
	if len(cl.colors) > maxColorAttachments {
		cl.fail(fmt.Errorf("%d render targets bound, at most %d are supported", len(cl.colors), maxColorAttachments))
		return false
	}

	key := renderpassKey{colorCount: len(cl.colors)}
	views := make([]vk.ImageView, 0, len(cl.colors)+1)
	clearValues := make([]vk.ClearValue, 0, len(cl.colors)+1)
	var width, height uint32
	for i, a := range cl.colors {
		key.colors[i] = vulkanFormat(a.image.desc.Format)
		value, cleared := cl.takeClear(a.view)
		key.colorClears[i] = cleared
		views = append(views, a.view)
		clearValues = append(clearValues, value)
		width, height = a.image.Width, a.image.Height
	}
	if cl.depth != nil {
		key.depth = vulkanFormat(cl.depth.image.desc.Format)
		value, cleared := cl.takeClear(cl.depth.view)
		key.depthClear = cleared
		views = append(views, cl.depth.view)
		clearValues = append(clearValues, value)
		if width == 0 {
			width, height = cl.depth.image.Width, cl.depth.image.Height
		}
	}

	renderpass, err := cl.context.renderpasses.get(cl.context, key)
	if err != nil {
		cl.fail(err)
		return false
	}
	framebuffer, err := cl.context.framebuffers.get(cl.context, renderpass, width, height, views)
	if err != nil {
		cl.fail(err)
		return false
	}
	renderpass.RenderpassBegin(cl.buffer, framebuffer, clearValues)
	cl.pass = renderpass
	return true
}

func (cl *VulkanCommandList) takeClear(view vk.ImageView) (vk.ClearValue, bool) {
	for i, c := range cl.clears {
		if c.view == view {
			cl.clears = append(cl.clears[:i], cl.clears[i+1:]...)
			return c.value, true
		}
	}
	return vk.ClearValue{}, false
}

// flushClears records the clears no pass consumed, each as an empty pass.
func (cl *VulkanCommandList) flushClears() {
	clears := cl.clears
	cl.clears = nil
	for _, c := range clears {
		key := renderpassKey{}
		if c.depth {
			key.depth = vulkanFormat(c.image.desc.Format)
			key.depthClear = true
		} else {
			key.colorCount = 1
			key.colors[0] = vulkanFormat(c.image.desc.Format)
			key.colorClears[0] = true
		}
		renderpass, err := cl.context.renderpasses.get(cl.context, key)
		if err != nil {
			cl.fail(err)
			return
		}
		framebuffer, err := cl.context.framebuffers.get(cl.context, renderpass, c.image.Width, c.image.Height, []vk.ImageView{c.view})
		if err != nil {
			cl.fail(err)
			return
		}
		renderpass.RenderpassBegin(cl.buffer, framebuffer, []vk.ClearValue{c.value})
		renderpass.RenderpassEnd(cl.buffer)
	}
}

// outsidePass closes the current pass and any leftover clears before a
// command that cannot run inside one.
func (cl *VulkanCommandList) outsidePass() {
	cl.endPass()
	cl.flushClears()
}

func (cl *VulkanCommandList) ResourceBarriers(barriers []rhi.Barrier) {
	cl.outsidePass()

	var srcStages, dstStages vk.PipelineStageFlags
	var memoryBarrier vk.MemoryBarrier
	var hasMemoryBarrier bool
	imageBarriers := make([]vk.ImageMemoryBarrier, 0, len(barriers))

	for _, b := range barriers {
		before := resourceStateAccess(b.Before)
		after := resourceStateAccess(b.After)
		srcStages |= vk.PipelineStageFlags(before.stages)
		dstStages |= vk.PipelineStageFlags(after.stages)

		switch res := b.Resource.(type) {
		case *VulkanImage:
			imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
				SType:               vk.StructureTypeImageMemoryBarrier,
				SrcAccessMask:       vk.AccessFlags(before.access),
				DstAccessMask:       vk.AccessFlags(after.access),
				OldLayout:           before.layout,
				NewLayout:           after.layout,
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Image:               res.Handle,
				SubresourceRange:    res.subresourceRange(),
			})
		case *VulkanBuffer:
			// buffers have no layout, one global barrier covers them all
			memoryBarrier.SrcAccessMask |= vk.AccessFlags(before.access)
			memoryBarrier.DstAccessMask |= vk.AccessFlags(after.access)
			hasMemoryBarrier = true
		default:
			cl.fail(fmt.Errorf("barrier on %s which was not created by the vulkan backend", b.Resource.Name()))
			return
		}
	}

	var memoryBarriers []vk.MemoryBarrier
	if hasMemoryBarrier {
		memoryBarrier.SType = vk.StructureTypeMemoryBarrier
		memoryBarriers = []vk.MemoryBarrier{memoryBarrier}
	}
	vk.CmdPipelineBarrier(cl.buffer.Handle, srcStages, dstStages, 0,
		uint32(len(memoryBarriers)), memoryBarriers,
		0, nil,
		uint32(len(imageBarriers)), imageBarriers)
}

func (cl *VulkanCommandList) resolveAttachment(handle rhi.DescriptorHandle) (attachment, bool) {
	heap, err := cl.backend.heapForHandle(handle.CPU)
	if err != nil {
		cl.fail(err)
		return attachment{}, false
	}
	a, err := heap.attachmentAt(handle.Index)
	if err != nil {
		cl.fail(err)
		return attachment{}, false
	}
	return a, true
}

func (cl *VulkanCommandList) ClearRenderTarget(rtv rhi.DescriptorHandle, color [4]float32) {
	a, ok := cl.resolveAttachment(rtv)
	if !ok {
		return
	}
	cl.endPass()
	cl.takeClear(a.view)
	cl.clears = append(cl.clears, pendingClear{
		view:  a.view,
		image: a.image,
		value: vk.NewClearValue(color[:]),
	})
}

func (cl *VulkanCommandList) ClearDepthStencil(dsv rhi.DescriptorHandle, depth float32) {
	a, ok := cl.resolveAttachment(dsv)
	if !ok {
		return
	}
	cl.endPass()
	cl.takeClear(a.view)
	cl.clears = append(cl.clears, pendingClear{
		view:  a.view,
		image: a.image,
		value: vk.NewClearDepthStencil(depth, 0),
		depth: true,
	})
}

func (cl *VulkanCommandList) SetRenderTargets(rtvs []rhi.DescriptorHandle, dsv *rhi.DescriptorHandle) {
	cl.endPass()
	cl.colors = cl.colors[:0]
	cl.depth = nil
	for _, rtv := range rtvs {
		a, ok := cl.resolveAttachment(rtv)
		if !ok {
			return
		}
		cl.colors = append(cl.colors, a)
	}
	if dsv != nil {
		a, ok := cl.resolveAttachment(*dsv)
		if !ok {
			return
		}
		cl.depth = &a
	}
}

func (cl *VulkanCommandList) SetDescriptorHeaps(heaps []rhi.NativeHeap) {
	for _, h := range heaps {
		heap, ok := h.(*VulkanDescriptorHeap)
		if !ok {
			cl.fail(fmt.Errorf("descriptor heap was not created by the vulkan backend"))
			return
		}
		if heap.set != nil {
			cl.heap = heap
			cl.graphicsBound, cl.computeBound = false, false
		}
	}
}

// SetPrimitiveTopology is a no-op: every pipeline is built for triangle lists.
func (cl *VulkanCommandList) SetPrimitiveTopology(t rhi.PrimitiveTopology) {
	if t != rhi.PrimitiveTopologyTriangleList && !cl.loggedTopology {
		core.LogWarn("primitive topology %d is not supported, drawing triangle lists", t)
		cl.loggedTopology = true
	}
}

func (cl *VulkanCommandList) SetViewport(viewport rhi.Viewport, scissor rhi.Rect) {
	// negative height flips y so clip space matches the left-handed setup
	vk.CmdSetViewport(cl.buffer.Handle, 0, 1, []vk.Viewport{{
		X:        viewport.TopLeftX,
		Y:        viewport.TopLeftY + viewport.Height,
		Width:    viewport.Width,
		Height:   -viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
	vk.CmdSetScissor(cl.buffer.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.Left, Y: scissor.Top},
		Extent: vk.Extent2D{Width: uint32(scissor.Right - scissor.Left), Height: uint32(scissor.Bottom - scissor.Top)},
	}})
}

func (cl *VulkanCommandList) SetRootSignature(root rhi.NativeRootSignature, compute bool) {
	r, ok := root.(*VulkanRootSignature)
	if !ok {
		cl.fail(fmt.Errorf("root signature was not created by the vulkan backend"))
		return
	}
	if cl.root != r {
		cl.root = r
		cl.graphicsBound, cl.computeBound = false, false
	}
	cl.bindDescriptorSets(compute)
}

// bindDescriptorSets binds the heap and sampler sets once both are known.
func (cl *VulkanCommandList) bindDescriptorSets(compute bool) {
	if cl.root == nil || cl.heap == nil {
		return
	}
	bindPoint := vk.PipelineBindPointGraphics
	bound := &cl.graphicsBound
	if compute {
		bindPoint = vk.PipelineBindPointCompute
		bound = &cl.computeBound
	}
	if *bound {
		return
	}
	sets := []vk.DescriptorSet{cl.heap.set}
	if cl.root.samplerSet != nil {
		sets = append(sets, cl.root.samplerSet)
	}
	vk.CmdBindDescriptorSets(cl.buffer.Handle, bindPoint, cl.root.Layout, setBindless, uint32(len(sets)), sets, 0, nil)
	*bound = true
}

func (cl *VulkanCommandList) SetPipeline(p rhi.NativePipeline) {
	pipeline, ok := p.(*VulkanPipeline)
	if !ok {
		cl.fail(fmt.Errorf("pipeline was not created by the vulkan backend"))
		return
	}
	cl.pipeline = pipeline
	pipeline.Bind(cl.buffer)
	cl.bindDescriptorSets(pipeline.BindPoint == vk.PipelineBindPointCompute)
}

func (cl *VulkanCommandList) SetRootConstants(constants *rhi.RootConstants, compute bool) {
	if cl.root == nil {
		cl.fail(fmt.Errorf("root constants set before the root signature"))
		return
	}
	vk.CmdPushConstants(cl.buffer.Handle, cl.root.Layout, vk.ShaderStageFlags(vk.ShaderStageAll), 0,
		cl.root.constantBytes, unsafe.Pointer(&constants[0]))
}

func (cl *VulkanCommandList) SetIndexBuffer(b rhi.NativeBuffer, format rhi.Format, size uint64) {
	buffer, ok := b.(*VulkanBuffer)
	if !ok {
		cl.fail(fmt.Errorf("index buffer %s was not created by the vulkan backend", b.Name()))
		return
	}
	vk.CmdBindIndexBuffer(cl.buffer.Handle, buffer.Handle, 0, indexType(format))
}

func (cl *VulkanCommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !cl.beginPass() {
		return
	}
	vk.CmdDrawIndexed(cl.buffer.Handle, indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (cl *VulkanCommandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !cl.beginPass() {
		return
	}
	vk.CmdDraw(cl.buffer.Handle, vertexCount, instanceCount, startVertex, startInstance)
}

func (cl *VulkanCommandList) Dispatch(x, y, z uint32) {
	cl.outsidePass()
	vk.CmdDispatch(cl.buffer.Handle, x, y, z)
}

func (cl *VulkanCommandList) ExecuteIndirect(sig rhi.NativeCommandSignature, maxCount uint32, args rhi.NativeBuffer, offset uint64) {
	signature, ok := sig.(*VulkanCommandSignature)
	if !ok {
		cl.fail(fmt.Errorf("command signature was not created by the vulkan backend"))
		return
	}
	buffer, ok := args.(*VulkanBuffer)
	if !ok {
		cl.fail(fmt.Errorf("argument buffer %s was not created by the vulkan backend", args.Name()))
		return
	}
	if maxCount == 0 || !cl.beginPass() {
		return
	}
	vk.CmdDrawIndexedIndirect(cl.buffer.Handle, buffer.Handle, vk.DeviceSize(offset+uint64(signature.DrawOffset)), maxCount, signature.Stride)
}

func (cl *VulkanCommandList) CopyBuffer(dst rhi.NativeBuffer, dstOffset uint64, src rhi.NativeBuffer, srcOffset uint64, size uint64) {
	d, ok := dst.(*VulkanBuffer)
	s, ok2 := src.(*VulkanBuffer)
	if !ok || !ok2 {
		cl.fail(fmt.Errorf("copy between buffers not created by the vulkan backend"))
		return
	}
	cl.outsidePass()
	vk.CmdCopyBuffer(cl.buffer.Handle, s.Handle, d.Handle, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}})
}

func (cl *VulkanCommandList) CopyBufferToTexture(dst rhi.NativeTexture, src rhi.NativeBuffer, layout rhi.TextureCopyLayout) {
	img, ok := dst.(*VulkanImage)
	s, ok2 := src.(*VulkanBuffer)
	if !ok || !ok2 {
		cl.fail(fmt.Errorf("texture copy with resources not created by the vulkan backend"))
		return
	}
	bpp := img.desc.Format.BytesPerPixel()
	if bpp == 0 {
		cl.fail(fmt.Errorf("texture %s has no copyable format", img.Name()))
		return
	}
	cl.outsidePass()

	layerSize := uint64(layout.RowPitch) * uint64(layout.Height)
	regions := make([]vk.BufferImageCopy, layout.ArraySize)
	for layer := range regions {
		regions[layer] = vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(uint64(layer) * layerSize),
			BufferRowLength:   layout.RowPitch / bpp,
			BufferImageHeight: layout.Height,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     aspectMask(img.desc.Format),
				MipLevel:       0,
				BaseArrayLayer: uint32(layer),
				LayerCount:     1,
			},
			ImageExtent: vk.Extent3D{Width: layout.Width, Height: layout.Height, Depth: 1},
		}
	}
	vk.CmdCopyBufferToImage(cl.buffer.Handle, s.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
}

func (cl *VulkanCommandList) Destroy() {
	if cl.buffer != nil {
		cl.buffer.Free(cl.context, cl.pool)
		cl.buffer = nil
	}
	if cl.pool != nil {
		vk.DestroyCommandPool(cl.context.Device.LogicalDevice, cl.pool, cl.context.Allocator)
		cl.pool = nil
	}
}
