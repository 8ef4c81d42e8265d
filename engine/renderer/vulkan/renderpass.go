package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

const maxColorAttachments = 8

// renderpassKey describes a single subpass pass. Attachments start and end in
// their attachment layouts; barriers move them in and out.
type renderpassKey struct {
	colorCount  int
	colors      [maxColorAttachments]vk.Format
	colorClears [maxColorAttachments]bool
	depth       vk.Format
	depthClear  bool
}

type VulkanRenderpass struct {
	Handle vk.RenderPass
	key    renderpassKey
}

type renderpassCache struct {
	mu     sync.Mutex
	passes map[renderpassKey]*VulkanRenderpass
}

func newRenderpassCache() *renderpassCache {
	return &renderpassCache{passes: map[renderpassKey]*VulkanRenderpass{}}
}

func (c *renderpassCache) get(context *VulkanContext, key renderpassKey) (*VulkanRenderpass, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rp, ok := c.passes[key]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(context, key)
	if err != nil {
		return nil, err
	}
	c.passes[key] = rp
	return rp, nil
}

func (c *renderpassCache) destroy(context *VulkanContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, rp := range c.passes {
		rp.RenderpassDestroy(context)
		delete(c.passes, key)
	}
}

func loadOp(clear bool) vk.AttachmentLoadOp {
	if clear {
		return vk.AttachmentLoadOpClear
	}
	return vk.AttachmentLoadOpLoad
}

func RenderpassCreate(context *VulkanContext, key renderpassKey) (*VulkanRenderpass, error) {
	var attachmentDescriptions []vk.AttachmentDescription
	var colorReferences []vk.AttachmentReference

	for i := 0; i < key.colorCount; i++ {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         key.colors[i],
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(key.colorClears[i]),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorReferences)),
		PColorAttachments:    colorReferences,
	}

	if key.depth != vk.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         key.depth,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         loadOp(key.depthClear),
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(key.colorCount),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	rp := &VulkanRenderpass{key: key}
	err := context.locks.SafeCall(RenderpassManagement, func() error {
		return check(vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &rp.Handle), "vkCreateRenderPass")
	})
	if err != nil {
		return nil, err
	}
	return rp, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer, clearValues []vk.ClearValue) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
