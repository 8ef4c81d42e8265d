package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
	amath "github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// VulkanSwapchain always holds an acquired image between presents, so the
// next back buffer index is known before the frame starts.
type VulkanSwapchain struct {
	context *VulkanContext
	queue   *VulkanQueue
	pool    vk.CommandPool
	desc    rhi.SwapchainDesc

	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	Images      []*VulkanImage

	presentMode vk.PresentMode
	tearing     bool

	// imageAvailable rotates per acquire, renderComplete is per image
	imageAvailable []vk.Semaphore
	renderComplete []vk.Semaphore
	semaphoreIndex int

	imageIndex uint32
	acquired   bool
}

func SwapchainCreate(context *VulkanContext, queue *VulkanQueue, desc rhi.SwapchainDesc) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{context: context, queue: queue, desc: desc}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if err := check(vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &swapchain.pool), "vkCreateCommandPool"); err != nil {
		return nil, err
	}

	if err := swapchain.create(desc.Width, desc.Height); err != nil {
		swapchain.Destroy()
		return nil, err
	}
	core.LogInfo("Swapchain created successfully.")
	return swapchain, nil
}

func (vs *VulkanSwapchain) choosePresentMode(support *VulkanSwapchainSupportInfo) vk.PresentMode {
	vs.tearing = false
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox || mode == vk.PresentModeImmediate {
			vs.tearing = true
		}
	}
	if vs.desc.VSync {
		return vk.PresentModeFifo
	}
	for _, preferred := range []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate} {
		for _, mode := range support.PresentModes {
			if mode == preferred {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

func (vs *VulkanSwapchain) create(width, height uint32) error {
	context := vs.context
	device := context.Device.LogicalDevice

	// the surface extent and modes can change with the window
	support := &context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, support); err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return fmt.Errorf("surface reports no formats")
	}

	// Choose a swap surface format.
	wanted := vulkanFormat(vs.desc.Format)
	found := false
	for _, format := range support.Formats {
		if format.Format == wanted && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("surface does not support %s back buffers", vs.desc.Format)
	}
	vs.presentMode = vs.choosePresentMode(support)

	// Swapchain extent
	vs.Extent = vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		vs.Extent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	vs.Extent.Width = amath.Clamp(vs.Extent.Width, minExtent.Width, maxExtent.Width)
	vs.Extent.Height = amath.Clamp(vs.Extent.Height, minExtent.Height, maxExtent.Height)

	imageCount := vs.desc.BufferCount
	if imageCount < support.Capabilities.MinImageCount {
		imageCount = support.Capabilities.MinImageCount
	}
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      vs.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vs.presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vs.Handle,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	err := context.locks.SafeCall(SwapchainManagement, func() error {
		return check(vk.CreateSwapchain(device, &swapchainCreateInfo, context.Allocator, &handle), "vkCreateSwapchainKHR")
	})
	if err != nil {
		return err
	}
	if vs.Handle != nil {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
	}
	vs.Handle = handle

	// Images
	var count uint32
	if err := check(vk.GetSwapchainImages(device, vs.Handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	handles := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(device, vs.Handle, &count, handles), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	if count != vs.desc.BufferCount {
		return fmt.Errorf("presentation engine gave %d images, need %d", count, vs.desc.BufferCount)
	}

	vs.Images = make([]*VulkanImage, count)
	for i, h := range handles {
		vs.Images[i] = wrapSwapchainImage(context, h, rhi.TextureCreationDesc{
			Name:             fmt.Sprintf("back buffer %d", i),
			Width:            vs.Extent.Width,
			Height:           vs.Extent.Height,
			MipLevels:        1,
			DepthOrArraySize: 1,
			Format:           vs.desc.Format,
			Usage:            rhi.TextureUsageRenderTarget,
		})
	}

	if err := vs.createSemaphores(); err != nil {
		return err
	}
	if err := vs.transitionToPresent(); err != nil {
		return err
	}
	if err := vs.acquire(); err != nil {
		return err
	}
	return nil
}

func (vs *VulkanSwapchain) createSemaphores() error {
	vs.destroySemaphores()
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	create := func() (vk.Semaphore, error) {
		var semaphore vk.Semaphore
		err := check(vk.CreateSemaphore(vs.context.Device.LogicalDevice, &semaphoreCreateInfo, vs.context.Allocator, &semaphore), "vkCreateSemaphore")
		return semaphore, err
	}
	for i := 0; i <= len(vs.Images); i++ {
		s, err := create()
		if err != nil {
			return err
		}
		vs.imageAvailable = append(vs.imageAvailable, s)
	}
	for range vs.Images {
		s, err := create()
		if err != nil {
			return err
		}
		vs.renderComplete = append(vs.renderComplete, s)
	}
	vs.semaphoreIndex = 0
	return nil
}

func (vs *VulkanSwapchain) destroySemaphores() {
	device := vs.context.Device.LogicalDevice
	for _, s := range vs.imageAvailable {
		vk.DestroySemaphore(device, s, vs.context.Allocator)
	}
	for _, s := range vs.renderComplete {
		vk.DestroySemaphore(device, s, vs.context.Allocator)
	}
	vs.imageAvailable, vs.renderComplete = nil, nil
}

// transitionToPresent moves fresh images out of the undefined layout so the
// first frame can treat them like any presented image.
func (vs *VulkanSwapchain) transitionToPresent() error {
	cb, err := AllocateAndBeginSingleUse(vs.context, vs.pool)
	if err != nil {
		return err
	}
	barriers := make([]vk.ImageMemoryBarrier, len(vs.Images))
	for i, img := range vs.Images {
		barriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			OldLayout:           vk.ImageLayoutUndefined,
			NewLayout:           vk.ImageLayoutPresentSrc,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               img.Handle,
			SubresourceRange:    img.subresourceRange(),
		}
	}
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit), 0,
		0, nil, 0, nil, uint32(len(barriers)), barriers)
	return cb.EndSingleUse(vs.context, vs.pool, vs.queue.handle, vs.queue.family)
}

func (vs *VulkanSwapchain) acquire() error {
	semaphore := vs.imageAvailable[vs.semaphoreIndex]
	var index uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, math.MaxUint64, semaphore, vk.NullFence, &index)
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		vs.acquired = false
		return core.ErrSwapchainBooting
	default:
		vs.acquired = false
		return check(result, "vkAcquireNextImageKHR")
	}
	vs.semaphoreIndex = (vs.semaphoreIndex + 1) % len(vs.imageAvailable)
	vs.imageIndex = index
	vs.acquired = true
	vs.queue.usePresentSemaphores(semaphore, vs.renderComplete[index])
	return nil
}

func (vs *VulkanSwapchain) BackBuffers() []rhi.NativeTexture {
	out := make([]rhi.NativeTexture, len(vs.Images))
	for i, img := range vs.Images {
		out[i] = img
	}
	return out
}

func (vs *VulkanSwapchain) CurrentBackBufferIndex() uint32 {
	return vs.imageIndex
}

// Present hands the acquired image back and acquires the next one. An out
// of date surface is reported as core.ErrSwapchainBooting; the caller is
// expected to resize.
func (vs *VulkanSwapchain) Present(syncInterval uint32, allowTearing bool) error {
	if !vs.acquired {
		if err := vs.acquire(); err != nil {
			return err
		}
	}

	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{vs.Handle},
		PImageIndices:  []uint32{vs.imageIndex},
	}
	if vs.queue.takePresentReady() {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{vs.renderComplete[vs.imageIndex]}
	}

	var result vk.Result
	family := uint32(vs.context.Device.PresentQueueIndex)
	_ = vs.context.locks.SafeQueueCall(family, func() error {
		result = vk.QueuePresent(vs.context.Device.PresentQueue, &presentInfo)
		return nil
	})
	vs.acquired = false

	switch result {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		// Swapchain is out of date, suboptimal or a framebuffer resize has occurred.
		return core.ErrSwapchainBooting
	default:
		return check(result, "vkQueuePresentKHR")
	}
	return vs.acquire()
}

func (vs *VulkanSwapchain) SupportsTearing() bool {
	return vs.tearing
}

func (vs *VulkanSwapchain) destroyImages() {
	for _, img := range vs.Images {
		img.Destroy()
	}
	vs.Images = nil
}

// Resize recreates the swapchain. Every queue must be idle.
func (vs *VulkanSwapchain) Resize(width, height uint32) error {
	vs.destroyImages()
	return vs.create(width, height)
}

func (vs *VulkanSwapchain) Destroy() {
	device := vs.context.Device.LogicalDevice
	vk.DeviceWaitIdle(device)
	// Only destroy the views, the images are owned by the swapchain.
	vs.destroyImages()
	vs.destroySemaphores()
	if vs.Handle != nil {
		vk.DestroySwapchain(device, vs.Handle, vs.context.Allocator)
		vs.Handle = nil
	}
	if vs.pool != nil {
		vk.DestroyCommandPool(device, vs.pool, vs.context.Allocator)
		vs.pool = nil
	}
}
