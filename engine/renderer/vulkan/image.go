package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type viewKey struct {
	face int32
	cube bool
}

type VulkanImage struct {
	context *VulkanContext
	desc    rhi.TextureCreationDesc
	// swapchain images belong to the swapchain
	owned bool

	Handle vk.Image
	Memory vk.DeviceMemory
	Width  uint32
	Height uint32

	mu    sync.Mutex
	views map[viewKey]vk.ImageView
}

func imageUsageFlags(desc rhi.TextureCreationDesc) vk.ImageUsageFlags {
	flags := vk.ImageUsageTransferDstBit | vk.ImageUsageTransferSrcBit | vk.ImageUsageSampledBit
	switch desc.Usage {
	case rhi.TextureUsageDepthStencil:
		flags = vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageTransferDstBit
	case rhi.TextureUsageRenderTarget:
		flags |= vk.ImageUsageColorAttachmentBit
	case rhi.TextureUsageUAV:
		flags |= vk.ImageUsageStorageBit
	}
	return vk.ImageUsageFlags(flags)
}

func ImageCreate(context *VulkanContext, desc rhi.TextureCreationDesc) (*VulkanImage, error) {
	img := &VulkanImage{
		context: context,
		desc:    desc,
		owned:   true,
		Width:   desc.Width,
		Height:  desc.Height,
		views:   map[viewKey]vk.ImageView{},
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vulkanFormat(desc.Format),
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.DepthOrArraySize,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         imageUsageFlags(desc),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if desc.Cube {
		createInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	device := context.Device.LogicalDevice
	if err := check(vk.CreateImage(device, &createInfo, context.Allocator, &img.Handle), "vkCreateImage"); err != nil {
		return nil, fmt.Errorf("texture %s: %w", desc.Name, err)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, img.Handle, &requirements)
	memory, err := context.allocate(requirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, fmt.Errorf("texture %s: %w", desc.Name, err)
	}
	img.Memory = memory
	if err := check(vk.BindImageMemory(device, img.Handle, img.Memory, 0), "vkBindImageMemory"); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func wrapSwapchainImage(context *VulkanContext, handle vk.Image, desc rhi.TextureCreationDesc) *VulkanImage {
	return &VulkanImage{
		context: context,
		desc:    desc,
		Handle:  handle,
		Width:   desc.Width,
		Height:  desc.Height,
		views:   map[viewKey]vk.ImageView{},
	}
}

func (img *VulkanImage) Name() string { return img.desc.Name }

func (img *VulkanImage) Desc() rhi.TextureCreationDesc { return img.desc }

func (img *VulkanImage) subresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     aspectMask(img.desc.Format),
		BaseMipLevel:   0,
		LevelCount:     img.desc.MipLevels,
		BaseArrayLayer: 0,
		LayerCount:     img.desc.DepthOrArraySize,
	}
}

// View returns the image view for one face (or every face when face < 0),
// creating it on first use.
func (img *VulkanImage) View(face int32, cube bool) (vk.ImageView, error) {
	key := viewKey{face: face, cube: cube}
	img.mu.Lock()
	defer img.mu.Unlock()
	if view, ok := img.views[key]; ok {
		return view, nil
	}

	subresource := img.subresourceRange()
	viewType := vk.ImageViewType2d
	switch {
	case face >= 0:
		subresource.BaseArrayLayer = uint32(face)
		subresource.LayerCount = 1
	case cube:
		viewType = vk.ImageViewTypeCube
	case img.desc.DepthOrArraySize > 1:
		viewType = vk.ImageViewType2dArray
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            img.Handle,
		ViewType:         viewType,
		Format:           vulkanFormat(img.desc.Format),
		SubresourceRange: subresource,
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(img.context.Device.LogicalDevice, &viewInfo, img.context.Allocator, &view), "vkCreateImageView"); err != nil {
		return nil, fmt.Errorf("texture %s: %w", img.desc.Name, err)
	}
	img.views[key] = view
	return view, nil
}

func (img *VulkanImage) destroyViews() {
	img.mu.Lock()
	defer img.mu.Unlock()
	for key, view := range img.views {
		if img.context.framebuffers != nil {
			img.context.framebuffers.evict(img.context, view)
		}
		vk.DestroyImageView(img.context.Device.LogicalDevice, view, img.context.Allocator)
		delete(img.views, key)
	}
}

func (img *VulkanImage) Destroy() {
	img.destroyViews()
	if !img.owned {
		return
	}
	device := img.context.Device.LogicalDevice
	if img.Handle != nil {
		vk.DestroyImage(device, img.Handle, img.context.Allocator)
		img.Handle = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(device, img.Memory, img.context.Allocator)
		img.Memory = nil
	}
}
