package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

type framebufferKey struct {
	renderpass vk.RenderPass
	views      [maxColorAttachments + 1]vk.ImageView
	width      uint32
	height     uint32
}

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Width       uint32
	Height      uint32
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width uint32, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Width:       width,
		Height:      height,
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if err := check(vk.CreateFramebuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &outFramebuffer.Handle), "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
}

// framebufferCache creates framebuffers on first use and drops them when one
// of their views goes away.
type framebufferCache struct {
	mu           sync.Mutex
	framebuffers map[framebufferKey]*VulkanFramebuffer
}

func newFramebufferCache() *framebufferCache {
	return &framebufferCache{framebuffers: map[framebufferKey]*VulkanFramebuffer{}}
}

func (c *framebufferCache) get(context *VulkanContext, renderpass *VulkanRenderpass, width, height uint32, views []vk.ImageView) (*VulkanFramebuffer, error) {
	key := framebufferKey{renderpass: renderpass.Handle, width: width, height: height}
	copy(key.views[:], views)

	c.mu.Lock()
	defer c.mu.Unlock()
	if fb, ok := c.framebuffers[key]; ok {
		return fb, nil
	}
	fb, err := FramebufferCreate(context, renderpass, width, height, views)
	if err != nil {
		return nil, err
	}
	c.framebuffers[key] = fb
	return fb, nil
}

func (c *framebufferCache) evict(context *VulkanContext, view vk.ImageView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, fb := range c.framebuffers {
		for _, v := range fb.Attachments {
			if v == view {
				fb.Destroy(context)
				delete(c.framebuffers, key)
				break
			}
		}
	}
}

func (c *framebufferCache) destroy(context *VulkanContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, fb := range c.framebuffers {
		fb.Destroy(context)
		delete(c.framebuffers, key)
	}
}
