package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// Bindings of the bindless descriptor set. Every binding is an array as long
// as the heap, and a descriptor index addresses the same slot in each.
const (
	bindingUniformBuffer uint32 = iota
	bindingStorageBuffer
	bindingSampledImage
	bindingStorageImage
	bindlessBindingCount
)

const descriptorSize = 32

var bindlessTypes = [bindlessBindingCount]vk.DescriptorType{
	vk.DescriptorTypeUniformBuffer,
	vk.DescriptorTypeStorageBuffer,
	vk.DescriptorTypeSampledImage,
	vk.DescriptorTypeStorageImage,
}

type attachment struct {
	image *VulkanImage
	view  vk.ImageView
}

// VulkanDescriptorHeap is either a bindless descriptor set (CBV/SRV/UAV) or a
// CPU table of attachment views (RTV/DSV).
type VulkanDescriptorHeap struct {
	context  *VulkanContext
	id       uint64
	heapType rhi.HeapType
	capacity uint32

	pool vk.DescriptorPool
	set  vk.DescriptorSet

	mu          sync.Mutex
	attachments []attachment
}

func createBindlessSetLayout(context *VulkanContext, capacity uint32) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, bindlessBindingCount)
	flags := make([]vk.DescriptorBindingFlags, bindlessBindingCount)
	for i := uint32(0); i < bindlessBindingCount; i++ {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         i,
			DescriptorType:  bindlessTypes[i],
			DescriptorCount: capacity,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}
		flags[i] = vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit | vk.DescriptorBindingUpdateAfterBindBit)
	}

	bindingFlags := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  bindlessBindingCount,
		PBindingFlags: flags,
	}
	bindingFlagsRef, _ := bindingFlags.PassRef()

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(bindingFlagsRef),
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit),
		BindingCount: bindlessBindingCount,
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	err := check(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout), "vkCreateDescriptorSetLayout")
	return layout, err
}

func newShaderVisibleHeap(context *VulkanContext, id uint64, capacity uint32, layout vk.DescriptorSetLayout) (*VulkanDescriptorHeap, error) {
	h := &VulkanDescriptorHeap{context: context, id: id, heapType: rhi.HeapTypeCbvSrvUav, capacity: capacity}

	sizes := make([]vk.DescriptorPoolSize, bindlessBindingCount)
	for i := range sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: bindlessTypes[i], DescriptorCount: capacity}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	device := context.Device.LogicalDevice
	if err := check(vk.CreateDescriptorPool(device, &poolInfo, context.Allocator, &h.pool), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     h.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	if err := check(vk.AllocateDescriptorSets(device, &allocInfo, &h.set), "vkAllocateDescriptorSets"); err != nil {
		h.Destroy()
		return nil, err
	}
	return h, nil
}

func newAttachmentHeap(context *VulkanContext, id uint64, t rhi.HeapType, capacity uint32) *VulkanDescriptorHeap {
	return &VulkanDescriptorHeap{
		context:     context,
		id:          id,
		heapType:    t,
		capacity:    capacity,
		attachments: make([]attachment, capacity),
	}
}

func (h *VulkanDescriptorHeap) DescriptorSize() uint32 { return descriptorSize }

// Start encodes the heap id in the upper bits so a handle can be resolved back
// to its heap.
func (h *VulkanDescriptorHeap) Start() (uint64, uint64) {
	cpu := h.id << 40
	if h.heapType.ShaderVisible() {
		return cpu, cpu | 1<<39
	}
	return cpu, 0
}

func (h *VulkanDescriptorHeap) checkIndex(index uint32) error {
	if index >= h.capacity {
		return fmt.Errorf("descriptor index %d out of range for %s heap of %d", index, h.heapType, h.capacity)
	}
	return nil
}

func (h *VulkanDescriptorHeap) WriteBufferView(index uint32, view rhi.BufferView) error {
	if err := h.checkIndex(index); err != nil {
		return err
	}
	if h.set == nil {
		return fmt.Errorf("buffer views need a shader visible heap, got %s", h.heapType)
	}
	buffer, ok := view.Buffer.(*VulkanBuffer)
	if !ok {
		return fmt.Errorf("buffer %s was not created by the vulkan backend", view.Buffer.Name())
	}

	binding := bindingStorageBuffer
	if view.Kind == rhi.ViewCBV {
		binding = bindingUniformBuffer
	}
	size := view.Size
	if size == 0 {
		size = buffer.Size() - view.Offset
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.set,
		DstBinding:      binding,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  bindlessTypes[binding],
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: vk.DeviceSize(view.Offset),
			Range:  vk.DeviceSize(size),
		}},
	}
	return h.context.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(h.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (h *VulkanDescriptorHeap) WriteTextureView(index uint32, view rhi.TextureView) error {
	if err := h.checkIndex(index); err != nil {
		return err
	}
	img, ok := view.Texture.(*VulkanImage)
	if !ok {
		return fmt.Errorf("texture %s was not created by the vulkan backend", view.Texture.Name())
	}
	imageView, err := img.View(view.Face, view.Cube)
	if err != nil {
		return err
	}

	switch view.Kind {
	case rhi.ViewRTV, rhi.ViewDSV:
		if h.attachments == nil {
			return fmt.Errorf("attachment views need an RTV or DSV heap, got %s", h.heapType)
		}
		h.mu.Lock()
		h.attachments[index] = attachment{image: img, view: imageView}
		h.mu.Unlock()
		return nil
	case rhi.ViewSRV, rhi.ViewUAV:
	default:
		return fmt.Errorf("unsupported texture view kind %d", view.Kind)
	}

	if h.set == nil {
		return fmt.Errorf("shader resource views need a shader visible heap, got %s", h.heapType)
	}
	binding, layout := bindingSampledImage, vk.ImageLayoutShaderReadOnlyOptimal
	if view.Kind == rhi.ViewUAV {
		binding, layout = bindingStorageImage, vk.ImageLayoutGeneral
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          h.set,
		DstBinding:      binding,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  bindlessTypes[binding],
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   imageView,
			ImageLayout: layout,
		}},
	}
	return h.context.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(h.context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (h *VulkanDescriptorHeap) attachmentAt(index uint32) (attachment, error) {
	if err := h.checkIndex(index); err != nil {
		return attachment{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	a := h.attachments[index]
	if a.image == nil {
		return a, fmt.Errorf("no view written at %s index %d", h.heapType, index)
	}
	return a, nil
}

func (h *VulkanDescriptorHeap) Destroy() {
	if h.pool != nil {
		// destroying the pool frees the set
		vk.DestroyDescriptorPool(h.context.Device.LogicalDevice, h.pool, h.context.Allocator)
		h.pool = nil
		h.set = nil
	}
	h.attachments = nil
}
