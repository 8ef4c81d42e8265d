package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type VulkanBuffer struct {
	context *VulkanContext
	name    string
	size    uint64
	heap    rhi.MemoryHeap

	Handle vk.Buffer
	Memory vk.DeviceMemory
	mapped []byte
}

func bufferUsageFlags(desc rhi.NativeBufferDesc) vk.BufferUsageFlags {
	flags := vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit
	switch desc.Usage {
	case rhi.BufferUsageConstantBuffer:
		flags |= vk.BufferUsageUniformBufferBit
	case rhi.BufferUsageIndexBuffer:
		flags |= vk.BufferUsageIndexBufferBit
	default:
		// structured buffers double as indirect argument buffers
		flags |= vk.BufferUsageStorageBufferBit | vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(flags)
}

func memoryFlags(heap rhi.MemoryHeap) vk.MemoryPropertyFlags {
	switch heap {
	case rhi.MemoryHeapUpload:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	case rhi.MemoryHeapReadback:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

func NewVulkanBuffer(context *VulkanContext, desc rhi.NativeBufferDesc) (*VulkanBuffer, error) {
	b := &VulkanBuffer{context: context, name: desc.Name, size: desc.Size, heap: desc.Heap}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsageFlags(desc),
		SharingMode: vk.SharingModeExclusive,
	}
	device := context.Device.LogicalDevice
	if err := check(vk.CreateBuffer(device, &createInfo, context.Allocator, &b.Handle), "vkCreateBuffer"); err != nil {
		return nil, fmt.Errorf("buffer %s: %w", desc.Name, err)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, b.Handle, &requirements)
	memory, err := context.allocate(requirements, memoryFlags(desc.Heap))
	if err != nil && desc.Heap == rhi.MemoryHeapReadback {
		// not every device exposes cached host memory
		memory, err = context.allocate(requirements, memoryFlags(rhi.MemoryHeapUpload))
	}
	if err != nil {
		b.Destroy()
		return nil, fmt.Errorf("buffer %s: %w", desc.Name, err)
	}
	b.Memory = memory

	if err := check(vk.BindBufferMemory(device, b.Handle, b.Memory, 0), "vkBindBufferMemory"); err != nil {
		b.Destroy()
		return nil, err
	}

	if desc.Heap != rhi.MemoryHeapDefault {
		var data unsafe.Pointer
		if err := check(vk.MapMemory(device, b.Memory, 0, vk.DeviceSize(desc.Size), 0, &data), "vkMapMemory"); err != nil {
			b.Destroy()
			return nil, err
		}
		b.mapped = unsafe.Slice((*byte)(data), desc.Size)
	}
	return b, nil
}

func (b *VulkanBuffer) Name() string { return b.name }

func (b *VulkanBuffer) Size() uint64 { return b.size }

func (b *VulkanBuffer) Map() ([]byte, error) {
	if b.mapped == nil {
		return nil, fmt.Errorf("buffer %s lives in device local memory and cannot be mapped", b.name)
	}
	return b.mapped, nil
}

func (b *VulkanBuffer) Destroy() {
	device := b.context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}
