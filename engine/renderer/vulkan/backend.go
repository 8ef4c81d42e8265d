package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type Options struct {
	AppName string
	// Debug enables the validation layer and the debug report callback.
	Debug bool
}

// Backend implements rhi.Backend on Vulkan 1.2 with descriptor indexing.
type Backend struct {
	context *VulkanContext
	debug   bool

	// single-use work such as initial layout transitions
	uploadPool vk.CommandPool

	mu             sync.Mutex
	nextHeapID     uint64
	heaps          map[uint64]*VulkanDescriptorHeap
	bindlessLayout vk.DescriptorSetLayout
	directQueue    *VulkanQueue
	queues         []*VulkanQueue
	commandLists   []*VulkanCommandList
}

var _ rhi.Backend = (*Backend)(nil)

func New(window SurfaceSource, opts Options) (*Backend, error) {
	if err := loadVulkan(); err != nil {
		return nil, err
	}

	b := &Backend{
		context: &VulkanContext{
			// TODO: custom allocator.
			Allocator: nil,
			Device: &VulkanDevice{
				GraphicsQueueIndex: -1,
				PresentQueueIndex:  -1,
				TransferQueueIndex: -1,
			},
			locks:        NewVulkanLockPool(),
			renderpasses: newRenderpassCache(),
			framebuffers: newFramebufferCache(),
		},
		debug:      opts.Debug,
		nextHeapID: 1,
		heaps:      map[uint64]*VulkanDescriptorHeap{},
	}

	if err := createInstance(b.context, window, opts.AppName, opts.Debug); err != nil {
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")

	// Device creation
	if err := DeviceCreate(b.context); err != nil {
		destroyInstance(b.context)
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	b.context.locks.SetQueueFamily(uint32(b.context.Device.GraphicsQueueIndex))
	b.context.locks.SetQueueFamily(uint32(b.context.Device.PresentQueueIndex))

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(b.context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if err := check(vk.CreateCommandPool(b.context.Device.LogicalDevice, &poolCreateInfo, b.context.Allocator, &b.uploadPool), "vkCreateCommandPool"); err != nil {
		b.Destroy()
		return nil, err
	}

	core.LogInfo("Vulkan backend initialized successfully.")
	return b, nil
}

func (b *Backend) Name() string { return "vulkan" }

func (b *Backend) CreateDescriptorHeap(t rhi.HeapType, capacity uint32) (rhi.NativeHeap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextHeapID
	var heap *VulkanDescriptorHeap
	if t.ShaderVisible() {
		if b.bindlessLayout == nil {
			layout, err := createBindlessSetLayout(b.context, capacity)
			if err != nil {
				return nil, err
			}
			b.bindlessLayout = layout
		}
		h, err := newShaderVisibleHeap(b.context, id, capacity, b.bindlessLayout)
		if err != nil {
			return nil, err
		}
		heap = h
	} else {
		heap = newAttachmentHeap(b.context, id, t, capacity)
	}
	b.nextHeapID++
	b.heaps[id] = heap
	return heap, nil
}

// heapForHandle resolves a CPU descriptor address back to its heap.
func (b *Backend) heapForHandle(cpu uint64) (*VulkanDescriptorHeap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	heap, ok := b.heaps[cpu>>40]
	if !ok || heap.pool == nil && heap.attachments == nil {
		return nil, fmt.Errorf("descriptor handle %#x does not belong to a live heap", cpu)
	}
	return heap, nil
}

func (b *Backend) CreateBuffer(desc rhi.NativeBufferDesc) (rhi.NativeBuffer, error) {
	return NewVulkanBuffer(b.context, desc)
}

// CreateTexture creates the image and moves it into its initial state.
func (b *Backend) CreateTexture(desc rhi.NativeTextureDesc) (rhi.NativeTexture, error) {
	img, err := ImageCreate(b.context, desc.TextureCreationDesc)
	if err != nil {
		return nil, err
	}

	cb, err := AllocateAndBeginSingleUse(b.context, b.uploadPool)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	after := resourceStateAccess(desc.InitialState)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		DstAccessMask:       vk.AccessFlags(after.access),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           after.layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img.Handle,
		SubresourceRange:    img.subresourceRange(),
	}
	vk.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(after.stages), 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	if err := cb.EndSingleUse(b.context, b.uploadPool, b.context.Device.GraphicsQueue, uint32(b.context.Device.GraphicsQueueIndex)); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

func (b *Backend) CreateQueue(kind rhi.QueueKind) (rhi.NativeQueue, error) {
	q := newQueue(b.context, kind)
	b.mu.Lock()
	defer b.mu.Unlock()
	if kind == rhi.QueueKindDirect && b.directQueue == nil {
		b.directQueue = q
	}
	b.queues = append(b.queues, q)
	return q, nil
}

func (b *Backend) CreateCommandList(kind rhi.QueueKind) (rhi.NativeCommandList, error) {
	cl, err := NewCommandList(b, kind)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.commandLists = append(b.commandLists, cl)
	b.mu.Unlock()
	return cl, nil
}

func (b *Backend) CreateSwapchain(desc rhi.SwapchainDesc) (rhi.NativeSwapchain, error) {
	b.mu.Lock()
	queue := b.directQueue
	b.mu.Unlock()
	if queue == nil {
		return nil, fmt.Errorf("swapchain needs a direct queue to present from")
	}
	return SwapchainCreate(b.context, queue, desc)
}

func (b *Backend) CreateRootSignature(desc rhi.RootSignatureDesc) (rhi.NativeRootSignature, error) {
	b.mu.Lock()
	layout := b.bindlessLayout
	b.mu.Unlock()
	return NewRootSignature(b.context, desc, layout)
}

func (b *Backend) CreatePipeline(desc rhi.NativePipelineDesc) (rhi.NativePipeline, error) {
	root, ok := desc.RootSignature.(*VulkanRootSignature)
	if !ok {
		return nil, fmt.Errorf("pipeline %q: root signature was not created by the vulkan backend", desc.Name)
	}
	if desc.Variant == rhi.PipelineVariantCompute {
		return NewComputePipeline(b.context, desc, root)
	}
	return NewGraphicsPipeline(b.context, desc, root)
}

func (b *Backend) CreateCommandSignature(desc rhi.CommandSignatureDesc, root rhi.NativeRootSignature) (rhi.NativeCommandSignature, error) {
	if _, ok := root.(*VulkanRootSignature); !ok {
		return nil, fmt.Errorf("root signature was not created by the vulkan backend")
	}
	return NewCommandSignature(desc)
}

func (b *Backend) WaitIdle() error {
	return b.context.locks.SafeCall(ResourceManagement, func() error {
		return check(vk.DeviceWaitIdle(b.context.Device.LogicalDevice), "vkDeviceWaitIdle")
	})
}

// Destroy releases what the backend owns. Resources handed out through the
// rhi are destroyed by their owners first.
func (b *Backend) Destroy() {
	if b.context.Device != nil && b.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(b.context.Device.LogicalDevice)
		device := b.context.Device.LogicalDevice

		for _, cl := range b.commandLists {
			cl.Destroy()
		}
		b.commandLists = nil

		b.context.framebuffers.destroy(b.context)
		b.context.renderpasses.destroy(b.context)

		if b.bindlessLayout != nil {
			vk.DestroyDescriptorSetLayout(device, b.bindlessLayout, b.context.Allocator)
			b.bindlessLayout = nil
		}
		if b.uploadPool != nil {
			vk.DestroyCommandPool(device, b.uploadPool, b.context.Allocator)
			b.uploadPool = nil
		}

		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(b.context)
	}
	destroyInstance(b.context)
	b.heaps = nil
	b.queues = nil
	b.directQueue = nil
}
