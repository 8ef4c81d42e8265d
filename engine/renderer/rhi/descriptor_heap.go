package rhi

import "fmt"

type HeapType uint8

const (
	HeapTypeRTV HeapType = iota
	HeapTypeDSV
	HeapTypeCbvSrvUav
	HeapTypeSampler
)

func (t HeapType) String() string {
	switch t {
	case HeapTypeRTV:
		return "RTV"
	case HeapTypeDSV:
		return "DSV"
	case HeapTypeCbvSrvUav:
		return "CBV_SRV_UAV"
	case HeapTypeSampler:
		return "SAMPLER"
	}
	return "UNKNOWN"
}

// ShaderVisible reports whether shaders can index the heap directly.
func (t HeapType) ShaderVisible() bool {
	return t == HeapTypeCbvSrvUav || t == HeapTypeSampler
}

// DescriptorHandle addresses one descriptor slot. GPU is zero for heaps that
// are not shader visible.
type DescriptorHandle struct {
	CPU   uint64
	GPU   uint64
	Size  uint32
	Index uint32
}

// Offset advances the handle by count descriptors.
func (h *DescriptorHandle) Offset(count uint32) {
	h.CPU += uint64(count) * uint64(h.Size)
	if h.GPU != 0 {
		h.GPU += uint64(count) * uint64(h.Size)
	}
	h.Index += count
}

// DescriptorHeap is a fixed capacity bump allocator over one native heap.
// Indices come out in allocation order and are never reused. Not safe for
// concurrent use; only the render thread allocates.
type DescriptorHeap struct {
	native   NativeHeap
	heapType HeapType
	capacity uint32
	size     uint32
	start    DescriptorHandle
	current  DescriptorHandle
}

func NewDescriptorHeap(native NativeHeap, t HeapType, capacity uint32) *DescriptorHeap {
	cpu, gpu := native.Start()
	start := DescriptorHandle{
		CPU:  cpu,
		Size: native.DescriptorSize(),
	}
	if t.ShaderVisible() {
		start.GPU = gpu
	}
	return &DescriptorHeap{
		native:   native,
		heapType: t,
		capacity: capacity,
		size:     start.Size,
		start:    start,
		current:  start,
	}
}

func (h *DescriptorHeap) Type() HeapType {
	return h.heapType
}

func (h *DescriptorHeap) Capacity() uint32 {
	return h.capacity
}

func (h *DescriptorHeap) DescriptorSize() uint32 {
	return h.size
}

func (h *DescriptorHeap) Native() NativeHeap {
	return h.native
}

func (h *DescriptorHeap) GetHandleForHeapStart() DescriptorHandle {
	return h.start
}

// GetCurrentHandle returns the next free handle without consuming it.
func (h *DescriptorHeap) GetCurrentHandle() DescriptorHandle {
	return h.current
}

// OffsetCurrentHandle consumes count slots.
func (h *DescriptorHeap) OffsetCurrentHandle(count uint32) error {
	if uint64(h.current.Index)+uint64(count) > uint64(h.capacity) {
		return fmt.Errorf("%s heap: %d + %d > capacity %d: %w",
			h.heapType, h.current.Index, count, h.capacity, ErrHeapExhausted)
	}
	h.current.Offset(count)
	return nil
}

// Allocate consumes one slot and returns its handle.
func (h *DescriptorHeap) Allocate() (DescriptorHandle, error) {
	handle := h.current
	if err := h.OffsetCurrentHandle(1); err != nil {
		return DescriptorHandle{}, err
	}
	return handle, nil
}

// GetHandleAtIndex returns the heap start offset by index. It does not
// allocate; it is used for pre-reserved slots.
func (h *DescriptorHeap) GetHandleAtIndex(index uint32) DescriptorHandle {
	handle := h.start
	handle.Offset(index)
	return handle
}

// GetDescriptorIndex is the inverse of GetHandleAtIndex.
func (h *DescriptorHeap) GetDescriptorIndex(handle DescriptorHandle) uint32 {
	return uint32((handle.CPU - h.start.CPU) / uint64(h.size))
}

func (h *DescriptorHeap) WriteBufferView(handle DescriptorHandle, view BufferView) error {
	if handle.Index >= h.capacity {
		return fmt.Errorf("%s heap: write %d: %w", h.heapType, handle.Index, ErrHeapExhausted)
	}
	return h.native.WriteBufferView(handle.Index, view)
}

func (h *DescriptorHeap) WriteTextureView(handle DescriptorHandle, view TextureView) error {
	if handle.Index >= h.capacity {
		return fmt.Errorf("%s heap: write %d: %w", h.heapType, handle.Index, ErrHeapExhausted)
	}
	return h.native.WriteTextureView(handle.Index, view)
}

func (h *DescriptorHeap) Destroy() {
	if h.native != nil {
		h.native.Destroy()
		h.native = nil
	}
}
