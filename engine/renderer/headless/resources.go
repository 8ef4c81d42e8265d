package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type Heap struct {
	heapType rhi.HeapType
	capacity uint32
	size     uint32
	cpuStart uint64
	gpuStart uint64

	mu    sync.Mutex
	views map[uint32]any
}

func (h *Heap) DescriptorSize() uint32 {
	return h.size
}

func (h *Heap) Start() (uint64, uint64) {
	return h.cpuStart, h.gpuStart
}

func (h *Heap) WriteBufferView(index uint32, view rhi.BufferView) error {
	return h.write(index, view)
}

func (h *Heap) WriteTextureView(index uint32, view rhi.TextureView) error {
	return h.write(index, view)
}

func (h *Heap) write(index uint32, view any) error {
	if index >= h.capacity {
		return fmt.Errorf("%s heap slot %d of %d: %w", h.heapType, index, h.capacity, ErrOutOfBounds)
	}
	h.mu.Lock()
	h.views[index] = view
	h.mu.Unlock()
	return nil
}

// BufferView returns the buffer view written at index.
func (h *Heap) BufferView(index uint32) (rhi.BufferView, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[index].(rhi.BufferView)
	return v, ok
}

// TextureView returns the texture view written at index.
func (h *Heap) TextureView(index uint32) (rhi.TextureView, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.views[index].(rhi.TextureView)
	return v, ok
}

// Written is the number of slots holding a view.
func (h *Heap) Written() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

func (h *Heap) Destroy() {}

type Buffer struct {
	name      string
	heap      rhi.MemoryHeap
	data      []byte
	destroyed bool
}

func (b *Buffer) Name() string {
	return b.name
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) Map() ([]byte, error) {
	if b.heap == rhi.MemoryHeapDefault {
		return nil, fmt.Errorf("map %q: %w", b.name, ErrNotMappable)
	}
	return b.data, nil
}

func (b *Buffer) Destroy() {
	b.destroyed = true
}

// Bytes exposes device memory directly; only safe once the GPU timeline is
// idle.
func (b *Buffer) Bytes() []byte {
	return b.data
}

type Texture struct {
	desc  rhi.TextureCreationDesc
	data  []byte
	state rhi.ResourceState
}

func (t *Texture) Name() string {
	return t.desc.Name
}

func (t *Texture) Desc() rhi.TextureCreationDesc {
	return t.desc
}

// State is the state the last executed barrier left the texture in.
func (t *Texture) State() rhi.ResourceState {
	return t.state
}

func (t *Texture) Bytes() []byte {
	return t.data
}

func (t *Texture) Destroy() {}
