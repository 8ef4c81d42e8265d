// Package headless is an in-memory implementation of the native rhi
// contract. Command lists are recorded as closures and run on a GPU timeline
// goroutine per queue, so fences, uploads and indirect argument buffers
// behave as they do on hardware without needing a device or a window.
package headless

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

var (
	ErrNotMappable    = errors.New("buffer is not host visible")
	ErrOutOfBounds    = errors.New("access out of bounds")
	ErrQueueDestroyed = errors.New("queue destroyed")
)

// Descriptor sizes reported by the heaps, close to what desktop drivers use.
const (
	ResourceDescriptorSize = 32
	SamplerDescriptorSize  = 16
)

type Options struct {
	// Latency is how long the timeline spends on every submitted batch.
	Latency time.Duration
	// PresentOrder overrides the round-robin back buffer order.
	PresentOrder []uint32
	Tearing      bool
}

type Backend struct {
	opts Options

	mu        sync.Mutex
	queues    []*Queue
	nextHeap  uint64
	swapchain *Swapchain
	pipelines []*Pipeline
}

func New(opts Options) *Backend {
	core.LogInfo("Created headless backend with %s latency", opts.Latency)
	return &Backend{opts: opts, nextHeap: 1}
}

// LoseDevice makes every queue created so far report rhi.ErrDeviceLost.
func (b *Backend) LoseDevice() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.lose()
	}
}

func (b *Backend) Name() string {
	return "headless"
}

func (b *Backend) CreateDescriptorHeap(t rhi.HeapType, capacity uint32) (rhi.NativeHeap, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%s heap with zero capacity", t)
	}
	b.mu.Lock()
	id := b.nextHeap
	b.nextHeap++
	b.mu.Unlock()

	size := uint32(ResourceDescriptorSize)
	if t == rhi.HeapTypeSampler {
		size = SamplerDescriptorSize
	}
	h := &Heap{
		heapType: t,
		capacity: capacity,
		size:     size,
		cpuStart: id << 40,
		views:    make(map[uint32]any),
	}
	if t.ShaderVisible() {
		h.gpuStart = id<<40 | 1<<39
	}
	return h, nil
}

func (b *Backend) CreateBuffer(desc rhi.NativeBufferDesc) (rhi.NativeBuffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q with zero size", desc.Name)
	}
	return &Buffer{name: desc.Name, heap: desc.Heap, data: make([]byte, desc.Size)}, nil
}

func (b *Backend) CreateTexture(desc rhi.NativeTextureDesc) (rhi.NativeTexture, error) {
	layout := desc.CopyLayout()
	return &Texture{desc: desc.TextureCreationDesc, state: desc.InitialState, data: make([]byte, layout.BufferSize)}, nil
}

func (b *Backend) CreateQueue(kind rhi.QueueKind) (rhi.NativeQueue, error) {
	q := newQueue(kind, b.opts.Latency)
	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()
	return q, nil
}

func (b *Backend) CreateCommandList(kind rhi.QueueKind) (rhi.NativeCommandList, error) {
	return &CommandList{kind: kind}, nil
}

func (b *Backend) CreateSwapchain(desc rhi.SwapchainDesc) (rhi.NativeSwapchain, error) {
	s := newSwapchain(desc, b.opts.PresentOrder, b.opts.Tearing)
	b.mu.Lock()
	b.swapchain = s
	b.mu.Unlock()
	return s, nil
}

func (b *Backend) CreateRootSignature(desc rhi.RootSignatureDesc) (rhi.NativeRootSignature, error) {
	return &RootSignature{Desc: desc}, nil
}

func (b *Backend) CreatePipeline(desc rhi.NativePipelineDesc) (rhi.NativePipeline, error) {
	p := &Pipeline{Desc: desc}
	b.mu.Lock()
	b.pipelines = append(b.pipelines, p)
	b.mu.Unlock()
	return p, nil
}

func (b *Backend) CreateCommandSignature(desc rhi.CommandSignatureDesc, root rhi.NativeRootSignature) (rhi.NativeCommandSignature, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &CommandSignature{Desc: desc}, nil
}

// Swapchain returns the last swapchain created, for inspection in tests.
func (b *Backend) Swapchain() *Swapchain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapchain
}

// PipelinesCreated counts every pipeline ever built, reloads included.
func (b *Backend) PipelinesCreated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pipelines)
}

// Executed returns the commands every queue has run so far, per queue kind.
func (b *Backend) Executed(kind rhi.QueueKind) []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Command
	for _, q := range b.queues {
		if q.kind == kind {
			out = append(out, q.Executed()...)
		}
	}
	return out
}

func (b *Backend) WaitIdle() error {
	b.mu.Lock()
	queues := append([]*Queue(nil), b.queues...)
	b.mu.Unlock()
	for _, q := range queues {
		if err := q.idle(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Destroy() {
	b.mu.Lock()
	queues := b.queues
	b.queues = nil
	b.mu.Unlock()
	for _, q := range queues {
		q.Destroy()
	}
}

type RootSignature struct {
	Desc rhi.RootSignatureDesc
}

func (r *RootSignature) Destroy() {}

type Pipeline struct {
	Desc      rhi.NativePipelineDesc
	destroyed bool
}

func (p *Pipeline) Destroy() {
	p.destroyed = true
}

func (p *Pipeline) Destroyed() bool {
	return p.destroyed
}

type CommandSignature struct {
	Desc rhi.CommandSignatureDesc
}

func (s *CommandSignature) Destroy() {}
