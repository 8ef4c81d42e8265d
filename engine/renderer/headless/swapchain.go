package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// Swapchain hands out its back buffers round-robin unless an explicit order
// was configured.
type Swapchain struct {
	mu       sync.Mutex
	desc     rhi.SwapchainDesc
	buffers  []rhi.NativeTexture
	order    []uint32
	tearing  bool
	current  uint32
	presents uint64
	history  []PresentRecord
}

type PresentRecord struct {
	Index        uint32
	SyncInterval uint32
	AllowTearing bool
}

func newSwapchain(desc rhi.SwapchainDesc, order []uint32, tearing bool) *Swapchain {
	s := &Swapchain{desc: desc, order: order, tearing: tearing}
	s.createBuffers()
	if len(order) > 0 {
		s.current = order[0] % desc.BufferCount
	}
	return s
}

func (s *Swapchain) createBuffers() {
	s.buffers = s.buffers[:0]
	for i := uint32(0); i < s.desc.BufferCount; i++ {
		s.buffers = append(s.buffers, &Texture{
			desc: rhi.TextureCreationDesc{
				Usage:            rhi.TextureUsageRenderTarget,
				Format:           s.desc.Format,
				Width:            s.desc.Width,
				Height:           s.desc.Height,
				DepthOrArraySize: 1,
				MipLevels:        1,
				Name:             fmt.Sprintf("back buffer %d", i),
			},
			state: rhi.ResourceStatePresent,
		})
	}
}

func (s *Swapchain) BackBuffers() []rhi.NativeTexture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rhi.NativeTexture(nil), s.buffers...)
}

func (s *Swapchain) CurrentBackBufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Swapchain) Present(syncInterval uint32, allowTearing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, PresentRecord{Index: s.current, SyncInterval: syncInterval, AllowTearing: allowTearing})
	s.presents++
	if len(s.order) > 0 {
		s.current = s.order[s.presents%uint64(len(s.order))] % s.desc.BufferCount
	} else {
		s.current = (s.current + 1) % s.desc.BufferCount
	}
	return nil
}

// Presented lists every present call so far.
func (s *Swapchain) Presented() []PresentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PresentRecord(nil), s.history...)
}

func (s *Swapchain) SupportsTearing() bool {
	return s.tearing
}

func (s *Swapchain) Resize(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc.Width, s.desc.Height = width, height
	s.createBuffers()
	return nil
}

func (s *Swapchain) Destroy() {}
