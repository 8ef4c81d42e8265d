package rhi

import "fmt"

const SwapchainFormat = FormatB8G8R8A8Unorm

type BackBuffer struct {
	Resource NativeTexture
	RTV      DescriptorHandle
}

func (b BackBuffer) NativeResource() NativeResource {
	return b.Resource
}

// Swapchain presents FramesInFlight back buffers whose RTVs occupy the
// first slots of the RTV heap.
type Swapchain struct {
	native      NativeSwapchain
	rtvHeap     *DescriptorHeap
	width       uint32
	height      uint32
	vsync       bool
	tearing     bool
	backBuffers [FramesInFlight]BackBuffer
}

func newSwapchain(native NativeSwapchain, rtvHeap *DescriptorHeap, width, height uint32, vsync bool) (*Swapchain, error) {
	s := &Swapchain{
		native:  native,
		rtvHeap: rtvHeap,
		width:   width,
		height:  height,
		vsync:   vsync,
		tearing: native.SupportsTearing(),
	}
	if err := s.createBackBufferViews(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) createBackBufferViews() error {
	buffers := s.native.BackBuffers()
	if len(buffers) != FramesInFlight {
		return fmt.Errorf("swapchain has %d back buffers, need %d", len(buffers), FramesInFlight)
	}
	for i, tex := range buffers {
		rtv := s.rtvHeap.GetHandleAtIndex(uint32(i))
		if err := s.rtvHeap.WriteTextureView(rtv, TextureView{Kind: ViewRTV, Texture: tex, Format: SwapchainFormat, Face: -1}); err != nil {
			return fmt.Errorf("back buffer %d rtv: %w", i, err)
		}
		s.backBuffers[i] = BackBuffer{Resource: tex, RTV: rtv}
	}
	return nil
}

// Present shows the current back buffer. With vsync off, tearing is
// requested when the display supports it.
func (s *Swapchain) Present() error {
	var err error
	if s.vsync {
		err = s.native.Present(1, false)
	} else {
		err = s.native.Present(0, s.tearing)
	}
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// CurrentBackBufferIndex is whatever the presentation engine reports; it is
// not assumed to follow frame % FramesInFlight.
func (s *Swapchain) CurrentBackBufferIndex() uint32 {
	return s.native.CurrentBackBufferIndex()
}

func (s *Swapchain) CurrentBackBuffer() BackBuffer {
	return s.backBuffers[s.CurrentBackBufferIndex()]
}

func (s *Swapchain) BackBuffer(index uint32) BackBuffer {
	return s.backBuffers[index]
}

func (s *Swapchain) Width() uint32 {
	return s.width
}

func (s *Swapchain) Height() uint32 {
	return s.height
}

func (s *Swapchain) Viewport() Viewport {
	return Viewport{
		Width:    float32(s.width),
		Height:   float32(s.height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func (s *Swapchain) ScissorRect() Rect {
	return Rect{Right: int32(s.width), Bottom: int32(s.height)}
}

// Resize recreates the back buffers. The caller must have drained every
// queue that references them.
func (s *Swapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := s.native.Resize(width, height); err != nil {
		return fmt.Errorf("resize swapchain to %dx%d: %w", width, height, err)
	}
	s.width, s.height = width, height
	return s.createBackBufferViews()
}

func (s *Swapchain) Destroy() {
	if s.native != nil {
		s.native.Destroy()
		s.native = nil
	}
}
