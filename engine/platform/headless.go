package platform

import (
	"sync/atomic"

	"github.com/spaghettifunk/aurora/engine/core"
)

// Headless is a window that never shows anything. It pairs with the
// headless renderer backend for tests and CI.
type Headless struct {
	width  uint32
	height uint32
	events *core.EventBus

	// the engine may be asked to close from another goroutine
	closed atomic.Bool
}

var _ Window = (*Headless)(nil)

func NewHeadless(width, height uint32, events *core.EventBus) *Headless {
	return &Headless{
		width:  width,
		height: height,
		events: events,
	}
}

func (h *Headless) PollEvents() {}

func (h *Headless) ShouldClose() bool {
	return h.closed.Load()
}

func (h *Headless) FramebufferSize() (uint32, uint32) {
	return h.width, h.height
}

// Resize changes the framebuffer size and reports it like a real window
// would.
func (h *Headless) Resize(width, height uint32) {
	h.width, h.height = width, height
	fireResized(h.events, h, width, height)
}

// Close makes ShouldClose return true.
func (h *Headless) Close() {
	h.closed.Store(true)
}

func (h *Headless) Shutdown() error {
	h.Close()
	return nil
}
