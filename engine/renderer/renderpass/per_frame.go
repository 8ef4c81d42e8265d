package renderpass

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// FrameBuffers is the part of a Context a PerFrameBuffer needs.
type FrameBuffers interface {
	CreateBuffer(desc rhi.BufferCreationDesc, data []byte) (uint32, error)
	BufferAt(index uint32) *rhi.Buffer
	FrameSlot() uint32
}

// PerFrameBuffer is one CPU written buffer per frame slot. Updates and
// lookups go to the slot FrameSlot reports, so the CPU never writes a
// buffer that a frame still in flight reads.
type PerFrameBuffer struct {
	ctx     FrameBuffers
	buffers [rhi.FramesInFlight]uint32
}

func NewPerFrameBuffer(ctx FrameBuffers, desc rhi.BufferCreationDesc, data []byte) (PerFrameBuffer, error) {
	b := PerFrameBuffer{ctx: ctx}
	name := desc.Name
	for slot := range b.buffers {
		desc.Name = fmt.Sprintf("%s %d", name, slot)
		index, err := ctx.CreateBuffer(desc, data)
		if err != nil {
			return PerFrameBuffer{}, err
		}
		b.buffers[slot] = index
	}
	return b, nil
}

// Index is the arena index of the buffer of the current frame slot.
func (b PerFrameBuffer) Index() uint32 {
	return b.buffers[b.ctx.FrameSlot()%rhi.FramesInFlight]
}

// At is the arena index of the buffer of slot.
func (b PerFrameBuffer) At(slot uint32) uint32 {
	return b.buffers[slot%rhi.FramesInFlight]
}

func (b PerFrameBuffer) Current() *rhi.Buffer {
	return b.ctx.BufferAt(b.Index())
}

func (b PerFrameBuffer) Update(data []byte) error {
	return b.Current().Update(data)
}
