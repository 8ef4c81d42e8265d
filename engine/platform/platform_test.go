package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/core"
)

func TestHeadlessResizeFiresEvent(t *testing.T) {
	events := core.NewEventBus()
	var got [2]uint32
	events.Register(core.EVENT_CODE_RESIZED, t, func(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
		got = [2]uint32{data.Data.U32[0], data.Data.U32[1]}
		return true
	})

	h := NewHeadless(320, 180, events)
	w, ht := h.FramebufferSize()
	assert.Equal(t, uint32(320), w)
	assert.Equal(t, uint32(180), ht)

	h.Resize(640, 360)
	assert.Equal(t, [2]uint32{640, 360}, got)
	w, ht = h.FramebufferSize()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(360), ht)
}

func TestHeadlessClose(t *testing.T) {
	h := NewHeadless(1, 1, nil)
	assert.False(t, h.ShouldClose())
	require.NoError(t, h.Shutdown())
	assert.True(t, h.ShouldClose())
}

func TestKeyCallbackFeedsInput(t *testing.T) {
	input := core.NewInput(nil)
	p := New(input, nil)

	p.keyCallback(nil, glfw.KeyW, 0, glfw.Press, 0)
	assert.True(t, input.IsKeyDown(core.KEY_W))

	// repeats keep the key down
	p.keyCallback(nil, glfw.KeyW, 0, glfw.Repeat, 0)
	assert.True(t, input.IsKeyDown(core.KEY_W))

	p.keyCallback(nil, glfw.KeyW, 0, glfw.Release, 0)
	assert.False(t, input.IsKeyDown(core.KEY_W))

	p.keyCallback(nil, glfw.KeyRightShift, 0, glfw.Press, 0)
	assert.True(t, input.IsKeyDown(core.KEY_SHIFT))

	// unmapped keys are ignored
	p.keyCallback(nil, glfw.KeyF12, 0, glfw.Press, 0)
}

func TestMouseCallbacksFeedInput(t *testing.T) {
	input := core.NewInput(nil)
	p := New(input, nil)

	p.mouseButtonCallback(nil, glfw.MouseButtonRight, glfw.Press, 0)
	assert.True(t, input.IsButtonDown(core.BUTTON_RIGHT))

	p.cursorPosCallback(nil, 12.7, 40)
	x, y := input.MousePosition()
	assert.Equal(t, int32(12), x)
	assert.Equal(t, int32(40), y)

	// outside the window
	p.cursorPosCallback(nil, -3, 40)
	x, _ = input.MousePosition()
	assert.Equal(t, int32(12), x)
}
