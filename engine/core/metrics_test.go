package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	assert.InDelta(t, 16.0, m.FrameTime(), 1e-9)

	// a second window does not accumulate on top of the first
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 101 frames of 10ms crosses the one second mark once
	for i := 0; i < 101; i++ {
		m.Update(0.010)
	}
	assert.Equal(t, float64(100), m.FPS())
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got uint32
	listener := &struct{}{}

	ok := bus.Register(EVENT_CODE_RESIZED, listener, func(code SystemEventCode, sender, l interface{}, data EventContext) bool {
		got = data.Data.U32[0]
		return true
	})
	assert.True(t, ok)
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, listener, nil))

	ctx := EventContext{}
	ctx.Data.U32[0] = 800
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, uint32(800), got)

	assert.True(t, bus.Unregister(EVENT_CODE_RESIZED, listener))
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
}

func TestInputKeyPressed(t *testing.T) {
	in := NewInput(nil)
	in.ProcessKey(KEY_W, true)
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.True(t, in.KeyPressed(KEY_W))

	in.Update()
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.KeyPressed(KEY_W))
}
