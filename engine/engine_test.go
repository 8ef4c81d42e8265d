package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/platform"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// fakeDXC writes a few bytes of "SPIR-V" wherever dxc was asked to.
func fakeDXC(stdout, stderr *bytes.Buffer, cmd string, args ...string) error {
	for i, a := range args {
		if a == "-Fo" {
			return os.WriteFile(args[i+1], []byte{0x03, 0x02, 0x23, 0x07}, 0o644)
		}
	}
	return errors.New("no output")
}

func testConfig(frames uint64) *core.EngineConfig {
	cfg := core.DefaultConfig()
	cfg.Application.Width = 320
	cfg.Application.Height = 180
	cfg.Renderer.Backend = "headless"
	cfg.Renderer.Debug = false
	cfg.Renderer.Frames = frames
	cfg.Renderer.CbvSrvUavHeapSize = 4096
	cfg.Shaders.Directory = "../assets/shaders"
	cfg.Shaders.HotReload = false
	cfg.Assets.Root = "../assets"
	cfg.Assets.DebounceMS = 0
	cfg.Scene.Path = "../assets/scenes/sandbox.toml"
	cfg.Overlay.Font = "fonts/overlay.fnt"
	cfg.Log.Level = ""
	return cfg
}

func newTestEngine(t *testing.T, cfg *core.EngineConfig) (*engine.Engine, *headless.Backend) {
	t.Helper()
	backend := headless.New(headless.Options{})
	e := engine.New(cfg, engine.Options{Backend: backend, Runner: fakeDXC})
	require.NoError(t, e.Initialize())
	t.Cleanup(func() {
		require.NoError(t, e.Shutdown())
	})
	return e, backend
}

func executed(t *testing.T, e *engine.Engine, backend *headless.Backend) []headless.Command {
	t.Helper()
	require.NoError(t, e.Renderer().Device().WaitIdle())
	return backend.Executed(rhi.QueueKindDirect)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	core.SetLogOutput(&buf)
	t.Cleanup(func() {
		core.SetLogOutput(os.Stderr)
	})
	return &buf
}

func absolute(t *testing.T, path string) string {
	t.Helper()
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestRunRendersFrameBudget(t *testing.T) {
	const frames = 3
	e, backend := newTestEngine(t, testConfig(frames))
	require.Equal(t, engine.EngineStageInitialized, e.Stage())
	require.True(t, e.Overlay().Enabled())
	require.Len(t, e.Scene().GameObjects(), 4)

	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint64(frames), e.FrameCount())
	assert.Equal(t, engine.EngineStageInitialized, e.Stage())

	var indirect, overlay, dispatches int
	for _, cmd := range executed(t, e, backend) {
		require.NoError(t, cmd.Err)
		switch {
		case cmd.Op == headless.OpIndirectDraw:
			indirect++
		case cmd.Op == headless.OpDraw && cmd.Pipeline == "overlay pipeline":
			overlay++
		case cmd.Op == headless.OpDispatch:
			dispatches++
		}
	}
	assert.Equal(t, frames*e.Scene().MeshCount(), indirect)
	assert.Equal(t, frames, overlay)
	assert.Equal(t, frames, dispatches)
}

func TestRunBeforeInitialize(t *testing.T) {
	e := engine.New(testConfig(1), engine.Options{})
	assert.ErrorIs(t, e.Run(context.Background()), engine.ErrNotInitialized)
	assert.NoError(t, e.Shutdown())
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Zero(t, e.FrameCount())
}

func TestRunStopsOnWindowClose(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(0))
	window, ok := e.Window().(*platform.Headless)
	require.True(t, ok)
	window.Close()

	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, e.FrameCount())
}

func TestEscapeStops(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(0))
	e.Input().ProcessKey(core.KEY_ESCAPE, true)

	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, e.FrameCount())
}

func TestF1TogglesOverlay(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(1))
	require.True(t, e.Overlay().Visible())

	e.Input().ProcessKey(core.KEY_F1, true)
	assert.False(t, e.Overlay().Visible())
	e.Input().ProcessKey(core.KEY_F1, false)
	e.Input().ProcessKey(core.KEY_F1, true)
	assert.True(t, e.Overlay().Visible())
}

func TestShaderChangeReloadsItsPipelines(t *testing.T) {
	e, backend := newTestEngine(t, testConfig(0))
	created := backend.PipelinesCreated()

	e.Assets().Notify(absolute(t, "../assets/shaders/post_process.hlsl"))
	require.NoError(t, e.Frame())
	assert.Equal(t, created+1, backend.PipelinesCreated())
}

func TestIncludeChangeReloadsEveryPipeline(t *testing.T) {
	e, backend := newTestEngine(t, testConfig(0))
	created := backend.PipelinesCreated()

	e.Assets().Notify(absolute(t, "../assets/shaders/interop/common.hlsli"))
	require.NoError(t, e.Frame())
	assert.Equal(t, created+e.Renderer().PipelineCount(), backend.PipelinesCreated())
}

func TestSceneChangeReloadsScene(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(0))
	positions := e.Scene().Geometry().PositionBuffer
	require.Zero(t, e.Renderer().Generation(renderer.ResourceKindBuffer, positions))

	// other descriptions are not the current scene
	e.Assets().Notify(absolute(t, "../assets/scenes/sandbox.yaml"))
	require.NoError(t, e.Frame())
	assert.Zero(t, e.Renderer().Generation(renderer.ResourceKindBuffer, positions))

	e.Assets().Notify(absolute(t, "../assets/scenes/sandbox.toml"))
	require.NoError(t, e.Frame())
	assert.Equal(t, positions, e.Scene().Geometry().PositionBuffer)
	assert.Equal(t, uint32(1), e.Renderer().Generation(renderer.ResourceKindBuffer, positions))
	assert.Len(t, e.Scene().GameObjects(), 4)
}

func TestResize(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(0))
	window := e.Window().(*platform.Headless)

	window.Resize(640, 360)
	require.NoError(t, e.Frame())
	assert.Equal(t, uint32(640), e.Renderer().Width())
	assert.Equal(t, uint32(360), e.Renderer().Height())

	// minimized windows skip rendering
	window.Resize(0, 0)
	frames := e.FrameCount()
	require.NoError(t, e.Frame())
	assert.Equal(t, frames, e.FrameCount())
	assert.Equal(t, uint32(640), e.Renderer().Width())
}

func TestRunStopsOnDeviceLost(t *testing.T) {
	log := captureLog(t)
	backend := headless.New(headless.Options{})
	e := engine.New(testConfig(0), engine.Options{Backend: backend, Runner: fakeDXC})
	require.NoError(t, e.Initialize())

	backend.LoseDevice()
	assert.ErrorIs(t, e.Run(context.Background()), rhi.ErrDeviceLost)
	assert.Zero(t, e.FrameCount())
	assert.Contains(t, log.String(), "GPU device lost after 0 frames")
	assert.ErrorIs(t, e.Shutdown(), rhi.ErrDeviceLost)
}

func TestShutdownTwice(t *testing.T) {
	e := engine.New(testConfig(1), engine.Options{Backend: headless.New(headless.Options{}), Runner: fakeDXC})
	require.NoError(t, e.Initialize())
	require.NoError(t, e.Shutdown())
	assert.Equal(t, engine.EngineStageShutdown, e.Stage())
	assert.NoError(t, e.Shutdown())
}
