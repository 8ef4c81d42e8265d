package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spaghettifunk/aurora/engine/assets"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/editor"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/platform"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
	"github.com/spaghettifunk/aurora/engine/renderer/vulkan"
	"github.com/spaghettifunk/aurora/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything it owned
	EngineStageShutdown
)

const (
	fieldOfView = 60
	nearClip    = 0.1
	farClip     = 1000
)

var ErrNotInitialized = errors.New("engine is not initialized")

// Options replace parts of the engine the configuration cannot describe.
type Options struct {
	// Backend is used instead of the one named by the configuration. The
	// engine takes ownership of it.
	Backend rhi.Backend
	// Runner executes the shader compiler.
	Runner shader.Runner
}

// Engine owns every subsystem and drives the frame loop on the calling
// goroutine.
type Engine struct {
	currentStage Stage
	cfg          *core.EngineConfig
	opts         Options

	events  *core.EventBus
	input   *core.Input
	clock   *core.Clock
	metrics *core.Metrics

	window       platform.Window
	assetManager *assets.AssetManager
	compiler     *shader.Compiler
	renderer     *renderer.Renderer
	scene        *scene.Scene
	overlay      *editor.Overlay

	scenePath  string
	isRunning  bool
	lastTime   float64
	frameCount uint64

	resizePending bool
	width         uint32
	height        uint32
}

func New(cfg *core.EngineConfig, opts Options) *Engine {
	events := core.NewEventBus()
	return &Engine{
		currentStage: EngineStageUninitialized,
		cfg:          cfg,
		opts:         opts,
		events:       events,
		input:        core.NewInput(events),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
	}
}

// Initialize opens the window and creates the renderer, the scene and the
// overlay. On failure everything created so far is released.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine already initialized")
	}
	e.currentStage = EngineStageBooting
	if e.cfg.Log.Level != "" {
		core.SetLogLevel(e.cfg.Log.Level)
	}

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.initialize(); err != nil {
		e.release()
		return err
	}
	e.currentStage = EngineStageInitialized
	e.isRunning = true
	core.LogInfo("Engine initialized with the %s backend", e.cfg.Renderer.Backend)
	return nil
}

func (e *Engine) initialize() error {
	backend, err := e.createWindowAndBackend()
	if err != nil {
		return err
	}

	e.assetManager, err = assets.NewAssetManager(e.cfg.Assets.Root, assets.Options{
		Debounce: time.Duration(e.cfg.Assets.DebounceMS) * time.Millisecond,
	})
	if err != nil {
		backend.Destroy()
		return fmt.Errorf("failed to index assets: %w", err)
	}

	e.compiler, err = shader.NewCompiler(shader.Options{
		RootDirectory: e.cfg.Shaders.Directory,
		Executable:    e.cfg.Shaders.Compiler,
		Debug:         e.cfg.Renderer.Debug,
		Runner:        e.opts.Runner,
	})
	if err != nil {
		backend.Destroy()
		return err
	}

	rendererCfg := renderer.ConfigFrom(e.cfg)
	if w, h := e.window.FramebufferSize(); w > 0 && h > 0 {
		rendererCfg.Width, rendererCfg.Height = w, h
	}
	if e.renderer, err = renderer.New(backend, rendererCfg, e.compiler); err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	e.width, e.height = e.renderer.Width(), e.renderer.Height()

	font := e.cfg.Overlay.Font
	if font != "" {
		font = e.assetManager.Path(font)
	}
	if e.overlay, err = editor.Load(e.renderer, font, e.metrics); err != nil {
		return err
	}
	e.renderer.SetOverlay(e.overlay)

	if e.cfg.Scene.Path != "" {
		if e.scenePath, err = filepath.Abs(e.cfg.Scene.Path); err != nil {
			return err
		}
	}
	if e.scene, err = scene.New(e.renderer, e.assetManager, e.scenePath); err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}

	e.assetManager.OnChange(assets.AssetTypeShader, e.onShaderChanged)
	e.assetManager.OnChange(assets.AssetTypeScene, e.onSceneChanged)
	if e.cfg.Shaders.HotReload {
		if err := e.assetManager.Watch(); err != nil {
			core.LogWarn("Hot reload disabled: %v", err)
		}
	}
	return nil
}

func (e *Engine) createWindowAndBackend() (rhi.Backend, error) {
	app := e.cfg.Application
	if e.cfg.Renderer.Backend == "headless" {
		e.window = platform.NewHeadless(app.Width, app.Height, e.events)
		if e.opts.Backend != nil {
			return e.opts.Backend, nil
		}
		return headless.New(headless.Options{}), nil
	}

	p := platform.New(e.input, e.events)
	if err := p.Startup(app); err != nil {
		return nil, err
	}
	e.window = p
	if e.opts.Backend != nil {
		return e.opts.Backend, nil
	}
	backend, err := vulkan.New(p, vulkan.Options{
		AppName: app.Name,
		Debug:   e.cfg.Renderer.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vulkan backend: %w", err)
	}
	return backend, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Window() platform.Window {
	return e.window
}

func (e *Engine) Renderer() *renderer.Renderer {
	return e.renderer
}

func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

func (e *Engine) Overlay() *editor.Overlay {
	return e.overlay
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

func (e *Engine) Input() *core.Input {
	return e.input
}

// FrameCount is the number of frames rendered so far.
func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

// Run renders frames until the window closes, Escape is pressed, ctx is
// cancelled or the configured frame budget is spent. Once stopped the engine
// does not run again.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return ErrNotInitialized
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	budget := e.cfg.Renderer.Frames
	for e.isRunning {
		if err := ctx.Err(); err != nil {
			core.LogInfo("Stopping: %v", context.Cause(ctx))
			break
		}

		e.window.PollEvents()
		if e.window.ShouldClose() || !e.isRunning {
			break
		}

		if err := e.Frame(); err != nil {
			e.isRunning = false
			if errors.Is(err, rhi.ErrDeviceLost) {
				core.LogError("GPU device lost after %d frames, stopping", e.frameCount)
			}
			return err
		}

		if budget > 0 && e.frameCount >= budget {
			core.LogInfo("Rendered %d frames, stopping", e.frameCount)
			break
		}
	}
	e.isRunning = false
	e.currentStage = EngineStageInitialized
	return nil
}

// Frame advances the simulation and renders one frame.
func (e *Engine) Frame() error {
	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime
	e.lastTime = currentTime

	// file changes are applied between frames, never while recording
	e.assetManager.Drain()

	if e.resizePending {
		e.resizePending = false
		if err := e.renderer.Resize(e.width, e.height); err != nil {
			return fmt.Errorf("failed to resize: %w", err)
		}
	}
	// minimized
	if e.width == 0 || e.height == 0 {
		e.input.Update()
		return nil
	}

	aspect := float32(e.renderer.Width()) / float32(e.renderer.Height())
	projection := math.NewMat4PerspectiveLH(math.DegToRad(fieldOfView), aspect, nearClip, farClip)
	frame := uint32(e.frameCount)
	if err := e.scene.Update(projection, float32(delta*1000), frame, e.input); err != nil {
		return err
	}
	if err := e.renderer.UpdateRenderpasses(e.scene, frame); err != nil {
		return err
	}

	pos := e.scene.Camera.Position
	e.overlay.SetLines(
		fmt.Sprintf("scene %s  %d objects  %d meshes", e.scene.Name(), len(e.scene.GameObjects()), e.scene.MeshCount()),
		fmt.Sprintf("camera %.2f %.2f %.2f", pos.X, pos.Y, pos.Z),
		fmt.Sprintf("sun %.1f", e.scene.Lights.SunAngle()),
	)

	if err := e.renderer.Render(e.scene); err != nil {
		return err
	}

	e.metrics.Update(delta)
	// NOTE: input state is copied last so everything above saw this
	// frame's transitions.
	e.input.Update()
	e.frameCount++
	return nil
}

// Shutdown releases everything the engine owns. It is safe to call more
// than once.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	err := e.release()
	e.events.Unregister(core.EVENT_CODE_APPLICATION_QUIT, e)
	e.events.Unregister(core.EVENT_CODE_KEY_PRESSED, e)
	e.events.Unregister(core.EVENT_CODE_RESIZED, e)
	e.currentStage = EngineStageShutdown
	core.LogInfo("Engine shut down")
	return err
}

func (e *Engine) release() error {
	var errs []error
	if e.assetManager != nil {
		errs = append(errs, e.assetManager.Close())
		e.assetManager = nil
	}
	// the renderer goes before the window, its swapchain presents to it
	if e.renderer != nil {
		errs = append(errs, e.renderer.Close())
		e.renderer = nil
	}
	if e.window != nil {
		errs = append(errs, e.window.Shutdown())
		e.window = nil
	}
	return errors.Join(errs...)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch core.KeyCode(data.Data.U16[0]) {
	case core.KEY_ESCAPE:
		e.isRunning = false
		return true
	case core.KEY_F1:
		e.overlay.Toggle()
		return true
	case core.KEY_F5:
		e.reloadAllPipelines()
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	core.LogDebug("Window resized: %d, %d", width, height)
	e.width, e.height = width, height
	e.resizePending = width > 0 && height > 0
	return false
}

func (e *Engine) onShaderChanged(path string) {
	rel, err := filepath.Rel(e.compiler.RootDirectory(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	// includes are not tracked per pipeline
	if filepath.Ext(rel) == ".hlsli" {
		core.LogInfo("Shader include %s changed, reloading every pipeline", rel)
		e.reloadAllPipelines()
		return
	}
	e.compiler.Invalidate(rel)
	if n := e.renderer.SchedulePipelineReloadByShader(rel); n > 0 {
		core.LogInfo("Shader %s changed, reloading %d pipelines", rel, n)
	}
}

func (e *Engine) reloadAllPipelines() {
	e.compiler.Reset()
	for i := 0; i < e.renderer.PipelineCount(); i++ {
		e.renderer.SchedulePipelineReload(uint32(i))
	}
}

func (e *Engine) onSceneChanged(path string) {
	if e.scenePath == "" || path != e.scenePath {
		return
	}
	core.LogInfo("Scene %s changed, reloading", filepath.Base(path))
	if err := e.scene.Reload(); err != nil {
		core.LogError("Failed to reload scene: %v", err)
	}
}
