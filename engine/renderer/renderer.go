package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/aurora/engine/containers"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

type Config struct {
	Width             uint32
	Height            uint32
	VSync             bool
	CbvSrvUavHeapSize uint32
	RtvHeapSize       uint32
	DsvHeapSize       uint32
	// MaxPrimitiveCount bounds the meshes drawn per frame.
	MaxPrimitiveCount       uint32
	PipelineReloadQueueSize int
}

// ConfigFrom picks the renderer settings out of the engine configuration.
func ConfigFrom(cfg *core.EngineConfig) Config {
	return Config{
		Width:                   cfg.Application.Width,
		Height:                  cfg.Application.Height,
		VSync:                   cfg.Renderer.VSync,
		CbvSrvUavHeapSize:       cfg.Renderer.CbvSrvUavHeapSize,
		RtvHeapSize:             cfg.Renderer.RtvHeapSize,
		DsvHeapSize:             cfg.Renderer.DsvHeapSize,
		MaxPrimitiveCount:       cfg.Renderer.MaxPrimitiveCount,
		PipelineReloadQueueSize: cfg.Renderer.PipelineReloadSize,
	}
}

// SceneView is what the renderer reads of a scene every frame. Indices are
// buffer arena indices of this renderer.
type SceneView interface {
	SceneBufferIndex() uint32
	LightBufferIndex() uint32
	LightCount() uint32
	SunDirection() math.Vec3
	Geometry() renderpass.Geometry
}

// OverlayContext is handed to the overlay while the back buffer is bound as
// the render target.
type OverlayContext struct {
	CommandList   *rhi.CommandList
	CbvSrvUavHeap *rhi.DescriptorHeap
	Width         uint32
	Height        uint32
}

type Overlay interface {
	Render(ctx OverlayContext) error
}

type ResourceKind uint8

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
	ResourceKindPipeline
)

var ErrInvalidResource = errors.New("invalid resource index")

// Renderer owns every GPU resource through arenas and records the frame. It
// implements renderpass.Context.
type Renderer struct {
	cfg      Config
	device   *rhi.Device
	compiler rhi.ShaderCompiler

	buffers   *containers.Arena[rhi.Buffer]
	textures  *containers.Arena[rhi.Texture]
	pipelines *containers.Arena[rhi.Pipeline]

	// one indirect argument buffer per back buffer
	commandBuffers [rhi.FramesInFlight]uint32
	depthTexture   uint32
	renderTexture  uint32

	atmosphere  *renderpass.Atmosphere
	shading     *renderpass.Shading
	cubeMap     *renderpass.CubeMap
	lights      *renderpass.Lights
	postProcess *renderpass.PostProcess

	reloads *containers.RingQueue[containers.Handle]
	overlay Overlay
}

var _ renderpass.Context = (*Renderer)(nil)

func New(backend rhi.Backend, cfg Config, compiler rhi.ShaderCompiler) (*Renderer, error) {
	if cfg.MaxPrimitiveCount == 0 {
		cfg.MaxPrimitiveCount = 4096
	}
	if cfg.PipelineReloadQueueSize <= 0 {
		cfg.PipelineReloadQueueSize = 64
	}

	device, err := rhi.NewDevice(backend, rhi.DeviceConfig{
		Width:             cfg.Width,
		Height:            cfg.Height,
		VSync:             cfg.VSync,
		CbvSrvUavHeapSize: cfg.CbvSrvUavHeapSize,
		RtvHeapSize:       cfg.RtvHeapSize,
		DsvHeapSize:       cfg.DsvHeapSize,
	})
	if err != nil {
		backend.Destroy()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	r := &Renderer{
		cfg:       cfg,
		device:    device,
		compiler:  compiler,
		buffers:   containers.NewArena[rhi.Buffer]("buffers", 256),
		textures:  containers.NewArena[rhi.Texture]("textures", 64),
		pipelines: containers.NewArena[rhi.Pipeline]("pipelines", 16),
		reloads:   containers.NewRingQueue[containers.Handle](cfg.PipelineReloadQueueSize),
	}

	if err := r.createResources(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.createRenderpasses(); err != nil {
		r.Close()
		return nil, err
	}

	core.LogInfo("Created renderer")
	return r, nil
}

func (r *Renderer) createResources() error {
	for i := range r.commandBuffers {
		commands := make([]rhi.IndirectCommandArgs, r.cfg.MaxPrimitiveCount)
		index, err := r.CreateBuffer(
			rhi.NewBufferDesc[rhi.IndirectCommandArgs](rhi.BufferUsageDynamicStructuredBuffer, fmt.Sprintf("command buffer %d", i), r.cfg.MaxPrimitiveCount),
			rhi.Bytes(commands))
		if err != nil {
			return err
		}
		r.commandBuffers[i] = index
	}

	var err error
	if r.depthTexture, err = r.CreateTexture(r.depthTextureDesc(), nil); err != nil {
		return err
	}
	if r.renderTexture, err = r.CreateTexture(r.renderTextureDesc(), nil); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) depthTextureDesc() rhi.TextureCreationDesc {
	return rhi.TextureCreationDesc{
		Usage:  rhi.TextureUsageDepthStencil,
		Format: rhi.FormatD32Float,
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
		Name:   "depth texture",
	}
}

func (r *Renderer) renderTextureDesc() rhi.TextureCreationDesc {
	return rhi.TextureCreationDesc{
		Usage:  rhi.TextureUsageRenderTarget,
		Format: rhi.FormatR16G16B16A16Float,
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
		Name:   "render texture",
	}
}

func (r *Renderer) createRenderpasses() error {
	var err error
	if r.atmosphere, err = renderpass.NewAtmosphere(r); err != nil {
		return err
	}
	if r.cubeMap, err = renderpass.NewCubeMap(r); err != nil {
		return err
	}
	if r.shading, err = renderpass.NewShading(r); err != nil {
		return err
	}
	if r.lights, err = renderpass.NewLights(r); err != nil {
		return err
	}
	if r.postProcess, err = renderpass.NewPostProcess(r); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) Device() *rhi.Device {
	return r.device
}

func (r *Renderer) SetOverlay(overlay Overlay) {
	r.overlay = overlay
}

func (r *Renderer) Width() uint32 {
	return r.device.Swapchain().Width()
}

func (r *Renderer) Height() uint32 {
	return r.device.Swapchain().Height()
}

// CreateBuffer creates a buffer and returns its arena index.
func (r *Renderer) CreateBuffer(desc rhi.BufferCreationDesc, data []byte) (uint32, error) {
	if r.buffers.Sealed() {
		return rhi.InvalidIndex, fmt.Errorf("buffer %q: %w", desc.Name, containers.ErrArenaSealed)
	}
	buf, err := r.device.CreateBuffer(desc, data)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	index, err := r.buffers.Insert(buf)
	if err != nil {
		buf.Destroy()
		return rhi.InvalidIndex, err
	}
	return index, nil
}

// ReplaceBuffer creates a buffer from desc and data and swaps it into an
// existing slot, so descriptor indices read through the arena pick it up.
// The old buffer is destroyed once the GPU is idle.
func (r *Renderer) ReplaceBuffer(index uint32, desc rhi.BufferCreationDesc, data []byte) error {
	old, ok := r.buffers.Get(index)
	if !ok {
		return fmt.Errorf("replace buffer %d: %w", index, ErrInvalidResource)
	}
	buf, err := r.device.CreateBuffer(desc, data)
	if err != nil {
		return err
	}
	if err := r.device.WaitIdle(); err != nil {
		buf.Destroy()
		return err
	}
	if err := r.buffers.Replace(index, buf); err != nil {
		buf.Destroy()
		return err
	}
	old.Destroy()
	return nil
}

func (r *Renderer) CreateTexture(desc rhi.TextureCreationDesc, data []byte) (uint32, error) {
	if r.textures.Sealed() {
		return rhi.InvalidIndex, fmt.Errorf("texture %q: %w", desc.Name, containers.ErrArenaSealed)
	}
	tex, err := r.device.CreateTexture(desc, data)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	index, err := r.textures.Insert(tex)
	if err != nil {
		tex.Destroy()
		return rhi.InvalidIndex, err
	}
	return index, nil
}

// CreatePipeline compiles desc and stores the pipeline, which records its own
// index for later reloads.
func (r *Renderer) CreatePipeline(desc rhi.PipelineCreationDesc) (uint32, error) {
	if r.pipelines.Sealed() {
		return rhi.InvalidIndex, fmt.Errorf("pipeline %q: %w", desc.Name, containers.ErrArenaSealed)
	}
	pipeline, err := r.device.CreatePipeline(desc, r.compiler, false)
	if err != nil {
		return rhi.InvalidIndex, err
	}
	index, err := r.pipelines.Insert(pipeline)
	if err != nil {
		pipeline.Destroy()
		return rhi.InvalidIndex, err
	}
	r.pipelines.Ptr(index).Index = index
	core.LogDebug("Created pipeline %s at index %d", desc.Name, index)
	return index, nil
}

// BufferAt gives in-place access to a buffer. The pointer is only valid until
// the next buffer is created.
func (r *Renderer) BufferAt(index uint32) *rhi.Buffer {
	return r.buffers.Ptr(index)
}

func (r *Renderer) TextureAt(index uint32) *rhi.Texture {
	return r.textures.Ptr(index)
}

func (r *Renderer) PipelineAt(index uint32) rhi.Pipeline {
	return r.pipelines.At(index)
}

// DepthTextureIndex is the texture arena index of the depth buffer.
func (r *Renderer) DepthTextureIndex() uint32 {
	return r.depthTexture
}

// RenderTextureIndex is the texture arena index of the HDR target the
// passes render into before post processing.
func (r *Renderer) RenderTextureIndex() uint32 {
	return r.renderTexture
}

// CommandBufferIndex is the indirect argument buffer of a back buffer slot.
func (r *Renderer) CommandBufferIndex(slot uint32) uint32 {
	return r.commandBuffers[slot%rhi.FramesInFlight]
}

// FrameSlot is the frame slot per frame buffers are read and written at.
func (r *Renderer) FrameSlot() uint32 {
	return r.device.FrameSlot()
}

func (r *Renderer) PipelineCount() int {
	return r.pipelines.Len()
}

// Generation is bumped every time the slot is replaced in place, by a
// pipeline reload or a resize.
func (r *Renderer) Generation(kind ResourceKind, index uint32) uint32 {
	switch kind {
	case ResourceKindBuffer:
		return r.buffers.Generation(index)
	case ResourceKindTexture:
		return r.textures.Generation(index)
	case ResourceKindPipeline:
		return r.pipelines.Generation(index)
	}
	return 0
}

// ReadbackBuffer copies a buffer back to the CPU. Only valid between frames.
func (r *Renderer) ReadbackBuffer(index uint32) ([]byte, error) {
	buf, ok := r.buffers.Get(index)
	if !ok {
		return nil, fmt.Errorf("readback %d: %w", index, ErrInvalidResource)
	}
	return r.device.ReadbackBuffer(buf)
}

// Atmosphere exposes the sky model to the overlay.
func (r *Renderer) Atmosphere() *renderpass.Atmosphere {
	return r.atmosphere
}

func (r *Renderer) PostProcess() *renderpass.PostProcess {
	return r.postProcess
}

// UpdateRenderpasses uploads the per-frame constants of the passes.
func (r *Renderer) UpdateRenderpasses(view SceneView, frameCount uint32) error {
	if err := r.atmosphere.Update(view.SunDirection()); err != nil {
		return err
	}
	return r.postProcess.Update(frameCount, r.Width(), r.Height())
}

// Resize recreates the swapchain buffers and the screen sized textures. The
// textures keep their arena index and their descriptor indices; their
// generation is bumped.
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := r.device.Resize(width, height); err != nil {
		return err
	}
	r.cfg.Width, r.cfg.Height = width, height

	replace := func(index uint32, desc rhi.TextureCreationDesc) error {
		old := r.textures.At(index)
		tex, err := r.device.RecreateTexture(old, desc)
		if err != nil {
			return err
		}
		if err := r.textures.Replace(index, tex); err != nil {
			tex.Destroy()
			return err
		}
		old.Destroy()
		return nil
	}
	if err := replace(r.depthTexture, r.depthTextureDesc()); err != nil {
		return err
	}
	if err := replace(r.renderTexture, r.renderTextureDesc()); err != nil {
		return err
	}
	core.LogInfo("Resized renderer to %dx%d", width, height)
	return nil
}

// Close waits for the GPU and releases everything the renderer owns.
func (r *Renderer) Close() error {
	err := r.device.WaitIdle()
	r.pipelines.Each(func(index uint32, _ rhi.Pipeline) {
		r.pipelines.Ptr(index).Destroy()
	})
	r.textures.Each(func(index uint32, _ rhi.Texture) {
		r.textures.Ptr(index).Destroy()
	})
	r.buffers.Each(func(index uint32, _ rhi.Buffer) {
		r.buffers.Ptr(index).Destroy()
	})
	return errors.Join(err, r.device.Close())
}
