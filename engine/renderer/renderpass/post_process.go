package renderpass

import (
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

const DefaultNoiseScale = 1.0 / 1024.0

// PostProcess tone maps the HDR render texture into the back buffer with a
// single full screen triangle.
type PostProcess struct {
	ctx         Context
	pipeline    uint32
	indexBuffer uint32
	buffer      PerFrameBuffer
	data        interop.PostProcessBuffer
}

func NewPostProcess(ctx Context) (*PostProcess, error) {
	vs, ps := graphicsStages("post_process.hlsl")
	pipeline, err := ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant:      rhi.PipelineVariantGraphics,
		VertexShader: vs,
		PixelShader:  ps,
		RtvFormats:   []rhi.Format{rhi.SwapchainFormat},
		DsvFormat:    rhi.FormatUnknown,
		Name:         "post process pipeline",
	})
	if err != nil {
		return nil, err
	}
	p := &PostProcess{ctx: ctx, pipeline: pipeline}
	p.data.NoiseScale = DefaultNoiseScale

	if p.indexBuffer, err = ctx.CreateBuffer(
		rhi.NewBufferDesc[uint32](rhi.BufferUsageIndexBuffer, "full screen triangle index buffer", 3),
		rhi.Bytes([]uint32{0, 1, 2})); err != nil {
		return nil, err
	}
	if p.buffer, err = NewPerFrameBuffer(ctx,
		rhi.NewBufferDesc[interop.PostProcessBuffer](rhi.BufferUsageConstantBuffer, "post process buffer", 1), nil); err != nil {
		return nil, err
	}
	core.LogInfo("Created post processing render pass")
	return p, nil
}

func (p *PostProcess) Data() interop.PostProcessBuffer {
	return p.data
}

// BufferIndex is the arena index of the constant buffer of slot.
func (p *PostProcess) BufferIndex(slot uint32) uint32 {
	return p.buffer.At(slot)
}

// Update uploads the frame counter and screen size the noise is scaled by.
func (p *PostProcess) Update(frameCount uint32, width, height uint32) error {
	p.data.FrameCount = frameCount
	p.data.ScreenDimensions = math.NewVec2(float32(width), float32(height))
	return p.buffer.Update(rhi.BytesOf(&p.data))
}

func (p *PostProcess) Render(cl *rhi.CommandList, renderTextureSRV uint32) {
	cl.SetBindlessGraphicsRootSignature()
	cl.SetPipelineState(p.ctx.PipelineAt(p.pipeline))
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(interop.PostProcessRenderResources{
		RenderTextureSrvIndex:     renderTextureSRV,
		PostProcessBufferCbvIndex: p.buffer.Current().CbvIndex,
	}))
	cl.SetIndexBuffer(*p.ctx.BufferAt(p.indexBuffer))
	cl.DrawInstanced(3, 1)
}
