package renderpass

import (
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// Lights visualizes every non directional light as a small instanced cube.
type Lights struct {
	ctx            Context
	pipeline       uint32
	positionBuffer uint32
	indexBuffer    uint32
}

func NewLights(ctx Context) (*Lights, error) {
	vs, ps := graphicsStages("lights.hlsl")
	pipeline, err := ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant:      rhi.PipelineVariantGraphics,
		VertexShader: vs,
		PixelShader:  ps,
		CullMode:     rhi.CullModeBack,
		RtvFormats:   []rhi.Format{rhi.FormatR16G16B16A16Float},
		DsvFormat:    rhi.FormatD32Float,
		DepthWrite:   true,
		Name:         "light pipeline",
	})
	if err != nil {
		return nil, err
	}
	positions, indices, err := createCube(ctx, "light cube")
	if err != nil {
		return nil, err
	}
	core.LogInfo("Created lights render pass")
	return &Lights{ctx: ctx, pipeline: pipeline, positionBuffer: positions, indexBuffer: indices}, nil
}

// Render draws lightCount-1 instances: the sun at index 0 has no cube.
func (l *Lights) Render(cl *rhi.CommandList, sceneCBV, lightCBV, lightCount uint32) {
	if lightCount <= interop.SunLightIndex+1 {
		return
	}
	cl.SetBindlessGraphicsRootSignature()
	cl.SetPipelineState(l.ctx.PipelineAt(l.pipeline))
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(interop.LightRenderResources{
		SceneBufferCbvIndex:             sceneCBV,
		LightBufferCbvIndex:             lightCBV,
		LightCubePositionBufferSrvIndex: l.ctx.BufferAt(l.positionBuffer).SrvIndex,
	}))
	cl.SetIndexBuffer(*l.ctx.BufferAt(l.indexBuffer))
	cl.DrawIndexedInstanced(cubeIndexCount, lightCount-1)
}
