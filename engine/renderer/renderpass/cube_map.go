package renderpass

import (
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// CubeMap draws a cube texture around the camera as the scene background.
type CubeMap struct {
	ctx            Context
	pipeline       uint32
	positionBuffer uint32
	indexBuffer    uint32
}

func NewCubeMap(ctx Context) (*CubeMap, error) {
	vs, ps := graphicsStages("cube_map.hlsl")
	pipeline, err := ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant:      rhi.PipelineVariantGraphics,
		VertexShader: vs,
		PixelShader:  ps,
		// the camera sits inside the cube
		CullMode:   rhi.CullModeFront,
		RtvFormats: []rhi.Format{rhi.FormatR16G16B16A16Float},
		DsvFormat:  rhi.FormatD32Float,
		Name:       "cube map pipeline",
	})
	if err != nil {
		return nil, err
	}
	positions, indices, err := createCube(ctx, "cube map")
	if err != nil {
		return nil, err
	}
	core.LogInfo("Created cube map render pass")
	return &CubeMap{ctx: ctx, pipeline: pipeline, positionBuffer: positions, indexBuffer: indices}, nil
}

func (c *CubeMap) Render(cl *rhi.CommandList, sceneCBV, textureSRV uint32) {
	cl.SetBindlessGraphicsRootSignature()
	cl.SetPipelineState(c.ctx.PipelineAt(c.pipeline))
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(interop.CubeMapRenderResources{
		TextureSrvIndex:        textureSRV,
		PositionBufferSrvIndex: c.ctx.BufferAt(c.positionBuffer).SrvIndex,
		SceneBufferCbvIndex:    sceneCBV,
	}))
	cl.SetIndexBuffer(*c.ctx.BufferAt(c.indexBuffer))
	cl.DrawIndexedInstanced(cubeIndexCount, 1)
}
