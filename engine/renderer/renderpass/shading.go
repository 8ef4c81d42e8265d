package renderpass

import (
	"fmt"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

// Shading draws every mesh of the scene with one indirect call. The CPU
// writes one IndirectCommandArgs per mesh into the command buffer of the
// current back buffer; the root constant slot 0 of each record carries the
// mesh id the shader uses to find its vertices and material.
type Shading struct {
	ctx      Context
	pipeline uint32
	// commands is reused between frames.
	commands     []rhi.IndirectCommandArgs
	warnedCapped bool
}

func NewShading(ctx Context) (*Shading, error) {
	vs, ps := graphicsStages("shading/pbr.hlsl")
	pipeline, err := ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant:      rhi.PipelineVariantGraphics,
		VertexShader: vs,
		PixelShader:  ps,
		CullMode:     rhi.CullModeBack,
		RtvFormats:   []rhi.Format{rhi.FormatR16G16B16A16Float},
		DsvFormat:    rhi.FormatD32Float,
		DepthWrite:   true,
		Name:         "pbr shading pipeline",
	})
	if err != nil {
		return nil, err
	}
	core.LogInfo("Created shading render pass")
	return &Shading{ctx: ctx, pipeline: pipeline}, nil
}

// BuildIndirectCommands appends one draw record per mesh to dst. The record
// order, and so the mesh id, follows the mesh buffer.
func BuildIndirectCommands(dst []rhi.IndirectCommandArgs, meshes []interop.MeshBuffer) []rhi.IndirectCommandArgs {
	for _, mesh := range meshes {
		dst = append(dst, rhi.IndirectCommandArgs{
			MeshID: mesh.MeshIndex,
			DrawArguments: rhi.DrawIndexedArguments{
				IndexCountPerInstance: mesh.IndicesCount,
				InstanceCount:         1,
				StartIndexLocation:    mesh.IndicesOffset,
			},
		})
	}
	return dst
}

// Render records the indirect draw of geometry. commandBuffer is the arena
// index of the argument buffer owned by the current back buffer.
func (s *Shading) Render(cl *rhi.CommandList, sig *rhi.CommandSignature, commandBuffer, sceneCBV, lightCBV, atmosphereSRV uint32, geometry Geometry) error {
	if len(geometry.Meshes) == 0 {
		return nil
	}
	args := s.ctx.BufferAt(commandBuffer)

	s.commands = BuildIndirectCommands(s.commands[:0], geometry.Meshes)
	count := uint32(len(s.commands))
	if count > args.ElementCount {
		if !s.warnedCapped {
			core.LogWarn("Scene has %d meshes, only the first %d are drawn", count, args.ElementCount)
			s.warnedCapped = true
		}
		count = args.ElementCount
	}
	if err := args.Update(rhi.Bytes(s.commands[:count])); err != nil {
		return fmt.Errorf("shading: %w", err)
	}

	cl.SetBindlessGraphicsRootSignature()
	cl.SetPipelineState(s.ctx.PipelineAt(s.pipeline))
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(interop.PBRShadingRenderResources{
		PositionBufferSrvIndex:     s.ctx.BufferAt(geometry.PositionBuffer).SrvIndex,
		TextureCoordBufferSrvIndex: s.ctx.BufferAt(geometry.TextureCoordBuffer).SrvIndex,
		NormalBufferSrvIndex:       s.ctx.BufferAt(geometry.NormalBuffer).SrvIndex,
		MeshBufferSrvIndex:         s.ctx.BufferAt(geometry.MeshBuffer).SrvIndex,
		GameObjectBufferSrvIndex:   s.ctx.BufferAt(geometry.GameObjectBuffer).SrvIndex,
		MaterialBufferSrvIndex:     s.ctx.BufferAt(geometry.MaterialBuffer).SrvIndex,
		SceneBufferCbvIndex:        sceneCBV,
		LightBufferCbvIndex:        lightCBV,
		AtmosphereTextureSrvIndex:  atmosphereSRV,
	}))
	cl.SetIndexBuffer(*s.ctx.BufferAt(geometry.IndexBuffer))
	cl.ExecuteIndirect(sig, count, *args)
	return nil
}
