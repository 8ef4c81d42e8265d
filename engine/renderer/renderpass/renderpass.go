// Package renderpass contains the passes the renderer records every frame.
// A pass owns its pipelines and buffers through arena indices handed out by
// a Context and receives everything else as descriptor indices, so no pass
// ever references another.
package renderpass

import (
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

// Context is the part of the renderer a pass creates and looks up resources
// through.
type Context interface {
	CreateBuffer(desc rhi.BufferCreationDesc, data []byte) (uint32, error)
	CreateTexture(desc rhi.TextureCreationDesc, data []byte) (uint32, error)
	CreatePipeline(desc rhi.PipelineCreationDesc) (uint32, error)
	BufferAt(index uint32) *rhi.Buffer
	TextureAt(index uint32) *rhi.Texture
	PipelineAt(index uint32) rhi.Pipeline
	// FrameSlot is the slot of the frame being recorded, or between frames
	// the slot the next frame records into.
	FrameSlot() uint32
}

// Geometry is the scene wide vertex data the shading pass draws from. The
// fields are buffer arena indices; Meshes mirrors the mesh buffer contents.
type Geometry struct {
	PositionBuffer     uint32
	NormalBuffer       uint32
	TextureCoordBuffer uint32
	IndexBuffer        uint32
	MeshBuffer         uint32
	MaterialBuffer     uint32
	GameObjectBuffer   uint32
	Meshes             []interop.MeshBuffer
}

// EmptyGeometry has no meshes and no buffers.
func EmptyGeometry() Geometry {
	return Geometry{
		PositionBuffer:     rhi.InvalidIndex,
		NormalBuffer:       rhi.InvalidIndex,
		TextureCoordBuffer: rhi.InvalidIndex,
		IndexBuffer:        rhi.InvalidIndex,
		MeshBuffer:         rhi.InvalidIndex,
		MaterialBuffer:     rhi.InvalidIndex,
		GameObjectBuffer:   rhi.InvalidIndex,
	}
}

func graphicsStages(path string) (vs, ps shader.ShaderCreationDesc) {
	vs = shader.ShaderCreationDesc{Type: shader.ShaderTypeVertex, Path: path, EntryPoint: "vs_main"}
	ps = shader.ShaderCreationDesc{Type: shader.ShaderTypePixel, Path: path, EntryPoint: "ps_main"}
	return vs, ps
}

// Unit cube shared by the cube map and the light visualization.
var (
	cubePositions = []math.Vec3{
		{X: -1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: 1, Y: 1, Z: -1}, {X: 1, Y: -1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: -1, Y: 1, Z: 1},
		{X: 1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: 1},
	}
	cubeIndices = []uint16{
		0, 1, 2, 0, 2, 3,
		4, 6, 5, 4, 7, 6,
		4, 5, 1, 4, 1, 0,
		3, 2, 6, 3, 6, 7,
		1, 5, 6, 1, 6, 2,
		4, 0, 3, 4, 3, 7,
	}
)

const cubeIndexCount = 36

// createCube uploads the unit cube and returns the position and index
// buffer indices.
func createCube(ctx Context, name string) (positions, indices uint32, err error) {
	positions, err = ctx.CreateBuffer(
		rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, name+" position buffer", uint32(len(cubePositions))),
		rhi.Bytes(cubePositions))
	if err != nil {
		return rhi.InvalidIndex, rhi.InvalidIndex, err
	}
	indices, err = ctx.CreateBuffer(
		rhi.NewBufferDesc[uint16](rhi.BufferUsageIndexBuffer, name+" index buffer", uint32(len(cubeIndices))),
		rhi.Bytes(cubeIndices))
	if err != nil {
		return rhi.InvalidIndex, rhi.InvalidIndex, err
	}
	return positions, indices, nil
}
