package renderpass_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

func TestBuildIndirectCommands(t *testing.T) {
	meshes := []interop.MeshBuffer{
		{MeshIndex: 0, GameObjectIndex: 0, IndicesOffset: 0, IndicesCount: 36},
		{MeshIndex: 1, GameObjectIndex: 0, IndicesOffset: 36, IndicesCount: 6},
		{MeshIndex: 2, GameObjectIndex: 1, IndicesOffset: 42, IndicesCount: 3, PositionOffset: 28},
	}

	commands := renderpass.BuildIndirectCommands(nil, meshes)

	require.Len(t, commands, len(meshes))
	for i, mesh := range meshes {
		cmd := commands[i]
		assert.Equal(t, mesh.MeshIndex, cmd.MeshID)
		assert.Equal(t, mesh.IndicesCount, cmd.DrawArguments.IndexCountPerInstance)
		assert.Equal(t, uint32(1), cmd.DrawArguments.InstanceCount)
		assert.Equal(t, mesh.IndicesOffset, cmd.DrawArguments.StartIndexLocation)
		assert.Zero(t, cmd.DrawArguments.BaseVertexLocation)
		assert.Zero(t, cmd.DrawArguments.StartInstanceLocation)
	}

	// reusing the slice keeps nothing from the previous frame
	commands = renderpass.BuildIndirectCommands(commands[:0], meshes[:1])
	assert.Len(t, commands, 1)
}

type shadingFixture struct {
	ctx      *testContext
	shading  *renderpass.Shading
	args     uint32
	scene    uint32
	geometry renderpass.Geometry
}

func newShadingFixture(t *testing.T, meshes []interop.MeshBuffer, capacity uint32) *shadingFixture {
	t.Helper()
	ctx := newTestContext(t)
	shading, err := renderpass.NewShading(ctx)
	require.NoError(t, err)

	create := func(desc rhi.BufferCreationDesc, data []byte) uint32 {
		index, err := ctx.CreateBuffer(desc, data)
		require.NoError(t, err)
		return index
	}
	vertices := rhi.Bytes([]math.Vec3{{X: 1}, {Y: 1}, {Z: 1}})
	f := &shadingFixture{ctx: ctx, shading: shading}
	f.args = create(rhi.NewBufferDesc[rhi.IndirectCommandArgs](rhi.BufferUsageDynamicStructuredBuffer, "commands", capacity),
		rhi.Bytes(make([]rhi.IndirectCommandArgs, capacity)))
	f.scene = create(rhi.NewBufferDesc[interop.SceneBuffer](rhi.BufferUsageConstantBuffer, "scene", 1), nil)
	f.geometry = renderpass.Geometry{
		PositionBuffer:     create(rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, "positions", 3), vertices),
		NormalBuffer:       create(rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, "normals", 3), vertices),
		TextureCoordBuffer: create(rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, "uvs", 3), vertices),
		IndexBuffer:        create(rhi.NewBufferDesc[uint16](rhi.BufferUsageIndexBuffer, "indices", 3), rhi.Bytes([]uint16{0, 1, 2})),
		MeshBuffer:         create(rhi.NewBufferDesc[interop.MeshBuffer](rhi.BufferUsageStructuredBuffer, "meshes", uint32(len(meshes))), rhi.Bytes(meshes)),
		MaterialBuffer:     create(rhi.NewBufferDesc[interop.MaterialBuffer](rhi.BufferUsageDynamicStructuredBuffer, "materials", 1), rhi.Bytes(make([]interop.MaterialBuffer, 1))),
		GameObjectBuffer:   create(rhi.NewBufferDesc[interop.GameObjectBuffer](rhi.BufferUsageDynamicStructuredBuffer, "objects", 1), rhi.Bytes(make([]interop.GameObjectBuffer, 1))),
		Meshes:             meshes,
	}
	return f
}

func (f *shadingFixture) render(t *testing.T, geometry renderpass.Geometry) []headless.Command {
	t.Helper()
	return f.ctx.record(t, func(cl *rhi.CommandList) {
		require.NoError(t, f.shading.Render(cl, f.ctx.device.CommandSignature(), f.args, f.ctx.BufferAt(f.scene).CbvIndex, 0, 0, geometry))
	})
}

func TestShadingDrawsEveryMesh(t *testing.T) {
	meshes := []interop.MeshBuffer{
		{MeshIndex: 0, IndicesOffset: 0, IndicesCount: 3},
		{MeshIndex: 1, IndicesOffset: 3, IndicesCount: 9},
		{MeshIndex: 2, IndicesOffset: 12, IndicesCount: 6},
	}
	f := newShadingFixture(t, meshes, 8)

	draws := filter(f.render(t, f.geometry), headless.OpIndirectDraw)

	require.Len(t, draws, len(meshes))
	for i, draw := range draws {
		require.NoError(t, draw.Err)
		assert.Equal(t, "pbr shading pipeline", draw.Pipeline)
		assert.Equal(t, meshes[i].MeshIndex, draw.Constants[0])
		assert.Equal(t, meshes[i].IndicesCount, draw.Draw.IndexCountPerInstance)
		assert.Equal(t, meshes[i].IndicesOffset, draw.Draw.StartIndexLocation)
		assert.Equal(t, uint32(1), draw.Draw.InstanceCount)
		// the remaining constants are shared by every record
		assert.Equal(t, f.ctx.BufferAt(f.geometry.PositionBuffer).SrvIndex, draw.Constants[1])
	}
}

func TestShadingWithoutMeshesRecordsNothing(t *testing.T) {
	f := newShadingFixture(t, []interop.MeshBuffer{{IndicesCount: 3}}, 4)

	cmds := f.render(t, renderpass.EmptyGeometry())

	assert.Empty(t, filter(cmds, headless.OpIndirectDraw))
	assert.Empty(t, filter(cmds, headless.OpSetPipeline))
}

func TestShadingCapsAtCommandBufferSize(t *testing.T) {
	var log bytes.Buffer
	core.SetLogOutput(&log)
	t.Cleanup(func() { core.SetLogOutput(os.Stderr) })

	meshes := make([]interop.MeshBuffer, 5)
	for i := range meshes {
		meshes[i] = interop.MeshBuffer{MeshIndex: uint32(i), IndicesCount: 3}
	}
	f := newShadingFixture(t, meshes, 2)

	draws := filter(f.render(t, f.geometry), headless.OpIndirectDraw)
	assert.Len(t, draws, 2)
	assert.Contains(t, log.String(), "Scene has 5 meshes, only the first 2 are drawn")
}
