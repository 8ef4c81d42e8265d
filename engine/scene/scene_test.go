package scene_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/assets"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
	"github.com/spaghettifunk/aurora/engine/scene"
)

var _ renderer.SceneView = (*scene.Scene)(nil)

type nopCompiler struct{}

func (nopCompiler) Compile(desc shader.ShaderCreationDesc, ignoreErrors bool) (shader.Blob, error) {
	return shader.Blob{Type: desc.Type, Code: []byte(desc.Path), EntryPoint: desc.EntryPoint}, nil
}

func newTestRenderer(t *testing.T) (*renderer.Renderer, *headless.Backend) {
	t.Helper()
	backend := headless.New(headless.Options{})
	r, err := renderer.New(backend, renderer.Config{
		Width:             320,
		Height:            180,
		CbvSrvUavHeapSize: 1024,
		RtvHeapSize:       8,
		DsvHeapSize:       4,
		MaxPrimitiveCount: 16,
	}, nopCompiler{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, r.Close())
	})
	return r, backend
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

func newAssetManager(t *testing.T, root string) *assets.AssetManager {
	t.Helper()
	am, err := assets.NewAssetManager(root, assets.Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, am.Close())
	})
	return am
}

func readback[T any](t *testing.T, r *renderer.Renderer, index uint32) []T {
	t.Helper()
	data, err := r.ReadbackBuffer(index)
	require.NoError(t, err)
	var zero T
	n := len(data) / int(unsafe.Sizeof(zero))
	require.NotZero(t, n)
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}

const sandboxTOML = `
name = "sandbox"
sun_angle = -45.0

[camera]
position = [0.0, 1.0, -10.0]

[[lights]]
type = "point"
position = [2.0, 3.0, 4.0]
color = [1.0, 0.5, 0.25]
intensity = 2.0
scale = 0.1

[[game_objects]]
name = "crate"
model = "primitive:cube"
translation = [1.0, 2.0, 3.0]

[[game_objects]]
name = "floor"
model = "primitive:plane"
scale = [10.0, 1.0, 10.0]
base_color = [0.2, 0.2, 0.2, 1.0]
roughness = 0.9
`

const sandboxYAML = `
name: sandbox
sun_angle: -45.0
camera:
  position: [0.0, 1.0, -10.0]
lights:
  - type: point
    position: [2.0, 3.0, 4.0]
    color: [1.0, 0.5, 0.25]
    intensity: 2.0
    scale: 0.1
game_objects:
  - name: crate
    model: primitive:cube
    translation: [1.0, 2.0, 3.0]
  - name: floor
    model: primitive:plane
    scale: [10.0, 1.0, 10.0]
    base_color: [0.2, 0.2, 0.2, 1.0]
    roughness: 0.9
`

func TestDecodeDescriptionFormatsAgree(t *testing.T) {
	fromTOML, err := scene.DecodeDescription([]byte(sandboxTOML), ".toml")
	require.NoError(t, err)
	fromYAML, err := scene.DecodeDescription([]byte(sandboxYAML), ".yaml")
	require.NoError(t, err)

	assert.Equal(t, fromTOML, fromYAML)
	assert.Equal(t, "sandbox", fromTOML.Name)
	require.Len(t, fromTOML.GameObjects, 2)
	assert.Equal(t, scene.Float3{1, 2, 3}, fromTOML.GameObjects[0].Translation)
	require.NotNil(t, fromTOML.GameObjects[1].Roughness)
	assert.Nil(t, fromTOML.GameObjects[1].Metallic)
	assert.Equal(t, float32(-45), *fromTOML.SunAngle)
}

func TestDecodeDescriptionErrors(t *testing.T) {
	_, err := scene.DecodeDescription([]byte(`name = "x"`), ".json")
	assert.ErrorIs(t, err, scene.ErrUnsupportedDescription)

	_, err = scene.DecodeDescription([]byte("colour = 1\n"), ".toml")
	assert.Error(t, err)

	_, err = scene.DecodeDescription([]byte("game_objects:\n  - name: nothing\n"), ".yml")
	assert.ErrorIs(t, err, scene.ErrInvalidDescription)

	_, err = scene.DecodeDescription([]byte("[[lights]]\ntype = \"spot\"\n"), ".toml")
	assert.ErrorIs(t, err, scene.ErrInvalidDescription)

	var many bytes.Buffer
	for i := 0; i <= scene.MaxGameObjects; i++ {
		many.WriteString("[[game_objects]]\nmodel = \"primitive:cube\"\n")
	}
	_, err = scene.DecodeDescription(many.Bytes(), ".toml")
	assert.ErrorIs(t, err, scene.ErrInvalidDescription)
}

func TestCameraDefaultView(t *testing.T) {
	c := scene.NewCamera()
	view := c.View()

	expected := math.NewMat4LookAtLH(math.NewVec3(0, 0, -5), math.NewVec3(0, 0, -4), math.NewVec3Up())
	assert.True(t, view.Compare(expected, 1e-5))
	assert.True(t, c.Front().Compare(math.NewVec3(0, 0, 1), 1e-6))
	assert.True(t, c.Right().Compare(math.NewVec3(1, 0, 0), 1e-6))
	assert.True(t, c.Up().Compare(math.NewVec3(0, 1, 0), 1e-6))
}

func TestCameraMovementIsSmoothed(t *testing.T) {
	c := scene.NewCamera()
	in := core.NewInput(nil)

	in.ProcessKey(core.KEY_W, true)
	c.Update(16, in)
	// 0.1 * 16 along +z, lerped by the 0.12 friction factor
	assert.InDelta(t, -5+0.192, c.Position.Z, 1e-5)

	in.ProcessKey(core.KEY_W, false)
	c.Update(16, in)
	assert.InDelta(t, -5+0.192+0.192*0.88, c.Position.Z, 1e-5)
	assert.Zero(t, c.Position.X)
}

func TestCameraRotation(t *testing.T) {
	c := scene.NewCamera()
	in := core.NewInput(nil)

	in.ProcessKey(core.KEY_RIGHT, true)
	c.Update(16, in)
	assert.InDelta(t, 0.0015*16*0.12, c.Yaw, 1e-6)
	assert.Zero(t, c.Pitch)

	// yaw turns the front vector towards +x
	c.Yaw = math.DegToRad(90)
	c.View()
	assert.True(t, c.Front().Compare(math.NewVec3(1, 0, 0), 1e-5))
}

func TestLights(t *testing.T) {
	r, _ := newTestRenderer(t)
	lights, err := scene.NewLights(r)
	require.NoError(t, err)
	log := captureLog(t)

	assert.Equal(t, uint32(1), lights.Count())
	assert.Equal(t, float32(-90), lights.SunAngle())

	assert.False(t, lights.AddLight(interop.Light{Type: interop.LightTypeDirectional}))
	assert.Contains(t, log.String(), "directional light already exists")

	assert.True(t, lights.AddLight(interop.Light{
		Type:                          interop.LightTypePoint,
		WorldSpacePositionOrDirection: math.NewVec3(1, 2, 3),
		Scale:                         0.5,
	}))
	for lights.Count() < interop.MaxLightCount {
		require.True(t, lights.AddLight(interop.Light{Type: interop.LightTypePoint}))
	}
	assert.False(t, lights.AddLight(interop.Light{Type: interop.LightTypePoint}))
	assert.Contains(t, log.String(), "MAX_LIGHT_COUNT is already reached")

	require.NoError(t, lights.Update(math.NewMat4Identity()))
	// sun angle -90 points the sun straight up
	assert.True(t, lights.SunDirection().Compare(math.NewVec3(0, 1, 0), 1e-5))

	data := readback[interop.LightBuffer](t, r, lights.BufferIndex())[0]
	assert.Equal(t, uint32(interop.MaxLightCount), data.LightCount)
	expected := math.NewMat4UniformScale(0.5).Mul(math.NewMat4Translation(math.NewVec3(1, 2, 3)))
	assert.True(t, data.ModelMatrix[0].Compare(expected, 1e-6))
	assert.Equal(t, math.NewVec3(1, 2, 3), data.Lights[1].ViewSpacePositionOrDirection)
}

func writeScene(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewScene(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()
	path := writeScene(t, dir, "sandbox.toml", sandboxTOML)

	s, err := scene.New(r, newAssetManager(t, dir), path)
	require.NoError(t, err)

	assert.Equal(t, "sandbox", s.Name())
	assert.Equal(t, math.NewVec3(0, 1, -10), s.Camera.Position)
	assert.Equal(t, uint32(2), s.LightCount())
	require.Len(t, s.GameObjects(), 2)

	crate, ok := s.GameObject("crate")
	require.True(t, ok)
	floor, ok := s.GameObject("floor")
	require.True(t, ok)
	assert.NotEqual(t, crate.ID, floor.ID)
	assert.Equal(t, uint32(1), floor.Index)
	assert.Equal(t, uint32(1), floor.MeshBufferOffset)
	assert.Equal(t, uint32(1), floor.MaterialBufferOffset)

	geometry := s.Geometry()
	require.Len(t, geometry.Meshes, 2)
	second := geometry.Meshes[1]
	assert.Equal(t, uint32(1), second.MeshIndex)
	assert.Equal(t, uint32(1), second.GameObjectIndex)
	assert.Equal(t, uint32(24), second.PositionOffset)
	assert.Equal(t, uint32(36), second.IndicesOffset)
	assert.Equal(t, uint32(6), second.IndicesCount)
	assert.Equal(t, uint32(1), second.MaterialIndex)

	assert.Len(t, readback[math.Vec3](t, r, geometry.PositionBuffer), 24+4)
	assert.Len(t, readback[uint16](t, r, geometry.IndexBuffer), 36+6)

	floorMaterial := s.Material(1)
	assert.Equal(t, math.NewVec4(0.2, 0.2, 0.2, 1), floorMaterial.BaseColor)
	assert.Equal(t, float32(0.9), floorMaterial.MetallicRoughnessFactor.Y)
	assert.Equal(t, uint32(rhi.InvalidIndex), floorMaterial.AlbedoTextureSrvIndex)
}

func TestSceneUpdateUploadsBuffers(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()
	s, err := scene.New(r, newAssetManager(t, dir), writeScene(t, dir, "sandbox.yaml", sandboxYAML))
	require.NoError(t, err)

	projection := math.NewMat4PerspectiveLH(math.DegToRad(45), 16.0/9.0, 0.1, 1000)
	require.NoError(t, s.Update(projection, 16, 7, core.NewInput(nil)))

	sceneData := readback[interop.SceneBuffer](t, r, s.SceneBufferIndex())[0]
	assert.Equal(t, uint32(7), sceneData.FrameCount)
	assert.Equal(t, s.Camera.Position, sceneData.CameraPosition)
	view := s.Camera.View()
	assert.True(t, sceneData.ViewProjectionMatrix.Compare(view.Mul(projection), 1e-5))
	assert.True(t, sceneData.InverseViewMatrix.Mul(view).Compare(math.NewMat4Identity(), 1e-4))

	objects := readback[interop.GameObjectBuffer](t, r, s.Geometry().GameObjectBuffer)
	require.Len(t, objects, scene.MaxGameObjects)
	assert.True(t, objects[0].Transform.ModelMatrix.Compare(math.NewMat4Translation(math.NewVec3(1, 2, 3)), 1e-6))
	assert.True(t, objects[1].Transform.ModelMatrix.Compare(math.NewMat4Scale(math.NewVec3(10, 1, 10)), 1e-6))

	// -45 degrees tilts the sun between up and forward
	sun := s.SunDirection()
	assert.InDelta(t, 0.7071, sun.Y, 1e-4)
	assert.InDelta(t, -0.7071, sun.Z, 1e-4)
}

func TestSceneMaterialEditsAreUploaded(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()
	s, err := scene.New(r, newAssetManager(t, dir), writeScene(t, dir, "sandbox.toml", sandboxTOML))
	require.NoError(t, err)

	m := s.Material(0)
	m.BaseColor = math.NewVec4(1, 0, 0, 1)
	require.NoError(t, s.SetMaterial(0, m))
	assert.ErrorIs(t, s.SetMaterial(5, m), rhi.ErrInvalidIndex)
	require.NoError(t, s.Update(math.NewMat4Identity(), 0, 0, nil))

	materials := readback[interop.MaterialBuffer](t, r, s.Geometry().MaterialBuffer)
	assert.Equal(t, math.NewVec4(1, 0, 0, 1), materials[0].BaseColor)
}

func TestSceneReload(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()
	path := writeScene(t, dir, "sandbox.toml", sandboxTOML)
	s, err := scene.New(r, newAssetManager(t, dir), path)
	require.NoError(t, err)
	before := s.Geometry()
	s.Camera.Position = math.NewVec3(5, 5, 5)

	writeScene(t, dir, "sandbox.toml", `
name = "smaller"

[[game_objects]]
model = "primitive:sphere"
`)
	require.NoError(t, s.Reload())

	after := s.Geometry()
	assert.Equal(t, "smaller", s.Name())
	assert.Equal(t, 1, s.MeshCount())
	assert.Equal(t, uint32(1), s.LightCount())
	assert.Equal(t, math.NewVec3(5, 5, 5), s.Camera.Position)
	assert.Equal(t, "primitive:sphere", s.GameObjects()[0].Name)

	// buffers are replaced in place, descriptor lookups through the arena
	// see the new contents
	assert.Equal(t, before.PositionBuffer, after.PositionBuffer)
	assert.Equal(t, before.MeshBuffer, after.MeshBuffer)
	assert.Equal(t, uint32(1), r.Generation(renderer.ResourceKindBuffer, after.PositionBuffer))
	assert.Len(t, readback[interop.MeshBuffer](t, r, after.MeshBuffer), 1)
}

func TestSceneReloadKeepsSceneOnError(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()
	path := writeScene(t, dir, "sandbox.toml", sandboxTOML)
	s, err := scene.New(r, newAssetManager(t, dir), path)
	require.NoError(t, err)
	log := captureLog(t)

	writeScene(t, dir, "sandbox.toml", "name = ")
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, s.MeshCount())

	writeScene(t, dir, "sandbox.toml", "[[game_objects]]\nmodel = \"primitive:teapot\"\n")
	require.NoError(t, s.Reload())
	assert.Equal(t, 2, s.MeshCount())
	assert.Equal(t, "sandbox", s.Name())
	assert.Equal(t, 2, bytes.Count(log.Bytes(), []byte("Keeping current scene")))
}

var errUploadFailed = errors.New("upload failed")

// flakyResources fails the failAt-th ReplaceBuffer call.
type flakyResources struct {
	*renderer.Renderer
	calls  int
	failAt int
}

func (f *flakyResources) ReplaceBuffer(index uint32, desc rhi.BufferCreationDesc, data []byte) error {
	f.calls++
	if f.calls == f.failAt {
		return errUploadFailed
	}
	return f.Renderer.ReplaceBuffer(index, desc, data)
}

func TestSceneReloadFailedUploadKeepsScene(t *testing.T) {
	r, _ := newTestRenderer(t)
	res := &flakyResources{Renderer: r}
	dir := t.TempDir()
	path := writeScene(t, dir, "sandbox.toml", sandboxTOML)
	s, err := scene.New(res, newAssetManager(t, dir), path)
	require.NoError(t, err)
	before := s.Geometry()
	objects := s.GameObjects()

	writeScene(t, dir, "sandbox.toml", `
name = "smaller"
sun_angle = 10.0

[[game_objects]]
model = "primitive:sphere"
`)
	// positions, normals and texture coords go through, the index buffer fails
	res.calls, res.failAt = 0, 4
	err = s.Reload()
	require.ErrorIs(t, err, errUploadFailed)

	assert.Equal(t, "sandbox", s.Name())
	assert.Equal(t, 2, s.MeshCount())
	assert.Equal(t, objects, s.GameObjects())
	assert.Equal(t, before, s.Geometry())
	assert.Equal(t, uint32(2), s.LightCount())
	assert.Equal(t, float32(-45), s.Lights.SunAngle())

	// the three replaced buffers got the sandbox contents back
	assert.Equal(t, 4+3, res.calls)
	assert.Len(t, readback[math.Vec3](t, r, before.PositionBuffer), 24+4)
	assert.Len(t, readback[math.Vec3](t, r, before.NormalBuffer), 24+4)
	assert.Len(t, readback[math.Vec2](t, r, before.TextureCoordBuffer), 24+4)
	assert.Len(t, readback[uint16](t, r, before.IndexBuffer), 36+6)

	res.failAt = 0
	require.NoError(t, s.Reload())
	assert.Equal(t, "smaller", s.Name())
	assert.Equal(t, 1, s.MeshCount())
	assert.Equal(t, uint32(1), s.LightCount())
	assert.Equal(t, float32(10), s.Lights.SunAngle())
}

func TestEmptyScene(t *testing.T) {
	r, _ := newTestRenderer(t)
	s, err := scene.New(r, newAssetManager(t, t.TempDir()), "")
	require.NoError(t, err)
	log := captureLog(t)

	assert.Empty(t, s.Geometry().Meshes)
	assert.Equal(t, uint32(rhi.InvalidIndex), s.Geometry().PositionBuffer)
	require.NoError(t, s.Update(math.NewMat4Identity(), 16, 0, nil))
	require.NoError(t, s.Reload())
	assert.Contains(t, log.String(), "Cannot reload scene")

	obj, err := s.AddGameObject(scene.GameObjectDescription{Name: "ball", Model: "primitive:sphere"})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), obj.Index)
	assert.Equal(t, 1, s.MeshCount())
	assert.NotEqual(t, uint32(rhi.InvalidIndex), s.Geometry().PositionBuffer)

	_, err = s.AddGameObject(scene.GameObjectDescription{Model: "missing.obj"})
	assert.Error(t, err)
	assert.Equal(t, 1, s.MeshCount())
}

func TestAlbedoTextureOverride(t *testing.T) {
	r, _ := newTestRenderer(t)
	dir := t.TempDir()

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.Set(0, 0, color.NRGBA{R: 10, A: 255})
	f, err := os.Create(filepath.Join(dir, "checker.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	path := writeScene(t, dir, "textured.toml", `
[[game_objects]]
model = "primitive:cube"
albedo_texture = "checker.png"
metallic = 1.0
`)
	s, err := scene.New(r, newAssetManager(t, dir), path)
	require.NoError(t, err)

	m := s.Material(0)
	require.NotEqual(t, uint32(rhi.InvalidIndex), m.AlbedoTextureSrvIndex)
	assert.Equal(t, float32(1), m.MetallicRoughnessFactor.X)
}

func TestRenderScene(t *testing.T) {
	r, backend := newTestRenderer(t)
	dir := t.TempDir()
	s, err := scene.New(r, newAssetManager(t, dir), writeScene(t, dir, "sandbox.toml", sandboxTOML))
	require.NoError(t, err)

	const frames = 3
	projection := math.NewMat4PerspectiveLH(math.DegToRad(45), 16.0/9.0, 0.1, 1000)
	for i := 0; i < frames; i++ {
		require.NoError(t, s.Update(projection, 16, uint32(i), nil))
		require.NoError(t, r.UpdateRenderpasses(s, uint32(i)))
		require.NoError(t, r.Render(s))
	}
	require.NoError(t, r.Device().WaitIdle())

	draws := 0
	for _, cmd := range backend.Executed(rhi.QueueKindDirect) {
		require.NoError(t, cmd.Err)
		if cmd.Op == headless.OpIndirectDraw {
			draws++
		}
	}
	assert.Equal(t, frames*s.MeshCount(), draws)
}
