package loaders_test

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/math"
)

// every triangle must wind clockwise seen from the side its normal points to
func assertOutwardWinding(t *testing.T, mesh loaders.MeshData) {
	t.Helper()
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		a := mesh.Positions[mesh.Indices[i]]
		b := mesh.Positions[mesh.Indices[i+1]]
		c := mesh.Positions[mesh.Indices[i+2]]
		n := mesh.Normals[mesh.Indices[i]]
		assert.Greater(t, b.Sub(a).Cross(c.Sub(a)).Dot(n), float32(0), "triangle %d", i/3)
	}
}

func TestPrimitives(t *testing.T) {
	cube, err := loaders.Primitive("cube")
	require.NoError(t, err)
	require.NoError(t, cube.Validate())
	require.Len(t, cube.Meshes, 1)
	assert.Len(t, cube.Meshes[0].Positions, 24)
	assert.Len(t, cube.Meshes[0].Indices, 36)
	assertOutwardWinding(t, cube.Meshes[0])
	for _, p := range cube.Meshes[0].Positions {
		assert.Equal(t, float32(0.25), p.X*p.X)
		assert.Equal(t, float32(0.25), p.Y*p.Y)
		assert.Equal(t, float32(0.25), p.Z*p.Z)
	}

	plane, err := loaders.Primitive("plane")
	require.NoError(t, err)
	assert.Len(t, plane.Meshes[0].Indices, 6)
	assertOutwardWinding(t, plane.Meshes[0])
	for _, n := range plane.Meshes[0].Normals {
		assert.Equal(t, math.NewVec3(0, 1, 0), n)
	}

	sphere, err := loaders.Primitive("sphere")
	require.NoError(t, err)
	require.NoError(t, sphere.Validate())
	for i, p := range sphere.Meshes[0].Positions {
		n := sphere.Meshes[0].Normals[i]
		assert.InDelta(t, 1, n.Length(), 1e-4)
		assert.True(t, p.Compare(n.MulScalar(0.5), 1e-5))
	}

	_, err = loaders.Primitive("teapot")
	assert.ErrorIs(t, err, loaders.ErrUnknownPrimitive)
}

func TestModelLoaderDispatch(t *testing.T) {
	ml := &loaders.ModelLoader{Root: t.TempDir()}

	model, err := ml.Load("primitive:cube")
	require.NoError(t, err)
	assert.Len(t, model.Materials, 1)

	_, err = ml.Load("model.fbx")
	assert.ErrorIs(t, err, loaders.ErrUnsupportedModel)

	_, err = ml.Load("missing.obj")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const quadOBJ = `# a unit quad facing +z
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl missing
f -4 -2 -1
`

const quadMTL = `newmtl red
Kd 1 0 0
d 0.5
Pm 0.25
Pr 0.75
map_Kd red.png
`

func writeTestPNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadOBJ(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.obj"), []byte(quadOBJ), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.mtl"), []byte(quadMTL), 0o644))
	writeTestPNG(t, filepath.Join(dir, "red.png"), 2, 3, color.NRGBA{R: 255, A: 255})

	model, err := loaders.LoadOBJ(filepath.Join(dir, "quad.obj"))
	require.NoError(t, err)
	require.NoError(t, model.Validate())

	require.Len(t, model.Materials, 2)
	red := model.Materials[1]
	assert.Equal(t, "red", red.Name)
	assert.Equal(t, math.NewVec4(1, 0, 0, 0.5), red.BaseColor)
	assert.Equal(t, math.NewVec2(0.25, 0.75), red.MetallicRoughness)
	require.True(t, red.BaseColorTexture.Valid())
	assert.Equal(t, uint32(2), red.BaseColorTexture.Width)
	assert.Equal(t, []byte{255, 0, 0, 255}, red.BaseColorTexture.Pixels[:4])

	require.Len(t, model.Meshes, 2)
	quad := model.Meshes[0]
	assert.Equal(t, uint32(1), quad.MaterialIndex)
	assert.Len(t, quad.Positions, 4)
	assert.Len(t, quad.Indices, 6)
	assertOutwardWinding(t, quad)
	for _, n := range quad.Normals {
		assert.Equal(t, math.NewVec3(0, 0, -1), n)
	}
	// V is flipped to a top left origin
	assert.Equal(t, math.NewVec2(0, 1), quad.TexCoords[0])

	// negative indices without normals take the face normal
	tri := model.Meshes[1]
	assert.Equal(t, uint32(0), tri.MaterialIndex)
	assert.Len(t, tri.Indices, 3)
	assertOutwardWinding(t, tri)
}

func TestDecodeOBJErrors(t *testing.T) {
	for name, src := range map[string]string{
		"no faces":     "v 0 0 0\n",
		"out of range": "v 0 0 0\nv 1 0 0\nf 1 2 3\n",
		"bad float":    "v 0 x 0\n",
		"short face":   "v 0 0 0\nv 1 0 0\nf 1 2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loaders.DecodeOBJ(strings.NewReader(src), t.TempDir())
			assert.Error(t, err)
		})
	}
}

func TestDecodeImageConvertsToRGBA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gray.png")
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	data, err := loaders.LoadImage(path)
	require.NoError(t, err)
	require.True(t, data.Valid())
	assert.Equal(t, []byte{128, 128, 128, 255}, data.Pixels[:4])
}
