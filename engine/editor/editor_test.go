package editor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/editor"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/headless"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

type nopCompiler struct{}

func (nopCompiler) Compile(desc shader.ShaderCreationDesc, ignoreErrors bool) (shader.Blob, error) {
	return shader.Blob{Type: desc.Type, Code: []byte(desc.Path), EntryPoint: desc.EntryPoint}, nil
}

type emptyScene struct {
	scene, light uint32
}

func (s emptyScene) SceneBufferIndex() uint32      { return s.scene }
func (s emptyScene) LightBufferIndex() uint32      { return s.light }
func (s emptyScene) LightCount() uint32            { return 1 }
func (s emptyScene) SunDirection() math.Vec3       { return math.NewVec3(0, 1, 0) }
func (s emptyScene) Geometry() renderpass.Geometry { return renderpass.EmptyGeometry() }

// testFont has glyphs for 'A', 'B' and '?' on a 64x32 atlas.
func testFont() *loaders.BitmapFont {
	return &loaders.BitmapFont{
		Face:       "test",
		Size:       16,
		LineHeight: 18,
		Baseline:   14,
		Glyphs: map[rune]loaders.FontGlyph{
			'A': {X: 0, Y: 0, Width: 8, Height: 10, XOffset: 1, YOffset: 2, XAdvance: 9},
			'B': {X: 16, Y: 0, Width: 8, Height: 10, XAdvance: 9},
			'?': {X: 32, Y: 16, Width: 6, Height: 10, XAdvance: 7},
			' ': {XAdvance: 4},
		},
		Kernings: map[loaders.KerningPair]int16{
			{First: 'A', Second: 'B'}: -2,
		},
		Atlas: loaders.ImageData{Width: 64, Height: 32, Pixels: make([]byte, 64*32*4)},
	}
}

func TestLayoutText(t *testing.T) {
	font := testFont()
	glyphs := editor.LayoutText(nil, font, "AB\nA B\tZ", 10, 20)
	require.Len(t, glyphs, 5)

	a := glyphs[0]
	assert.Equal(t, [2]float32{11, 22}, a.Position)
	assert.Equal(t, [2]float32{8, 10}, a.Size)
	assert.Equal(t, [2]float32{0, 0}, a.UVOffset)
	assert.Equal(t, [2]float32{8.0 / 64, 10.0 / 32}, a.UVSize)

	// kerning pulls B two pixels towards A
	assert.Equal(t, [2]float32{10 + 9 - 2, 20}, glyphs[1].Position)
	assert.Equal(t, [2]float32{0.25, 0}, glyphs[1].UVOffset)

	// second line, the space only advances
	assert.Equal(t, [2]float32{11, 40}, glyphs[2].Position)
	assert.Equal(t, [2]float32{10 + 9 + 4, 38}, glyphs[3].Position)

	// the tab is four spaces, Z falls back to '?'
	assert.Equal(t, [2]float32{10 + 9 + 4 + 9 + 16, 38}, glyphs[4].Position)
	assert.Equal(t, [2]float32{0.5, 0.5}, glyphs[4].UVOffset)
}

func TestLayoutTextWithoutAtlas(t *testing.T) {
	font := testFont()
	font.Atlas = loaders.ImageData{}
	assert.Empty(t, editor.LayoutText(nil, font, "AB", 0, 0))
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

func newEmptyScene(t *testing.T, r *renderer.Renderer) emptyScene {
	t.Helper()
	scene, err := r.CreateBuffer(rhi.NewBufferDesc[interop.SceneBuffer](rhi.BufferUsageConstantBuffer, "scene buffer", 1), nil)
	require.NoError(t, err)
	light, err := r.CreateBuffer(rhi.NewBufferDesc[interop.LightBuffer](rhi.BufferUsageConstantBuffer, "light buffer", 1), nil)
	require.NoError(t, err)
	return emptyScene{scene: scene, light: light}
}

func overlayDraws(backend *headless.Backend) []headless.Command {
	var out []headless.Command
	for _, cmd := range backend.Executed(rhi.QueueKindDirect) {
		if cmd.Op == headless.OpDraw && cmd.Pipeline == "overlay pipeline" {
			out = append(out, cmd)
		}
	}
	return out
}

func TestOverlayRendersText(t *testing.T) {
	r, backend := newTestRenderer(t)
	overlay, err := editor.New(r, testFont(), nil)
	require.NoError(t, err)
	require.True(t, overlay.Enabled())
	r.SetOverlay(overlay)

	overlay.SetLines("AB", "BA")
	assert.Equal(t, "AB\nBA", overlay.Text())

	scene := newEmptyScene(t, r)
	require.NoError(t, r.Render(scene))
	require.NoError(t, r.Device().WaitIdle())

	draws := overlayDraws(backend)
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(6), draws[0].Draw.IndexCountPerInstance)
	assert.Equal(t, uint32(4), draws[0].Draw.InstanceCount)

	overlay.Toggle()
	require.NoError(t, r.Render(scene))
	require.NoError(t, r.Device().WaitIdle())
	assert.Len(t, overlayDraws(backend), 1)
}

func TestOverlayShowsMetrics(t *testing.T) {
	metrics := core.NewMetrics()
	for i := 0; i < int(core.AVG_COUNT); i++ {
		metrics.Update(0.010)
	}
	overlay, err := editor.New(nil, nil, metrics)
	require.NoError(t, err)
	assert.False(t, overlay.Enabled())

	overlay.SetLines("scene sandbox")
	assert.Equal(t, "0 fps  10.00 ms\nscene sandbox", overlay.Text())
	assert.NoError(t, overlay.Render(renderer.OverlayContext{}))
}

func TestLoadWithoutFontIsDisabled(t *testing.T) {
	overlay, err := editor.Load(nil, "", nil)
	require.NoError(t, err)
	assert.False(t, overlay.Enabled())
	assert.NoError(t, overlay.Render(renderer.OverlayContext{}))
}
