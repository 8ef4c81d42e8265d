// Package editor draws the debug overlay on top of the tone mapped image:
// frame metrics and whatever status lines the engine hands it, as bitmap
// font quads.
package editor

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/renderer"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
	"github.com/spaghettifunk/aurora/engine/renderer/shader"
)

const (
	// MaxGlyphs is the capacity of the glyph buffer; longer text is cut.
	MaxGlyphs = 2048
	// Margin from the top left corner of the screen, in pixels.
	Margin float32 = 8
)

// Overlay implements renderer.Overlay. An overlay without a font draws
// nothing.
type Overlay struct {
	ctx     renderpass.Context
	font    *loaders.BitmapFont
	metrics *core.Metrics

	pipeline    uint32
	glyphBuffer renderpass.PerFrameBuffer
	atlas       uint32

	visible bool
	lines   []string
	glyphs  []interop.Glyph
	text    strings.Builder
}

var _ renderer.Overlay = (*Overlay)(nil)

// Load reads the BMFont at fontPath and creates the overlay. An empty path
// gives a disabled overlay.
func Load(ctx renderpass.Context, fontPath string, metrics *core.Metrics) (*Overlay, error) {
	if fontPath == "" {
		core.LogInfo("No overlay font configured, overlay disabled")
		return New(ctx, nil, metrics)
	}
	font, err := loaders.LoadBitmapFont(fontPath)
	if err != nil {
		return nil, fmt.Errorf("overlay font: %w", err)
	}
	return New(ctx, font, metrics)
}

// New creates the overlay pipeline, the glyph buffer and the atlas
// texture. It must be called before the first frame.
func New(ctx renderpass.Context, font *loaders.BitmapFont, metrics *core.Metrics) (*Overlay, error) {
	o := &Overlay{
		ctx:      ctx,
		font:     font,
		metrics:  metrics,
		pipeline: rhi.InvalidIndex,
		atlas:    rhi.InvalidIndex,
		visible:  true,
	}
	if font == nil {
		return o, nil
	}
	if !font.Atlas.Valid() {
		return nil, fmt.Errorf("overlay font %s has an empty atlas", font.Face)
	}

	var err error
	o.pipeline, err = ctx.CreatePipeline(rhi.PipelineCreationDesc{
		Variant:      rhi.PipelineVariantGraphics,
		VertexShader: shader.ShaderCreationDesc{Type: shader.ShaderTypeVertex, Path: "overlay.hlsl", EntryPoint: "vs_main"},
		PixelShader:  shader.ShaderCreationDesc{Type: shader.ShaderTypePixel, Path: "overlay.hlsl", EntryPoint: "ps_main"},
		RtvFormats:   []rhi.Format{rhi.SwapchainFormat},
		DsvFormat:    rhi.FormatUnknown,
		Name:         "overlay pipeline",
	})
	if err != nil {
		return nil, err
	}
	if o.glyphBuffer, err = renderpass.NewPerFrameBuffer(ctx,
		rhi.NewBufferDesc[interop.Glyph](rhi.BufferUsageDynamicStructuredBuffer, "overlay glyph buffer", MaxGlyphs),
		rhi.Bytes(make([]interop.Glyph, MaxGlyphs))); err != nil {
		return nil, err
	}
	if o.atlas, err = ctx.CreateTexture(rhi.TextureCreationDesc{
		Usage:            rhi.TextureUsageShaderResource,
		Format:           rhi.FormatR8G8B8A8Unorm,
		BytesPerPixel:    4,
		Width:            font.Atlas.Width,
		Height:           font.Atlas.Height,
		DepthOrArraySize: 1,
		MipLevels:        1,
		Name:             "overlay font atlas",
	}, font.Atlas.Pixels); err != nil {
		return nil, err
	}
	core.LogInfo("Created overlay with font %s %d", font.Face, font.Size)
	return o, nil
}

func (o *Overlay) Enabled() bool {
	return o.font != nil
}

func (o *Overlay) Visible() bool {
	return o.visible
}

func (o *Overlay) Toggle() {
	o.visible = !o.visible
}

// SetLines replaces the status lines drawn below the frame metrics.
func (o *Overlay) SetLines(lines ...string) {
	o.lines = append(o.lines[:0], lines...)
}

// Text is what the next Render draws.
func (o *Overlay) Text() string {
	o.text.Reset()
	if o.metrics != nil {
		fps, ms := o.metrics.Frame()
		fmt.Fprintf(&o.text, "%.0f fps  %.2f ms", fps, ms)
	}
	for _, line := range o.lines {
		if o.text.Len() > 0 {
			o.text.WriteByte('\n')
		}
		o.text.WriteString(line)
	}
	return o.text.String()
}

// Render draws every glyph with one instanced draw of six vertices per
// glyph.
func (o *Overlay) Render(ctx renderer.OverlayContext) error {
	if o.font == nil || !o.visible {
		return nil
	}

	o.glyphs = LayoutText(o.glyphs[:0], o.font, o.Text(), Margin, Margin)
	count := min(len(o.glyphs), MaxGlyphs)
	if count == 0 {
		return nil
	}
	buffer := o.glyphBuffer.Current()
	if err := buffer.Update(rhi.Bytes(o.glyphs[:count])); err != nil {
		return err
	}

	cl := ctx.CommandList
	cl.SetBindlessGraphicsRootSignature()
	cl.SetPipelineState(o.ctx.PipelineAt(o.pipeline))
	cl.SetGraphicsRootConstants(rhi.RootConstantsFrom(interop.OverlayRenderResources{
		GlyphBufferSrvIndex:  buffer.SrvIndex,
		AtlasTextureSrvIndex: o.ctx.TextureAt(o.atlas).SrvIndex,
		ScreenWidth:          float32(ctx.Width),
		ScreenHeight:         float32(ctx.Height),
	}))
	cl.DrawInstanced(6, uint32(count))
	return nil
}
