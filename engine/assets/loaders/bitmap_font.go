package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/aurora/engine/core"
)

type FontGlyph struct {
	X, Y          uint16
	Width, Height uint16
	XOffset       int16
	YOffset       int16
	XAdvance      int16
}

type KerningPair struct {
	First, Second rune
}

// BitmapFont is an AngelCode BMFont with a single atlas page.
type BitmapFont struct {
	Face       string
	Size       int
	LineHeight int32
	Baseline   int32
	Glyphs     map[rune]FontGlyph
	Kernings   map[KerningPair]int16
	Atlas      ImageData
}

// Kerning returns the advance adjustment between two runes.
func (f *BitmapFont) Kerning(first, second rune) int16 {
	return f.Kernings[KerningPair{First: first, Second: second}]
}

// LoadBitmapFont reads a .fnt descriptor and decodes its first page.
// Glyphs on other pages are dropped.
func LoadBitmapFont(path string) (*BitmapFont, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, err
	}
	desc := font.Descriptor
	if len(desc.Pages) == 0 {
		return nil, fmt.Errorf("bitmap font %s has no pages", path)
	}

	out := &BitmapFont{
		Face:       desc.Info.Face,
		Size:       int(desc.Info.Size),
		LineHeight: int32(desc.Common.LineHeight),
		Baseline:   int32(desc.Common.Base),
		Glyphs:     make(map[rune]FontGlyph, len(desc.Chars)),
		Kernings:   make(map[KerningPair]int16, len(desc.Kerning)),
	}

	atlas := ""
	for _, p := range desc.Pages {
		if p.ID == 0 {
			atlas = p.File
		}
	}
	if atlas == "" {
		return nil, fmt.Errorf("bitmap font %s has no page 0", path)
	}
	if out.Atlas, err = LoadImage(filepath.Join(filepath.Dir(path), atlas)); err != nil {
		return nil, err
	}

	dropped := 0
	for _, g := range desc.Chars {
		if g.Page != 0 {
			dropped++
			continue
		}
		out.Glyphs[g.ID] = FontGlyph{
			X:        uint16(g.X),
			Y:        uint16(g.Y),
			Width:    uint16(g.Width),
			Height:   uint16(g.Height),
			XOffset:  int16(g.XOffset),
			YOffset:  int16(g.YOffset),
			XAdvance: int16(g.XAdvance),
		}
	}
	if dropped > 0 {
		core.LogWarn("Bitmap font %s: %d glyphs on secondary pages are ignored", path, dropped)
	}
	for p, k := range desc.Kerning {
		out.Kernings[KerningPair{First: p.First, Second: p.Second}] = int16(k.Amount)
	}

	core.LogInfo("Loaded bitmap font %s %d with %d glyphs", out.Face, out.Size, len(out.Glyphs))
	return out, nil
}
