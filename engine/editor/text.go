package editor

import (
	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
)

// tab stops are this many space advances wide
const tabWidth = 4

// fallbackRune is drawn for runes the font has no glyph for.
const fallbackRune = '?'

// LayoutText appends one quad per visible rune of text to dst, starting at
// the pixel position (x, y) of the top left corner of the first line.
// Positions are in pixels, UVs are normalized to the atlas.
func LayoutText(dst []interop.Glyph, font *loaders.BitmapFont, text string, x, y float32) []interop.Glyph {
	atlasWidth := float32(font.Atlas.Width)
	atlasHeight := float32(font.Atlas.Height)
	if atlasWidth == 0 || atlasHeight == 0 {
		return dst
	}

	penX, penY := x, y
	previous := rune(-1)
	for _, r := range text {
		switch r {
		case '\n':
			penX = x
			penY += float32(font.LineHeight)
			previous = -1
			continue
		case '\t':
			if space, ok := font.Glyphs[' ']; ok {
				penX += float32(space.XAdvance) * tabWidth
			}
			previous = -1
			continue
		}

		g, ok := font.Glyphs[r]
		if !ok {
			if g, ok = font.Glyphs[fallbackRune]; !ok {
				continue
			}
			r = fallbackRune
		}
		if previous >= 0 {
			penX += float32(font.Kerning(previous, r))
		}

		if g.Width > 0 && g.Height > 0 {
			dst = append(dst, interop.Glyph{
				Position: [2]float32{penX + float32(g.XOffset), penY + float32(g.YOffset)},
				Size:     [2]float32{float32(g.Width), float32(g.Height)},
				UVOffset: [2]float32{float32(g.X) / atlasWidth, float32(g.Y) / atlasHeight},
				UVSize:   [2]float32{float32(g.Width) / atlasWidth, float32(g.Height) / atlasHeight},
			})
		}
		penX += float32(g.XAdvance)
		previous = r
	}
	return dst
}
