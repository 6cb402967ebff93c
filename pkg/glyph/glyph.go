// Package glyph composites text onto a canvas using a fixed bitmap face.
// It stands in for the sbit-cache + FreeType pipeline a cgo build would
// use: golang.org/x/image/font/basicfont supplies pre-rendered glyph
// bitmaps keyed by rune, so there is no hinting or rasterization to do
// here — only UTF-8 walking, advance accounting, and the blackness blend
// that darkens whatever pixels a glyph covers.
package glyph

import (
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kylerisse/rrdrender/pkg/canvas"
)

// Orientation selects how text is laid out relative to the anchor point,
// mirroring the four directions the compositor understands: plain
// horizontal text anchored at its left edge, horizontal text anchored at
// its right or center, and text rotated 90 degrees to read downward or
// upward along the y axis.
type Orientation int

const (
	Left   Orientation = 0
	Right  Orientation = -1
	Center Orientation = -2
	Down   Orientation = 1
	Up     Orientation = 2
)

// Face is the glyph source every Draw/Width call renders against. It is a
// package variable rather than a parameter because the renderer uses
// exactly one fixed bitmap face throughout a graph.
var Face font.Face = basicfont.Face7x13

// Width returns the pixel advance of laying text out horizontally, the
// same quantity font_width measures by summing each glyph's xadvance.
func Width(text string) int {
	total := fixed.I(0)
	for _, r := range text {
		aw, ok := Face.GlyphAdvance(r)
		if !ok {
			continue
		}
		total += aw
	}
	return total.Ceil()
}

// Draw composites text onto c, anchored at (x, y) per orientation. Glyphs
// are never painted with a color: every covered pixel is darkened in
// place by out = out*(256-alpha)>>8, exactly as the original compositor's
// alpha blend works, since graph text is always rendered black over
// whatever is already on the canvas.
func Draw(c *canvas.Canvas, x, y int, text string, orientation Orientation) {
	switch orientation {
	case Right:
		x -= Width(text)
	case Center:
		x -= Width(text) / 2
	}

	penX, penY := x, y
	for _, r := range text {
		dr, mask, maskp, advance, ok := Face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		xOff := dr.Min.X
		yOff := dr.Min.Y
		width := dr.Dx()
		height := dr.Dy()
		step := advance.Round()

		switch orientation {
		case Down:
			for yy := 0; yy < height; yy++ {
				for xx := 0; xx < width; xx++ {
					alpha := maskAlpha(mask, maskp.X+xx, maskp.Y+yy)
					if alpha == 0 {
						continue
					}
					effX := penX - yy - yOff
					effY := penY + xx + xOff
					c.Darken(effX, effY, alpha)
				}
			}
			penY += step
		case Up:
			for yy := 0; yy < height; yy++ {
				for xx := 0; xx < width; xx++ {
					alpha := maskAlpha(mask, maskp.X+xx, maskp.Y+yy)
					if alpha == 0 {
						continue
					}
					effX := penX + yy + yOff
					effY := penY - xx - xOff
					c.Darken(effX, effY, alpha)
				}
			}
			penY -= step
		default: // Left, Right, Center — already resolved to a start x above
			for yy := 0; yy < height; yy++ {
				for xx := 0; xx < width; xx++ {
					alpha := maskAlpha(mask, maskp.X+xx, maskp.Y+yy)
					if alpha == 0 {
						continue
					}
					effX := penX + xx + xOff
					effY := penY + yy + yOff
					c.Darken(effX, effY, alpha)
				}
			}
			penX += step
		}
	}
}

// maskAlpha reads the glyph mask's alpha channel at (mx, my) and scales it
// into the 0-256 range the blackness blend expects (256 meaning fully
// opaque, so out*(256-256)>>8 == 0).
func maskAlpha(mask interface {
	At(x, y int) color.Color
}, mx, my int) uint32 {
	_, _, _, a := mask.At(mx, my).RGBA()
	return (a + 1) >> 8
}
