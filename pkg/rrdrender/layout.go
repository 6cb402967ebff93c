package rrdrender

import (
	"github.com/kylerisse/rrdrender/pkg/canvas"
	"github.com/kylerisse/rrdrender/pkg/glyph"
)

// Canvas layout: a fixed left margin for value-axis labels, a top
// margin for the title, and a legend table stacked below the plot area
// with one row per curve.
const (
	plotOriginX     = 60
	plotOriginY     = 30
	marginRight     = 20
	marginBottom    = 20
	legendRowHeight = 13
)

// newCanvas allocates a white canvas sized to hold a width x height plot
// area, its margins, and legendRows worth of legend table beneath it.
func newCanvas(width, height, legendRows int) *canvas.Canvas {
	totalW := plotOriginX + width + marginRight
	totalH := plotOriginY + height + marginBottom + legendRows*legendRowHeight + 24
	c := canvas.New(totalW, totalH)
	for i := range c.Data {
		c.Data[i] = 0xff
	}
	return c
}

func drawTitle(c *canvas.Canvas, title string) {
	if title == "" {
		return
	}
	glyph.Draw(c, c.Width/2, 14, title, glyph.Center)
}
