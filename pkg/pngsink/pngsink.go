// Package pngsink encodes a finished canvas to PNG. It is a thin wrapper:
// the only choice that matters is the compression level, since this
// renderer trades file size for the encode throughput a batch job needs.
package pngsink

import (
	"bufio"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/kylerisse/rrdrender/pkg/canvas"
)

// asImage adapts a canvas.Canvas to image.Image so the standard encoder
// can read pixels directly out of the RGB buffer without a copy into an
// intermediate image.RGBA.
type asImage struct {
	c *canvas.Canvas
}

func (a asImage) ColorModel() color.Model { return color.RGBAModel }

func (a asImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, a.c.Width, a.c.Height)
}

func (a asImage) At(x, y int) color.Color {
	if x < 0 || x >= a.c.Width || y < 0 || y >= a.c.Height {
		return color.RGBA{}
	}
	i := (y*a.c.Width + x) * 3
	return color.RGBA{R: a.c.Data[i], G: a.c.Data[i+1], B: a.c.Data[i+2], A: 0xff}
}

// Encode writes c to w as an RGB PNG using the fastest compression
// setting the standard encoder offers, mirroring a batch renderer's
// preference for throughput over file size.
func Encode(w io.Writer, c *canvas.Canvas) error {
	bw := bufio.NewWriter(w)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(bw, asImage{c: c}); err != nil {
		return err
	}
	return bw.Flush()
}
