// Package raster turns a planned graph into pixel draw calls against a
// canvas: MIN/MAX range bands, area and stacked-area polygons, AVG
// polylines at 1/2/3-pixel widths, the time/value grid, and legend rows.
// It knows nothing about archives or CDEFs — it consumes plain
// []float64 sample columns the planner has already aligned to graph
// width.
package raster

import (
	"fmt"
	"math"
	"time"

	"github.com/kylerisse/rrdrender/pkg/canvas"
	"github.com/kylerisse/rrdrender/pkg/glyph"
	"github.com/kylerisse/rrdrender/pkg/plan"
)

// Plotter draws into one graph's plot area: a Width x Height region of
// Canvas anchored at (OriginX, OriginY), mapping values in
// [GlobalMin, GlobalMax] onto rows top-to-bottom.
type Plotter struct {
	Canvas               *canvas.Canvas
	OriginX, OriginY     int
	Width, Height        int
	GlobalMin, GlobalMax float64
}

func (p *Plotter) valueToY(value float64) int {
	return p.Height - int((value-p.GlobalMin)*float64(p.Height-1)/(p.GlobalMax-p.GlobalMin)) - 1
}

// PlotMinMax strokes a vertical range band at each column where both the
// min and max track report a value. negative mirrors both tracks below
// the axis.
func (p *Plotter) PlotMinMax(minSeries, maxSeries []float64, color canvas.Color, negative bool) {
	for x := 0; x < p.Width && x < len(minSeries) && x < len(maxSeries); x++ {
		minV, maxV := minSeries[x], maxSeries[x]
		if math.IsNaN(minV) || math.IsNaN(maxV) {
			continue
		}
		if negative {
			minV, maxV = -maxV, -minV
		}
		p.Canvas.VLine(p.OriginX+x, p.OriginY+p.valueToY(minV), p.OriginY+p.valueToY(maxV), color)
	}
}

// PlotArea fills the region between stackBase (the running stacked
// height already contributed by earlier curves at each column, in value
// units) and stackBase+series, then updates stackBase in place so the
// next stacked curve starts from this one's top. A plain (non-stacked)
// area curve passes a zeroed stackBase.
func (p *Plotter) PlotArea(series []float64, stackBase []float64, color canvas.Color) {
	for x := 0; x < p.Width && x < len(series) && x < len(stackBase); x++ {
		value := series[x]
		if math.IsNaN(value) {
			continue
		}
		base := stackBase[x]
		p.Canvas.VLine(p.OriginX+x, p.OriginY+p.valueToY(base), p.OriginY+p.valueToY(base+value), color)
		stackBase[x] += value
	}
}

// PlotLine strokes an AVG polyline at the given pixel width (1, 2, or
// 3). The line breaks at every NaN gap and resumes on the next valid
// pair — no segment is ever drawn across a gap. Width 1 strokes the
// centerline only; width 2 adds a stroke one pixel above it, and width 3
// adds another one pixel below, simulating a thicker line without a true
// polygon fill.
func (p *Plotter) PlotLine(series []float64, color canvas.Color, width int, negative bool) {
	havePrev := false
	var prevX, prevY int

	for x := 0; x < p.Width && x < len(series); x++ {
		value := series[x]
		if math.IsNaN(value) {
			havePrev = false
			continue
		}
		if negative {
			value = -value
		}
		cx, cy := p.OriginX+x, p.OriginY+p.valueToY(value)

		if havePrev {
			p.strokeSegment(prevX, prevY, cx, cy, color, width)
		}
		prevX, prevY = cx, cy
		havePrev = true
	}
}

func (p *Plotter) strokeSegment(x0, y0, x1, y1 int, color canvas.Color, width int) {
	p.Canvas.Line(x0, y0, x1, y1, color)
	if width >= 2 {
		p.Canvas.Line(x0, y0-1, x1, y1-1, color)
	}
	if width >= 3 {
		p.Canvas.Line(x0, y0+1, x1, y1+1, color)
	}
}

// DrawGrid draws the value-axis horizontal grid lines plus their
// labels, and the time-axis vertical ticks/labels, using pixel_50
// half-blending for both line kinds.
func (p *Plotter) DrawGrid(stepSize float64, noScale bool, lastUpdate time.Time, intervalSeconds int64) {
	format := plan.AxisLabelFormat(p.GlobalMin, p.GlobalMax, stepSize, noScale)
	for _, tick := range plan.Ticks(p.GlobalMin, p.GlobalMax, stepSize) {
		y := p.valueToY(tick)
		label := fmt.Sprintf("%.*f%s", format.Decimals, tick*format.Scale, format.Suffix)
		glyph.Draw(p.Canvas, p.OriginX-5, p.OriginY+y+7, label, glyph.Right)
		if tick == 0 {
			continue
		}
		for x := 0; x < p.Width; x += 2 {
			p.Canvas.Pixel50(p.OriginX+x, p.OriginY+y, 0xaaaaaa)
		}
	}

	step := plan.SelectTimeStep(intervalSeconds)
	cols := plan.TimeGrid(step, lastUpdate, intervalSeconds, p.Width)
	for j, col := range cols {
		x := p.OriginX + p.Width - j
		switch {
		case col.HasLabel:
			for y := 0; y < p.Height; y++ {
				p.Canvas.Pixel50(x, p.OriginY+y, 0xaa8888)
			}
			glyph.Draw(p.Canvas, x, p.OriginY+p.Height+14, col.Label, glyph.Center)
		case col.HasBarTick:
			for y := 0; y < p.Height; y += 2 {
				p.Canvas.Pixel50(x, p.OriginY+y, 0xaaaaaa)
			}
		}
	}
}

// LegendRow is everything one legend-table row needs to render: a color
// swatch, a label, this curve's stats, its negative-mirror counterpart's
// stats (nil if none), and the row highlight from plan.RowColor.
type LegendRow struct {
	Swatch   canvas.Color
	Label    string
	Stats    plan.CurveStats
	Negative *plan.CurveStats
	RowColor uint32
}

// DrawLegendRow renders one legend row at (x, y): a 10x10 color swatch,
// the curve label, then four right-aligned Cur/Min/Avg/Max columns
// spaced columnWidth pixels apart, with the row's background tinted by
// RowColor when set.
func (p *Plotter) DrawLegendRow(x, y, columnWidth int, row LegendRow) {
	if row.RowColor != plan.RowNormal {
		p.Canvas.Rect(x, y, columnWidth*5+20, 12, canvas.Color(row.RowColor))
	}
	p.Canvas.Rect(x, y+1, 10, 10, row.Swatch)
	glyph.Draw(p.Canvas, x+14, y+9, row.Label, glyph.Left)

	cellX := x + 14 + columnWidth

	if row.Negative != nil {
		pairs := [4][2]float64{
			{row.Negative.Cur, row.Stats.Cur},
			{row.Negative.Min, row.Stats.Min},
			{row.Negative.Avg, row.Stats.Avg},
			{row.Negative.Max, row.Stats.Max},
		}
		for i, pair := range pairs {
			glyph.Draw(p.Canvas, cellX+columnWidth*i, y+9, plan.FormatPair(pair[0], pair[1]), glyph.Right)
		}
		return
	}

	values := [4]float64{row.Stats.Cur, row.Stats.Min, row.Stats.Avg, row.Stats.Max}
	ref, shared := plan.SharedScale(values[0], values[1], values[2], values[3])
	for i, v := range values {
		scaleRef := v
		if shared {
			scaleRef = ref
		}
		glyph.Draw(p.Canvas, cellX+columnWidth*i, y+9, plan.FormatNumber(v, scaleRef), glyph.Right)
	}
}
