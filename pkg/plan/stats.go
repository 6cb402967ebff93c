// Package plan computes everything a graph needs before a single pixel
// is drawn: per-curve aggregate statistics, the global axis range and
// tick step, engineering-notation number formatting, the time-axis grid
// label schedule, and legend-row layout.
package plan

import "math"

// DefaultPalette is the curve color rotation assigned to curves with no
// explicit color, cycled through in curve order.
var DefaultPalette = []uint32{
	0x21fb21, 0x0022ff, 0xff0000, 0x00aaaa, 0xff00ff, 0xffa500, 0xcc0000,
	0x0000cc, 0x0080c0, 0x8080c0, 0xff0080, 0x800080, 0x688e23, 0x408080,
	0x808000, 0x000000,
}

// DrawStyle identifies how a curve is rendered, which selects both how
// it is stacked during rasterization and which extrema it contributes to
// the global axis range.
type DrawStyle int

const (
	Line DrawStyle = iota
	Area
	Stack
	AreaStack
)

// IsAreaLike reports whether d stacks as a filled region (Area, Stack,
// AreaStack) rather than being drawn as a plain line.
func (d DrawStyle) IsAreaLike() bool {
	return d == Area || d == Stack || d == AreaStack
}

// Sample is one graph-width column's AVERAGE/MIN/MAX readings for a
// curve. A NaN field means that consolidation function produced no value
// at this column (gap in the underlying archive).
type Sample struct {
	Avg, Min, Max float64
}

// CurveStats accumulates the aggregate statistics the legend table and
// axis-range computation both consume: cur (last AVG sample), avg (mean
// of non-NaN AVG samples), min/max (from the MIN/MAX tracks), and
// min_avg/max_avg (extrema of the AVG track).
type CurveStats struct {
	Cur, Min, Max, Avg, MinAvg, MaxAvg float64

	avgSum   float64
	avgCount int
	minSeen  bool
	maxSeen  bool
}

// NewCurveStats returns a CurveStats ready to accumulate, with every
// field starting at NaN so an all-gap curve reports NaN rather than 0.
func NewCurveStats() *CurveStats {
	return &CurveStats{
		Cur: math.NaN(), Min: math.NaN(), Max: math.NaN(),
		Avg: math.NaN(), MinAvg: math.NaN(), MaxAvg: math.NaN(),
	}
}

// Accumulate folds one column into the running stats. Callers drive this
// once per graph-width index in index order.
func (s *CurveStats) Accumulate(sample Sample) {
	if !math.IsNaN(sample.Avg) {
		s.Cur = sample.Avg
		s.avgSum += sample.Avg
		s.avgCount++
		if math.IsNaN(s.MinAvg) || sample.Avg < s.MinAvg {
			s.MinAvg = sample.Avg
		}
		if math.IsNaN(s.MaxAvg) || sample.Avg > s.MaxAvg {
			s.MaxAvg = sample.Avg
		}
	}
	if !math.IsNaN(sample.Min) && (!s.minSeen || sample.Min < s.Min) {
		s.Min = sample.Min
		s.minSeen = true
	}
	if !math.IsNaN(sample.Max) && (!s.maxSeen || sample.Max > s.Max) {
		s.Max = sample.Max
		s.maxSeen = true
	}
}

// Finish derives Avg from the accumulated sum once every column has been
// folded in. Call this once, after the last Accumulate.
func (s *CurveStats) Finish() {
	if s.avgCount > 0 {
		s.Avg = s.avgSum / float64(s.avgCount)
	}
}

// AxisMode selects which extrema feed the global axis range: the full
// per-sample min/max of a single line-style curve, or the coarser
// avg-derived extrema of everything else (reduces axis noise when
// multiple curves or any area fill is visible).
type AxisMode int

const (
	MinMaxMode AxisMode = iota
	AvgMode
)

// RangeInput is one visible curve's contribution to the global axis
// range.
type RangeInput struct {
	Stats     CurveStats
	Style     DrawStyle
	Negative  bool    // negate contributed extrema (negative-mirror curve)
	StackPeak float64 // running stacked-column maximum (area/stack styles only)
}

// GlobalRange unions every visible curve's contribution into one axis
// range and reports which mode was used. A lone line-style curve uses
// min_max mode; upperLimit, if not NaN, widens the resulting high bound.
// When the resolved range is degenerate (every sample the same value,
// including the single-curve case of scenario 1), the axis is forced to
// [0, 1] rather than dividing by a zero range downstream.
func GlobalRange(inputs []RangeInput, upperLimit float64) (lo, hi float64, mode AxisMode) {
	mode = MinMaxMode
	if len(inputs) != 1 {
		mode = AvgMode
	}
	for _, in := range inputs {
		if in.Style.IsAreaLike() {
			mode = AvgMode
		}
	}

	lo, hi = math.NaN(), math.NaN()
	grow := func(v float64) {
		if math.IsNaN(v) {
			return
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}

	for _, in := range inputs {
		curMin, curMax := in.Stats.Min, in.Stats.Max
		if mode == AvgMode {
			curMin, curMax = in.Stats.MinAvg, in.Stats.MaxAvg
		}
		if in.Negative {
			curMin, curMax = -curMax, -curMin
		}
		grow(curMin)
		grow(curMax)
		if in.Style.IsAreaLike() {
			peak := in.StackPeak
			if in.Negative {
				peak = -peak
			}
			grow(peak)
		}
	}

	if !math.IsNaN(upperLimit) {
		grow(upperLimit)
	}

	if math.IsNaN(lo) || lo == hi {
		return 0, 1, mode
	}
	return lo, hi, mode
}
