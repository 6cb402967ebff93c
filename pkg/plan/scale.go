package plan

import (
	"fmt"
	"math"
)

var subSuffixes = []string{"m", "µ", "n", "p", "f", "a", "z", "y"}
var superSuffixes = []string{"k", "M", "G", "T", "P", "E", "Z", "Y"}

// StepSize picks the grid step for an axis spanning axisRange over
// graphHeight pixels: the smallest factor*10^n, factor in {1,2,5}, that
// yields at least one step per ~14 pixels of height.
func StepSize(axisRange float64, graphHeight int) float64 {
	minStep := axisRange / (float64(graphHeight) / 14.0)
	mag := math.Pow(10, math.Floor(math.Log10(minStep)))
	for _, factor := range [3]float64{1, 2, 5} {
		if mag*factor >= minStep {
			return mag * factor
		}
	}
	return mag * 10
}

// NumberFormat is a resolved engineering-notation rendering: how many
// decimal places to print, which SI-style suffix to append, and the
// scale factor to multiply the raw value by before printing.
type NumberFormat struct {
	Decimals int
	Suffix   string
	Scale    float64
}

// ScaleArgs resolves the engineering-notation format for number, bucketing
// by its magnitude into k/M/G/T/... or m/µ/n/p/... steps of 1000. When
// stepSize is nonzero, the decimal count is instead derived from the step
// size (scaled into the same units) so every label on one axis shares the
// same precision regardless of its own magnitude.
func ScaleArgs(number, stepSize float64) NumberFormat {
	if number == 0 {
		return NumberFormat{Decimals: 0, Suffix: "", Scale: 1}
	}

	var nf NumberFormat
	var rad int

	if math.Abs(number) < 1 {
		mag := int(-math.Floor(math.Log10(math.Abs(number)) + 1))
		rad = 2 - mod3(mag)
		mag /= 3
		switch {
		case mag >= len(subSuffixes):
			nf.Suffix = fmt.Sprintf("E-%d", mag*3)
		default:
			nf.Suffix = subSuffixes[mag]
		}
		nf.Scale = math.Pow(1000, float64(mag+1))
	} else {
		mag := int(math.Floor(math.Log10(math.Abs(number))))
		rad = mod3(mag)
		mag /= 3
		switch {
		case mag == 0:
			nf.Suffix = ""
			nf.Scale = 1
		case mag > len(superSuffixes):
			nf.Suffix = fmt.Sprintf("E+%d", mag*3)
			nf.Scale = math.Pow(1000, float64(-mag))
		default:
			nf.Suffix = superSuffixes[mag-1]
			nf.Scale = math.Pow(1000, float64(-mag))
		}
	}

	if stepSize != 0 {
		nf.Decimals = decimalsForStep(math.Abs(stepSize) * nf.Scale)
	} else {
		nf.Decimals = 2 - rad
	}

	return nf
}

func decimalsForStep(scaledStep float64) int {
	switch {
	case scaledStep < 0.01:
		return 3
	case scaledStep < 0.1:
		return 2
	case scaledStep < 1.0:
		return 1
	default:
		return 0
	}
}

func mod3(v int) int {
	m := v % 3
	if m < 0 {
		m += 3
	}
	return m
}

// FormatNumber renders number using the engineering-notation rules keyed
// on scaleReference's own magnitude — the legend's Cur/Min/Avg/Max cells
// are each labeled against themselves unless SharedScale says otherwise.
func FormatNumber(number, scaleReference float64) string {
	if math.IsNaN(number) {
		return "nan"
	}
	nf := ScaleArgs(scaleReference, 0)
	return fmt.Sprintf("%.*f%s", nf.Decimals, number*nf.Scale, nf.Suffix)
}

// FormatPair renders a negative/positive pair as "neg/pos", each scaled
// against its own magnitude — the legend's paired display for a curve
// with a negative-mirror counterpart.
func FormatPair(neg, pos float64) string {
	return FormatNumber(neg, neg) + "/" + FormatNumber(pos, pos)
}

// AxisLabelFormat resolves the shared number format used for every tick
// label on one axis. When noScale is set, ticks print as plain
// fixed-decimal numbers with no engineering suffix, precision chosen
// from the step size alone.
func AxisLabelFormat(globalMin, globalMax, stepSize float64, noScale bool) NumberFormat {
	if noScale {
		return NumberFormat{Decimals: decimalsForStep(math.Abs(stepSize)), Suffix: "", Scale: 1}
	}
	ref := math.Abs(globalMax)
	if math.Abs(globalMin) > ref {
		ref = math.Abs(globalMin)
	}
	return ScaleArgs(ref, stepSize)
}

// Ticks returns the grid-line values between globalMin and globalMax at
// the given step, inclusive on both ends.
func Ticks(globalMin, globalMax, step float64) []float64 {
	var out []float64
	for j := math.Ceil(globalMin / step); j*step <= globalMax; j++ {
		out = append(out, j*step)
	}
	return out
}
