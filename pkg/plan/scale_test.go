package plan

import (
	"math"
	"testing"
)

func TestStepSizePicksFactorOneTwoFive(t *testing.T) {
	step := StepSize(140, 14) // minStep = 140/(14/14) = 140 -> mag=100, factor 2 -> 200
	if step != 200 {
		t.Fatalf("StepSize = %v, want 200", step)
	}
}

func TestScaleArgsBigNumberGetsSuffix(t *testing.T) {
	nf := ScaleArgs(5_000_000, 0)
	if nf.Suffix != "M" {
		t.Fatalf("Suffix = %q, want M", nf.Suffix)
	}
	if nf.Scale != 1e-6 {
		t.Fatalf("Scale = %v, want 1e-6", nf.Scale)
	}
}

func TestScaleArgsSmallNumberGetsSuffix(t *testing.T) {
	nf := ScaleArgs(0.0005, 0)
	if nf.Suffix != "m" && nf.Suffix != "µ" {
		t.Fatalf("Suffix = %q, want m or µ for 0.0005", nf.Suffix)
	}
}

func TestScaleArgsZeroIsPlain(t *testing.T) {
	nf := ScaleArgs(0, 0)
	if nf.Suffix != "" || nf.Scale != 1 {
		t.Fatalf("ScaleArgs(0) = %+v, want plain", nf)
	}
}

func TestFormatNumberNaN(t *testing.T) {
	if got := FormatNumber(math.NaN(), 1); got != "nan" {
		t.Fatalf("FormatNumber(NaN) = %q, want nan", got)
	}
}

func TestFormatPairJoinsWithSlash(t *testing.T) {
	got := FormatPair(-10, 20)
	if got == "" {
		t.Fatal("FormatPair returned empty string")
	}
	slash := false
	for _, c := range got {
		if c == '/' {
			slash = true
		}
	}
	if !slash {
		t.Fatalf("FormatPair(%v) = %q, want a /-separated pair", got, got)
	}
}

func TestTicksInclusiveOfBounds(t *testing.T) {
	ticks := Ticks(0, 100, 25)
	want := []float64{0, 25, 50, 75, 100}
	if len(ticks) != len(want) {
		t.Fatalf("Ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("Ticks[%d] = %v, want %v", i, ticks[i], want[i])
		}
	}
}

func TestAxisLabelFormatNoScaleIsPlainDecimal(t *testing.T) {
	nf := AxisLabelFormat(0, 1000, 0.005, true)
	if nf.Suffix != "" {
		t.Fatalf("noScale format Suffix = %q, want empty", nf.Suffix)
	}
	if nf.Decimals != 3 {
		t.Fatalf("noScale Decimals = %d, want 3 for step 0.005", nf.Decimals)
	}
}
