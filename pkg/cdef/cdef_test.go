package cdef

import (
	"math"
	"testing"

	"github.com/kylerisse/rrdrender/pkg/archive"
)

func knownCurves(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(n string) bool { return set[n] }
}

func TestCompileMaxStackSize(t *testing.T) {
	script, err := Compile("curveA,curveB,+", knownCurves("curveA", "curveB"))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if script.MaxStackSize != 2 {
		t.Fatalf("MaxStackSize = %d, want 2", script.MaxStackSize)
	}
	if len(script.Tokens) != 3 {
		t.Fatalf("len(Tokens) = %d, want 3", len(script.Tokens))
	}
}

func TestCompileUnderflowIsError(t *testing.T) {
	if _, err := Compile("curveA,+", knownCurves("curveA")); err == nil {
		t.Fatal("expected compile error for stack underflow")
	}
}

func TestCompileUnknownToken(t *testing.T) {
	if _, err := Compile("bogus,+", knownCurves()); err == nil {
		t.Fatal("expected compile error for unknown token")
	}
}

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want float64
	}{
		{"3,4,+", 7},
		{"10,4,-", 6}, // correct subtraction, NOT the source's add-instead-of-subtract bug
		{"3,4,*", 12},
		{"10,4,/", 2.5},
		{"10,3,%", 1},
		{"1,UN", 0},
		{"UNKN,UN", 1},
		{"3,4,LE", 1},
		{"4,3,LE", 0},
		{"3,4,GE", 0},
		{"1,2,3,IF", 2},
		{"0,2,3,IF", 3},
	}
	for _, c := range cases {
		script, err := Compile(c.expr, knownCurves())
		if err != nil {
			t.Fatalf("Compile(%q): %v", c.expr, err)
		}
		stack := make([]float64, script.MaxStackSize)
		got := script.Eval(stack, 0, "", nil)
		if got != c.want {
			t.Errorf("Eval(%q) = %v, want %v", c.expr, got, c.want)
		}
	}
}

func TestEvalTimeReturnsNaN(t *testing.T) {
	script, err := Compile("TIME", knownCurves())
	if err != nil {
		t.Fatal(err)
	}
	stack := make([]float64, script.MaxStackSize)
	if got := script.Eval(stack, 0, "", nil); !math.IsNaN(got) {
		t.Errorf("Eval(TIME) = %v, want NaN", got)
	}
}

func TestEvalCurveRefAndDivByNonFinite(t *testing.T) {
	script, err := Compile("curveA,INF,/", knownCurves("curveA"))
	if err != nil {
		t.Fatal(err)
	}
	stack := make([]float64, script.MaxStackSize)
	lookup := func(name string, isSelf bool) (float64, bool) {
		if name == "curveA" {
			return 5, true
		}
		return 0, false
	}
	got := script.Eval(stack, 0, "", lookup)
	if !math.IsNaN(got) {
		t.Errorf("Eval with INF divisor = %v, want NaN", got)
	}
}

func buildIterator(t *testing.T, values []float64) *archive.Iterator {
	t.Helper()
	return archive.NewDerivedIterator(len(values), func(k int) float64 { return values[k] })
}

// TestDerivedIteratorAlignsToNewestEnd exercises scenario 4: curveA has 400
// samples, curveB has 300; the derived iterator for "curveA,curveB,+"
// reports count=300, and at index k reads curveA's row k+(400-300) against
// curveB's row k (older A samples dropped to align lengths).
func TestDerivedIteratorAlignsToNewestEnd(t *testing.T) {
	aValues := make([]float64, 400)
	for i := range aValues {
		aValues[i] = float64(i) // row i has value i
	}
	bValues := make([]float64, 300)
	for i := range bValues {
		bValues[i] = float64(1000 + i)
	}

	itA := buildIterator(t, aValues)
	itB := buildIterator(t, bValues)

	script, err := Compile("curveA,curveB,+", knownCurves("curveA", "curveB"))
	if err != nil {
		t.Fatal(err)
	}

	derived := BuildDerivedIterator(script, "", map[string]*archive.Iterator{
		"curveA": itA,
		"curveB": itB,
	})

	if derived.Count() != 300 {
		t.Fatalf("Count() = %d, want 300", derived.Count())
	}

	for k := 0; k < 300; k++ {
		want := aValues[k+100] + bValues[k]
		got := derived.PeekIndex(k)
		if got != want {
			t.Fatalf("PeekIndex(%d) = %v, want %v", k, got, want)
		}
	}
}

func TestSelfReferenceUsesProvidedLookup(t *testing.T) {
	script, err := Compile("self,2,*", knownCurves("self"))
	if err != nil {
		t.Fatal(err)
	}
	raw := buildIterator(t, []float64{1, 2, 3})
	derived := BuildDerivedIterator(script, "self", map[string]*archive.Iterator{
		"self": raw,
	})
	if derived.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", derived.Count())
	}
	if got := derived.PeekIndex(1); got != 4 {
		t.Fatalf("PeekIndex(1) = %v, want 4", got)
	}
}
