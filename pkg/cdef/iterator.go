package cdef

import "github.com/kylerisse/rrdrender/pkg/archive"

// BuildDerivedIterator instantiates a generator-backed archive.Iterator
// whose samples are computed by evaluating script against the raw
// iterators of every curve it references, for one consolidation-function
// slot. refs maps curve name to that curve's raw iterator for this slot;
// selfName names the curve script is attached to (its own entry in refs,
// if present, is treated as the self-reference case).
//
// The derived iterator's logical length is the minimum of the referenced
// iterators' available lengths (count minus whatever cursor offset their
// own construction already applied for width clipping). Each reference is
// read from the newest end of its available window, so shorter curves are
// never asked to report samples older than their own history: referenced
// curve index k reads that curve's logical row
// Cursor(curve) + (effectiveCount(curve) - minCount) + k.
func BuildDerivedIterator(script *Script, selfName string, refs map[string]*archive.Iterator) *archive.Iterator {
	minCount := -1
	for _, tok := range script.Tokens {
		if tok.Kind != CurveRef {
			continue
		}
		it, ok := refs[tok.CurveName]
		if !ok || it == nil {
			continue
		}
		c := effectiveCount(it)
		if minCount == -1 || c < minCount {
			minCount = c
		}
	}
	if minCount < 0 {
		minCount = 0
	}

	stack := make([]float64, maxInt(script.MaxStackSize, 1))

	gen := func(k int) float64 {
		lookup := func(name string, isSelf bool) (float64, bool) {
			it, ok := refs[name]
			if !ok || it == nil {
				return 0, false
			}
			off := it.Cursor() + (effectiveCount(it) - minCount) + k
			if off < 0 || off >= it.Count() {
				return 0, false
			}
			return it.PeekIndex(off), true
		}
		return script.Eval(stack, k, selfName, lookup)
	}

	return archive.NewDerivedIterator(minCount, gen)
}

func effectiveCount(it *archive.Iterator) int {
	return it.Count() - it.Cursor()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
