package archive

import "fmt"

// Iterator is an immutable view over one RRA column's samples, with a
// mutable cursor. Logical row 0 is the oldest retained sample; row
// Count()-1 is the most recent. Producers are either archive-backed
// (direct mmap indirection) or derived (a generator function computes
// samples, e.g. from a CDEF script) — see BuildDerivedIterator in pkg/cdef.
type Iterator struct {
	count  int
	cursor int

	// archive-backed
	archive  *Archive
	base     int // flat double-index of row 0, ds 0 within values[]
	rowCount int
	ptr      uint64
	dsCount  uint64

	// derived (nil archive means this path is used)
	gen func(logical int) float64
}

// NewDerivedIterator builds a generator-backed Iterator of the given
// logical length. gen is called with a logical row index in [0, count).
func NewDerivedIterator(count int, gen func(logical int) float64) *Iterator {
	return &Iterator{count: count, gen: gen}
}

// Iter returns an Iterator over the RRA whose pdp_count equals
// intervalSeconds/pdpStep and whose consolidation function matches cfName,
// for data source 0. If count exceeds maxWidth, the cursor starts at
// count-maxWidth so only the most recent maxWidth samples will be emitted.
func (a *Archive) Iter(cfName string, intervalSeconds int, maxWidth int) (*Iterator, error) {
	if a.PDPStep == 0 || intervalSeconds%int(a.PDPStep) != 0 {
		return nil, fmt.Errorf("archive: interval %d is not a multiple of pdp_step %d", intervalSeconds, a.PDPStep)
	}
	wantPDPCount := uint64(intervalSeconds) / a.PDPStep

	var base uint64
	for r, def := range a.RRADefs {
		if def.PDPCount == wantPDPCount && def.CFName == cfName {
			count := int(def.RowCount)
			cursor := 0
			if maxWidth > 0 && count > maxWidth {
				cursor = count - maxWidth
			}
			return &Iterator{
				count:    count,
				cursor:   cursor,
				archive:  a,
				base:     int(base),
				rowCount: count,
				ptr:      a.RRAPtrs[r],
				dsCount:  a.DSCount,
			}, nil
		}
		base += def.RowCount * a.DSCount
	}
	return nil, fmt.Errorf("archive: no RRA matches cf=%s interval=%d", cfName, intervalSeconds)
}

// Count returns the number of logical rows available.
func (it *Iterator) Count() int { return it.count }

// Cursor returns the iterator's current logical position.
func (it *Iterator) Cursor() int { return it.cursor }

// Peek returns the value at the current cursor position.
func (it *Iterator) Peek() float64 {
	return it.PeekIndex(it.cursor)
}

// PeekIndex returns the value at an explicit logical row k, without
// moving the cursor.
func (it *Iterator) PeekIndex(k int) float64 {
	if it.gen != nil {
		return it.gen(k)
	}
	physical := (k + int(it.ptr) + 1) % it.rowCount
	idx := it.base + physical*int(it.dsCount)
	return it.archive.valueAt(idx)
}

// Advance moves the cursor forward one row. It returns false once the
// cursor has reached Count() (no more rows to read).
func (it *Iterator) Advance() bool {
	if it.cursor >= it.count {
		return false
	}
	it.cursor++
	return it.cursor < it.count
}

// Last returns the most recent sample (logical row Count()-1).
func (it *Iterator) Last() float64 {
	return it.PeekIndex(it.count - 1)
}
