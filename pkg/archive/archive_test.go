package archive

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// fixedString writes s into a window of n bytes, NUL-padded.
func fixedString(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, v)
	return b
}

func f64(v float64) []byte {
	return u64(math.Float64bits(v))
}

type fixture struct {
	dsCount, rraCount    uint64
	pdpStep              uint64
	rraDefs              []RRADef
	rraPtrs              []uint64
	lastUp               int64
	values               []float64 // flat, matching computed data_size
	version              string
}

func buildArchive(t *testing.T, fx fixture) []byte {
	t.Helper()
	var buf []byte
	app := func(b []byte) { buf = append(buf, b...) }

	app([]byte("RRD\x00"))
	app(fixedString(fx.version, headerVersionLen))
	buf = append(buf, make([]byte, headerFloatCookieOff-len(buf))...)
	app(f64(floatCookie))
	app(u64(fx.dsCount))
	app(u64(fx.rraCount))
	app(u64(fx.pdpStep))
	buf = append(buf, make([]byte, 80)...) // header par[10]
	if len(buf) != headerSize {
		t.Fatalf("header builder produced %d bytes, want %d", len(buf), headerSize)
	}

	for i := uint64(0); i < fx.dsCount; i++ {
		app(fixedString("ds0", dsDefNameLen))
		app(fixedString("GAUGE", dsDefTypeLen))
		buf = append(buf, make([]byte, 80)...)
	}

	for _, def := range fx.rraDefs {
		app(fixedString(def.CFName, rraDefCFLen))
		buf = append(buf, make([]byte, 4)...) // alignment pad
		app(u64(def.RowCount))
		app(u64(def.PDPCount))
		buf = append(buf, make([]byte, 80)...)
	}

	version, _ := parseVersion([]byte(fx.version))
	if version >= 3 {
		app(u64(uint64(fx.lastUp)))
		app(u64(0))
	} else {
		app(u64(uint64(fx.lastUp)))
	}

	for i := uint64(0); i < fx.dsCount; i++ {
		buf = append(buf, make([]byte, pdpPrepareLen)...)
	}
	for i := uint64(0); i < fx.dsCount*fx.rraCount; i++ {
		buf = append(buf, make([]byte, cdpPrepareLen)...)
	}

	for _, p := range fx.rraPtrs {
		app(u64(p))
	}

	for _, v := range fx.values {
		app(f64(v))
	}

	return buf
}

func writeArchiveFile(t *testing.T, fx fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rrd")
	data := buildArchive(t, fx)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func singleRRAFixture() fixture {
	return fixture{
		dsCount:  1,
		rraCount: 1,
		pdpStep:  300,
		version:  "0003",
		rraDefs:  []RRADef{{CFName: "AVERAGE", RowCount: 5, PDPCount: 1}},
		rraPtrs:  []uint64{4}, // first = (4+1)%5 = 0, so physical order == logical order
		lastUp:   1700000000,
		values:   []float64{10, 20, 30, 40, 50},
	}
}

func TestParseAndIterate(t *testing.T) {
	path := writeArchiveFile(t, singleRRAFixture())

	a, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer a.Close()

	if a.DSCount != 1 || a.RRACount != 1 {
		t.Fatalf("unexpected counts: ds=%d rra=%d", a.DSCount, a.RRACount)
	}
	if a.LastUp != 1700000000 {
		t.Fatalf("LastUp = %d", a.LastUp)
	}

	it, err := a.Iter("AVERAGE", 300, 100)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	if it.Count() != 5 {
		t.Fatalf("Count() = %d, want 5", it.Count())
	}
	want := []float64{10, 20, 30, 40, 50}
	for k, w := range want {
		if got := it.PeekIndex(k); got != w {
			t.Errorf("PeekIndex(%d) = %v, want %v", k, got, w)
		}
	}
	if got := it.Last(); got != 50 {
		t.Errorf("Last() = %v, want 50", got)
	}
}

func TestIterMaxWidthTruncation(t *testing.T) {
	path := writeArchiveFile(t, singleRRAFixture())
	a, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer a.Close()

	it, err := a.Iter("AVERAGE", 300, 3)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	if it.Cursor() != 2 {
		t.Fatalf("Cursor() = %d, want 2 (count=5, maxWidth=3)", it.Cursor())
	}
	if got := it.Peek(); got != 30 {
		t.Errorf("Peek() = %v, want 30", got)
	}
}

func TestIterNoMatchingRRA(t *testing.T) {
	path := writeArchiveFile(t, singleRRAFixture())
	a, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer a.Close()

	if _, err := a.Iter("MAX", 300, 100); err == nil {
		t.Fatal("expected error for unmatched cf")
	}
	if _, err := a.Iter("AVERAGE", 1800, 100); err == nil {
		t.Fatal("expected error for unmatched interval")
	}
}

func TestParseMissing(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "does-not-exist.rrd"))
	if err != Missing {
		t.Fatalf("err = %v, want Missing", err)
	}
}

func TestParseBadCookie(t *testing.T) {
	fx := singleRRAFixture()
	data := buildArchive(t, fx)
	data[0] = 'X'
	path := filepath.Join(t.TempDir(), "bad.rrd")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Parse(path)
	if err == nil {
		t.Fatal("expected corrupt error")
	}
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CorruptError", err)
	}
}

func TestParseBadFloatCookie(t *testing.T) {
	fx := singleRRAFixture()
	data := buildArchive(t, fx)
	binary.NativeEndian.PutUint64(data[headerFloatCookieOff:headerFloatCookieOff+8], math.Float64bits(1.0))
	path := filepath.Join(t.TempDir(), "badfloat.rrd")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for bad float cookie")
	}
}

func TestParseLengthMismatch(t *testing.T) {
	fx := singleRRAFixture()
	data := buildArchive(t, fx)
	data = append(data, 0, 0, 0, 0) // trailing garbage bytes
	path := filepath.Join(t.TempDir(), "trailing.rrd")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(path); err == nil {
		t.Fatal("expected length-mismatch error")
	}
}

func TestV1LiveHeader(t *testing.T) {
	fx := singleRRAFixture()
	fx.version = "0001"
	path := writeArchiveFile(t, fx)
	a, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer a.Close()
	if a.LastUp != fx.lastUp {
		t.Fatalf("LastUp = %d, want %d", a.LastUp, fx.lastUp)
	}
	if a.LastUpUsec != 0 {
		t.Fatalf("LastUpUsec = %d, want 0 for v1", a.LastUpUsec)
	}
}
