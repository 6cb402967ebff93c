// Package archive decodes round-robin archive (RRA) files: a fixed-endian
// binary format holding, per data source, several circular buffers of
// consolidated samples at different step widths. Files are memory-mapped
// read-only; every view handed back by an Archive or Iterator indexes
// directly into that mapping. Nothing in this package copies the values
// array.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// Byte layout below assumes the LP64 data model (unsigned long and double
// both 8 bytes, 8-byte struct alignment) of the index-producing host, per
// spec's "architecture-dependent sizes... follow the host platform" note.
const (
	headerCookieOff      = 0
	headerCookieLen      = 4
	headerVersionOff     = 4
	headerVersionLen     = 5
	headerFloatCookieOff = 16
	headerDSCountOff     = 24
	headerRRACountOff    = 32
	headerPDPStepOff     = 40
	headerSize           = 128

	dsDefNameLen  = 20
	dsDefTypeLen  = 20
	dsDefSize     = 120
	rraDefCFLen   = 20
	rraDefSize    = 120
	liveHeaderV3  = 16
	liveHeaderOld = 8
	pdpPrepareLen = 112
	cdpPrepareLen = 80

	floatCookie = 8.642135e130
)

// Missing indicates the archive file does not exist. Callers treat this as
// "skip this curve", not an error.
var Missing = fmt.Errorf("archive: file not found")

// CorruptError reports a structurally invalid archive file — a bad cookie,
// an unsupported version, a failed float-cookie check, a short file, a
// missing NUL terminator, or a length mismatch.
type CorruptError struct {
	Path   string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("archive: corrupt %s: %s", e.Path, e.Reason)
}

func corrupt(path, format string, args ...any) error {
	return &CorruptError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// DSDef is a data-source definition. Only the fields the renderer needs
// are exposed; the tagged-union parameter block is opaque scratch data.
type DSDef struct {
	Name string
	Type string
}

// RRADef is a round-robin archive definition: one consolidation function
// at one step width.
type RRADef struct {
	CFName   string
	RowCount uint64
	PDPCount uint64
}

// Archive is a parsed, memory-mapped RRA file. Call Close to release the
// mapping once rendering for the owning curve is done.
type Archive struct {
	path string
	data mmap.MMap

	DSCount    uint64
	RRACount   uint64
	PDPStep    uint64
	DSDefs     []DSDef
	RRADefs    []RRADef
	LastUp     int64
	LastUpUsec uint64
	RRAPtrs    []uint64

	valuesOff int // byte offset of values[0] within data
}

// Close releases the archive's memory mapping. Safe to call once.
func (a *Archive) Close() error {
	if a.data == nil {
		return nil
	}
	err := a.data.Unmap()
	a.data = nil
	return err
}

// Parse memory-maps path read-only and decodes its header, definitions,
// and live header. The values array itself is not copied; Iterators read
// straight out of the mapping.
func Parse(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Missing
		}
		return nil, corrupt(path, "open: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, corrupt(path, "stat: %v", err)
	}
	if info.Size() < headerSize {
		return nil, corrupt(path, "file too short for header (%d bytes)", info.Size())
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, corrupt(path, "mmap: %v", err)
	}

	a, err := decode(path, m)
	if err != nil {
		_ = m.Unmap()
		return nil, err
	}
	return a, nil
}

func decode(path string, data []byte) (*Archive, error) {
	if !bytes.Equal(data[headerCookieOff:headerCookieOff+3], []byte("RRD")) {
		return nil, corrupt(path, "bad cookie")
	}

	versionBytes := data[headerVersionOff : headerVersionOff+headerVersionLen]
	version, ok := parseVersion(versionBytes)
	if !ok || version < 1 || version > 3 {
		return nil, corrupt(path, "unsupported version %q", versionBytes)
	}

	floatCookieBits := binary.NativeEndian.Uint64(data[headerFloatCookieOff : headerFloatCookieOff+8])
	if math.Float64frombits(floatCookieBits) != floatCookie {
		return nil, corrupt(path, "float-cookie sanity check failed")
	}

	dsCount := binary.NativeEndian.Uint64(data[headerDSCountOff : headerDSCountOff+8])
	rraCount := binary.NativeEndian.Uint64(data[headerRRACountOff : headerRRACountOff+8])
	pdpStep := binary.NativeEndian.Uint64(data[headerPDPStepOff : headerPDPStepOff+8])

	off := headerSize

	dsDefs := make([]DSDef, dsCount)
	for i := range dsDefs {
		if off+dsDefSize > len(data) {
			return nil, corrupt(path, "truncated data-source definitions")
		}
		rec := data[off : off+dsDefSize]
		name, ok := nulTerminatedString(rec[0:dsDefNameLen])
		if !ok {
			return nil, corrupt(path, "data source %d: missing NUL terminator in name", i)
		}
		typ, ok := nulTerminatedString(rec[dsDefNameLen : dsDefNameLen+dsDefTypeLen])
		if !ok {
			return nil, corrupt(path, "data source %d: missing NUL terminator in type", i)
		}
		dsDefs[i] = DSDef{Name: name, Type: typ}
		off += dsDefSize
	}

	rraDefs := make([]RRADef, rraCount)
	for i := range rraDefs {
		if off+rraDefSize > len(data) {
			return nil, corrupt(path, "truncated rr-archive definitions")
		}
		rec := data[off : off+rraDefSize]
		cf, ok := nulTerminatedString(rec[0:rraDefCFLen])
		if !ok {
			return nil, corrupt(path, "rr-archive %d: missing NUL terminator in cf_name", i)
		}
		rowCount := binary.NativeEndian.Uint64(rec[24:32])
		pdpCount := binary.NativeEndian.Uint64(rec[32:40])
		rraDefs[i] = RRADef{CFName: cf, RowCount: rowCount, PDPCount: pdpCount}
		off += rraDefSize
	}

	var lastUp int64
	var lastUpUsec uint64
	if version >= 3 {
		if off+liveHeaderV3 > len(data) {
			return nil, corrupt(path, "truncated live header")
		}
		lastUp = int64(binary.NativeEndian.Uint64(data[off : off+8]))
		lastUpUsec = binary.NativeEndian.Uint64(data[off+8 : off+16])
		off += liveHeaderV3
	} else {
		if off+liveHeaderOld > len(data) {
			return nil, corrupt(path, "truncated live header")
		}
		lastUp = int64(binary.NativeEndian.Uint64(data[off : off+8]))
		off += liveHeaderOld
	}

	// pdp_prepare and cdp_prepare scratch regions are passed through
	// untouched; only their sizes matter, to keep the offset walk correct.
	off += int(dsCount) * pdpPrepareLen
	off += int(dsCount*rraCount) * cdpPrepareLen
	if off > len(data) {
		return nil, corrupt(path, "truncated scratch regions")
	}

	rraPtrs := make([]uint64, rraCount)
	for i := range rraPtrs {
		if off+8 > len(data) {
			return nil, corrupt(path, "truncated RRA pointers")
		}
		rraPtrs[i] = binary.NativeEndian.Uint64(data[off : off+8])
		off += 8
	}

	var dataSize uint64
	for _, r := range rraDefs {
		dataSize += r.RowCount * dsCount
	}

	wantLen := off + int(dataSize)*8
	if wantLen != len(data) {
		return nil, corrupt(path, "file size %d does not match expected length %d", len(data), wantLen)
	}

	return &Archive{
		path:       path,
		data:       data,
		DSCount:    dsCount,
		RRACount:   rraCount,
		PDPStep:    pdpStep,
		DSDefs:     dsDefs,
		RRADefs:    rraDefs,
		LastUp:     lastUp,
		LastUpUsec: lastUpUsec,
		RRAPtrs:    rraPtrs,
		valuesOff:  off,
	}, nil
}

func parseVersion(b []byte) (int, bool) {
	n := 0
	for i := 0; i < 4; i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func nulTerminatedString(b []byte) (string, bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", false
	}
	return string(b[:i]), true
}

// valueAt reads the double at flat index idx (counted in 8-byte doubles
// from the start of the values array) directly out of the mapping.
func (a *Archive) valueAt(idx int) float64 {
	byteOff := a.valuesOff + idx*8
	bits := binary.NativeEndian.Uint64(a.data[byteOff : byteOff+8])
	return math.Float64frombits(bits)
}
