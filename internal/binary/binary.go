// Package binary implements the two-direction Wasm module codec: magic and
// version framing, the thirteen section kinds with their ordering rule,
// LEB128-backed value encodings, and the operator stream codec. Grounded on
// spec.md §4.D/§6 and shaped the way the stripped internal/wasm/binary
// package's surviving _test.go files implied a section-by-section decoder
// looked (magic/version check first, then a section-id switch).
package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/leb128"
)

var magic = [4]byte{0x00, 'a', 's', 'm'}

const version uint32 = 1

// Section ids, in the monotonically-increasing order spec.md §6 requires
// (except SectionCustom, id 0, which may appear anywhere).
const (
	SectionCustom     = 0
	SectionType       = 1
	SectionImport     = 2
	SectionFunction   = 3
	SectionTable      = 4
	SectionMemory     = 5
	SectionGlobal     = 6
	SectionExport     = 7
	SectionStart      = 8
	SectionElement    = 9
	SectionCode       = 10
	SectionData       = 11
	SectionDataCount  = 12
	SectionException  = 0x7F // WAVM extension
)

// sectionOrder lists the known sections in required order; SectionException
// is WAVM-specific and, like the rest, must still appear in increasing id
// order relative to its neighbors (it sorts after DataCount numerically).
var sectionOrder = []byte{
	SectionType, SectionImport, SectionFunction, SectionTable, SectionMemory,
	SectionGlobal, SectionExport, SectionStart, SectionElement, SectionDataCount,
	SectionCode, SectionData, SectionException,
}

func sectionRank(id byte) int {
	for i, s := range sectionOrder {
		if s == id {
			return i
		}
	}
	return -1
}

// MalformedError reports a binary the decoder cannot parse at all — spec.md
// §7's FatalSerializationException. No further processing is possible once
// this is raised.
type MalformedError struct{ Msg string }

func (e *MalformedError) Error() string { return "malformed wasm module: " + e.Msg }

func malformed(format string, args ...interface{}) error {
	return &MalformedError{Msg: fmt.Sprintf(format, args...)}
}

// reader tracks a decode cursor over the module bytes, exposing the
// byte-oriented helpers every section decoder needs.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, malformed("unexpected end of stream")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) remaining() []byte { return r.buf[r.pos:] }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, malformed("unexpected end of stream reading %d bytes", n)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readUint32() (uint32, error) {
	v, n, err := leb128.LoadUint32(r.remaining())
	if err != nil {
		return 0, malformed("%v", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readUint64() (uint64, error) {
	v, n, err := leb128.LoadUint64(r.remaining())
	if err != nil {
		return 0, malformed("%v", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readInt32() (int32, error) {
	v, n, err := leb128.LoadInt32(r.remaining())
	if err != nil {
		return 0, malformed("%v", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readInt64() (int64, error) {
	v, n, err := leb128.LoadInt64(r.remaining())
	if err != nil {
		return 0, malformed("%v", err)
	}
	r.pos += int(n)
	return v, nil
}

func (r *reader) readName() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) readFloat32() (float32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) readFloat64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Decode parses a complete Wasm binary module into its IR, per spec.md §6's
// external-interface description. The validator is invoked separately by
// the caller (see internal/validate); this keeps binary's only job "does
// this parse", matching spec.md §7's malformed/invalid error split.
func Decode(data []byte, features ir.FeatureSpec) (*ir.Module, error) {
	r := &reader{buf: data}
	hdr, err := r.take(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return nil, malformed("bad magic")
	}
	if binary.LittleEndian.Uint32(hdr[4:]) != version {
		return nil, malformed("unsupported version")
	}

	m := &ir.Module{Features: features}
	lastRank := -1
	for r.pos < len(r.buf) {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		body, err := r.take(int(size))
		if err != nil {
			return nil, err
		}
		if id != SectionCustom {
			rank := sectionRank(id)
			if rank < 0 {
				return nil, malformed("unknown section id %d", id)
			}
			if rank <= lastRank {
				return nil, malformed("section %d out of order", id)
			}
			lastRank = rank
		}
		sr := &reader{buf: body}
		if err := decodeSection(m, id, sr, lastRank); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeSection(m *ir.Module, id byte, r *reader, lastRank int) error {
	var afterID byte = 0xFF
	if lastRank >= 0 {
		afterID = sectionOrder[lastRank]
	}
	switch id {
	case SectionCustom:
		name, err := r.readName()
		if err != nil {
			return err
		}
		m.CustomSections = append(m.CustomSections, ir.CustomSection{
			Name: name, Data: append([]byte(nil), r.remaining()...), AfterSectionID: afterID,
		})
		if name == "name" {
			// A malformed name section leaves Names nil rather than failing
			// the decode; the raw section above is kept either way.
			if ns, err := DecodeNameSection(m.CustomSections[len(m.CustomSections)-1].Data); err == nil {
				m.Names = ns
			}
		}
		return nil
	case SectionType:
		return decodeTypeSection(m, r)
	case SectionImport:
		return decodeImportSection(m, r)
	case SectionFunction:
		return decodeFunctionSection(m, r)
	case SectionTable:
		return decodeTableSection(m, r)
	case SectionMemory:
		return decodeMemorySection(m, r)
	case SectionGlobal:
		return decodeGlobalSection(m, r)
	case SectionExport:
		return decodeExportSection(m, r)
	case SectionStart:
		idx, err := r.readUint32()
		if err != nil {
			return err
		}
		m.HasStartFunction = true
		m.StartFunctionIndex = idx
		return nil
	case SectionElement:
		return decodeElementSection(m, r)
	case SectionDataCount:
		_, err := r.readUint32() // count is advisory; len(DataSegments) is authoritative post-decode
		return err
	case SectionCode:
		return decodeCodeSection(m, r)
	case SectionData:
		return decodeDataSection(m, r)
	case SectionException:
		return decodeExceptionSection(m, r)
	default:
		return malformed("unhandled section id %d", id)
	}
}
