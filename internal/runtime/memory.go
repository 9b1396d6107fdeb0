package runtime

import "github.com/wavmgo/wavm/internal/ir"

// Memory is a compartment-owned linear memory, sized in 64 KiB pages
// (spec.md §4.G). It implements compiler.Memory directly: the reference
// interpreter reads/writes Bytes() in place, so Grow must replace the slice
// rather than append past its capacity silently.
type Memory struct {
	Object
	typ   ir.MemoryType
	bytes []byte
}

// newMemory allocates a Memory committed to typ.Size.Min pages. Returns nil
// if the initial commit would overflow (spec.md §4.G: "these may fail
// (return null) on allocation failure").
func newMemory(c *Compartment, typ ir.MemoryType) *Memory {
	committed, ok := pagesToBytesChecked(typ.Size.Min)
	if !ok {
		return nil
	}
	m := &Memory{typ: typ, bytes: make([]byte, committed)}
	m.Kind = ObjectKindMemory
	m.compartment = c
	return m
}

// Bytes returns the memory's currently committed bytes.
func (m *Memory) Bytes() []byte { return m.bytes }

// Is64 reports whether the memory uses a 64-bit index type.
func (m *Memory) Is64() bool { return m.typ.IndexType == ir.ValueTypeI64 }

// Shared reports whether the memory was declared shared (spec.md §5: shared
// memories must have a bounded max and permit atomic instructions).
func (m *Memory) Shared() bool { return m.typ.Shared }

// PageCount returns the current committed page count.
func (m *Memory) PageCount() uint32 { return uint32(len(m.bytes) / pageSize) }

// Grow adds delta pages, returning the previous page count and false if
// doing so would exceed the declared max or overflow the committed byte
// count (spec.md §4.G: "grow_memory ... return[s] the previous size or -1
// on failure").
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	prev := m.PageCount()
	newPages := uint64(prev) + uint64(delta)
	if m.typ.Size.HasMax() && newPages > m.typ.Size.Max {
		return 0, false
	}
	newBytes, ok := pagesToBytesChecked(newPages)
	if !ok {
		return 0, false
	}
	grown := make([]byte, newBytes)
	copy(grown, m.bytes)
	m.bytes = grown
	return prev, true
}

// Shrink reduces the memory to newPages, returning the previous page count
// and false if newPages exceeds the current size (spec.md §4.G names
// shrink_memory alongside grow_memory; Wasm itself has no shrink
// instruction, so this is host/embedder-only surface).
func (m *Memory) Shrink(newPages uint32) (uint32, bool) {
	prev := m.PageCount()
	if newPages > prev {
		return 0, false
	}
	newBytes, _ := pagesToBytesChecked(uint64(newPages))
	m.bytes = m.bytes[:newBytes]
	return prev, true
}

// GetValidatedOffsetRange returns mem.Bytes()[offset:offset+length] and
// true only if that range lies entirely within committed pages (spec.md
// §4.G's getValidatedMemoryOffsetRange); getReservedMemoryOffsetRange's
// weaker "reserved virtual range" promise has no Go analogue since this
// implementation has no separate reservation step, so only the validated
// variant is provided.
func (m *Memory) GetValidatedOffsetRange(offset, length uint64) ([]byte, bool) {
	end := offset + length
	if end < offset || end > uint64(len(m.bytes)) {
		return nil, false
	}
	return m.bytes[offset:end], true
}
