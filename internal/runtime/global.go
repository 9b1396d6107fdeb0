package runtime

import (
	"encoding/binary"

	"github.com/wavmgo/wavm/internal/ir"
)

// Global is a compartment-owned global. Its *value* storage differs by
// mutability, grounded on original_source/Lib/Runtime/ObjectGC.cpp's
// mutableGlobalIndex scheme: an immutable global's value is fixed at
// creation, but a mutable global's value lives per-Context
// (compartment.initialContextMutableGlobals / context.mutableGlobals in the
// original, Compartment.initialMutableGlobals / Context.mutableGlobals
// here) so that cloning a compartment or running the same module against
// two independent contexts never lets one context's writes leak into
// another's.
type Global struct {
	Object
	typ ir.GlobalType

	slot int // valid iff typ.Mutable: base index into Context.mutableGlobals (2 slots reserved for v128)

	initial     uint64
	initialV128 [16]byte

	// definingInstance resolves a funcref value's FuncIndex to an actual
	// *Function for GC tracing, the same deliberate simplification Table
	// makes (see table.go's doc comment): a value flowing through this
	// global is assumed to carry an index in definingInstance's function
	// namespace.
	definingInstance *ModuleInstance
}

// Type returns the global's declared type.
func (g *Global) Type() ir.GlobalType { return g.typ }

// Get reads g's current value under ctx, resolving a mutable global's
// per-Context cell the same way contextGlobal does for compiled code.
func (g *Global) Get(ctx *Context) uint64 { return contextGlobal{ctx: ctx, g: g}.Get() }

// Set writes v to g's per-Context cell. Callers must only do this for
// mutable globals; writing an immutable global silently has no effect since
// contextGlobal.Get ignores the Context cell for those.
func (g *Global) Set(ctx *Context, v uint64) { contextGlobal{ctx: ctx, g: g}.Set(v) }

// contextGlobal binds a Global to the Context whose mutable-global cell it
// should read/write, satisfying compiler.Global. A fresh contextGlobal is
// built per call/per-global when an execContext is assembled for a given
// Context — see execcontext.go.
type contextGlobal struct {
	ctx *Context
	g   *Global
}

func (cg contextGlobal) Type() ir.GlobalType { return cg.g.typ }

func (cg contextGlobal) Get() uint64 {
	if !cg.g.typ.Mutable {
		return cg.g.initial
	}
	return cg.ctx.mutableGlobals[cg.g.slot]
}

func (cg contextGlobal) Set(v uint64) {
	if !cg.g.typ.Mutable {
		return
	}
	cg.ctx.mutableGlobals[cg.g.slot] = v
}

func (cg contextGlobal) GetV128() [16]byte {
	if !cg.g.typ.Mutable {
		return cg.g.initialV128
	}
	var v [16]byte
	binary.LittleEndian.PutUint64(v[0:8], cg.ctx.mutableGlobals[cg.g.slot])
	binary.LittleEndian.PutUint64(v[8:16], cg.ctx.mutableGlobals[cg.g.slot+1])
	return v
}

func (cg contextGlobal) SetV128(v [16]byte) {
	cg.ctx.mutableGlobals[cg.g.slot] = binary.LittleEndian.Uint64(v[0:8])
	cg.ctx.mutableGlobals[cg.g.slot+1] = binary.LittleEndian.Uint64(v[8:16])
}

// slotWidth returns how many mutableGlobals cells this global's type needs.
func slotWidth(t ir.ValueType) int {
	if t == ir.ValueTypeV128 {
		return 2
	}
	return 1
}

// packRef mirrors internal/compiler's unexported TableElem bit-packing
// scheme (3-bit tag: bit0 initialized, bit1 non-null, bit2
// funcref(0)/externref(1)) so a value placed into a funcref/externref
// global round-trips correctly through ref.null/ref.func/table.set, which
// all speak that same encoding on the operand stack.
func packRef(refType ir.ValueType, isNull bool, funcIdx uint32, externRef uint64) uint64 {
	if isNull {
		return 1
	}
	if refType == ir.ValueTypeExternref {
		return externRef<<3 | 0b111
	}
	return uint64(funcIdx)<<3 | 0b011
}

func unpackRef(v uint64) (isNull bool, funcIdx uint32) {
	if v&0b11 != 0b11 {
		return true, 0
	}
	if v&0b100 != 0 {
		return false, 0 // externref: no function to trace
	}
	return false, uint32(v >> 3)
}

// gcChild resolves this global's ref-typed initial value (immutable case)
// to the Function it points at, or nil. Mutable ref-typed globals are
// scanned per-context by Compartment.CollectGarbage directly, since their
// value lives in Context.mutableGlobals rather than here.
func (g *Global) gcChild() *Function {
	if !g.typ.Value.IsReference() || g.typ.Mutable || g.definingInstance == nil {
		return nil
	}
	isNull, idx := unpackRef(g.initial)
	if isNull || int(idx) >= len(g.definingInstance.Functions) {
		return nil
	}
	return g.definingInstance.Functions[idx]
}
