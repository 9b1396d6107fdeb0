// Package ir is the typed intermediate representation a decoded Wasm module
// is converted to before validation and compilation: value types, interned
// type tuples and function types, table/memory/global/exception types, the
// module structure, and the operator set. Grounded on spec.md §3-4.B/4.C and
// shaped the way the stripped-down internal/wasm package's surviving
// _test.go files (module_test.go, global_test.go) imply a wazero-style
// module IR looked.
package ir

import (
	"fmt"
	"sync"
)

// ValueType is a tagged scalar kind, encoded as the signed LEB128 byte value
// the Wasm binary format uses (re-interpreted as an unsigned byte, which is
// why the numeric and reference type constants below match api.ValueType's
// hex constants bit-for-bit). None and Any never appear on the wire; they
// are validator-only stack markers for unreachable/polymorphic positions.
type ValueType byte

const (
	ValueTypeI32       ValueType = 0x7f // -1 as a signed LEB byte
	ValueTypeI64       ValueType = 0x7e // -2
	ValueTypeF32       ValueType = 0x7d // -3
	ValueTypeF64       ValueType = 0x7c // -4
	ValueTypeV128      ValueType = 0x7b // -5
	ValueTypeFuncref   ValueType = 0x70 // -16
	ValueTypeExternref ValueType = 0x6f // -17

	// ValueTypeNone is the bottom type: subtype of everything, used to fill
	// an empty operand stack in an unreachable code region.
	ValueTypeNone ValueType = 0x00
	// ValueTypeAny is the top type: every value type is its subtype, used
	// for polymorphic drop/select operands.
	ValueTypeAny ValueType = 0x01
)

// IsNumeric reports whether t is i32/i64/f32/f64/v128.
func (t ValueType) IsNumeric() bool {
	switch t {
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeV128:
		return true
	}
	return false
}

// IsReference reports whether t is funcref/externref.
func (t ValueType) IsReference() bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// IsSubtype reports whether a ≤ b under spec §3's subtyping rule:
// X ≤ X; none ≤ X for all X; X ≤ any for all X.
func IsSubtype(a, b ValueType) bool {
	return a == b || a == ValueTypeNone || b == ValueTypeAny
}

// String renders the WAST-style mnemonic for t.
func (t ValueType) String() string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeV128:
		return "v128"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	case ValueTypeNone:
		return "none"
	case ValueTypeAny:
		return "any"
	}
	return fmt.Sprintf("unknown(%#x)", byte(t))
}

// TypeTuple is an immutable, process-wide interned ordered sequence of value
// types: two tuples with equal content are the same *TypeTuple, so equality
// is pointer equality. Grounded on spec.md §3 ("Type tuple") and WAVM's
// IR::TypeTuple interning table (original_source/Include/IR/Types.h).
type TypeTuple struct {
	types []ValueType
}

// Types returns the tuple's element sequence. The caller must not mutate it.
func (tt *TypeTuple) Types() []ValueType { return tt.types }

// Len returns the number of elements.
func (tt *TypeTuple) Len() int { return len(tt.types) }

var (
	tupleInternMu sync.Mutex
	tupleIntern   = map[string]*TypeTuple{}
)

func tupleKey(types []ValueType) string {
	buf := make([]byte, len(types))
	for i, t := range types {
		buf[i] = byte(t)
	}
	return string(buf)
}

// InternTypeTuple returns the process-wide canonical *TypeTuple for types,
// interning a new one on first sight. The input slice is copied; callers may
// reuse or mutate it afterward.
func InternTypeTuple(types []ValueType) *TypeTuple {
	key := tupleKey(types)
	tupleInternMu.Lock()
	defer tupleInternMu.Unlock()
	if tt, ok := tupleIntern[key]; ok {
		return tt
	}
	cp := make([]ValueType, len(types))
	copy(cp, types)
	tt := &TypeTuple{types: cp}
	tupleIntern[key] = tt
	return tt
}

// CallingConvention distinguishes the thunk shape a function type's host
// entry point expects. Grounded on spec.md §3's five enumerated values.
type CallingConvention byte

const (
	CallingConventionWasm CallingConvention = iota
	CallingConventionIntrinsic
	CallingConventionIntrinsicWithContextSwitch
	CallingConventionC
	CallingConventionCAPICallback
)

func (cc CallingConvention) String() string {
	switch cc {
	case CallingConventionWasm:
		return "wasm"
	case CallingConventionIntrinsic:
		return "intrinsic"
	case CallingConventionIntrinsicWithContextSwitch:
		return "intrinsic_with_context_switch"
	case CallingConventionC:
		return "c"
	case CallingConventionCAPICallback:
		return "c_api_callback"
	}
	return "unknown"
}

// FunctionType is (results, params, callingConvention), interned the same
// way TypeTuple is: equal content compares address-equal.
type FunctionType struct {
	Params  *TypeTuple
	Results *TypeTuple
	CC      CallingConvention
}

var (
	fnTypeInternMu sync.Mutex
	fnTypeIntern   = map[string]*FunctionType{}
)

// InternFunctionType returns the canonical *FunctionType for the given
// shape, constructing and interning a new tuple pair if needed.
func InternFunctionType(params, results []ValueType, cc CallingConvention) *FunctionType {
	p := InternTypeTuple(params)
	r := InternTypeTuple(results)
	key := fmt.Sprintf("%p|%p|%d", p, r, cc)
	fnTypeInternMu.Lock()
	defer fnTypeInternMu.Unlock()
	if ft, ok := fnTypeIntern[key]; ok {
		return ft
	}
	ft := &FunctionType{Params: p, Results: r, CC: cc}
	fnTypeIntern[key] = ft
	return ft
}

func (ft *FunctionType) String() string {
	return fmt.Sprintf("(%v) -> (%v) [%s]", ft.Params.types, ft.Results.types, ft.CC)
}

// SizeConstraints is (min, max), with Max == SizeConstraintsUnbounded
// meaning unbounded.
type SizeConstraints struct {
	Min uint64
	Max uint64
}

// SizeConstraintsUnbounded is the sentinel Max value meaning "no maximum".
const SizeConstraintsUnbounded = ^uint64(0)

// IsSubset reports a ⊆ b: a.Min ≥ b.Min ∧ a.Max ≤ b.Max.
func (a SizeConstraints) IsSubset(b SizeConstraints) bool {
	return a.Min >= b.Min && a.Max <= b.Max
}

// HasMax reports whether Max is bounded.
func (a SizeConstraints) HasMax() bool { return a.Max != SizeConstraintsUnbounded }

// TableType is (elementType, shared, indexType, size).
type TableType struct {
	Element   ValueType // ValueTypeFuncref | ValueTypeExternref
	Shared    bool
	IndexType ValueType // ValueTypeI32 | ValueTypeI64
	Size      SizeConstraints
}

// MemoryType is (shared, indexType, size).
type MemoryType struct {
	Shared    bool
	IndexType ValueType
	Size      SizeConstraints
}

// GlobalType is (valueType, mutable). Subtyping for immutable globals
// follows value-type subtyping; mutable globals are invariant (see
// IsGlobalTypeSubtype).
type GlobalType struct {
	Value   ValueType
	Mutable bool
}

// IsGlobalTypeSubtype implements spec.md §3's global subtyping rule.
func IsGlobalTypeSubtype(a, b GlobalType) bool {
	if a.Mutable != b.Mutable {
		return false
	}
	if a.Mutable {
		return a.Value == b.Value
	}
	return IsSubtype(a.Value, b.Value)
}

// ExceptionType is (params).
type ExceptionType struct {
	Params *TypeTuple
}
