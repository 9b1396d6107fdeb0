package compiler

import "github.com/wavmgo/wavm/internal/ir"

// Memory is the accessor seam the interpreter uses to reach a memory
// object's committed bytes without importing internal/runtime (which is
// what implements it, and which imports this package to drive execution —
// see the package doc for why the dependency only runs one way).
type Memory interface {
	// Bytes returns the memory's currently committed bytes, length a
	// multiple of the 64KiB page size (spec.md §4.G).
	Bytes() []byte
	// Grow attempts to add delta pages, returning the previous page count
	// and false if doing so would exceed the memory's declared max.
	Grow(delta uint32) (previous uint32, ok bool)
	// Is64 reports whether the memory uses a 64-bit index type.
	Is64() bool
}

// TableElem is one table slot: either uninitialized, null, a function
// reference, or an external reference. Distinguishing uninitialized from
// null is required to raise uninitializedTableElement rather than treating
// an untouched slot as a valid null (spec.md §4.G's predefined exception
// list).
type TableElem struct {
	Initialized bool
	IsNull      bool
	FuncIndex   uint32 // meaningful when !IsNull and the table holds funcref
	ExternRef   uint64 // meaningful when !IsNull and the table holds externref
}

// NullElem is a well-formed (initialized, null) element.
func NullElem() TableElem { return TableElem{Initialized: true, IsNull: true} }

// Table is the accessor seam for table objects.
type Table interface {
	Len() uint64
	ElementType() ir.ValueType
	Get(i uint64) (TableElem, bool) // ok=false: i out of range
	Set(i uint64, e TableElem) bool
	Grow(delta uint64, fill TableElem) (previous uint64, ok bool)
	// Is64 reports whether the table uses a 64-bit index type.
	Is64() bool
}

// Global is the accessor seam for global objects. V128 globals use
// GetV128/SetV128; every other value type round-trips through the 64-bit
// bit-pattern Get/Set (matching api.ValueType's encode/decode convention).
type Global interface {
	Type() ir.GlobalType
	Get() uint64
	Set(uint64)
	GetV128() [16]byte
	SetV128([16]byte)
}

// ExecContext supplies everything a function body needs beyond its own
// locals: the module's tables/memories/globals/types in index order, and
// callbacks back into the owning instance for calls, segment access, and
// exception dispatch — all instance-shaped concerns this package does not
// model directly (spec.md §4.G owns that shape, in internal/runtime).
type ExecContext struct {
	Memories []Memory
	Tables   []Table
	Globals  []Global
	Types    []*ir.FunctionType

	// FuncType returns the signature of the function at the given
	// module-wide index, used to size the argument slots `call` pops
	// before handing them to CallFunc.
	FuncType func(funcIdx uint32) *ir.FunctionType
	// CallFunc invokes the function at the given module-wide index
	// (imports first, then defs) and returns its results.
	CallFunc func(funcIdx uint32, args []uint64) ([]uint64, error)
	// CallIndirectFunc invokes the function currently held by
	// tables[tableIdx][elemIdx], trapping via the returned error's Trap
	// type if the element is out of range, uninitialized, null, or its
	// signature doesn't match typeIdx.
	CallIndirectFunc func(tableIdx, typeIdx uint32, elemIdx uint64, args []uint64) ([]uint64, error)

	// DataSegment returns segment idx's bytes (nil/empty if dropped or
	// passive-but-unused), used by memory.init.
	DataSegment func(idx uint32) []byte
	DropData    func(idx uint32)

	// ElemSegment returns segment idx's contents as table elements, used
	// by table.init.
	ElemSegment func(idx uint32) []TableElem
	DropElem    func(idx uint32)

	// Throw raises a user exception (the `throw` instruction); Rethrow
	// re-raises the active caught exception (the `rethrow` instruction,
	// only valid inside a catch/catch_all region — validator-enforced).
	// Both return a non-nil error (always *Trap or an exception carrier
	// from internal/runtime) that Execute propagates unchanged.
	Throw   func(exceptionTypeIdx uint32, args []uint64) error
	Rethrow func(depth uint32) error
	// CatchMatch reports whether the exception err (as returned by a
	// nested CallFunc/CallIndirectFunc/Throw/Rethrow) matches the
	// exception type at exceptionTypeIdx, and if so its unpacked argument
	// values. ok=false lets a `catch` frame's instructions be skipped so
	// the exception keeps propagating.
	CatchMatch func(err error, exceptionTypeIdx uint32) (args []uint64, ok bool)
	// ExceptionParamSlots reports how many operand-stack slots the
	// exception type at idx's parameters occupy, used by `throw` to pop
	// the right number of operands before handing them to Throw.
	ExceptionParamSlots func(idx uint32) int

	// Depth is the current call-stack depth, incremented by the caller
	// (internal/runtime) before Execute; nothing in this package reads it,
	// and stack-overflow detection itself happens in runtime, which knows
	// the configured ceiling.
	Depth int
}
