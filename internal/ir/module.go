package ir

import "github.com/wavmgo/wavm/internal/bitpack"

// InitExprKind tags the variant of an Initializer expression (spec.md §3).
type InitExprKind byte

const (
	InitExprI32Const InitExprKind = iota
	InitExprI64Const
	InitExprF32Const
	InitExprF64Const
	InitExprV128Const
	InitExprGlobalGet
	InitExprRefNull
	InitExprRefFunc
)

// Initializer is a tagged union over the eight constant-expression forms a
// global, element-segment offset, or data-segment offset may use.
type Initializer struct {
	Kind       InitExprKind
	I32        int32
	I64        int64
	F32        float32
	F64        float64
	V128       [16]byte
	GlobalIdx  uint32
	RefType    ValueType // for RefNull
	FuncIdx    uint32    // for RefFunc
}

// ElementSegmentKind distinguishes an element segment's instantiation mode.
type ElementSegmentKind byte

const (
	ElementSegmentActive ElementSegmentKind = iota
	ElementSegmentPassive
	ElementSegmentDeclared
)

// ElemExpr is one entry of an element segment encoded as expressions
// (ref.null or ref.func), as opposed to the bare function-index encoding.
type ElemExpr struct {
	IsNull  bool
	FuncIdx uint32 // meaningful iff !IsNull
}

// ElementSegment models spec.md §3's "Element segment": active segments
// carry a table index and base-offset initializer; contents are either a
// list of ElemExpr or a list of bare function indices, tagged by which
// slice is non-nil.
type ElementSegment struct {
	Kind         ElementSegmentKind
	TableIndex   uint32 // meaningful iff Kind == Active
	Offset       Initializer // meaningful iff Kind == Active
	ElementType  ValueType   // funcref | externref
	Exprs        []ElemExpr  // non-nil when encoded as expressions
	FuncIndices  []uint32    // non-nil when encoded as bare function indices
}

// DataSegment models spec.md §3's "Data segment".
type DataSegment struct {
	Active      bool
	MemoryIndex uint32      // meaningful iff Active
	Offset      Initializer // meaningful iff Active
	Bytes       []byte
}

// CustomSection is a named blob anchored to the known-section boundary it
// followed in the binary (spec.md §4.D).
type CustomSection struct {
	Name          string
	Data          []byte
	AfterSectionID byte // known section id this custom section trailed
}

// FunctionDef is a module-defined function: its type, its non-parameter
// local declarations, and its still-undecoded operator stream (decoded
// lazily by validate/compile, matching spec.md §3's "raw compiled
// instruction bytes").
type FunctionDef struct {
	TypeIndex  uint32
	LocalTypes []ValueType
	Body       []byte // raw operator-stream bytes, decoded by internal/binary
	BodyOffset uint64 // byte offset of Body within the original module, for call-stack symbolication
}

// FunctionImport carries module-name + export-name + type, per spec.md §3.
type FunctionImport struct {
	Module string
	Name   string
	Type   *FunctionType
}

// TableImport, MemoryImport, GlobalImport, ExceptionTypeImport mirror
// FunctionImport for the other four importable object kinds.
type TableImport struct {
	Module, Name string
	Type         TableType
}

type MemoryImport struct {
	Module, Name string
	Type         MemoryType
}

type GlobalImport struct {
	Module, Name string
	Type         GlobalType
}

type ExceptionTypeImport struct {
	Module, Name string
	Type         ExceptionType
}

// ExportKind matches the external kind byte used in the export/import
// sections.
type ExportKind byte

const (
	ExportKindFunction ExportKind = iota
	ExportKindTable
	ExportKindMemory
	ExportKindGlobal
	ExportKindExceptionType
)

// Export is (name, kind, index-within-that-kind's-namespace).
type Export struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// Module is the fully decoded, not-yet-validated intermediate
// representation of a Wasm binary: spec.md §3's "Module (IR)".
type Module struct {
	Features FeatureSpec

	Types []*FunctionType

	FunctionImports []FunctionImport
	TableImports    []TableImport
	MemoryImports   []MemoryImport
	GlobalImports   []GlobalImport
	ExceptionTypeImports []ExceptionTypeImport

	FunctionDefs      []FunctionDef
	TableDefs         []TableType
	MemoryDefs        []MemoryType
	GlobalDefs        []GlobalDef
	ExceptionTypeDefs []ExceptionType

	Exports []Export

	HasStartFunction bool
	StartFunctionIndex uint32

	ElementSegments []ElementSegment
	DataSegments    []DataSegment

	CustomSections []CustomSection

	Names *NameSection // nil if the module carried no well-formed "name" custom section

	// FunctionBodyOffsets holds each FunctionDef's BodyOffset in a single
	// delta-compressed array (offsets are monotonically increasing within
	// the code section). It is filled alongside each FunctionDef's own
	// BodyOffset field; no code in this tree reads it back.
	FunctionBodyOffsets bitpack.OffsetArray
}

// NameSection mirrors the debug-info "name" custom section's eleven
// subsections, ids 0-10 (spec.md §4.D; subsections after Local require
// ExtendedNameSection). Each map is keyed by the combined-namespace index
// the name applies to; Locals and Labels are keyed first by function
// index.
type NameSection struct {
	Module         string
	Functions      map[uint32]string
	Locals         map[uint32]map[uint32]string
	Labels         map[uint32]map[uint32]string
	Types          map[uint32]string
	Tables         map[uint32]string
	Memories       map[uint32]string
	Globals        map[uint32]string
	ElementSegments map[uint32]string
	DataSegments   map[uint32]string
	ExceptionTypes map[uint32]string
}

// GlobalDef is a module-defined (non-imported) global: its type plus its
// constant initializer.
type GlobalDef struct {
	Type GlobalType
	Init Initializer
}

// FunctionCount returns the total number of functions in the combined
// import+definition index space.
func (m *Module) FunctionCount() int { return len(m.FunctionImports) + len(m.FunctionDefs) }

// TableCount, MemoryCount, GlobalCount, ExceptionTypeCount mirror
// FunctionCount for the other four object kinds.
func (m *Module) TableCount() int { return len(m.TableImports) + len(m.TableDefs) }
func (m *Module) MemoryCount() int { return len(m.MemoryImports) + len(m.MemoryDefs) }
func (m *Module) GlobalCount() int { return len(m.GlobalImports) + len(m.GlobalDefs) }
func (m *Module) ExceptionTypeCount() int {
	return len(m.ExceptionTypeImports) + len(m.ExceptionTypeDefs)
}

// FunctionType resolves a function index (imports first, then defs) to its
// interned *FunctionType.
func (m *Module) FunctionType(idx uint32) *FunctionType {
	if int(idx) < len(m.FunctionImports) {
		return m.FunctionImports[idx].Type
	}
	def := m.FunctionDefs[int(idx)-len(m.FunctionImports)]
	return m.Types[def.TypeIndex]
}

// TableTypeOf, MemoryTypeOf, GlobalTypeOf resolve an index in the combined
// import+def namespace to its type.
func (m *Module) TableTypeOf(idx uint32) TableType {
	if int(idx) < len(m.TableImports) {
		return m.TableImports[idx].Type
	}
	return m.TableDefs[int(idx)-len(m.TableImports)]
}

func (m *Module) MemoryTypeOf(idx uint32) MemoryType {
	if int(idx) < len(m.MemoryImports) {
		return m.MemoryImports[idx].Type
	}
	return m.MemoryDefs[int(idx)-len(m.MemoryImports)]
}

func (m *Module) GlobalTypeOf(idx uint32) GlobalType {
	if int(idx) < len(m.GlobalImports) {
		return m.GlobalImports[idx].Type
	}
	return m.GlobalDefs[int(idx)-len(m.GlobalImports)].Type
}

// ExceptionTypeOf resolves an index in the combined import+def namespace to
// its exception type.
func (m *Module) ExceptionTypeOf(idx uint32) ExceptionType {
	if int(idx) < len(m.ExceptionTypeImports) {
		return m.ExceptionTypeImports[idx].Type
	}
	return m.ExceptionTypeDefs[int(idx)-len(m.ExceptionTypeImports)]
}
