package validate

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/ir"
)

// InvalidError reports spec.md §7's "decodes fine but violates typing,
// index-bounds, or feature rules" category — ValidationException.
type InvalidError struct{ Msg string }

func (e *InvalidError) Error() string { return "invalid wasm module: " + e.Msg }

func invalid(format string, args ...interface{}) error {
	return &InvalidError{Msg: fmt.Sprintf(format, args...)}
}

// Module runs spec.md §4.E's module-level checks, then validates every
// defined function's code stream.
func Module(m *ir.Module) error {
	if err := checkImportsAndDefs(m); err != nil {
		return err
	}
	if err := checkExports(m); err != nil {
		return err
	}
	if err := checkStart(m); err != nil {
		return err
	}
	if err := checkElementSegments(m); err != nil {
		return err
	}
	if err := checkDataSegments(m); err != nil {
		return err
	}
	declared := declaredFunctions(m)
	for i := range m.FunctionDefs {
		if err := validateFunction(m, uint32(len(m.FunctionImports)+i), declared); err != nil {
			return err
		}
	}
	return nil
}

func checkImportsAndDefs(m *ir.Module) error {
	if !m.Features.MultipleTables && len(m.TableImports)+len(m.TableDefs) > 1 {
		return invalid("multiple tables requires the multipleTables feature")
	}
	if !m.Features.MultipleMemories && len(m.MemoryImports)+len(m.MemoryDefs) > 1 {
		return invalid("multiple memories requires the multipleMemories feature")
	}
	for _, gi := range m.GlobalImports {
		if gi.Type.Mutable && !m.Features.ImportExportMutableGlobals {
			return invalid("mutable global import %q.%q requires importExportMutableGlobals", gi.Module, gi.Name)
		}
	}
	for _, fd := range m.FunctionDefs {
		if int(fd.TypeIndex) >= len(m.Types) {
			return invalid("function type index %d out of range", fd.TypeIndex)
		}
	}
	for i, gd := range m.GlobalDefs {
		if err := checkGlobalInit(m, gd); err != nil {
			return invalid("global %d initializer: %v", i, err)
		}
	}
	return nil
}

// checkGlobalInit enforces spec.md §4.E: "a global initializer may only
// reference imported, immutable globals."
func checkGlobalInit(m *ir.Module, gd ir.GlobalDef) error {
	init := gd.Init
	switch init.Kind {
	case ir.InitExprGlobalGet:
		if int(init.GlobalIdx) >= len(m.GlobalImports) {
			return invalid("global.get in initializer must reference an imported global")
		}
		if m.GlobalImports[init.GlobalIdx].Type.Mutable {
			return invalid("global.get in initializer must reference an immutable global")
		}
		if !ir.IsSubtype(m.GlobalImports[init.GlobalIdx].Type.Value, gd.Type.Value) {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprRefFunc:
		if int(init.FuncIdx) >= m.FunctionCount() {
			return invalid("ref.func initializer: function index out of range")
		}
	case ir.InitExprI32Const:
		if gd.Type.Value != ir.ValueTypeI32 {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprI64Const:
		if gd.Type.Value != ir.ValueTypeI64 {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprF32Const:
		if gd.Type.Value != ir.ValueTypeF32 {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprF64Const:
		if gd.Type.Value != ir.ValueTypeF64 {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprV128Const:
		if gd.Type.Value != ir.ValueTypeV128 {
			return invalid("initializer type mismatch")
		}
	case ir.InitExprRefNull:
		if !ir.IsSubtype(ir.ValueTypeNone, gd.Type.Value) {
			return invalid("initializer type mismatch")
		}
	}
	return nil
}

func checkExports(m *ir.Module) error {
	seen := make(map[string]bool, len(m.Exports))
	for _, ex := range m.Exports {
		if seen[ex.Name] {
			return invalid("duplicate export name %q", ex.Name)
		}
		seen[ex.Name] = true
		switch ex.Kind {
		case ir.ExportKindFunction:
			if int(ex.Index) >= m.FunctionCount() {
				return invalid("export %q: function index out of range", ex.Name)
			}
		case ir.ExportKindTable:
			if int(ex.Index) >= m.TableCount() {
				return invalid("export %q: table index out of range", ex.Name)
			}
		case ir.ExportKindMemory:
			if int(ex.Index) >= m.MemoryCount() {
				return invalid("export %q: memory index out of range", ex.Name)
			}
		case ir.ExportKindGlobal:
			if int(ex.Index) >= m.GlobalCount() {
				return invalid("export %q: global index out of range", ex.Name)
			}
			if m.GlobalTypeOf(ex.Index).Mutable && !m.Features.ImportExportMutableGlobals {
				return invalid("export %q: mutable global export requires importExportMutableGlobals", ex.Name)
			}
		case ir.ExportKindExceptionType:
			if int(ex.Index) >= m.ExceptionTypeCount() {
				return invalid("export %q: exception type index out of range", ex.Name)
			}
		}
	}
	return nil
}

func checkStart(m *ir.Module) error {
	if !m.HasStartFunction {
		return nil
	}
	if int(m.StartFunctionIndex) >= m.FunctionCount() {
		return invalid("start function index out of range")
	}
	ft := m.FunctionType(m.StartFunctionIndex)
	if ft.Params.Len() != 0 || ft.Results.Len() != 0 {
		return invalid("start function must have signature () -> ()")
	}
	return nil
}

func checkElementSegments(m *ir.Module) error {
	for i, seg := range m.ElementSegments {
		if seg.Kind == ir.ElementSegmentActive {
			if int(seg.TableIndex) >= m.TableCount() {
				return invalid("element segment %d: table index out of range", i)
			}
			tt := m.TableTypeOf(seg.TableIndex)
			if !ir.IsSubtype(seg.ElementType, tt.Element) {
				return invalid("element segment %d: element type not a subtype of table element type", i)
			}
		}
		for _, idx := range seg.FuncIndices {
			if int(idx) >= m.FunctionCount() {
				return invalid("element segment %d: function index out of range", i)
			}
		}
		for _, e := range seg.Exprs {
			if !e.IsNull && int(e.FuncIdx) >= m.FunctionCount() {
				return invalid("element segment %d: function index out of range", i)
			}
		}
	}
	return nil
}

func checkDataSegments(m *ir.Module) error {
	for i, seg := range m.DataSegments {
		if seg.Active && int(seg.MemoryIndex) >= m.MemoryCount() {
			return invalid("data segment %d: memory index out of range", i)
		}
	}
	return nil
}

// declaredFunctions computes spec.md §4.E's "declared" set: a function
// index is declared if it's an import, an export target, appears in any
// element segment, or is referenced by a global initializer's ref.func —
// the only contexts in which ref.func is legal inside code.
func declaredFunctions(m *ir.Module) map[uint32]bool {
	declared := make(map[uint32]bool)
	for i := range m.FunctionImports {
		declared[uint32(i)] = true
	}
	for _, ex := range m.Exports {
		if ex.Kind == ir.ExportKindFunction {
			declared[ex.Index] = true
		}
	}
	for _, seg := range m.ElementSegments {
		for _, idx := range seg.FuncIndices {
			declared[idx] = true
		}
		for _, e := range seg.Exprs {
			if !e.IsNull {
				declared[e.FuncIdx] = true
			}
		}
	}
	for _, gd := range m.GlobalDefs {
		if gd.Init.Kind == ir.InitExprRefFunc {
			declared[gd.Init.FuncIdx] = true
		}
	}
	return declared
}
