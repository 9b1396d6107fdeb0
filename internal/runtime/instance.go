package runtime

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/rhmap"
)

// hashExportName feeds rhmap.New; FNV-1a is a fine general-purpose string
// hash and the stdlib already ships it, so there's no need to hand-roll one.
func hashExportName(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

// Export resolves a module instance's exported name to its kind and index
// within that kind's slice on the instance (ModuleInstance.Functions[Index]
// etc.), rather than storing a resolved object directly — this way cloning
// an instance (compartment.Clone) never has to special-case the export map.
type Export struct {
	Kind  ir.ExportKind
	Index uint32
}

// ModuleInstance is spec.md §4.G's "Instance": one linked, initialized
// module living in a Compartment. Functions/Tables/Memories/Globals/
// ExceptionTypes are indexed in the combined import+definition namespace,
// matching ir.Module's index spaces.
type ModuleInstance struct {
	Object

	DebugName string
	ir        *ir.Module
	compiled  *compiler.CompiledModule

	Functions      []*Function
	Tables         []*Table
	Memories       []*Memory
	Globals        []*Global
	ExceptionTypes []*ExceptionType

	exports *rhmap.Map[string, Export]

	droppedData []bool
	droppedElem []bool
}

// Lookup resolves an export by name.
func (inst *ModuleInstance) Lookup(name string) (Export, bool) {
	return inst.exports.Get(name)
}

// IR returns the decoded module this instance was instantiated from, for
// callers that need its declared export names or name-section metadata
// (e.g. an embedder building a FunctionDefinition view).
func (inst *ModuleInstance) IR() *ir.Module { return inst.ir }

// LinkResult is the resolved import set LinkModule produces, in the same
// per-kind order as ir.Module's *Imports slices.
type LinkResult struct {
	Functions      []*Function
	Tables         []*Table
	Memories       []*Memory
	Globals        []*Global
	ExceptionTypes []*ExceptionType
}

// MissingImport names one import LinkModule could not resolve.
type MissingImport struct {
	Kind         ir.ExportKind
	Module, Name string
}

// LinkException is the error LinkModule returns when one or more imports
// fail to resolve — spec.md §7: "link failures accumulate every missing
// import into a single report rather than stopping at the first."
type LinkException struct {
	Missing []MissingImport
}

func (e *LinkException) Error() string {
	var b strings.Builder
	b.WriteString("wavm: link failure:")
	for _, m := range e.Missing {
		fmt.Fprintf(&b, "\n\tunresolved %s import %q.%q", exportKindName(m.Kind), m.Module, m.Name)
	}
	return b.String()
}

func exportKindName(k ir.ExportKind) string {
	switch k {
	case ir.ExportKindFunction:
		return "function"
	case ir.ExportKindTable:
		return "table"
	case ir.ExportKindMemory:
		return "memory"
	case ir.ExportKindGlobal:
		return "global"
	case ir.ExportKindExceptionType:
		return "exception type"
	}
	return "object"
}

// Resolver maps an (moduleName, exportName, expectedType) import request to
// a concrete runtime object, spec.md §4.G's linking abstraction.
type Resolver interface {
	ResolveFunction(moduleName, exportName string, typ *ir.FunctionType) (*Function, bool)
	ResolveTable(moduleName, exportName string, typ ir.TableType) (*Table, bool)
	ResolveMemory(moduleName, exportName string, typ ir.MemoryType) (*Memory, bool)
	ResolveGlobal(moduleName, exportName string, typ ir.GlobalType) (*Global, bool)
	ResolveExceptionType(moduleName, exportName string, typ ir.ExceptionType) (*ExceptionType, bool)
}

// LinkModule resolves every import m declares against resolver, returning a
// LinkException listing every unresolved import if any fail (spec.md §7).
func LinkModule(m *ir.Module, resolver Resolver) (*LinkResult, error) {
	var lr LinkResult
	var missing []MissingImport

	for _, imp := range m.FunctionImports {
		if fn, ok := resolver.ResolveFunction(imp.Module, imp.Name, imp.Type); ok {
			lr.Functions = append(lr.Functions, fn)
		} else {
			missing = append(missing, MissingImport{ir.ExportKindFunction, imp.Module, imp.Name})
		}
	}
	for _, imp := range m.TableImports {
		if t, ok := resolver.ResolveTable(imp.Module, imp.Name, imp.Type); ok {
			lr.Tables = append(lr.Tables, t)
		} else {
			missing = append(missing, MissingImport{ir.ExportKindTable, imp.Module, imp.Name})
		}
	}
	for _, imp := range m.MemoryImports {
		if mem, ok := resolver.ResolveMemory(imp.Module, imp.Name, imp.Type); ok {
			lr.Memories = append(lr.Memories, mem)
		} else {
			missing = append(missing, MissingImport{ir.ExportKindMemory, imp.Module, imp.Name})
		}
	}
	for _, imp := range m.GlobalImports {
		if g, ok := resolver.ResolveGlobal(imp.Module, imp.Name, imp.Type); ok {
			lr.Globals = append(lr.Globals, g)
		} else {
			missing = append(missing, MissingImport{ir.ExportKindGlobal, imp.Module, imp.Name})
		}
	}
	for _, imp := range m.ExceptionTypeImports {
		if et, ok := resolver.ResolveExceptionType(imp.Module, imp.Name, imp.Type); ok {
			lr.ExceptionTypes = append(lr.ExceptionTypes, et)
		} else {
			missing = append(missing, MissingImport{ir.ExportKindExceptionType, imp.Module, imp.Name})
		}
	}

	if len(missing) > 0 {
		return nil, &LinkException{Missing: missing}
	}
	return &lr, nil
}

// evalInitializer evaluates a constant-expression Initializer against an
// instance under construction. global.get is valid in a const-expr only
// against an already-linked *imported* global (core Wasm restricts this to
// immutable imports), so reading its frozen initial value is always
// correct regardless of the target global's own mutability.
func evalInitializer(init ir.Initializer, inst *ModuleInstance) (uint64, [16]byte) {
	switch init.Kind {
	case ir.InitExprI32Const:
		return uint64(uint32(init.I32)), [16]byte{}
	case ir.InitExprI64Const:
		return uint64(init.I64), [16]byte{}
	case ir.InitExprF32Const:
		return uint64(math.Float32bits(init.F32)), [16]byte{}
	case ir.InitExprF64Const:
		return math.Float64bits(init.F64), [16]byte{}
	case ir.InitExprV128Const:
		return 0, init.V128
	case ir.InitExprGlobalGet:
		g := inst.Globals[init.GlobalIdx]
		return g.initial, g.initialV128
	case ir.InitExprRefNull:
		return packRef(init.RefType, true, 0, 0), [16]byte{}
	case ir.InitExprRefFunc:
		return packRef(ir.ValueTypeFuncref, false, init.FuncIdx, 0), [16]byte{}
	}
	return 0, [16]byte{}
}

func functionDebugName(m *ir.Module, idx uint32, fallback string) string {
	if m.Names != nil {
		if n, ok := m.Names.Functions[idx]; ok && n != "" {
			return n
		}
	}
	return fallback
}

// InstantiateModule links, allocates, and initializes a module within c,
// running its active element/data segments and start function against ctx
// (spec.md §4.G's instantiation sequence). imports must come from a prior
// successful LinkModule call against the same m.
func InstantiateModule(c *Compartment, ctx *Context, compiled *compiler.CompiledModule, imports *LinkResult, debugName string) (inst *ModuleInstance, err error) {
	m := compiled.IR
	inst = &ModuleInstance{
		DebugName:   debugName,
		ir:          m,
		compiled:    compiled,
		exports:     rhmap.New[string, Export](hashExportName),
		droppedData: make([]bool, len(m.DataSegments)),
		droppedElem: make([]bool, len(m.ElementSegments)),
	}
	inst.Kind = ObjectKindModuleInstance
	inst.compartment = c

	inst.Functions = append(inst.Functions, imports.Functions...)
	inst.Tables = append(inst.Tables, imports.Tables...)
	inst.Memories = append(inst.Memories, imports.Memories...)
	inst.Globals = append(inst.Globals, imports.Globals...)
	inst.ExceptionTypes = append(inst.ExceptionTypes, imports.ExceptionTypes...)

	for _, typ := range m.MemoryDefs {
		mem := c.CreateMemory(typ)
		if mem == nil {
			return nil, fmt.Errorf("wavm: instantiate %s: out of memory allocating memory", debugName)
		}
		inst.Memories = append(inst.Memories, mem)
	}
	for _, typ := range m.TableDefs {
		inst.Tables = append(inst.Tables, c.CreateTable(typ, inst))
	}
	for _, gd := range m.GlobalDefs {
		v, v128 := evalInitializer(gd.Init, inst)
		inst.Globals = append(inst.Globals, c.CreateGlobal(gd.Type, v, v128, inst))
	}
	for i, et := range m.ExceptionTypeDefs {
		name := fmt.Sprintf("exception%d", len(imports.ExceptionTypes)+i)
		if m.Names != nil {
			if n, ok := m.Names.ExceptionTypes[uint32(len(imports.ExceptionTypes)+i)]; ok && n != "" {
				name = n
			}
		}
		inst.ExceptionTypes = append(inst.ExceptionTypes, c.CreateExceptionType(name, et.Params))
	}
	for i, cf := range compiled.Functions {
		idx := uint32(len(imports.Functions) + i)
		name := functionDebugName(m, idx, fmt.Sprintf("func%d", idx))
		inst.Functions = append(inst.Functions, newCompiledFunction(inst, idx, cf.Type, cf, name))
	}

	for _, e := range m.Exports {
		inst.exports.Set(e.Name, Export{Kind: e.Kind, Index: e.Index})
	}

	c.registerInstance(inst)

	for i := range m.ElementSegments {
		es := &m.ElementSegments[i]
		if es.Kind != ir.ElementSegmentActive {
			continue
		}
		offLo, _ := evalInitializer(es.Offset, inst)
		t := inst.Tables[es.TableIndex]
		n := segmentElemCount(es)
		for j := 0; j < n; j++ {
			elem := elemAt(es, inst, j)
			if !t.Set(offLo+uint64(j), elem) {
				return nil, &RuntimeException{Type: c.predefinedException("tableIndexOutOfBounds")}
			}
		}
		inst.droppedElem[i] = true
	}
	for i := range m.DataSegments {
		ds := &m.DataSegments[i]
		if !ds.Active {
			continue
		}
		offLo, _ := evalInitializer(ds.Offset, inst)
		mem := inst.Memories[ds.MemoryIndex]
		dst, ok := mem.GetValidatedOffsetRange(offLo, uint64(len(ds.Bytes)))
		if !ok {
			return nil, &RuntimeException{Type: c.predefinedException("memoryAddressOutOfBounds")}
		}
		copy(dst, ds.Bytes)
		inst.droppedData[i] = true
	}

	if m.HasStartFunction {
		if _, err := InvokeFunctionUnchecked(ctx, inst.Functions[m.StartFunctionIndex], nil); err != nil {
			return nil, err
		}
	}

	return inst, nil
}

func segmentElemCount(es *ir.ElementSegment) int {
	if es.Exprs != nil {
		return len(es.Exprs)
	}
	return len(es.FuncIndices)
}

func elemAt(es *ir.ElementSegment, inst *ModuleInstance, i int) compiler.TableElem {
	if es.Exprs != nil {
		ee := es.Exprs[i]
		if ee.IsNull {
			return compiler.NullElem()
		}
		return compiler.TableElem{Initialized: true, FuncIndex: ee.FuncIdx}
	}
	return compiler.TableElem{Initialized: true, FuncIndex: es.FuncIndices[i]}
}

// DataSegmentBytes returns data segment idx's bytes, nil if dropped.
func (inst *ModuleInstance) DataSegmentBytes(idx uint32) []byte {
	if inst.droppedData[idx] {
		return nil
	}
	return inst.ir.DataSegments[idx].Bytes
}

// DropDataSegment marks data segment idx dropped (the `data.drop`
// instruction).
func (inst *ModuleInstance) DropDataSegment(idx uint32) { inst.droppedData[idx] = true }

// ElemSegmentElems returns element segment idx's contents, nil if dropped.
func (inst *ModuleInstance) ElemSegmentElems(idx uint32) []compiler.TableElem {
	if inst.droppedElem[idx] {
		return nil
	}
	es := &inst.ir.ElementSegments[idx]
	n := segmentElemCount(es)
	out := make([]compiler.TableElem, n)
	for i := range out {
		out[i] = elemAt(es, inst, i)
	}
	return out
}

// DropElemSegment marks element segment idx dropped (the `elem.drop`
// instruction).
func (inst *ModuleInstance) DropElemSegment(idx uint32) { inst.droppedElem[idx] = true }
