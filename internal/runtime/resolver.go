package runtime

import (
	"sync"

	"github.com/wavmgo/wavm/internal/ir"
)

// ModuleExportResolver resolves every import against a single module
// instance's exports, ignoring the import's module-name component — the
// common case of linking one module directly against another's output
// (spec.md §4.G's "standard resolvers"). Export type mismatches fail
// resolution rather than panicking, surfacing as an unresolved import in
// LinkModule's accumulated LinkException.
type ModuleExportResolver struct {
	Instance *ModuleInstance
}

func (r *ModuleExportResolver) ResolveFunction(_, exportName string, typ *ir.FunctionType) (*Function, bool) {
	e, ok := r.Instance.Lookup(exportName)
	if !ok || e.Kind != ir.ExportKindFunction {
		return nil, false
	}
	fn := r.Instance.Functions[e.Index]
	if fn.typ != typ {
		return nil, false
	}
	return fn, true
}

func (r *ModuleExportResolver) ResolveTable(_, exportName string, typ ir.TableType) (*Table, bool) {
	e, ok := r.Instance.Lookup(exportName)
	if !ok || e.Kind != ir.ExportKindTable {
		return nil, false
	}
	t := r.Instance.Tables[e.Index]
	if !t.typ.Size.IsSubset(typ.Size) || t.typ.Element != typ.Element {
		return nil, false
	}
	return t, true
}

func (r *ModuleExportResolver) ResolveMemory(_, exportName string, typ ir.MemoryType) (*Memory, bool) {
	e, ok := r.Instance.Lookup(exportName)
	if !ok || e.Kind != ir.ExportKindMemory {
		return nil, false
	}
	m := r.Instance.Memories[e.Index]
	if !m.typ.Size.IsSubset(typ.Size) {
		return nil, false
	}
	return m, true
}

func (r *ModuleExportResolver) ResolveGlobal(_, exportName string, typ ir.GlobalType) (*Global, bool) {
	e, ok := r.Instance.Lookup(exportName)
	if !ok || e.Kind != ir.ExportKindGlobal {
		return nil, false
	}
	g := r.Instance.Globals[e.Index]
	if g.typ != typ {
		return nil, false
	}
	return g, true
}

func (r *ModuleExportResolver) ResolveExceptionType(_, exportName string, typ ir.ExceptionType) (*ExceptionType, bool) {
	e, ok := r.Instance.Lookup(exportName)
	if !ok || e.Kind != ir.ExportKindExceptionType {
		return nil, false
	}
	et := r.Instance.ExceptionTypes[e.Index]
	if et.params != typ.Params {
		return nil, false
	}
	return et, true
}

// IntrinsicResolver is a process-global registry of host-provided objects,
// keyed only by export name (spec.md §4.G: intrinsics live outside any
// particular module's namespace). Safe for concurrent registration and
// resolution.
type IntrinsicResolver struct {
	mu             sync.RWMutex
	functions      map[string]*Function
	tables         map[string]*Table
	memories       map[string]*Memory
	globals        map[string]*Global
	exceptionTypes map[string]*ExceptionType
}

// NewIntrinsicResolver creates an empty intrinsic registry.
func NewIntrinsicResolver() *IntrinsicResolver {
	return &IntrinsicResolver{
		functions:      make(map[string]*Function),
		tables:         make(map[string]*Table),
		memories:       make(map[string]*Memory),
		globals:        make(map[string]*Global),
		exceptionTypes: make(map[string]*ExceptionType),
	}
}

// RegisterFunction installs a host function under name, usually produced by
// newHostFunction against an instance-less synthetic ModuleInstance
// (callers that need DebugName/Index plumbing can build one of their own;
// intrinsics otherwise need no owning module).
func (r *IntrinsicResolver) RegisterFunction(name string, fn *Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[name] = fn
}

func (r *IntrinsicResolver) RegisterTable(name string, t *Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[name] = t
}

func (r *IntrinsicResolver) RegisterMemory(name string, m *Memory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memories[name] = m
}

func (r *IntrinsicResolver) RegisterGlobal(name string, g *Global) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals[name] = g
}

func (r *IntrinsicResolver) RegisterExceptionType(name string, et *ExceptionType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptionTypes[name] = et
}

func (r *IntrinsicResolver) ResolveFunction(_, exportName string, typ *ir.FunctionType) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[exportName]
	if !ok || fn.typ != typ {
		return nil, false
	}
	return fn, true
}

func (r *IntrinsicResolver) ResolveTable(_, exportName string, typ ir.TableType) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[exportName]
	if !ok || !t.typ.Size.IsSubset(typ.Size) || t.typ.Element != typ.Element {
		return nil, false
	}
	return t, true
}

func (r *IntrinsicResolver) ResolveMemory(_, exportName string, typ ir.MemoryType) (*Memory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memories[exportName]
	if !ok || !m.typ.Size.IsSubset(typ.Size) {
		return nil, false
	}
	return m, true
}

func (r *IntrinsicResolver) ResolveGlobal(_, exportName string, typ ir.GlobalType) (*Global, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.globals[exportName]
	if !ok || g.typ != typ {
		return nil, false
	}
	return g, true
}

func (r *IntrinsicResolver) ResolveExceptionType(_, exportName string, _ ir.ExceptionType) (*ExceptionType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.exceptionTypes[exportName]
	return et, ok
}

// LazyResolver defers instantiating a dependency module until its first
// import is actually resolved, then behaves like a ModuleExportResolver
// against the result (spec.md §4.G: "a lazy resolver defers
// instantiation"). Useful for breaking instantiation-order ties between
// mutually-registered modules. Instantiate's error sticks: once it fails,
// every subsequent resolution fails too.
type LazyResolver struct {
	Instantiate func() (*ModuleInstance, error)

	once sync.Once
	inst *ModuleInstance
	err  error
}

func (r *LazyResolver) resolve() *ModuleExportResolver {
	r.once.Do(func() { r.inst, r.err = r.Instantiate() })
	if r.err != nil || r.inst == nil {
		return nil
	}
	return &ModuleExportResolver{Instance: r.inst}
}

func (r *LazyResolver) ResolveFunction(moduleName, exportName string, typ *ir.FunctionType) (*Function, bool) {
	if m := r.resolve(); m != nil {
		return m.ResolveFunction(moduleName, exportName, typ)
	}
	return nil, false
}

func (r *LazyResolver) ResolveTable(moduleName, exportName string, typ ir.TableType) (*Table, bool) {
	if m := r.resolve(); m != nil {
		return m.ResolveTable(moduleName, exportName, typ)
	}
	return nil, false
}

func (r *LazyResolver) ResolveMemory(moduleName, exportName string, typ ir.MemoryType) (*Memory, bool) {
	if m := r.resolve(); m != nil {
		return m.ResolveMemory(moduleName, exportName, typ)
	}
	return nil, false
}

func (r *LazyResolver) ResolveGlobal(moduleName, exportName string, typ ir.GlobalType) (*Global, bool) {
	if m := r.resolve(); m != nil {
		return m.ResolveGlobal(moduleName, exportName, typ)
	}
	return nil, false
}

func (r *LazyResolver) ResolveExceptionType(moduleName, exportName string, typ ir.ExceptionType) (*ExceptionType, bool) {
	if m := r.resolve(); m != nil {
		return m.ResolveExceptionType(moduleName, exportName, typ)
	}
	return nil, false
}

// NullResolver resolves nothing, so every import of the module it's linked
// against shows up in the resulting LinkException — useful for validating
// a module's import list in isolation.
type NullResolver struct{}

func (NullResolver) ResolveFunction(string, string, *ir.FunctionType) (*Function, bool) { return nil, false }
func (NullResolver) ResolveTable(string, string, ir.TableType) (*Table, bool)           { return nil, false }
func (NullResolver) ResolveMemory(string, string, ir.MemoryType) (*Memory, bool)        { return nil, false }
func (NullResolver) ResolveGlobal(string, string, ir.GlobalType) (*Global, bool)        { return nil, false }
func (NullResolver) ResolveExceptionType(string, string, ir.ExceptionType) (*ExceptionType, bool) {
	return nil, false
}
