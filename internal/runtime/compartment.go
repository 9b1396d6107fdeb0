package runtime

import (
	"encoding/binary"
	"sync"

	"github.com/wavmgo/wavm/internal/ir"
)

// Compartment is spec.md §4.G's isolation domain: the owner of every
// table/memory/global/exception-type/module-instance/context an
// interconnected set of modules shares, and the unit CollectGarbage and
// Clone operate on. All mutation goes through a single RWMutex, matching
// spec.md §5's "a compartment serializes its own object-table mutations
// behind one lock; execution inside already-instantiated code does not
// take it."
type Compartment struct {
	Object
	mu sync.RWMutex

	tables         []*Table
	memories       []*Memory
	globals        []*Global
	exceptionTypes []*ExceptionType
	instances      []*ModuleInstance
	contexts       []*Context

	// mutableGlobalDefs lists, in slot order, every mutable global this
	// compartment owns — the index a Context's mutableGlobals cell at
	// that slot belongs to, needed by CollectGarbage to interpret a raw
	// per-context cell as a possible funcref/externref.
	mutableGlobalDefs []*Global
	// initialMutableGlobals is the default mutable-global vector a freshly
	// created Context starts from (original_source's
	// compartment->initialContextMutableGlobals).
	initialMutableGlobals []uint64

	predefined map[string]*ExceptionType
}

// NewCompartment creates an empty compartment with its predefined
// exception types ready to look up.
func NewCompartment() *Compartment {
	c := &Compartment{predefined: make(map[string]*ExceptionType)}
	c.Kind = ObjectKindCompartment
	c.compartment = c
	for _, name := range predefinedExceptionNames {
		// Predefined exception types are permanent fixtures of the
		// compartment, not collectible state, so they live only in
		// c.predefined and never enter c.exceptionTypes (which
		// CollectGarbage sweeps).
		c.predefined[name] = newExceptionType(c, name, ir.InternTypeTuple(nil))
	}
	return c
}

// predefinedException returns the compartment's ExceptionType for a
// built-in trap name (internal/compiler.TrapKind.String()'s vocabulary).
func (c *Compartment) predefinedException(name string) *ExceptionType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.predefined[name]
}

// CreateMemory creates and registers a new memory, nil if the initial
// commit would overflow.
func (c *Compartment) CreateMemory(typ ir.MemoryType) *Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := newMemory(c, typ)
	if m == nil {
		return nil
	}
	c.memories = append(c.memories, m)
	return m
}

// CreateTable creates and registers a new table, owned by instance (its
// elements resolve funcref FuncIndex against instance.Functions — see
// table.go).
func (c *Compartment) CreateTable(typ ir.TableType, instance *ModuleInstance) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := newTable(c, typ)
	t.instance = instance
	c.tables = append(c.tables, t)
	return t
}

// CreateExceptionType creates and registers a module-defined exception tag.
func (c *Compartment) CreateExceptionType(name string, params *ir.TypeTuple) *ExceptionType {
	c.mu.Lock()
	defer c.mu.Unlock()
	et := newExceptionType(c, name, params)
	c.exceptionTypes = append(c.exceptionTypes, et)
	return et
}

// CreateGlobal creates and registers a new global. definingInstance
// resolves a ref-typed immutable global's initial value for GC tracing
// (nil is fine for non-reference types). If typ.Mutable, every existing
// Context gains a fresh cell initialized to init (original_source's
// "extend every live context's mutable-global vector when a new mutable
// global is created").
func (c *Compartment) CreateGlobal(typ ir.GlobalType, init uint64, initV128 [16]byte, definingInstance *ModuleInstance) *Global {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := &Global{typ: typ, initial: init, initialV128: initV128, definingInstance: definingInstance}
	g.Kind = ObjectKindGlobal
	g.compartment = c
	c.globals = append(c.globals, g)

	if typ.Mutable {
		width := slotWidth(typ.Value)
		g.slot = len(c.initialMutableGlobals)
		cells := make([]uint64, width)
		if typ.Value == ir.ValueTypeV128 {
			cells[0] = binary.LittleEndian.Uint64(initV128[0:8])
			cells[1] = binary.LittleEndian.Uint64(initV128[8:16])
		} else {
			cells[0] = init
		}
		c.initialMutableGlobals = append(c.initialMutableGlobals, cells...)
		c.mutableGlobalDefs = append(c.mutableGlobalDefs, g)
		for _, ctx := range c.contexts {
			ctx.mutableGlobals = append(ctx.mutableGlobals, cells...)
		}
	}
	return g
}

// CreateContext creates a new per-thread execution context, its mutable
// globals seeded from the compartment's current defaults.
func (c *Compartment) CreateContext() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx := newContext(c)
	c.contexts = append(c.contexts, ctx)
	return ctx
}

// registerInstance is called by InstantiateModule once a ModuleInstance is
// fully constructed.
func (c *Compartment) registerInstance(inst *ModuleInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = append(c.instances, inst)
}

// TryCollectCompartment reports whether the compartment has no external
// GC-root on itself, i.e. nothing outside is holding a GCRoot[*Compartment]
// to it directly. It does not delete the compartment (Go's own GC reclaims
// it once unreachable); this is the liveness check
// original_source/Include/Runtime/Runtime.h's tryCollectCompartment
// performs before discarding the handle.
func (c *Compartment) TryCollectCompartment() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.root.rooted()
}

// CollectGarbage implements spec.md §4.G's mark-and-sweep pass, grounded
// directly on original_source/Lib/Runtime/ObjectGC.cpp's collectGarbageImpl:
// the initial rooted set is every object whose root counter is nonzero,
// plus every ModuleInstance with at least one rooted function (functions
// themselves are never tracked independently — see function.go), plus every
// live Context (a goroutine may call through one at any moment, so contexts
// are always roots). Tracing then walks ownership/reference edges
// (compartment→everything, table→elements, global→initial value,
// context→mutable ref-typed globals, instance→its tables/memories/
// globals/exception-types) until the worklist is empty; anything never
// reached is dropped.
func (c *Compartment) CollectGarbage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	visited := make(map[any]bool)
	var worklist []any
	visit := func(o any) {
		if o == nil {
			return
		}
		if fn, ok := o.(*Function); ok {
			if fn == nil {
				return
			}
			o = any(fn.instance)
		}
		if o == nil || visited[o] {
			return
		}
		visited[o] = true
		worklist = append(worklist, o)
	}

	instanceRooted := func(inst *ModuleInstance) bool {
		if inst.root.rooted() {
			return true
		}
		for _, fn := range inst.Functions {
			if fn != nil && fn.mutableData.root.rooted() {
				return true
			}
		}
		return false
	}

	if c.root.rooted() {
		visit(c)
	}
	for _, t := range c.tables {
		if t.root.rooted() {
			visit(t)
		}
	}
	for _, m := range c.memories {
		if m.root.rooted() {
			visit(m)
		}
	}
	for _, g := range c.globals {
		if g.root.rooted() {
			visit(g)
		}
	}
	for _, et := range c.exceptionTypes {
		if et.root.rooted() {
			visit(et)
		}
	}
	for _, inst := range c.instances {
		if instanceRooted(inst) {
			visit(inst)
		}
	}
	for _, ctx := range c.contexts {
		visit(ctx)
	}

	for len(worklist) > 0 {
		o := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		switch v := o.(type) {
		case *Compartment:
			for _, t := range c.tables {
				visit(t)
			}
			for _, m := range c.memories {
				visit(m)
			}
			for _, g := range c.globals {
				visit(g)
			}
			for _, et := range c.exceptionTypes {
				visit(et)
			}
			for _, inst := range c.instances {
				visit(inst)
			}
			for _, ctx := range c.contexts {
				visit(ctx)
			}
		case *Table:
			for _, fn := range v.gcChildren() {
				visit(fn)
			}
		case *Global:
			visit(v.gcChild())
		case *ModuleInstance:
			for _, t := range v.Tables {
				visit(t)
			}
			for _, m := range v.Memories {
				visit(m)
			}
			for _, g := range v.Globals {
				visit(g)
			}
			for _, et := range v.ExceptionTypes {
				visit(et)
			}
		case *Context:
			for _, g := range c.mutableGlobalDefs {
				if !g.typ.Value.IsReference() {
					continue
				}
				isNull, idx := unpackRef(v.mutableGlobals[g.slot])
				if isNull || g.definingInstance == nil || int(idx) >= len(g.definingInstance.Functions) {
					continue
				}
				visit(g.definingInstance.Functions[idx])
			}
		case *ExceptionType, *Memory:
			// no outgoing edges
		}
	}

	c.tables = keepVisited(c.tables, visited)
	c.memories = keepVisited(c.memories, visited)
	c.globals = keepVisited(c.globals, visited)
	c.exceptionTypes = keepVisited(c.exceptionTypes, visited)
	c.instances = keepVisited(c.instances, visited)
}

func keepVisited[T any](in []T, visited map[any]bool) []T {
	out := in[:0]
	for _, v := range in {
		if visited[any(v)] {
			out = append(out, v)
		}
	}
	return out
}
