package runtime

import "github.com/wavmgo/wavm/internal/rhmap"

// cloneMap threads every original→clone object pointer through the two
// passes Clone needs: shallow-copy every object first, then rewrite each
// clone's cross-references against the map, so visitation order never
// matters (spec.md's SPEC_FULL.md §3 supplemented feature: "Compartment
// clone rewriting every internal Runtime::Object* edge via a clone-context
// map threaded through the whole object graph", grounded on
// original_source/Lib/Runtime's cloneCompartment entry point).
type cloneMap struct {
	tables    map[*Table]*Table
	memories  map[*Memory]*Memory
	globals   map[*Global]*Global
	excTypes  map[*ExceptionType]*ExceptionType
	instances map[*ModuleInstance]*ModuleInstance
	functions map[*Function]*Function
}

// Clone deep-copies every object this compartment owns into a fresh,
// independent Compartment: mutating the clone's memories/tables/globals
// never affects the original, and vice versa. Contexts are not cloned —
// they are per-thread execution state, not part of the object graph a
// clone is meant to snapshot; attach fresh Contexts to the clone via
// CreateContext.
func (c *Compartment) Clone() *Compartment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nc := &Compartment{predefined: make(map[string]*ExceptionType)}
	nc.Kind = ObjectKindCompartment
	nc.compartment = nc
	for name, et := range c.predefined {
		nc.predefined[name] = newExceptionType(nc, et.name, et.params)
	}

	cm := &cloneMap{
		tables:    make(map[*Table]*Table, len(c.tables)),
		memories:  make(map[*Memory]*Memory, len(c.memories)),
		globals:   make(map[*Global]*Global, len(c.globals)),
		excTypes:  make(map[*ExceptionType]*ExceptionType, len(c.exceptionTypes)),
		instances: make(map[*ModuleInstance]*ModuleInstance, len(c.instances)),
		functions: make(map[*Function]*Function),
	}

	// Pass 1: allocate every clone shallowly, independent of the others.
	for _, m := range c.memories {
		nm := &Memory{typ: m.typ, bytes: append([]byte(nil), m.bytes...)}
		nm.Kind = ObjectKindMemory
		nm.compartment = nc
		cm.memories[m] = nm
		nc.memories = append(nc.memories, nm)
	}
	for _, et := range c.exceptionTypes {
		net := newExceptionType(nc, et.name, et.params)
		cm.excTypes[et] = net
		nc.exceptionTypes = append(nc.exceptionTypes, net)
	}
	for _, inst := range c.instances {
		ninst := &ModuleInstance{
			DebugName:   inst.DebugName,
			ir:          inst.ir,
			compiled:    inst.compiled,
			exports:     rhmap.New[string, Export](hashExportName),
			droppedData: append([]bool(nil), inst.droppedData...),
			droppedElem: append([]bool(nil), inst.droppedElem...),
		}
		ninst.Kind = ObjectKindModuleInstance
		ninst.compartment = nc
		inst.exports.Each(func(name string, e Export) bool {
			ninst.exports.Set(name, e)
			return true
		})
		cm.instances[inst] = ninst
		nc.instances = append(nc.instances, ninst)
	}
	for _, t := range c.tables {
		nt := &Table{typ: t.typ, slots: make([]tableSlot, len(t.slots))}
		nt.Kind = ObjectKindTable
		nt.compartment = nc
		cm.tables[t] = nt
		nc.tables = append(nc.tables, nt)
	}
	for _, g := range c.globals {
		ng := &Global{typ: g.typ, slot: g.slot, initial: g.initial, initialV128: g.initialV128}
		ng.Kind = ObjectKindGlobal
		ng.compartment = nc
		cm.globals[g] = ng
		nc.globals = append(nc.globals, ng)
		if g.typ.Mutable {
			nc.mutableGlobalDefs = append(nc.mutableGlobalDefs, ng)
		}
	}
	nc.initialMutableGlobals = append([]uint64(nil), c.initialMutableGlobals...)

	// Pass 2: rewrite cross-references through cm now every target has a
	// clone to point at.
	for _, inst := range c.instances {
		ninst := cm.instances[inst]
		for _, fn := range inst.Functions {
			var nfn *Function
			if fn.IsHost() {
				nfn = newHostFunction(ninst, fn.index, fn.typ, fn.host, fn.debugName)
			} else {
				nfn = newCompiledFunction(ninst, fn.index, fn.typ, fn.compiled, fn.debugName)
			}
			cm.functions[fn] = nfn
			ninst.Functions = append(ninst.Functions, nfn)
		}
	}
	for _, inst := range c.instances {
		ninst := cm.instances[inst]
		for _, t := range inst.Tables {
			ninst.Tables = append(ninst.Tables, cm.tables[t])
		}
		for _, m := range inst.Memories {
			ninst.Memories = append(ninst.Memories, cm.memories[m])
		}
		for _, g := range inst.Globals {
			ninst.Globals = append(ninst.Globals, cm.globals[g])
		}
		for _, et := range inst.ExceptionTypes {
			ninst.ExceptionTypes = append(ninst.ExceptionTypes, cm.excTypes[et])
		}
	}
	for t, nt := range cm.tables {
		if t.instance != nil {
			nt.instance = cm.instances[t.instance]
		}
		for i, s := range t.slots {
			ns := s
			if s.fn != nil {
				ns.fn = cm.functions[s.fn]
			}
			nt.slots[i] = ns
		}
	}
	for g, ng := range cm.globals {
		if g.definingInstance != nil {
			ng.definingInstance = cm.instances[g.definingInstance]
		}
	}

	return nc
}
