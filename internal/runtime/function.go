package runtime

import (
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

// functionMutableData is the separate root-counter block spec.md §4.G calls
// for: "rooting any reference to a function roots its owning instance
// transitively" without the Function object itself ever appearing in
// Compartment's top-level object slices (confirmed against
// original_source/Lib/Runtime/ObjectGC.cpp, which hand-writes
// addGCRoot(const Function*)/removeGCRoot(const Function*) overloads instead
// of expanding the IMPLEMENT_GCOBJECT_REFCOUNTING macro Table/Memory/Global
// use).
type functionMutableData struct {
	root rootCounter
}

// HostFunction is an intrinsic or embedder-provided function body: no
// compiler.CompiledFunction backs it, so invocation calls this directly.
type HostFunction func(ctx *Context, args []uint64) ([]uint64, error)

// Function is a module instance's function, callable either through its
// compiled body or, for intrinsics, a HostFunction. Function is never
// tracked directly by Compartment; it is only reachable through its owning
// ModuleInstance.Functions, matching original_source's scanObject: instances
// are the only thing that appear in a compartment's reachability roots for
// the "rooted iff any of its functions carries a root reference" check.
type Function struct {
	mutableData *functionMutableData

	index    uint32
	instance *ModuleInstance
	typ      *ir.FunctionType
	compiled *compiler.CompiledFunction // nil for host functions
	host     HostFunction               // nil for compiled functions
	debugName string
}

func newCompiledFunction(instance *ModuleInstance, index uint32, typ *ir.FunctionType, compiled *compiler.CompiledFunction, debugName string) *Function {
	return &Function{
		mutableData: &functionMutableData{},
		index:       index,
		instance:    instance,
		typ:         typ,
		compiled:    compiled,
		debugName:   debugName,
	}
}

func newHostFunction(instance *ModuleInstance, index uint32, typ *ir.FunctionType, host HostFunction, debugName string) *Function {
	return &Function{
		mutableData: &functionMutableData{},
		index:       index,
		instance:    instance,
		typ:         typ,
		host:        host,
		debugName:   debugName,
	}
}

// Index returns the function's index within its owning instance's function
// space.
func (f *Function) Index() uint32 { return f.index }

// Instance returns the owning module instance.
func (f *Function) Instance() *ModuleInstance { return f.instance }

// Type returns the function's signature.
func (f *Function) Type() *ir.FunctionType { return f.typ }

// DebugName returns the function's name for error/trap reporting.
func (f *Function) DebugName() string { return f.debugName }

// IsHost reports whether this function is an intrinsic/host function rather
// than a compiled Wasm function.
func (f *Function) IsHost() bool { return f.host != nil }

// rootCounterPtr satisfies the rooted constraint by delegating to the
// shared mutable-data block rather than an embedded Object, the one place
// Function deliberately departs from the other object kinds' layout.
func (f *Function) rootCounterPtr() *rootCounter { return &f.mutableData.root }
