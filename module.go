package wavm

import (
	"context"
	"fmt"

	"github.com/wavmgo/wavm/api"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
)

// Module is an instantiated module, satisfying api.Module. It pairs a
// runtime.ModuleInstance (the object-graph side: functions/tables/
// memories/globals) with the runtime.Context invocations against its
// exports run under, so ExportedFunction(...).Call needs no extra
// plumbing from the caller.
type Module struct {
	name string
	inst *runtime.ModuleInstance
	ctx  *runtime.Context
}

var _ api.Module = (*Module)(nil)

func (m *Module) String() string { return fmt.Sprintf("Module[%s]", m.name) }

// Name is the name this module was instantiated with.
func (m *Module) Name() string { return m.name }

// Memory returns the module's first defined-or-imported memory, or nil.
func (m *Module) Memory() api.Memory {
	if len(m.inst.Memories) == 0 {
		return nil
	}
	return &hostMemory{m.inst.Memories[0]}
}

// ExportedFunction looks up an exported function by name.
func (m *Module) ExportedFunction(name string) api.Function {
	e, ok := m.inst.Lookup(name)
	if !ok || e.Kind != ir.ExportKindFunction {
		return nil
	}
	return &hostFunction{m: m, fn: m.inst.Functions[e.Index]}
}

// ExportedMemory looks up an exported memory by name.
func (m *Module) ExportedMemory(name string) api.Memory {
	e, ok := m.inst.Lookup(name)
	if !ok || e.Kind != ir.ExportKindMemory {
		return nil
	}
	return &hostMemory{m.inst.Memories[e.Index]}
}

// ExportedGlobal looks up an exported global by name.
func (m *Module) ExportedGlobal(name string) api.Global {
	e, ok := m.inst.Lookup(name)
	if !ok || e.Kind != ir.ExportKindGlobal {
		return nil
	}
	g := m.inst.Globals[e.Index]
	hg := &hostGlobal{ctx: m.ctx, g: g}
	if g.Type().Mutable {
		return &hostMutableGlobal{hg}
	}
	return hg
}

// CloseWithExitCode releases resources held by this module. wavm's
// Compartment/Context model has no per-module teardown step beyond letting
// garbage collection reclaim an unrooted instance, so this does nothing:
// exitCode is not recorded anywhere, and the method always returns nil.
func (m *Module) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	return nil
}

// Close delegates to CloseWithExitCode with a zero exit code.
func (m *Module) Close(ctx context.Context) error {
	return m.CloseWithExitCode(ctx, 0)
}
