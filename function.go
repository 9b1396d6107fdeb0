package wavm

import (
	"context"
	"reflect"

	"github.com/wavmgo/wavm/api"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
)

// hostFunction adapts a runtime.Function to api.Function, running calls
// against the owning Module's Context (InvokeFunctionChecked, so a
// mismatched argument count surfaces as invokeSignatureMismatch rather than
// a Go panic deeper in the interpreter).
type hostFunction struct {
	m  *Module
	fn *runtime.Function
}

var _ api.Function = (*hostFunction)(nil)

func (f *hostFunction) Definition() api.FunctionDefinition {
	return &funcDefinition{m: f.m, fn: f.fn}
}

func (f *hostFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return runtime.InvokeFunctionChecked(f.m.ctx, f.fn, params)
}

// funcDefinition is the api.FunctionDefinition view over a runtime.Function
// plus the ir.Module it was instantiated from, needed for export-name and
// parameter-name lookups the Function object itself doesn't keep.
type funcDefinition struct {
	m  *Module
	fn *runtime.Function
}

var _ api.FunctionDefinition = (*funcDefinition)(nil)

func (d *funcDefinition) ModuleName() string { return d.m.name }
func (d *funcDefinition) Index() uint32      { return d.fn.Index() }
func (d *funcDefinition) Name() string {
	irMod := d.m.inst.IR()
	if irMod.Names != nil {
		if n, ok := irMod.Names.Functions[d.fn.Index()]; ok {
			return n
		}
	}
	return ""
}

func (d *funcDefinition) DebugName() string { return d.fn.DebugName() }

func (d *funcDefinition) Import() (moduleName, name string, isImport bool) {
	irMod := d.m.inst.IR()
	if int(d.fn.Index()) >= len(irMod.FunctionImports) {
		return "", "", false
	}
	imp := irMod.FunctionImports[d.fn.Index()]
	return imp.Module, imp.Name, true
}

func (d *funcDefinition) ExportNames() []string {
	irMod := d.m.inst.IR()
	var names []string
	for _, e := range irMod.Exports {
		if e.Kind == ir.ExportKindFunction && e.Index == d.fn.Index() {
			names = append(names, e.Name)
		}
	}
	return names
}

// GoFunc is always nil: wavm's host functions use the
// runtime.HostFunction convention (func(*runtime.Context, []uint64)
// ([]uint64, error)), so there is no reflect.Value to report for either a
// Wasm-defined or a host-defined function here.
func (d *funcDefinition) GoFunc() *reflect.Value { return nil }

func (d *funcDefinition) ParamTypes() []api.ValueType  { return valueTypes(d.fn.Type().Params.Types()) }
func (d *funcDefinition) ResultTypes() []api.ValueType { return valueTypes(d.fn.Type().Results.Types()) }

func (d *funcDefinition) ParamNames() []string {
	irMod := d.m.inst.IR()
	if irMod.Names == nil {
		return nil
	}
	locals, ok := irMod.Names.Locals[d.fn.Index()]
	if !ok {
		return nil
	}
	n := d.fn.Type().Params.Len()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = locals[uint32(i)]
	}
	return names
}

func valueTypes(ts []ir.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		out[i] = api.ValueType(t)
	}
	return out
}
