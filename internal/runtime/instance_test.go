package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

func addFuncType() *ir.FunctionType {
	return ir.InternFunctionType([]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI32}, []ir.ValueType{ir.ValueTypeI32}, ir.CallingConventionWasm)
}

// addModule builds a module exporting a single function "add" computing
// the sum of its two i32 parameters: local.get 0; local.get 1; i32.add; end.
func addModule() *ir.Module {
	return &ir.Module{
		Features: ir.WasmMVP(),
		Types:    []*ir.FunctionType{addFuncType()},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}},
		},
		Exports: []ir.Export{{Name: "add", Kind: ir.ExportKindFunction, Index: 0}},
	}
}

func mustLoad(t *testing.T, m *ir.Module) *compiler.CompiledModule {
	t.Helper()
	obj, err := compiler.Compile(m)
	require.NoError(t, err)
	cm, err := compiler.Load(m, obj)
	require.NoError(t, err)
	return cm
}

func TestInstantiateAndInvoke(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)

	c := NewCompartment()
	ctx := c.CreateContext()
	inst, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "add-module")
	require.NoError(t, err)

	exp, ok := inst.Lookup("add")
	require.True(t, ok)
	require.Equal(t, ir.ExportKindFunction, exp.Kind)

	fn := inst.Functions[exp.Index]
	results, err := InvokeFunctionUnchecked(ctx, fn, []uint64{40, 2})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestInvokeFunctionCheckedRejectsWrongArity(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)

	c := NewCompartment()
	ctx := c.CreateContext()
	inst, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "add-module")
	require.NoError(t, err)

	fn := inst.Functions[0]
	_, err = InvokeFunctionChecked(ctx, fn, []uint64{1})
	require.Error(t, err)
	re, ok := err.(*RuntimeException)
	require.True(t, ok)
	require.Equal(t, "invokeSignatureMismatch", re.Type.Name())
}

func TestLinkModuleReportsEveryMissingImport(t *testing.T) {
	m := &ir.Module{
		Features: ir.WasmMVP(),
		Types:    []*ir.FunctionType{addFuncType()},
		FunctionImports: []ir.FunctionImport{
			{Module: "env", Name: "f1", Type: addFuncType()},
			{Module: "env", Name: "f2", Type: addFuncType()},
		},
	}

	_, err := LinkModule(m, NullResolver{})
	require.Error(t, err)
	le, ok := err.(*LinkException)
	require.True(t, ok)
	require.Len(t, le.Missing, 2)
}

func TestModuleExportResolverLinksAcrossInstances(t *testing.T) {
	providerIR := addModule()
	providerCM := mustLoad(t, providerIR)

	c := NewCompartment()
	ctx := c.CreateContext()
	provider, err := InstantiateModule(c, ctx, providerCM, &LinkResult{}, "provider")
	require.NoError(t, err)

	consumerIR := &ir.Module{
		Features:        ir.WasmMVP(),
		Types:           []*ir.FunctionType{addFuncType()},
		FunctionImports: []ir.FunctionImport{{Module: "provider", Name: "add", Type: addFuncType()}},
		Exports:         []ir.Export{{Name: "reexported_add", Kind: ir.ExportKindFunction, Index: 0}},
	}
	consumerCM := mustLoad(t, consumerIR)

	link, err := LinkModule(consumerIR, &ModuleExportResolver{Instance: provider})
	require.NoError(t, err)
	require.Len(t, link.Functions, 1)

	consumer, err := InstantiateModule(c, ctx, consumerCM, link, "consumer")
	require.NoError(t, err)

	exp, ok := consumer.Lookup("reexported_add")
	require.True(t, ok)
	results, err := InvokeFunctionUnchecked(ctx, consumer.Functions[exp.Index], []uint64{3, 4})
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)
}
