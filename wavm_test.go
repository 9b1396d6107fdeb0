package wavm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
)

func addFuncType() *ir.FunctionType {
	return ir.InternFunctionType(
		[]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI32},
		[]ir.ValueType{ir.ValueTypeI32},
		ir.CallingConventionWasm,
	)
}

func buildAddModule() *ir.Module {
	ft := addFuncType()
	return &ir.Module{
		Types: []*ir.FunctionType{ft},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}},
		},
		MemoryDefs: []ir.MemoryType{
			{Size: ir.SizeConstraints{Min: 1, Max: 2}},
		},
		GlobalDefs: []ir.GlobalDef{
			{Type: ir.GlobalType{Value: ir.ValueTypeI32, Mutable: true}, Init: ir.Initializer{Kind: ir.InitExprI32Const, I32: 7}},
		},
		Exports: []ir.Export{
			{Name: "add", Kind: ir.ExportKindFunction, Index: 0},
			{Name: "memory", Kind: ir.ExportKindMemory, Index: 0},
			{Name: "counter", Kind: ir.ExportKindGlobal, Index: 0},
		},
		Names: &ir.NameSection{
			Functions: map[uint32]string{0: "add"},
			Locals:    map[uint32]map[uint32]string{0: {0: "a", 1: "b"}},
		},
	}
}

func TestDecodeAndInstantiateModule(t *testing.T) {
	wasmBytes := binary.EncodeModule(buildAddModule())

	cm, err := DecodeModule(wasmBytes)
	require.NoError(t, err)
	require.Equal(t, 1, cm.IR().FunctionCount())

	c := runtime.NewCompartment()
	ctx := c.CreateContext()
	mod, err := InstantiateModule(c, ctx, cm, "adder", runtime.NullResolver{})
	require.NoError(t, err)
	require.Equal(t, "adder", mod.Name())

	fn := mod.ExportedFunction("add")
	require.NotNil(t, fn)
	results, err := fn.Call(context.Background(), 3, 4)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, results)

	def := fn.Definition()
	require.Equal(t, "adder", def.ModuleName())
	require.Equal(t, "add", def.Name())
	require.Equal(t, []string{"add"}, def.ExportNames())
	require.Equal(t, []string{"a", "b"}, def.ParamNames())

	mem := mod.ExportedMemory("memory")
	require.NotNil(t, mem)
	require.True(t, mem.WriteUint32Le(context.Background(), 0, 42))
	v, ok := mem.ReadUint32Le(context.Background(), 0)
	require.True(t, ok)
	require.Equal(t, uint32(42), v)

	g := mod.ExportedGlobal("counter")
	require.NotNil(t, g)
	require.Equal(t, uint64(7), g.Get(context.Background()))
	mutable, ok := g.(interface {
		Set(context.Context, uint64)
	})
	require.True(t, ok)
	mutable.Set(context.Background(), 99)
	require.Equal(t, uint64(99), g.Get(context.Background()))

	require.Nil(t, mod.ExportedFunction("nope"))
}

func TestDecodeModuleRejectsInvalidBytes(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}
