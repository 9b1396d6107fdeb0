package printer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

func addFuncType() *ir.FunctionType {
	return ir.InternFunctionType(
		[]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI32},
		[]ir.ValueType{ir.ValueTypeI32},
		ir.CallingConventionWasm,
	)
}

func buildModule() *ir.Module {
	ft := addFuncType()
	m := &ir.Module{
		Types: []*ir.FunctionType{ft},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}},
		},
		MemoryDefs: []ir.MemoryType{
			{Size: ir.SizeConstraints{Min: 1, Max: 2}},
		},
		TableDefs: []ir.TableType{
			{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: 1, Max: ir.SizeConstraintsUnbounded}},
		},
		GlobalDefs: []ir.GlobalDef{
			{Type: ir.GlobalType{Value: ir.ValueTypeI32, Mutable: true}, Init: ir.Initializer{Kind: ir.InitExprI32Const, I32: 7}},
		},
		Exports: []ir.Export{
			{Name: "add", Kind: ir.ExportKindFunction, Index: 0},
		},
		HasStartFunction: false,
		ElementSegments: []ir.ElementSegment{
			{
				Kind:        ir.ElementSegmentActive,
				Offset:      ir.Initializer{Kind: ir.InitExprI32Const, I32: 0},
				ElementType: ir.ValueTypeFuncref,
				FuncIndices: []uint32{0},
			},
		},
		DataSegments: []ir.DataSegment{
			{Active: true, Offset: ir.Initializer{Kind: ir.InitExprI32Const, I32: 0}, Bytes: []byte("hi")},
		},
		Names: &ir.NameSection{
			Functions: map[uint32]string{0: "add"},
		},
	}
	return m
}

func TestPrintModuleContainsEveryTopLevelSection(t *testing.T) {
	m := buildModule()
	out, err := PrintModule(m)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, "(module"))
	require.True(t, strings.HasSuffix(out, "\n)"))
	require.Contains(t, out, "(type $type0 (func (param i32) (param i32) (result i32)))")
	require.Contains(t, out, "(memory $memory0 1 2)")
	require.Contains(t, out, "(table $table0 1 funcref)")
	require.Contains(t, out, "(global $global0 (mut i32) (i32.const 7))")
	require.Contains(t, out, "(func $add (type $type0) (param i32) (param i32) (result i32)")
	require.Contains(t, out, "local.get 0")
	require.Contains(t, out, "local.get 1")
	require.Contains(t, out, "i32.add")
	require.Contains(t, out, "(export \"add\" (func $add))")
	require.Contains(t, out, "(elem $elem0")
	require.Contains(t, out, "(data $data0")
}

func TestPrintModuleRendersStartFunction(t *testing.T) {
	m := buildModule()
	m.HasStartFunction = true
	m.StartFunctionIndex = 0

	out, err := PrintModule(m)
	require.NoError(t, err)
	require.Contains(t, out, "(start $add)")
}

func TestPrintModuleIndentsNestedBlocks(t *testing.T) {
	ft := ir.InternFunctionType(nil, nil, ir.CallingConventionWasm)
	m := &ir.Module{
		Types: []*ir.FunctionType{ft},
		FunctionDefs: []ir.FunctionDef{
			// block (empty) / nop / end / end
			{TypeIndex: 0, Body: []byte{0x02, 0x40, 0x01, 0x0b, 0x0b}},
		},
	}
	out, err := PrintModule(m)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	blockLine, nopLine := -1, -1
	for i, l := range lines {
		switch strings.TrimSpace(l) {
		case "block : () -> ()":
			blockLine = i
		case "nop":
			nopLine = i
		}
	}
	require.NotEqual(t, -1, blockLine)
	require.NotEqual(t, -1, nopLine)
	// nop sits one indent level deeper than the block that opened it.
	require.True(t, leadingSpaces(lines[nopLine]) > leadingSpaces(lines[blockLine]))
}

func leadingSpaces(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}
