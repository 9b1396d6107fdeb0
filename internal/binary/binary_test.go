package binary

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

// header hand-assembles the smallest legal Wasm binary: header only, no
// sections.
func header() []byte {
	return []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := append([]byte{0x00, 'a', 's', 'x'}, 0x01, 0x00, 0x00, 0x00)
	_, err := Decode(data, ir.WasmMVP())
	require.Error(t, err)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	data := append([]byte{0x00, 'a', 's', 'm'}, 0x02, 0x00, 0x00, 0x00)
	_, err := Decode(data, ir.WasmMVP())
	require.Error(t, err)
}

func TestDecodeEmptyModule(t *testing.T) {
	m, err := Decode(header(), ir.WasmMVP())
	require.NoError(t, err)
	require.Equal(t, 0, m.FunctionCount())
}

func TestDecodeTypeSection(t *testing.T) {
	data := append([]byte{}, header()...)
	// type section: id 1, size, count 1, func type () -> (i32)
	body := []byte{0x01, 0x60, 0x00, 0x01, 0x7f}
	data = append(data, 0x01, byte(len(body)))
	data = append(data, body...)

	m, err := Decode(data, ir.WasmMVP())
	require.NoError(t, err)
	require.Len(t, m.Types, 1)
	require.Equal(t, 0, m.Types[0].Params.Len())
	require.Equal(t, 1, m.Types[0].Results.Len())
	require.Equal(t, ir.ValueTypeI32, m.Types[0].Results.Types()[0])
}

func TestDecodeRejectsOutOfOrderSections(t *testing.T) {
	data := append([]byte{}, header()...)
	// export section (id 7) before type section (id 1): out of order.
	exportBody := []byte{0x00}
	data = append(data, 0x07, byte(len(exportBody)))
	data = append(data, exportBody...)
	typeBody := []byte{0x00}
	data = append(data, 0x01, byte(len(typeBody)))
	data = append(data, typeBody...)

	_, err := Decode(data, ir.WasmMVP())
	require.Error(t, err)
}

func TestDecodeCustomSectionAnywhere(t *testing.T) {
	data := append([]byte{}, header()...)
	custom := append([]byte{0x04}, []byte("name")...) // name field "name", empty name-section body
	data = append(data, 0x00, byte(len(custom)))
	data = append(data, custom...)

	m, err := Decode(data, ir.WasmMVP())
	require.NoError(t, err)
	require.Len(t, m.CustomSections, 1)
	require.Equal(t, "name", m.CustomSections[0].Name)
}

func TestRoundTripModule(t *testing.T) {
	m := &ir.Module{Features: ir.WasmMVP()}
	ft := ir.InternFunctionType([]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI32}, []ir.ValueType{ir.ValueTypeI32}, ir.CallingConventionWasm)
	m.Types = []*ir.FunctionType{ft}
	m.FunctionDefs = []ir.FunctionDef{{
		TypeIndex:  0,
		LocalTypes: nil,
		Body:       []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}, // local.get 0; local.get 1; i32.add; end
	}}
	m.Exports = []ir.Export{{Name: "add", Kind: ir.ExportKindFunction, Index: 0}}

	encoded := EncodeModule(m)
	decoded, err := Decode(encoded, ir.WasmMVP())
	require.NoError(t, err)
	require.Len(t, decoded.Types, 1)
	require.Equal(t, 2, decoded.Types[0].Params.Len())
	require.Len(t, decoded.FunctionDefs, 1)
	require.Equal(t, m.FunctionDefs[0].Body, decoded.FunctionDefs[0].Body)
	require.Len(t, decoded.Exports, 1)
	require.Equal(t, "add", decoded.Exports[0].Name)

	instrs, err := DecodeExpr(decoded.FunctionDefs[0].Body)
	require.NoError(t, err)
	require.Len(t, instrs, 4) // local.get, local.get, i32.add, end
	require.Equal(t, ir.OpI32Add, instrs[2].Op)
}

func TestRoundTripElementAndDataSegments(t *testing.T) {
	m := &ir.Module{Features: ir.WasmMVP()}
	m.ElementSegments = []ir.ElementSegment{
		{
			Kind:        ir.ElementSegmentActive,
			ElementType: ir.ValueTypeFuncref,
			Offset:      ir.Initializer{Kind: ir.InitExprI32Const, I32: 0},
			FuncIndices: []uint32{0, 1},
		},
		{
			Kind:        ir.ElementSegmentPassive,
			ElementType: ir.ValueTypeFuncref,
			FuncIndices: []uint32{2},
		},
	}
	m.DataSegments = []ir.DataSegment{
		{Active: true, Offset: ir.Initializer{Kind: ir.InitExprI32Const, I32: 0}, Bytes: []byte("hi")},
		{Active: false, Bytes: []byte("passive")},
	}

	encoded := EncodeModule(m)
	decoded, err := Decode(encoded, ir.WasmMVP())
	require.NoError(t, err)
	require.Len(t, decoded.ElementSegments, 2)
	require.Equal(t, ir.ElementSegmentActive, decoded.ElementSegments[0].Kind)
	require.Equal(t, []uint32{0, 1}, decoded.ElementSegments[0].FuncIndices)
	require.Equal(t, ir.ElementSegmentPassive, decoded.ElementSegments[1].Kind)

	require.Len(t, decoded.DataSegments, 2)
	require.True(t, decoded.DataSegments[0].Active)
	require.Equal(t, []byte("hi"), decoded.DataSegments[0].Bytes)
	require.False(t, decoded.DataSegments[1].Active)
	require.Equal(t, []byte("passive"), decoded.DataSegments[1].Bytes)
}

func TestNameSectionRoundTrip(t *testing.T) {
	ns := &ir.NameSection{
		Module:    "mymodule",
		Functions: map[uint32]string{0: "main", 1: "helper"},
		Locals:    map[uint32]map[uint32]string{0: {0: "x", 1: "y"}},
	}
	body := EncodeNameSection(ns)
	decoded, err := DecodeNameSection(body)
	require.NoError(t, err)
	require.Equal(t, "mymodule", decoded.Module)
	require.Equal(t, "main", decoded.Functions[0])
	require.Equal(t, "helper", decoded.Functions[1])
	require.Equal(t, "x", decoded.Locals[0][0])
	require.Equal(t, "y", decoded.Locals[0][1])
}

func TestDecodeMemoryTypeSharedRequiresMax(t *testing.T) {
	r := &reader{buf: []byte{0x02, 0x01}} // flags=shared only (no hasMax bit), min=1
	_, err := r.decodeMemoryType()
	require.Error(t, err)
}

func TestDecodeFunctionTypeBadPrefix(t *testing.T) {
	r := &reader{buf: []byte{0x62, 0x00, 0x00}}
	_, err := r.decodeFunctionType()
	require.Error(t, err)
}
