package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

func i32i32ToI32() *ir.FunctionType {
	return ir.InternFunctionType(
		[]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI32},
		[]ir.ValueType{ir.ValueTypeI32},
		ir.CallingConventionWasm,
	)
}

func noParamsToI32() *ir.FunctionType {
	return ir.InternFunctionType(nil, []ir.ValueType{ir.ValueTypeI32}, ir.CallingConventionWasm)
}

// TestModuleAddValidates covers spec.md §8 scenario 1: local.get 0;
// local.get 1; i32.add; end is a well-typed (i32,i32)->i32 function body.
func TestModuleAddValidates(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{i32i32ToI32()},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b}},
		},
	}
	require.NoError(t, Module(m))
}

// TestModuleRejectsOperandUnderflow covers spec.md §8 scenario 2: a code
// section containing local.get 0; i32.add; end fails validation because
// i32.add's second operand is missing.
func TestModuleRejectsOperandUnderflow(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{i32i32ToI32()},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x20, 0x00, 0x6a, 0x0b}},
		},
	}
	err := Module(m)
	require.Error(t, err)
	var invalidErr *InvalidError
	require.ErrorAs(t, err, &invalidErr)
}

// TestModuleAcceptsValidLoad covers spec.md §8 scenario 3: `memory 1 1`
// plus `i32.const 65536; i32.load; end` validates cleanly — the actual
// out-of-bounds trap is a runtime concern (internal/runtime), but it can
// only be reached if validate.Module first accepts the i32.load.
func TestModuleAcceptsValidLoad(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{noParamsToI32()},
		FunctionDefs: []ir.FunctionDef{
			// i32.const 65536; i32.load align=2 offset=0; end
			{TypeIndex: 0, Body: []byte{0x41, 0x80, 0x80, 0x04, 0x28, 0x02, 0x00, 0x0b}},
		},
		MemoryDefs: []ir.MemoryType{
			{IndexType: ir.ValueTypeI32, Size: ir.SizeConstraints{Min: 1, Max: 1}},
		},
	}
	require.NoError(t, Module(m))
}

// TestModuleRejectsMisalignedLoad exercises stepLoadStore's alignment
// check: i32.load declares align=3 (2**3 = 8 bytes), exceeding its 4-byte
// natural alignment.
func TestModuleRejectsMisalignedLoad(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{noParamsToI32()},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x41, 0x00, 0x28, 0x03, 0x00, 0x0b}},
		},
		MemoryDefs: []ir.MemoryType{
			{IndexType: ir.ValueTypeI32, Size: ir.SizeConstraints{Min: 1, Max: 1}},
		},
	}
	require.Error(t, Module(m))
}

// TestModuleRejectsLoadWithoutMemory exercises stepLoadStore's memory-index
// bounds check when no memory is declared at all.
func TestModuleRejectsLoadWithoutMemory(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{noParamsToI32()},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0x41, 0x00, 0x28, 0x02, 0x00, 0x0b}},
		},
	}
	require.Error(t, Module(m))
}

// TestModuleAcceptsMemoryCopyAndFill exercises stepBulkMemory's memory.copy
// and memory.fill handling end to end via validate.Module.
func TestModuleAcceptsMemoryCopyAndFill(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{ir.InternFunctionType(nil, nil, ir.CallingConventionWasm)},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{
				// memory.copy 0 0
				0x41, 0x00, 0x41, 0x00, 0x41, 0x00,
				0xfc, 0x0a, 0x00, 0x00,
				// memory.fill 0
				0x41, 0x00, 0x41, 0x00, 0x41, 0x00,
				0xfc, 0x0b, 0x00,
				0x0b,
			}},
		},
		MemoryDefs: []ir.MemoryType{
			{IndexType: ir.ValueTypeI32, Size: ir.SizeConstraints{Min: 1, Max: 1}},
		},
		Features: ir.FeatureSpec{BulkMemory: true},
	}
	require.NoError(t, Module(m))
}

// TestModuleRejectsBulkMemoryBadIndex exercises stepBulkMemory's index
// bounds check: data.drop referencing a data segment that doesn't exist.
func TestModuleRejectsBulkMemoryBadIndex(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{ir.InternFunctionType(nil, nil, ir.CallingConventionWasm)},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{
				// data.drop 0 (no data segments declared)
				0xfc, 0x09, 0x00,
				0x0b,
			}},
		},
		Features: ir.FeatureSpec{BulkMemory: true},
	}
	require.Error(t, Module(m))
}

// TestModuleCatchValidatesExceptionParams exercises OpCatch's
// ExceptionTypeOf wiring: try ... catch 0 ... end with a single-param
// exception type leaves that param on the stack inside the catch handler.
func TestModuleCatchValidatesExceptionParams(t *testing.T) {
	m := &ir.Module{
		Types: []*ir.FunctionType{ir.InternFunctionType(nil, nil, ir.CallingConventionWasm)},
		ExceptionTypeDefs: []ir.ExceptionType{
			{Params: ir.InternTypeTuple([]ir.ValueType{ir.ValueTypeI32})},
		},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{
				0x06, 0x40, // try (empty blocktype)
				0x07, 0x00, // catch 0
				0x1a,       // drop the caught i32
				0x0b,       // end
				0x0b,       // end (function)
			}},
		},
		Features: ir.FeatureSpec{ExceptionHandling: true},
	}
	require.NoError(t, Module(m))
}
