package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
)

func funcType(params, results []ir.ValueType) *ir.FunctionType {
	return ir.InternFunctionType(params, results, ir.CallingConventionWasm)
}

func TestCompileLoadRoundTrip(t *testing.T) {
	m := &ir.Module{
		Features: ir.WasmMVP(),
		Types:    []*ir.FunctionType{funcType(nil, []ir.ValueType{ir.ValueTypeI32})},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, LocalTypes: nil, Body: []byte{0x41, 0x2a, 0x0b}}, // i32.const 42; end
		},
	}
	obj, err := Compile(m)
	require.NoError(t, err)
	require.NotEmpty(t, obj)

	cm, err := Load(m, obj)
	require.NoError(t, err)
	require.Len(t, cm.Functions, 1)
	require.Same(t, m.Types[0], cm.Functions[0].Type)
	require.Len(t, cm.Functions[0].Instrs, 2) // i32.const, end
}

func TestCompileRejectsMalformedBody(t *testing.T) {
	m := &ir.Module{
		Features: ir.WasmMVP(),
		Types:    []*ir.FunctionType{funcType(nil, nil)},
		FunctionDefs: []ir.FunctionDef{
			{TypeIndex: 0, Body: []byte{0xff}}, // not a valid opcode
		},
	}
	_, err := Compile(m)
	require.Error(t, err)
}

// mustDecode is a small helper mirroring what Compile/Load do internally,
// used by the Execute tests below to turn raw operator bytes into
// ir.Instr without going through a full Module.
func mustDecode(t *testing.T, body []byte) []ir.Instr {
	t.Helper()
	instrs, err := binary.DecodeExpr(body)
	require.NoError(t, err)
	return instrs
}

func newExecContext() *ExecContext {
	return &ExecContext{
		Types: []*ir.FunctionType{funcType(nil, nil)},
		CatchMatch: func(err error, idx uint32) ([]uint64, bool) {
			return nil, false
		},
	}
}

func TestExecuteArithmetic(t *testing.T) {
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, []byte{0x41, 0x02, 0x41, 0x03, 0x6a, 0x0b}), // i32.const 2; i32.const 3; i32.add; end
	}
	res, err := Execute(fn, newExecContext(), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, res)
}

func TestExecuteDivideByZeroTraps(t *testing.T) {
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, []byte{0x41, 0x01, 0x41, 0x00, 0x6d, 0x0b}), // i32.const 1; i32.const 0; i32.div_s; end
	}
	_, err := Execute(fn, newExecContext(), nil)
	require.Error(t, err)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapIntegerDivideByZero, tr.Kind)
}

func TestExecuteLocalsAndTee(t *testing.T) {
	// (local i32) local.get 0; local.tee 1; local.get 1; i32.add; end
	// fn has one i32 param, one i32 local, returns i32: param*2
	fn := &CompiledFunction{
		Type:       funcType([]ir.ValueType{ir.ValueTypeI32}, []ir.ValueType{ir.ValueTypeI32}),
		LocalTypes: []ir.ValueType{ir.ValueTypeI32},
		Instrs: mustDecode(t, []byte{
			0x20, 0x00, // local.get 0
			0x22, 0x01, // local.tee 1
			0x20, 0x01, // local.get 1
			0x6a, // i32.add
			0x0b, // end
		}),
	}
	res, err := Execute(fn, newExecContext(), []uint64{21})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, res)
}

func TestExecuteLoopCountsDown(t *testing.T) {
	// local 0 = input count (param), loop: local.get 0; i32.eqz; br_if 1; local.get 0; i32.const 1; i32.sub; local.set 0; br 0; end; end
	body := []byte{
		0x03, 0x40, // loop (void)
		0x20, 0x00, // local.get 0
		0x45,       // i32.eqz
		0x0d, 0x01, // br_if 1 (exits through the function-level frame once the count reaches zero)
		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6b,       // i32.sub
		0x21, 0x00, // local.set 0
		0x0c, 0x00, // br 0 (loop back-edge)
		0x0b, // end (loop)
		0x0b, // end (function)
	}
	fn := &CompiledFunction{
		Type:       funcType([]ir.ValueType{ir.ValueTypeI32}, nil),
		LocalTypes: nil,
		Instrs:     mustDecode(t, body),
	}
	res, err := Execute(fn, newExecContext(), []uint64{5})
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestExecuteSelect(t *testing.T) {
	body := []byte{
		0x41, 0x0a, // i32.const 10
		0x41, 0x14, // i32.const 20
		0x41, 0x01, // i32.const 1 (condition: true)
		0x1b, // select
		0x0b, // end
	}
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, body),
	}
	res, err := Execute(fn, newExecContext(), nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, res)
}

func TestExecuteCall(t *testing.T) {
	ec := newExecContext()
	ec.FuncType = func(idx uint32) *ir.FunctionType {
		return funcType([]ir.ValueType{ir.ValueTypeI32}, []ir.ValueType{ir.ValueTypeI32})
	}
	ec.CallFunc = func(idx uint32, args []uint64) ([]uint64, error) {
		return []uint64{args[0] + 1}, nil
	}
	fn := &CompiledFunction{
		Type: funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, []byte{
			0x41, 0x09, // i32.const 9
			0x10, 0x00, // call 0
			0x0b, // end
		}),
	}
	res, err := Execute(fn, ec, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, res)
}

type userException struct{ typeIdx uint32 }

func (e *userException) Error() string { return "user exception" }

func TestExecuteThrowCaughtByCatch(t *testing.T) {
	ec := newExecContext()
	ec.ExceptionParamSlots = func(idx uint32) int { return 0 }
	ec.Throw = func(idx uint32, args []uint64) error { return &userException{typeIdx: idx} }
	ec.CatchMatch = func(err error, idx uint32) ([]uint64, bool) {
		ue, ok := err.(*userException)
		if !ok {
			return nil, false
		}
		return nil, ue.typeIdx == idx
	}
	// try (result i32) i32.const 1; throw 0; catch 0 i32.const 2; end; end
	body := []byte{
		0x06, 0x7f, // try (result i32)
		0x41, 0x01, // i32.const 1 (never reached)
		0x08, 0x00, // throw 0
		0x07, 0x00, // catch 0
		0x41, 0x02, // i32.const 2
		0x0b, // end (try)
		0x0b, // end (function)
	}
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, body),
	}
	res, err := Execute(fn, ec, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, res)
}

func TestExecuteThrowUncaughtPropagates(t *testing.T) {
	ec := newExecContext()
	ec.ExceptionParamSlots = func(idx uint32) int { return 0 }
	sentinel := &userException{typeIdx: 5}
	ec.Throw = func(idx uint32, args []uint64) error { return sentinel }
	body := []byte{
		0x08, 0x00, // throw 0
		0x0b, // end
	}
	fn := &CompiledFunction{
		Type:   funcType(nil, nil),
		Instrs: mustDecode(t, body),
	}
	_, err := Execute(fn, ec, nil)
	require.ErrorIs(t, err, sentinel)
}

type fakeMemory struct{ b []byte }

func (m *fakeMemory) Bytes() []byte                    { return m.b }
func (m *fakeMemory) Grow(delta uint32) (uint32, bool) { return 0, false }
func (m *fakeMemory) Is64() bool                       { return false }

func TestExecuteMemoryLoadStore(t *testing.T) {
	ec := newExecContext()
	mem := &fakeMemory{b: make([]byte, 65536)}
	ec.Memories = []Memory{mem}
	body := []byte{
		0x41, 0x00, // i32.const 0 (addr)
		0x41, 0x2a, // i32.const 42 (value)
		0x36, 0x02, 0x00, // i32.store align=2 offset=0
		0x41, 0x00, // i32.const 0 (addr)
		0x28, 0x02, 0x00, // i32.load align=2 offset=0
		0x0b, // end
	}
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, body),
	}
	res, err := Execute(fn, ec, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, res)
}

func TestExecuteMemoryOutOfBoundsTraps(t *testing.T) {
	ec := newExecContext()
	mem := &fakeMemory{b: make([]byte, 8)}
	ec.Memories = []Memory{mem}
	body := []byte{
		0x41, 0xff, 0xff, 0xff, 0x0f, // i32.const a large offset
		0x28, 0x02, 0x00, // i32.load
		0x0b,
	}
	fn := &CompiledFunction{
		Type:   funcType(nil, []ir.ValueType{ir.ValueTypeI32}),
		Instrs: mustDecode(t, body),
	}
	_, err := Execute(fn, ec, nil)
	require.Error(t, err)
	var tr *Trap
	require.ErrorAs(t, err, &tr)
	require.Equal(t, TrapMemoryOutOfBounds, tr.Kind)
}
