package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubtyping(t *testing.T) {
	require.True(t, IsSubtype(ValueTypeI32, ValueTypeI32))
	require.True(t, IsSubtype(ValueTypeNone, ValueTypeI32))
	require.True(t, IsSubtype(ValueTypeI32, ValueTypeAny))
	require.False(t, IsSubtype(ValueTypeI32, ValueTypeI64))
	require.False(t, IsSubtype(ValueTypeAny, ValueTypeI32))
}

// TestTypeTupleInterning exercises spec.md §8's interning property: two
// tuples built independently with identical contents compare address-equal.
func TestTypeTupleInterning(t *testing.T) {
	a := InternTypeTuple([]ValueType{ValueTypeI32, ValueTypeI64})
	b := InternTypeTuple([]ValueType{ValueTypeI32, ValueTypeI64})
	require.Same(t, a, b)

	c := InternTypeTuple([]ValueType{ValueTypeI64, ValueTypeI32})
	require.NotSame(t, a, c)
}

func TestFunctionTypeInterning(t *testing.T) {
	a := InternFunctionType([]ValueType{ValueTypeI32, ValueTypeI32}, []ValueType{ValueTypeI32}, CallingConventionWasm)
	b := InternFunctionType([]ValueType{ValueTypeI32, ValueTypeI32}, []ValueType{ValueTypeI32}, CallingConventionWasm)
	require.Same(t, a, b)

	c := InternFunctionType([]ValueType{ValueTypeI32, ValueTypeI32}, []ValueType{ValueTypeI32}, CallingConventionIntrinsic)
	require.NotSame(t, a, c)
}

func TestSizeConstraintsIsSubset(t *testing.T) {
	require.True(t, SizeConstraints{Min: 2, Max: 10}.IsSubset(SizeConstraints{Min: 1, Max: 20}))
	require.False(t, SizeConstraints{Min: 0, Max: 10}.IsSubset(SizeConstraints{Min: 1, Max: 20}))
	require.True(t, SizeConstraints{Min: 1, Max: SizeConstraintsUnbounded}.IsSubset(SizeConstraints{Min: 0, Max: SizeConstraintsUnbounded}))
}

func TestGlobalTypeSubtyping(t *testing.T) {
	imm32 := GlobalType{Value: ValueTypeI32, Mutable: false}
	immAny := GlobalType{Value: ValueTypeAny, Mutable: false}
	require.True(t, IsGlobalTypeSubtype(imm32, immAny))

	mut32 := GlobalType{Value: ValueTypeI32, Mutable: true}
	mutAny := GlobalType{Value: ValueTypeAny, Mutable: true}
	require.False(t, IsGlobalTypeSubtype(mut32, mutAny), "mutable globals are invariant")
	require.False(t, IsGlobalTypeSubtype(mut32, imm32), "mutability must match")
}
