package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

func TestMutableGlobalIsPerContext(t *testing.T) {
	c := NewCompartment()
	g := c.CreateGlobal(ir.GlobalType{Value: ir.ValueTypeI32, Mutable: true}, 7, [16]byte{}, nil)

	ctx1 := c.CreateContext()
	ctx2 := c.CreateContext()

	cg1 := contextGlobal{ctx: ctx1, g: g}
	cg2 := contextGlobal{ctx: ctx2, g: g}

	require.Equal(t, uint64(7), cg1.Get())
	require.Equal(t, uint64(7), cg2.Get())

	cg1.Set(100)
	require.Equal(t, uint64(100), cg1.Get())
	require.Equal(t, uint64(7), cg2.Get())
}

func TestImmutableGlobalIgnoresContext(t *testing.T) {
	c := NewCompartment()
	g := c.CreateGlobal(ir.GlobalType{Value: ir.ValueTypeI32, Mutable: false}, 42, [16]byte{}, nil)
	ctx := c.CreateContext()
	cg := contextGlobal{ctx: ctx, g: g}

	require.Equal(t, uint64(42), cg.Get())
	cg.Set(1) // contextGlobal.Set ignores an immutable global, which owns no
	// context cell; validation is what prevents global.set from ever
	// targeting one.
}

func TestNewContextInheritsCurrentDefaults(t *testing.T) {
	c := NewCompartment()
	g := c.CreateGlobal(ir.GlobalType{Value: ir.ValueTypeI32, Mutable: true}, 1, [16]byte{}, nil)

	ctx1 := c.CreateContext()
	contextGlobal{ctx: ctx1, g: g}.Set(99)

	ctx2 := c.CreateContext()
	require.Equal(t, uint64(1), contextGlobal{ctx: ctx2, g: g}.Get())
	require.Equal(t, uint64(99), contextGlobal{ctx: ctx1, g: g}.Get())
}

func TestPackUnpackRefRoundTrip(t *testing.T) {
	v := packRef(ir.ValueTypeFuncref, false, 5, 0)
	isNull, idx := unpackRef(v)
	require.False(t, isNull)
	require.Equal(t, uint32(5), idx)

	null := packRef(ir.ValueTypeFuncref, true, 0, 0)
	isNull, _ = unpackRef(null)
	require.True(t, isNull)

	isNull, _ = unpackRef(0) // an uninitialized table/global cell
	require.True(t, isNull)
}
