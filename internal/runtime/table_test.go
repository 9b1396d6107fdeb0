package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

func TestTableGrowAndSetGet(t *testing.T) {
	c := NewCompartment()
	table := c.CreateTable(ir.TableType{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: 2, Max: ir.SizeConstraintsUnbounded}}, nil)

	prev, ok := table.Grow(3, compiler.NullElem())
	require.True(t, ok)
	require.Equal(t, uint64(2), prev)
	require.Equal(t, uint64(5), table.Len())

	e, ok := table.Get(2) // first grown slot, filled with NullElem
	require.True(t, ok)
	require.True(t, e.Initialized)
	require.True(t, e.IsNull)

	_, ok = table.Get(5)
	require.False(t, ok)
}

func TestTableGcChildrenTracksOccupiedFuncrefs(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)
	c := NewCompartment()
	ctx := c.CreateContext()
	inst, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "m")
	require.NoError(t, err)

	table := c.CreateTable(ir.TableType{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: 1, Max: ir.SizeConstraintsUnbounded}}, inst)
	ok := table.Set(0, compiler.TableElem{Initialized: true, FuncIndex: 0})
	require.True(t, ok)

	children := table.gcChildren()
	require.Len(t, children, 1)
	require.Same(t, inst.Functions[0], children[0])
}
