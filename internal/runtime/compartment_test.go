package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

func TestCollectGarbageSweepsUnrootedObjects(t *testing.T) {
	c := NewCompartment()
	c.CreateMemory(ir.MemoryType{Size: ir.SizeConstraints{Min: 1, Max: ir.SizeConstraintsUnbounded}})
	require.Len(t, c.memories, 1)

	c.CollectGarbage()
	require.Empty(t, c.memories)
}

func TestCollectGarbageKeepsRootedObjects(t *testing.T) {
	c := NewCompartment()
	table := c.CreateTable(ir.TableType{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: 1, Max: ir.SizeConstraintsUnbounded}}, nil)

	root := NewGCRoot(table)
	defer root.Clear()

	c.CollectGarbage()
	require.Len(t, c.tables, 1)
	require.Same(t, table, c.tables[0])
}

func TestCollectGarbageKeepsInstanceReachableFromRootedFunction(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)
	c := NewCompartment()
	ctx := c.CreateContext()
	inst, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "m")
	require.NoError(t, err)
	require.Len(t, c.instances, 1)

	root := NewGCRoot(inst.Functions[0])
	defer root.Clear()

	c.CollectGarbage()
	require.Len(t, c.instances, 1)
	require.Same(t, inst, c.instances[0])
}

func TestCollectGarbageDropsInstanceWithNoRootedFunction(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)
	c := NewCompartment()
	ctx := c.CreateContext()
	_, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "m")
	require.NoError(t, err)
	require.Len(t, c.instances, 1)

	c.CollectGarbage()
	require.Empty(t, c.instances)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	m := addModule()
	cm := mustLoad(t, m)
	c := NewCompartment()
	ctx := c.CreateContext()
	inst, err := InstantiateModule(c, ctx, cm, &LinkResult{}, "m")
	require.NoError(t, err)

	clone := c.Clone()
	require.Len(t, clone.instances, 1)
	require.NotSame(t, inst, clone.instances[0])
	require.Equal(t, inst.DebugName, clone.instances[0].DebugName)

	cloneCtx := clone.CreateContext()
	exp, ok := clone.instances[0].Lookup("add")
	require.True(t, ok)
	results, err := InvokeFunctionUnchecked(cloneCtx, clone.instances[0].Functions[exp.Index], []uint64{5, 6})
	require.NoError(t, err)
	require.Equal(t, []uint64{11}, results)
}
