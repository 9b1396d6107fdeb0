package modgen

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/validate"
)

// TestGenValidatesAcrossSeeds is an end-to-end test: every module Gen
// produces, for a range of seed sizes, must pass validate.Module.
func TestGenValidatesAcrossSeeds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 2, 5, 10, 50, 100} {
		for i := 0; i < 20; i++ {
			seed := make([]byte, size)
			_, err := r.Read(seed)
			require.NoError(t, err)

			m := Gen(seed)
			require.NoError(t, validate.Module(m), "size=%d seed=%x", size, seed)
		}
	}
}

func TestGenEmptySeedReturnsEmptyModule(t *testing.T) {
	m := Gen(nil)
	require.Equal(t, &ir.Module{}, m)
}

type testRand struct {
	ints   []int
	intPos int
	bufs   [][]byte
	bufPos int
}

var _ random = &testRand{}

func (tr *testRand) Intn(n int) int {
	ret := tr.ints[tr.intPos] % n
	tr.intPos = (tr.intPos + 1) % len(tr.ints)
	return ret
}

func (tr *testRand) Read(p []byte) (n int, err error) {
	buf := tr.bufs[tr.bufPos]
	copy(p, buf)
	tr.bufPos = (tr.bufPos + 1) % len(tr.bufs)
	return len(p), nil
}

func newGenerator(size int, ints []int, bufs [][]byte) *generator {
	return &generator{size: size, rands: []random{&testRand{ints: ints, bufs: bufs}}, m: &ir.Module{}}
}

func TestGenerator_newValueType(t *testing.T) {
	g := newGenerator(0, []int{0, 1, 2, 3, 0}, nil)
	require.Equal(t,
		[]ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI64, ir.ValueTypeF32, ir.ValueTypeF64, ir.ValueTypeI32},
		[]ir.ValueType{g.newValueType(), g.newValueType(), g.newValueType(), g.newValueType(), g.newValueType()},
	)
}

func TestGenerator_newFunctionType(t *testing.T) {
	g := newGenerator(0, []int{0, 1, 2, 3, 0, 1, 2, 3}, nil)
	ft := g.newFunctionType(2, 2)
	require.Equal(t, []ir.ValueType{ir.ValueTypeI32, ir.ValueTypeI64}, ft.Params.Types())
	require.Equal(t, []ir.ValueType{ir.ValueTypeF32, ir.ValueTypeF64}, ft.Results.Types())
}

func TestGenerator_newConstExpr(t *testing.T) {
	t.Run("i32", func(t *testing.T) {
		g := newGenerator(100, []int{0, 100, 1}, nil)
		init, typ := g.newConstExpr()
		require.Equal(t, ir.ValueTypeI32, typ)
		require.Equal(t, ir.Initializer{Kind: ir.InitExprI32Const, I32: 100}, init)
	})
	t.Run("global.get restricted to imports", func(t *testing.T) {
		g := newGenerator(100, []int{4, 0}, nil)
		g.importedGlobalTypes = []ir.GlobalType{{Value: ir.ValueTypeF32}}
		init, typ := g.newConstExpr()
		require.Equal(t, ir.ValueTypeF32, typ)
		require.Equal(t, ir.Initializer{Kind: ir.InitExprGlobalGet, GlobalIdx: 0}, init)
	})
}

func TestGenerator_exportSection(t *testing.T) {
	m := &ir.Module{
		FunctionDefs: make([]ir.FunctionDef, 2),
		GlobalDefs:   make([]ir.GlobalDef, 2),
		TableDefs:    []ir.TableType{{}},
		MemoryDefs:   []ir.MemoryType{{}},
	}
	// possible = [func0, func1, global0, global1, table0, memory0];
	// ints[0] picks numExports=4, the rest pick func0/global0/table0/memory0.
	g := newGenerator(5, []int{4, 0, 2, 4, 5}, nil)
	g.m = m

	g.exportSection()
	require.Equal(t, []ir.Export{
		{Kind: ir.ExportKindFunction, Index: 0, Name: "0"},
		{Kind: ir.ExportKindGlobal, Index: 0, Name: "1"},
		{Kind: ir.ExportKindTable, Index: 0, Name: "2"},
		{Kind: ir.ExportKindMemory, Index: 0, Name: "3"},
	}, m.Exports)
}
