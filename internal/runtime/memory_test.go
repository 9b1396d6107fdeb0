package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wavmgo/wavm/internal/ir"
)

func TestMemoryGrowRespectsMax(t *testing.T) {
	c := NewCompartment()
	m := c.CreateMemory(ir.MemoryType{Size: ir.SizeConstraints{Min: 1, Max: 2}})
	require.NotNil(t, m)
	require.Equal(t, uint32(1), m.PageCount())

	prev, ok := m.Grow(1)
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.PageCount())

	_, ok = m.Grow(1)
	require.False(t, ok)
	require.Equal(t, uint32(2), m.PageCount())
}

func TestMemoryGetValidatedOffsetRange(t *testing.T) {
	c := NewCompartment()
	m := c.CreateMemory(ir.MemoryType{Size: ir.SizeConstraints{Min: 1, Max: ir.SizeConstraintsUnbounded}})
	require.NotNil(t, m)
	copy(m.Bytes(), []byte{1, 2, 3, 4})

	b, ok := m.GetValidatedOffsetRange(1, 2)
	require.True(t, ok)
	require.Equal(t, []byte{2, 3}, b)

	_, ok = m.GetValidatedOffsetRange(uint64(len(m.Bytes()))-1, 4)
	require.False(t, ok)
}
