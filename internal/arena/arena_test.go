package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateWithinSegment(t *testing.T) {
	a := New(64)
	b1 := a.Allocate(10)
	b2 := a.Allocate(10)
	require.Len(t, b1, 10)
	require.Len(t, b2, 10)
	require.Equal(t, 20, a.TotalAllocated())
}

func TestAllocateSpansSegments(t *testing.T) {
	a := New(16)
	a.Allocate(10)
	a.Allocate(10) // doesn't fit in remaining 6 bytes, new segment
	require.Len(t, a.segments, 2)
}

func TestReallocateGrowsInPlace(t *testing.T) {
	a := New(64)
	b := a.Allocate(4)
	copy(b, []byte{1, 2, 3, 4})
	grown := a.Reallocate(b, 4, 8)
	require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, grown)
	require.Len(t, a.segments, 1, "grow in place must not allocate a new segment")
}

func TestReallocateFallsBackWhenNotLast(t *testing.T) {
	a := New(64)
	first := a.Allocate(4)
	a.Allocate(4) // first is no longer the tail allocation
	grown := a.Reallocate(first, 4, 8)
	require.Len(t, grown, 8)
}

func TestMarkRestore(t *testing.T) {
	a := New(16)
	a.Allocate(4)
	m := a.Mark()
	a.Allocate(4)
	a.Allocate(32) // forces a new segment
	require.Len(t, a.segments, 2)
	m.Restore()
	require.Len(t, a.segments, 1)
	require.Equal(t, 4, a.TotalAllocated())
}
