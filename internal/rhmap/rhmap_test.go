package rhmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func identityHash(k uint64) uint64 { return k }

func TestGetSetRoundTrip(t *testing.T) {
	m := New[uint64, string](identityHash)
	m.Set(1, "one")
	m.Set(2, "two")
	v, ok := m.Get(1)
	require.True(t, ok)
	require.Equal(t, "one", v)
	v, ok = m.Get(2)
	require.True(t, ok)
	require.Equal(t, "two", v)
	_, ok = m.Get(3)
	require.False(t, ok)
}

func TestAddRejectsDuplicate(t *testing.T) {
	m := New[uint64, string](identityHash)
	require.True(t, m.Add(1, "one"))
	require.False(t, m.Add(1, "uno"))
	v, _ := m.Get(1)
	require.Equal(t, "one", v)
}

func TestSetOverwrites(t *testing.T) {
	m := New[uint64, string](identityHash)
	m.Set(1, "one")
	m.Set(1, "uno")
	v, _ := m.Get(1)
	require.Equal(t, "uno", v)
	require.Equal(t, 1, m.Len())
}

func TestRemove(t *testing.T) {
	m := New[uint64, string](identityHash)
	m.Set(1, "one")
	m.Set(2, "two")
	require.True(t, m.Remove(1))
	_, ok := m.Get(1)
	require.False(t, ok)
	v, ok := m.Get(2)
	require.True(t, ok)
	require.Equal(t, "two", v)
	require.False(t, m.Remove(1), "already removed")
}

// TestCollisionCascade forces every key into the same ideal bucket by using
// a constant hash, exercising the Robin Hood insertion cascade and the
// backward-shift deletion path.
func TestCollisionCascade(t *testing.T) {
	m := New[uint64, uint64](func(uint64) uint64 { return 7 })
	const n = 50
	for i := uint64(0); i < n; i++ {
		m.Set(i, i*10)
	}
	require.Equal(t, n, m.Len())
	for i := uint64(0); i < n; i++ {
		v, ok := m.Get(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, i*10, v)
	}
	// Remove every other key, then confirm the rest are still reachable.
	for i := uint64(0); i < n; i += 2 {
		require.True(t, m.Remove(i))
	}
	for i := uint64(0); i < n; i++ {
		v, ok := m.Get(i)
		if i%2 == 0 {
			require.False(t, ok)
		} else {
			require.True(t, ok)
			require.Equal(t, i*10, v)
		}
	}
}

func TestGrowAndShrink(t *testing.T) {
	m := New[uint64, uint64](identityHash)
	const n = 1000
	for i := uint64(0); i < n; i++ {
		m.Set(i, i)
	}
	require.True(t, len(m.buckets) >= n)
	for i := uint64(0); i < n; i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	for i := uint64(0); i < n; i++ {
		m.Remove(i)
	}
	require.Equal(t, 0, m.Len())
	require.Equal(t, minBuckets, len(m.buckets))
}

func TestGetOrAdd(t *testing.T) {
	m := New[uint64, string](identityHash)
	calls := 0
	v, added := m.GetOrAdd(1, func() string { calls++; return "built" })
	require.True(t, added)
	require.Equal(t, "built", v)
	v, added = m.GetOrAdd(1, func() string { calls++; return "built-again" })
	require.False(t, added)
	require.Equal(t, "built", v)
	require.Equal(t, 1, calls)
}

func TestEachVisitsAllEntries(t *testing.T) {
	m := New[uint64, uint64](identityHash)
	want := map[uint64]uint64{}
	for i := uint64(0); i < 20; i++ {
		m.Set(i, i*i)
		want[i] = i * i
	}
	got := map[uint64]uint64{}
	m.Each(func(k, v uint64) bool {
		got[k] = v
		return true
	})
	require.Equal(t, want, got)
}

func TestEachStopsEarly(t *testing.T) {
	m := New[uint64, uint64](identityHash)
	for i := uint64(0); i < 20; i++ {
		m.Set(i, i)
	}
	count := 0
	m.Each(func(k, v uint64) bool {
		count++
		return count < 5
	})
	require.Equal(t, 5, count)
}

func TestAnalyzeSpaceUsage(t *testing.T) {
	m := New[uint64, uint64](func(k uint64) uint64 { return 3 })
	for i := uint64(0); i < 10; i++ {
		m.Set(i, i)
	}
	stats := m.AnalyzeSpaceUsage()
	require.Equal(t, 10, stats.Entries)
	require.True(t, stats.MaxProbe >= 9, "forced collisions should produce long probe chains")
	require.True(t, stats.Occupancy > 0)
	require.True(t, stats.TotalBytes > 0)
}

// Set is a thin HashSet built atop Map[K, struct{}], exercising the same
// Robin Hood core with a zero-sized value type.
func TestSetWrapper(t *testing.T) {
	s := NewSet[uint64](identityHash)
	require.True(t, s.Add(1))
	require.False(t, s.Add(1))
	require.True(t, s.Contains(1))
	require.False(t, s.Contains(2))
	require.True(t, s.Remove(1))
	require.False(t, s.Contains(1))
}
