package i128

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randInt128(r *rand.Rand) Int128 {
	return Int128{hi: r.Uint64(), lo: r.Uint64()}
}

func isEqualOrOverflow(a, b Int128) bool {
	return a.Overflow() || b.Overflow() || a.Equal(b)
}

// TestProperties exercises the algebraic identities spec.md §8 lists for
// I128 arithmetic, grounded on original_source/Test/I128/I128Test.cpp.
func TestProperties(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		a, b, c := randInt128(r), randInt128(r), randInt128(r)

		require.True(t, isEqualOrOverflow(a.Sub(a), FromInt64(0)), "a-a=0")
		require.True(t, isEqualOrOverflow(a.Add(a.Neg()), FromInt64(0)), "a+(-a)=0")
		require.True(t, isEqualOrOverflow(a.Add(FromInt64(0)), a), "a+0=a")
		require.True(t, isEqualOrOverflow(a.Add(b), b.Add(a)), "a+b=b+a")
		require.True(t, isEqualOrOverflow(a.Add(b).Add(c), a.Add(b.Add(c))), "(a+b)+c=a+(b+c)")
		require.True(t, isEqualOrOverflow(a.Mul(FromInt64(1)), a), "a*1=a")
		require.True(t, isEqualOrOverflow(a.Mul(b), b.Mul(a)), "a*b=b*a")
		require.True(t, isEqualOrOverflow(a.Mul(b).Mul(c), a.Mul(b.Mul(c))), "(a*b)*c=a*(b*c)")
		require.True(t, isEqualOrOverflow(a.Mul(b.Add(c)), a.Mul(b).Add(a.Mul(c))), "a*(b+c)=a*b+a*c")

		if !(b.hi == 0 && b.lo == 0) {
			q, rem := a.QuoRem(b)
			require.True(t, isEqualOrOverflow(q.Mul(b).Add(rem), a), "(a/b)*b+(a%%b)=a")
		}
	}
}

func TestDivideByZeroOverflows(t *testing.T) {
	q, rem := FromInt64(10).QuoRem(FromInt64(0))
	require.True(t, q.Overflow())
	require.True(t, rem.Overflow())
}

func TestFromInt64RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40)} {
		got := FromInt64(v)
		require.Equal(t, v, int64(got.lo))
		require.False(t, got.Overflow())
	}
}
