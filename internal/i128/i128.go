// Package i128 implements a checked 128-bit signed integer, used wherever
// the engine needs overflow-safe arithmetic over sizes larger than 64 bits
// can represent (segment offset + length, memory byte-size computation).
//
// The type and its semantics are grounded on WAVM's Inline/I128.h: every
// arithmetic operation that cannot be represented exactly sets a sticky
// overflow flag rather than wrapping, and that flag is propagated by every
// later operation that touches the value.
package i128

import "math/bits"

// Int128 is a 128-bit signed integer represented as (hi, lo) two's
// complement words, plus a sticky overflow flag.
type Int128 struct {
	hi, lo   uint64
	overflow bool
}

// FromInt64 constructs an Int128 from a sign-extended int64.
func FromInt64(v int64) Int128 {
	hi := uint64(0)
	if v < 0 {
		hi = ^uint64(0)
	}
	return Int128{hi: hi, lo: uint64(v)}
}

// FromUint64 constructs an Int128 from a zero-extended uint64.
func FromUint64(v uint64) Int128 {
	return Int128{lo: v}
}

// Overflow returns true if this value is the result of an operation that
// could not be represented exactly in 128 bits.
func (a Int128) Overflow() bool { return a.overflow }

// Hi and Lo expose the raw two's-complement words (high word first).
func (a Int128) Hi() uint64 { return a.hi }
func (a Int128) Lo() uint64 { return a.lo }

func (a Int128) negative() bool { return a.hi>>63 != 0 }

func withOverflow(a, b Int128, r Int128, overflowed bool) Int128 {
	r.overflow = a.overflow || b.overflow || overflowed
	return r
}

// Add returns a+b, flagging overflow on signed wraparound.
func (a Int128) Add(b Int128) Int128 {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(a.hi, b.hi, carry)
	r := Int128{hi: hi, lo: lo}
	// Signed overflow: operands share a sign and the result's sign differs.
	overflowed := a.negative() == b.negative() && r.negative() != a.negative()
	return withOverflow(a, b, r, overflowed)
}

// Neg returns -a.
func (a Int128) Neg() Int128 {
	lo, carry := bits.Add64(^a.lo, 1, 0)
	hi, _ := bits.Add64(^a.hi, 0, carry)
	r := Int128{hi: hi, lo: lo}
	// The only unrepresentable negation is of the minimum value.
	overflowed := a.hi == 0x8000000000000000 && a.lo == 0
	r.overflow = a.overflow || overflowed
	return r
}

// Sub returns a-b.
func (a Int128) Sub(b Int128) Int128 {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, _ := bits.Sub64(a.hi, b.hi, borrow)
	r := Int128{hi: hi, lo: lo}
	// Signed overflow: operands of different sign and a result whose sign
	// differs from a's.
	overflowed := a.negative() != b.negative() && r.negative() != a.negative()
	return withOverflow(a, b, r, overflowed)
}

// Mul returns a*b, flagging overflow whenever the exact product does not fit.
func (a Int128) Mul(b Int128) Int128 {
	aNeg, bNeg := a.negative(), b.negative()
	au, bu := a, b
	if aNeg {
		au = a.Neg()
	}
	if bNeg {
		bu = b.Neg()
	}
	// 128x128 -> 256 unsigned multiply via four 64x64 partial products,
	// keeping only the low 128 bits and detecting whether the dropped
	// high bits (or either magnitude's own high word) were nonzero.
	hi0, lo0 := bits.Mul64(au.lo, bu.lo)
	hi1a, lo1a := bits.Mul64(au.hi, bu.lo)
	hi1b, lo1b := bits.Mul64(au.lo, bu.hi)

	mid, c1 := bits.Add64(lo1a, lo1b, 0)
	hi, c2 := bits.Add64(hi0, mid, 0)

	overflowDropped := au.hi != 0 && bu.hi != 0
	overflowDropped = overflowDropped || hi1a != 0 || hi1b != 0 || c1 != 0 || c2 != 0
	lo := lo0
	r := Int128{hi: hi, lo: lo}
	if aNeg != bNeg {
		r = r.Neg()
	}
	overflowedSign := r.negative() != (aNeg != bNeg) && (r.hi != 0 || r.lo != 0)
	return withOverflow(a, b, r, overflowDropped || overflowedSign)
}

// QuoRem returns a/b and a%b truncated toward zero, as C and the Wasm spec
// define integer division. Division by zero sets the overflow flag rather
// than panicking, matching the "NaN/overflow results propagate" property.
func (a Int128) QuoRem(b Int128) (quo, rem Int128) {
	if b.hi == 0 && b.lo == 0 {
		return Int128{overflow: true}, Int128{overflow: true}
	}
	aNeg, bNeg := a.negative(), b.negative()
	au, bu := a, b
	if aNeg {
		au = a.Neg()
	}
	if bNeg {
		bu = b.Neg()
	}
	qu, ru := divu128(au.hi, au.lo, bu.hi, bu.lo)
	quo = Int128{hi: qu[0], lo: qu[1]}
	rem = Int128{hi: ru[0], lo: ru[1]}
	if aNeg != bNeg {
		quo = quo.Neg()
	}
	if aNeg {
		rem = rem.Neg()
	}
	// MIN / -1 is the only quotient that does not fit: its magnitude wraps to
	// MIN even though the operands' signs agree.
	quo.overflow = a.overflow || b.overflow || (aNeg == bNeg && quo.negative())
	rem.overflow = a.overflow || b.overflow
	return quo, rem
}

// divu128 performs unsigned 128/128 -> (128 quotient, 128 remainder) long
// division, shift-and-subtract; simple and correct, not latency-tuned.
func divu128(ahi, alo, bhi, blo uint64) (quo, rem [2]uint64) {
	if bhi == 0 && blo == 0 {
		return [2]uint64{0, 0}, [2]uint64{0, 0}
	}
	var rhi, rlo uint64
	var qhi, qlo uint64
	for i := 127; i >= 0; i-- {
		// (rhi:rlo) <<= 1, bringing in bit i of (ahi:alo).
		rhi = rhi<<1 | rlo>>63
		rlo = rlo<<1 | bitAt(ahi, alo, i)
		if ge128(rhi, rlo, bhi, blo) {
			rhi, rlo = sub128(rhi, rlo, bhi, blo)
			if i < 64 {
				qlo |= 1 << uint(i)
			} else {
				qhi |= 1 << uint(i-64)
			}
		}
	}
	return [2]uint64{qhi, qlo}, [2]uint64{rhi, rlo}
}

func bitAt(hi, lo uint64, i int) uint64 {
	if i < 64 {
		return (lo >> uint(i)) & 1
	}
	return (hi >> uint(i-64)) & 1
}

func ge128(ahi, alo, bhi, blo uint64) bool {
	if ahi != bhi {
		return ahi > bhi
	}
	return alo >= blo
}

func sub128(ahi, alo, bhi, blo uint64) (uint64, uint64) {
	lo, borrow := bits.Sub64(alo, blo, 0)
	hi, _ := bits.Sub64(ahi, bhi, borrow)
	return hi, lo
}

// Equal compares two values by their two's-complement bit pattern.
func (a Int128) Equal(b Int128) bool { return a.hi == b.hi && a.lo == b.lo }
