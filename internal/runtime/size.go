package runtime

import "github.com/wavmgo/wavm/internal/i128"

// pageSize is the 64 KiB page granularity spec.md §4.G's memory operations
// use.
const pageSize = 64 * 1024

// pagesToBytesChecked converts a page count to a byte count without
// overflowing uint64, using i128 the way SPEC_FULL.md §3 calls for ("wire
// it into runtime memory/table growth"): grow_memory's previous-size-or-
// failure contract must never silently wrap a huge page count into a small
// committed byte slice.
func pagesToBytesChecked(pages uint64) (uint64, bool) {
	r := i128.FromUint64(pages).Mul(i128.FromUint64(pageSize))
	if r.Overflow() || r.Hi() != 0 {
		return 0, false
	}
	return r.Lo(), true
}

// addChecked returns a+b and false if the sum overflowed uint64, used by
// table.grow's previous-size + delta arithmetic (spec.md §4.G) the same way
// pagesToBytesChecked guards memory growth.
func addChecked(a, b uint64) (uint64, bool) {
	r := i128.FromUint64(a).Add(i128.FromUint64(b))
	if r.Overflow() || r.Hi() != 0 {
		return 0, false
	}
	return r.Lo(), true
}
