package compiler

import (
	"encoding/binary"
	"math"

	"github.com/wavmgo/wavm/internal/ir"
)

// execSIMDOrAtomic handles the representative v128/atomic opcode subset
// ir.Opcode carries (the spec treats full SIMD/threads coverage as out of
// scope — see SPEC_FULL.md §4 — so this mirrors exactly the slice
// internal/ir/operators.go declares, not the complete proposal). Returns
// false for anything else.
func (s *execState) execSIMDOrAtomic(instr ir.Instr) bool {
	switch instr.Op {
	case ir.OpV128Load:
		imm := instr.Imm.(ir.LoadOrStoreImm)
		mem := s.ec.Memories[imm.Memory]
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 16)
		var v [16]byte
		copy(v[:], mem.Bytes()[ea:ea+16])
		s.pushV128(v)

	case ir.OpV128Store:
		imm := instr.Imm.(ir.LoadOrStoreImm)
		v := s.popV128()
		mem := s.ec.Memories[imm.Memory]
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 16)
		copy(mem.Bytes()[ea:ea+16], v[:])

	case ir.OpV128Const:
		s.pushV128(instr.Imm.(ir.LiteralImm).V128)

	case ir.OpI8x16Shuffle:
		imm := instr.Imm.(ir.ShuffleImm)
		b := s.popV128()
		a := s.popV128()
		var out [16]byte
		combined := append(append([]byte{}, a[:]...), b[:]...)
		for i, lane := range imm.Lanes {
			out[i] = combined[lane]
		}
		s.pushV128(out)

	case ir.OpV128Not:
		a := s.popV128()
		var out [16]byte
		for i := range out {
			out[i] = ^a[i]
		}
		s.pushV128(out)
	case ir.OpV128And:
		b, a := s.popV128(), s.popV128()
		var out [16]byte
		for i := range out {
			out[i] = a[i] & b[i]
		}
		s.pushV128(out)
	case ir.OpV128Or:
		b, a := s.popV128(), s.popV128()
		var out [16]byte
		for i := range out {
			out[i] = a[i] | b[i]
		}
		s.pushV128(out)
	case ir.OpV128Xor:
		b, a := s.popV128(), s.popV128()
		var out [16]byte
		for i := range out {
			out[i] = a[i] ^ b[i]
		}
		s.pushV128(out)

	case ir.OpI32x4Splat:
		v := s.popI32()
		var out [16]byte
		for lane := 0; lane < 4; lane++ {
			binary.LittleEndian.PutUint32(out[lane*4:], uint32(v))
		}
		s.pushV128(out)
	case ir.OpI32x4Add:
		b, a := s.popV128(), s.popV128()
		s.pushV128(i32x4Binop(a, b, func(av, bv int32) int32 { return av + bv }))
	case ir.OpI32x4Sub:
		b, a := s.popV128(), s.popV128()
		s.pushV128(i32x4Binop(a, b, func(av, bv int32) int32 { return av - bv }))
	case ir.OpI32x4Mul:
		b, a := s.popV128(), s.popV128()
		s.pushV128(i32x4Binop(a, b, func(av, bv int32) int32 { return av * bv }))

	case ir.OpF32x4Add:
		b, a := s.popV128(), s.popV128()
		var out [16]byte
		for lane := 0; lane < 4; lane++ {
			av := f32Lane(a, lane)
			bv := f32Lane(b, lane)
			f32LaneSet(&out, lane, av+bv)
		}
		s.pushV128(out)

	case ir.OpAtomicFence:
		// Single-threaded reference interpreter: nothing to fence against.

	case ir.OpI32AtomicLoad:
		imm := instr.Imm.(ir.AtomicLoadOrStoreImm)
		mem := s.ec.Memories[imm.Memory]
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, ir.LoadOrStoreImm(imm), addr, 4)
		s.pushI32(int32(binary.LittleEndian.Uint32(mem.Bytes()[ea:])))

	case ir.OpI32AtomicStore:
		imm := instr.Imm.(ir.AtomicLoadOrStoreImm)
		v := s.popI32()
		mem := s.ec.Memories[imm.Memory]
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, ir.LoadOrStoreImm(imm), addr, 4)
		binary.LittleEndian.PutUint32(mem.Bytes()[ea:], uint32(v))

	case ir.OpI32AtomicRmwAdd:
		imm := instr.Imm.(ir.AtomicLoadOrStoreImm)
		v := s.popI32()
		mem := s.ec.Memories[imm.Memory]
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, ir.LoadOrStoreImm(imm), addr, 4)
		b := mem.Bytes()
		old := binary.LittleEndian.Uint32(b[ea:])
		binary.LittleEndian.PutUint32(b[ea:], old+uint32(v))
		s.pushI32(int32(old))

	case ir.OpMemoryAtomicNotify:
		imm := instr.Imm.(ir.AtomicLoadOrStoreImm)
		mem := s.ec.Memories[imm.Memory]
		_ = s.popU32() // count requested
		addr := s.popMemIndex(mem)
		_ = effectiveAddr(mem, ir.LoadOrStoreImm(imm), addr, 4)
		s.pushI32(0) // no waiters: this interpreter never blocks a thread.

	case ir.OpMemoryAtomicWait32:
		imm := instr.Imm.(ir.AtomicLoadOrStoreImm)
		mem := s.ec.Memories[imm.Memory]
		_ = s.popI64() // timeout, ignored: never actually waits
		expected := s.popI32()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, ir.LoadOrStoreImm(imm), addr, 4)
		actual := int32(binary.LittleEndian.Uint32(mem.Bytes()[ea:]))
		if actual != expected {
			s.pushI32(1) // "not-equal"
		} else {
			s.pushI32(2) // "timed-out": single-threaded, nobody will ever notify
		}

	default:
		return false
	}
	return true
}

// i32x4Binop applies f lanewise to a (the first/older stack operand) and b
// (the second/TOS operand), in that order.
func i32x4Binop(a, b [16]byte, f func(av, bv int32) int32) [16]byte {
	var out [16]byte
	for lane := 0; lane < 4; lane++ {
		av := int32(binary.LittleEndian.Uint32(a[lane*4:]))
		bv := int32(binary.LittleEndian.Uint32(b[lane*4:]))
		binary.LittleEndian.PutUint32(out[lane*4:], uint32(f(av, bv)))
	}
	return out
}

func f32Lane(v [16]byte, lane int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v[lane*4:]))
}

func f32LaneSet(v *[16]byte, lane int, f float32) {
	binary.LittleEndian.PutUint32(v[lane*4:], math.Float32bits(f))
}
