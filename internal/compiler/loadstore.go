package compiler

import (
	"encoding/binary"
	"math"

	"github.com/wavmgo/wavm/internal/ir"
)

// effectiveAddr computes the byte offset imm.Offset + the dynamic address
// operand, trapping on overflow or on the access extending past the
// memory's committed bytes (spec.md §4.G's bounds-checked offset range).
func effectiveAddr(mem Memory, imm ir.LoadOrStoreImm, dynAddr uint64, width int) int {
	ea := dynAddr + imm.Offset
	if ea < dynAddr {
		panic(trap(TrapMemoryOutOfBounds, "memory access: address overflow"))
	}
	b := mem.Bytes()
	if ea+uint64(width) > uint64(len(b)) {
		panic(trap(TrapMemoryOutOfBounds, "memory access: out of bounds"))
	}
	return int(ea)
}

// execLoadStore handles every i32/i64/f32/f64.load*/store* instruction. It
// returns false for anything else, leaving step's dispatch to continue.
func (s *execState) execLoadStore(instr ir.Instr) bool {
	imm, ok := instr.Imm.(ir.LoadOrStoreImm)
	if !ok {
		return false
	}
	mem := s.ec.Memories[imm.Memory]

	switch instr.Op {
	case ir.OpI32Load:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		s.pushI32(int32(binary.LittleEndian.Uint32(mem.Bytes()[ea:])))
	case ir.OpI64Load:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 8)
		s.pushI64(int64(binary.LittleEndian.Uint64(mem.Bytes()[ea:])))
	case ir.OpF32Load:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		s.pushF32(math.Float32frombits(binary.LittleEndian.Uint32(mem.Bytes()[ea:])))
	case ir.OpF64Load:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 8)
		s.pushF64(math.Float64frombits(binary.LittleEndian.Uint64(mem.Bytes()[ea:])))

	case ir.OpI32Load8S:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		s.pushI32(int32(int8(mem.Bytes()[ea])))
	case ir.OpI32Load8U:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		s.pushI32(int32(mem.Bytes()[ea]))
	case ir.OpI32Load16S:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		s.pushI32(int32(int16(binary.LittleEndian.Uint16(mem.Bytes()[ea:]))))
	case ir.OpI32Load16U:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		s.pushI32(int32(binary.LittleEndian.Uint16(mem.Bytes()[ea:])))

	case ir.OpI64Load8S:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		s.pushI64(int64(int8(mem.Bytes()[ea])))
	case ir.OpI64Load8U:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		s.pushI64(int64(mem.Bytes()[ea]))
	case ir.OpI64Load16S:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		s.pushI64(int64(int16(binary.LittleEndian.Uint16(mem.Bytes()[ea:]))))
	case ir.OpI64Load16U:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		s.pushI64(int64(binary.LittleEndian.Uint16(mem.Bytes()[ea:])))
	case ir.OpI64Load32S:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		s.pushI64(int64(int32(binary.LittleEndian.Uint32(mem.Bytes()[ea:]))))
	case ir.OpI64Load32U:
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		s.pushI64(int64(binary.LittleEndian.Uint32(mem.Bytes()[ea:])))

	case ir.OpI32Store:
		v := s.popI32()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		binary.LittleEndian.PutUint32(mem.Bytes()[ea:], uint32(v))
	case ir.OpI64Store:
		v := s.popI64()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 8)
		binary.LittleEndian.PutUint64(mem.Bytes()[ea:], uint64(v))
	case ir.OpF32Store:
		v := s.popF32()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		binary.LittleEndian.PutUint32(mem.Bytes()[ea:], math.Float32bits(v))
	case ir.OpF64Store:
		v := s.popF64()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 8)
		binary.LittleEndian.PutUint64(mem.Bytes()[ea:], math.Float64bits(v))

	case ir.OpI32Store8:
		v := s.popI32()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		mem.Bytes()[ea] = byte(v)
	case ir.OpI32Store16:
		v := s.popI32()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		binary.LittleEndian.PutUint16(mem.Bytes()[ea:], uint16(v))
	case ir.OpI64Store8:
		v := s.popI64()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 1)
		mem.Bytes()[ea] = byte(v)
	case ir.OpI64Store16:
		v := s.popI64()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 2)
		binary.LittleEndian.PutUint16(mem.Bytes()[ea:], uint16(v))
	case ir.OpI64Store32:
		v := s.popI64()
		addr := s.popMemIndex(mem)
		ea := effectiveAddr(mem, imm, addr, 4)
		binary.LittleEndian.PutUint32(mem.Bytes()[ea:], uint32(v))

	default:
		return false
	}
	return true
}
