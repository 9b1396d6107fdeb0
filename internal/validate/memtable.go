package validate

import (
	"math"
	"math/bits"

	"github.com/wavmgo/wavm/internal/ir"
)

// stepLoadStore validates a regular (non-atomic) load or store: spec.md
// §4.E's "Memory/table polymorphism" (the effective address's index type
// tracks the accessed memory, not a fixed i32), "Alignment" (the declared
// alignment must not exceed the access's natural size), and "Offsets" (an
// i32-indexed memory's offset immediate must fit in u32).
func (v *funcValidator) stepLoadStore(op ir.Opcode, imm ir.LoadOrStoreImm) error {
	return v.checkMemoryAccess(op, imm.Memory, imm.Offset, imm.AlignLog2, false)
}

// stepAtomicLoadOrStore is stepLoadStore's atomic counterpart: atomics
// require the declared alignment to equal the natural size exactly, not
// merely not exceed it.
func (v *funcValidator) stepAtomicLoadOrStore(op ir.Opcode, imm ir.AtomicLoadOrStoreImm) error {
	return v.checkMemoryAccess(op, imm.Memory, imm.Offset, imm.AlignLog2, true)
}

func (v *funcValidator) checkMemoryAccess(op ir.Opcode, memIdx uint32, offset uint64, alignLog2 uint32, atomic bool) error {
	info, _ := ir.Lookup(op)
	if int(memIdx) >= v.m.MemoryCount() {
		return invalid("%s: memory index out of range", info.Mnemonic)
	}
	mt := v.m.MemoryTypeOf(memIdx)
	if mt.IndexType == ir.ValueTypeI32 && offset > math.MaxUint32 {
		return invalid("%s: offset %d exceeds the i32 address space", info.Mnemonic, offset)
	}

	size, ok := naturalAccessSize(op)
	if !ok {
		return invalid("%s: unsupported memory access", info.Mnemonic)
	}
	maxAlign := uint32(bits.Len32(size)) - 1
	if atomic && alignLog2 != maxAlign {
		return invalid("%s: atomic access must be naturally aligned", info.Mnemonic)
	}
	if !atomic && alignLog2 > maxAlign {
		return invalid("%s: alignment 2**%d exceeds natural alignment", info.Mnemonic, alignLog2)
	}

	switch op {
	case ir.OpMemoryAtomicWait32:
		if err := v.popExpect(ir.ValueTypeI64); err != nil {
			return err
		}
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		if err := v.popExpect(mt.IndexType); err != nil {
			return err
		}
		v.push(ir.ValueTypeI32)
		return nil
	case ir.OpMemoryAtomicNotify, ir.OpI32AtomicRmwAdd:
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		if err := v.popExpect(mt.IndexType); err != nil {
			return err
		}
		v.push(ir.ValueTypeI32)
		return nil
	}

	valueType, isStore := loadStoreValueType(op)
	if isStore {
		if err := v.popExpect(valueType); err != nil {
			return err
		}
		return v.popExpect(mt.IndexType)
	}
	if err := v.popExpect(mt.IndexType); err != nil {
		return err
	}
	v.push(valueType)
	return nil
}

// naturalAccessSize returns a load/store/atomic opcode's access width in
// bytes, used to bound its alignment immediate.
func naturalAccessSize(op ir.Opcode) (uint32, bool) {
	switch op {
	case ir.OpI32Load, ir.OpI32Store, ir.OpF32Load, ir.OpF32Store,
		ir.OpI64Load32S, ir.OpI64Load32U, ir.OpI64Store32,
		ir.OpI32AtomicLoad, ir.OpI32AtomicStore, ir.OpI32AtomicRmwAdd,
		ir.OpMemoryAtomicNotify, ir.OpMemoryAtomicWait32:
		return 4, true
	case ir.OpI64Load, ir.OpI64Store, ir.OpF64Load, ir.OpF64Store:
		return 8, true
	case ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Store8,
		ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Store8:
		return 1, true
	case ir.OpI32Load16S, ir.OpI32Load16U, ir.OpI32Store16,
		ir.OpI64Load16S, ir.OpI64Load16U, ir.OpI64Store16:
		return 2, true
	case ir.OpV128Load, ir.OpV128Store:
		return 16, true
	}
	return 0, false
}

// loadStoreValueType returns a (non-RMW, non-notify/wait) load or store
// opcode's value type, and whether it's a store (pops the value) rather
// than a load (pushes it).
func loadStoreValueType(op ir.Opcode) (ir.ValueType, bool) {
	switch op {
	case ir.OpI32Load, ir.OpI32Load8S, ir.OpI32Load8U, ir.OpI32Load16S, ir.OpI32Load16U,
		ir.OpI32AtomicLoad:
		return ir.ValueTypeI32, false
	case ir.OpI64Load, ir.OpI64Load8S, ir.OpI64Load8U, ir.OpI64Load16S, ir.OpI64Load16U,
		ir.OpI64Load32S, ir.OpI64Load32U:
		return ir.ValueTypeI64, false
	case ir.OpF32Load:
		return ir.ValueTypeF32, false
	case ir.OpF64Load:
		return ir.ValueTypeF64, false
	case ir.OpV128Load:
		return ir.ValueTypeV128, false
	case ir.OpI32Store, ir.OpI32Store8, ir.OpI32Store16, ir.OpI32AtomicStore:
		return ir.ValueTypeI32, true
	case ir.OpI64Store, ir.OpI64Store8, ir.OpI64Store16, ir.OpI64Store32:
		return ir.ValueTypeI64, true
	case ir.OpF32Store:
		return ir.ValueTypeF32, true
	case ir.OpF64Store:
		return ir.ValueTypeF64, true
	case ir.OpV128Store:
		return ir.ValueTypeV128, true
	}
	return 0, false
}

// stepBulkMemory validates every memory.*/table.*/*.init/*.drop/*.copy/
// *.fill instruction, per spec.md §4.E's bulk-memory rules: each checks its
// segment/memory/table indices are in range, and (for table ops) that
// element types are compatible, before applying its stack effect.
func (v *funcValidator) stepBulkMemory(op ir.Opcode, imm interface{}) error {
	info, _ := ir.Lookup(op)

	switch op {
	case ir.OpMemoryFill:
		mi := imm.(ir.MemoryImm)
		if int(mi.Memory) >= v.m.MemoryCount() {
			return invalid("%s: memory index out of range", info.Mnemonic)
		}
		idxType := v.m.MemoryTypeOf(mi.Memory).IndexType
		return v.popExpectAll([]ir.ValueType{idxType, ir.ValueTypeI32, idxType})

	case ir.OpMemoryCopy:
		mc := imm.(ir.MemoryCopyImm)
		if int(mc.Dst) >= v.m.MemoryCount() || int(mc.Src) >= v.m.MemoryCount() {
			return invalid("%s: memory index out of range", info.Mnemonic)
		}
		dstType := v.m.MemoryTypeOf(mc.Dst).IndexType
		srcType := v.m.MemoryTypeOf(mc.Src).IndexType
		return v.popExpectAll([]ir.ValueType{dstType, srcType, bulkSizeType(dstType, srcType)})

	case ir.OpMemoryInit:
		mi := imm.(ir.DataSegmentAndMemImm)
		if int(mi.Data) >= len(v.m.DataSegments) {
			return invalid("%s: data segment index out of range", info.Mnemonic)
		}
		if int(mi.Memory) >= v.m.MemoryCount() {
			return invalid("%s: memory index out of range", info.Mnemonic)
		}
		idxType := v.m.MemoryTypeOf(mi.Memory).IndexType
		return v.popExpectAll([]ir.ValueType{idxType, ir.ValueTypeI32, ir.ValueTypeI32})

	case ir.OpDataDrop:
		dd := imm.(ir.DataSegmentImm)
		if int(dd.Data) >= len(v.m.DataSegments) {
			return invalid("%s: data segment index out of range", info.Mnemonic)
		}
		return nil

	case ir.OpTableCopy:
		tc := imm.(ir.TableCopyImm)
		if int(tc.Dst) >= v.m.TableCount() || int(tc.Src) >= v.m.TableCount() {
			return invalid("%s: table index out of range", info.Mnemonic)
		}
		dstTT := v.m.TableTypeOf(tc.Dst)
		srcTT := v.m.TableTypeOf(tc.Src)
		if !ir.IsSubtype(srcTT.Element, dstTT.Element) {
			return invalid("%s: source table element type not a subtype of destination", info.Mnemonic)
		}
		return v.popExpectAll([]ir.ValueType{dstTT.IndexType, srcTT.IndexType, bulkSizeType(dstTT.IndexType, srcTT.IndexType)})

	case ir.OpTableInit:
		ti := imm.(ir.ElemSegmentAndTableImm)
		if int(ti.Elem) >= len(v.m.ElementSegments) {
			return invalid("%s: element segment index out of range", info.Mnemonic)
		}
		if int(ti.Table) >= v.m.TableCount() {
			return invalid("%s: table index out of range", info.Mnemonic)
		}
		tt := v.m.TableTypeOf(ti.Table)
		seg := v.m.ElementSegments[ti.Elem]
		if !ir.IsSubtype(seg.ElementType, tt.Element) {
			return invalid("%s: element segment type not a subtype of table element type", info.Mnemonic)
		}
		return v.popExpectAll([]ir.ValueType{tt.IndexType, ir.ValueTypeI32, ir.ValueTypeI32})

	case ir.OpElemDrop:
		ed := imm.(ir.ElemSegmentImm)
		if int(ed.Elem) >= len(v.m.ElementSegments) {
			return invalid("%s: element segment index out of range", info.Mnemonic)
		}
		return nil

	case ir.OpTableGrow:
		ti := imm.(ir.TableImm)
		if int(ti.Table) >= v.m.TableCount() {
			return invalid("%s: table index out of range", info.Mnemonic)
		}
		tt := v.m.TableTypeOf(ti.Table)
		if err := v.popExpect(tt.IndexType); err != nil {
			return err
		}
		if err := v.popExpect(tt.Element); err != nil {
			return err
		}
		v.push(tt.IndexType)
		return nil

	case ir.OpTableSize:
		ti := imm.(ir.TableImm)
		if int(ti.Table) >= v.m.TableCount() {
			return invalid("%s: table index out of range", info.Mnemonic)
		}
		v.push(v.m.TableTypeOf(ti.Table).IndexType)
		return nil

	case ir.OpTableFill:
		ti := imm.(ir.TableImm)
		if int(ti.Table) >= v.m.TableCount() {
			return invalid("%s: table index out of range", info.Mnemonic)
		}
		tt := v.m.TableTypeOf(ti.Table)
		return v.popExpectAll([]ir.ValueType{tt.IndexType, tt.Element, tt.IndexType})
	}

	return invalid("unsupported bulk-memory instruction")
}

// bulkSizeType is memory.copy/table.copy's size operand type: i32 if either
// side is 32-bit indexed, else i64 (mirrors the narrower of the two).
func bulkSizeType(a, b ir.ValueType) ir.ValueType {
	if a == ir.ValueTypeI32 || b == ir.ValueTypeI32 {
		return ir.ValueTypeI32
	}
	return ir.ValueTypeI64
}
