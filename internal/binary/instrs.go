package binary

import (
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/leb128"
)

// DecodeExpr decodes a raw operator stream — a function body (after its
// local declarations) — into ir.Instr values. Wasm encodes nested control
// structures (block/loop/if/try) inline in one flat byte stream, with
// their own `else`/`end`/`catch` opcodes appearing as ordinary stream
// elements rather than a recursive framing; this decoder mirrors that:
// it reads until the buffer (the exact size-prefixed body slice) is
// exhausted, and nesting is entirely the caller's concern (see
// internal/validate's control-stack walk over the result). Decoding is
// deferred until validate/compile time (see ir.FunctionDef.Body's doc
// comment); this is the shared codec both packages call into.
//
// Prefixed opcodes (0xFC/0xFD/0xFE) carry their sub-opcode as a LEB128 u32
// per the upstream encoding; this engine's opcode space (ir.Opcode) only
// distinguishes the low byte of that value, sufficient for the subset of
// misc/SIMD/thread opcodes ir.Lookup recognizes; a sub-opcode above 255 is
// rejected as unrecognized rather than truncated.
func DecodeExpr(body []byte) ([]ir.Instr, error) {
	r := &reader{buf: body}
	var out []ir.Instr
	for r.pos < len(r.buf) {
		raw, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		op := ir.Opcode(raw)
		if raw == 0xFC || raw == 0xFD || raw == 0xFE {
			sub, err := r.readUint32()
			if err != nil {
				return nil, err
			}
			if sub > 0xFF {
				return nil, malformed("unrecognized opcode %#x %#x", raw, sub)
			}
			op = ir.Opcode(uint16(raw)<<8 | uint16(sub))
		}
		instr, err := r.decodeInstrImm(op)
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	return out, nil
}

func (r *reader) decodeInstrImm(op ir.Opcode) (ir.Instr, error) {
	info, ok := ir.Lookup(op)
	if !ok {
		return ir.Instr{}, malformed("unrecognized opcode %#x", uint16(op))
	}
	switch info.Imm {
	case ir.ImmNone, ir.ImmAtomicFence:
		if info.Imm == ir.ImmAtomicFence {
			if _, err := r.ReadByte(); err != nil { // reserved 0x00
				return ir.Instr{}, err
			}
			return ir.Instr{Op: op, Imm: ir.AtomicFenceImm{}}, nil
		}
		return ir.Instr{Op: op}, nil

	case ir.ImmControlStructure:
		bt, err := r.readInt33AsInt64()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.ControlStructureImm{BlockType: bt}}, nil

	case ir.ImmSelect:
		n, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		types := make([]ir.ValueType, n)
		for i := range types {
			vt, err := r.decodeValueType()
			if err != nil {
				return ir.Instr{}, err
			}
			types[i] = vt
		}
		return ir.Instr{Op: op, Imm: ir.SelectImm{Types: types}}, nil

	case ir.ImmBranch:
		depth, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.BranchImm{Depth: depth}}, nil

	case ir.ImmBranchTable:
		n, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		targets := make([]uint32, n)
		for i := range targets {
			t, err := r.readUint32()
			if err != nil {
				return ir.Instr{}, err
			}
			targets[i] = t
		}
		def, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.BranchTableImm{Targets: targets, Default: def}}, nil

	case ir.ImmLiteral:
		return r.decodeLiteralImm(op)

	case ir.ImmVariable, ir.ImmFunction, ir.ImmFunctionRef:
		idx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		switch info.Imm {
		case ir.ImmVariable:
			return ir.Instr{Op: op, Imm: ir.VariableImm{Index: idx}}, nil
		case ir.ImmFunction:
			return ir.Instr{Op: op, Imm: ir.FunctionImm{Index: idx}}, nil
		default:
			return ir.Instr{Op: op, Imm: ir.FunctionRefImm{Index: idx}}, nil
		}

	case ir.ImmCallIndirect:
		typeIdx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		tableIdx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.CallIndirectImm{TypeIndex: typeIdx, TableIndex: tableIdx}}, nil

	case ir.ImmLoadOrStore, ir.ImmAtomicLoadOrStore:
		alignLog2, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		memIdx := uint32(0)
		// The high bit of the align field signals an explicit memory index
		// follows (multiple-memories encoding); otherwise memory 0 is implied.
		const explicitMemFlag = 1 << 6
		if alignLog2&explicitMemFlag != 0 {
			alignLog2 &^= explicitMemFlag
			memIdx, err = r.readUint32()
			if err != nil {
				return ir.Instr{}, err
			}
		}
		offset, err := r.readUint64()
		if err != nil {
			return ir.Instr{}, err
		}
		if info.Imm == ir.ImmAtomicLoadOrStore {
			return ir.Instr{Op: op, Imm: ir.AtomicLoadOrStoreImm{Memory: memIdx, Offset: offset, AlignLog2: alignLog2}}, nil
		}
		return ir.Instr{Op: op, Imm: ir.LoadOrStoreImm{Memory: memIdx, Offset: offset, AlignLog2: alignLog2}}, nil

	case ir.ImmMemory:
		idx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.MemoryImm{Memory: idx}}, nil

	case ir.ImmMemoryCopy:
		dst, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		src, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.MemoryCopyImm{Dst: dst, Src: src}}, nil

	case ir.ImmTable:
		idx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.TableImm{Table: idx}}, nil

	case ir.ImmTableCopy:
		dst, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		src, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.TableCopyImm{Dst: dst, Src: src}}, nil

	case ir.ImmLaneIndex:
		lane, err := r.ReadByte()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.LaneIndexImm{Lane: lane}}, nil

	case ir.ImmShuffle:
		b, err := r.take(16)
		if err != nil {
			return ir.Instr{}, err
		}
		var lanes [16]byte
		copy(lanes[:], b)
		return ir.Instr{Op: op, Imm: ir.ShuffleImm{Lanes: lanes}}, nil

	case ir.ImmExceptionType:
		idx, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.ExceptionTypeImm{Index: idx}}, nil

	case ir.ImmRethrow:
		depth, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.RethrowImm{Depth: depth}}, nil

	case ir.ImmDataSegmentAndMem:
		data, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		mem, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.DataSegmentAndMemImm{Data: data, Memory: mem}}, nil

	case ir.ImmDataSegment:
		data, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.DataSegmentImm{Data: data}}, nil

	case ir.ImmElemSegmentAndTable:
		elem, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		table, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.ElemSegmentAndTableImm{Elem: elem, Table: table}}, nil

	case ir.ImmElemSegment:
		elem, err := r.readUint32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.ElemSegmentImm{Elem: elem}}, nil

	case ir.ImmReferenceType:
		rt, err := r.decodeRefType()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.ReferenceTypeImm{Type: rt}}, nil

	default:
		return ir.Instr{}, malformed("opcode %s: unhandled immediate kind", info.Mnemonic)
	}
}

func (r *reader) decodeLiteralImm(op ir.Opcode) (ir.Instr, error) {
	switch op {
	case ir.OpI32Const:
		v, err := r.readInt32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.LiteralImm{I32: v}}, nil
	case ir.OpI64Const:
		v, err := r.readInt64()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.LiteralImm{I64: v}}, nil
	case ir.OpF32Const:
		v, err := r.readFloat32()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.LiteralImm{F32: v}}, nil
	case ir.OpF64Const:
		v, err := r.readFloat64()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Instr{Op: op, Imm: ir.LiteralImm{F64: v}}, nil
	case ir.OpV128Const:
		b, err := r.take(16)
		if err != nil {
			return ir.Instr{}, err
		}
		var v [16]byte
		copy(v[:], b)
		return ir.Instr{Op: op, Imm: ir.LiteralImm{V128: v}}, nil
	}
	return ir.Instr{}, malformed("opcode %#x: unrecognized literal form", uint16(op))
}

// readInt33AsInt64 wraps leb128.DecodeInt33AsInt64, used for blocktype
// immediates (spec.md §4.C: either a value type, the empty type, or a
// signed type-section index). reader already implements io.ByteReader.
func (r *reader) readInt33AsInt64() (int64, error) {
	v, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return 0, malformed("%v", err)
	}
	return v, nil
}
