package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wavmgo/wavm/internal/ir"
)

// resolveBlockType mirrors internal/compiler's unexported blockSig: -64
// empty, -1..-17 a bare single result type, otherwise a type index into
// m.Types. Re-derived here rather than exported from internal/compiler
// because every other caller of this rule (internal/validate,
// internal/compiler) keeps its own unexported copy too.
func resolveBlockType(m *ir.Module, bt int64) (params, results []ir.ValueType) {
	if bt == -64 {
		return nil, nil
	}
	if vt, ok := blockTypeValueType(bt); ok {
		return nil, []ir.ValueType{vt}
	}
	ft := m.Types[bt]
	return ft.Params.Types(), ft.Results.Types()
}

func blockTypeValueType(bt int64) (ir.ValueType, bool) {
	switch bt {
	case -1:
		return ir.ValueTypeI32, true
	case -2:
		return ir.ValueTypeI64, true
	case -3:
		return ir.ValueTypeF32, true
	case -4:
		return ir.ValueTypeF64, true
	case -5:
		return ir.ValueTypeV128, true
	case -16:
		return ir.ValueTypeFuncref, true
	case -17:
		return ir.ValueTypeExternref, true
	}
	return 0, false
}

// describeImm renders an instruction's mnemonic-trailing operand text, one
// case per ir.ImmKind, following Include/WAVM/IR/OperatorPrinter.h's
// per-immediate-shape dispatch.
func describeImm(m *ir.Module, n *namer, funcIdx uint32, instr ir.Instr, info ir.OpInfo) string {
	switch info.Imm {
	case ir.ImmNone:
		return ""
	case ir.ImmControlStructure:
		imm := instr.Imm.(ir.ControlStructureImm)
		params, results := resolveBlockType(m, imm.BlockType)
		return " : " + describeTuple(params) + " -> " + describeTuple(results)
	case ir.ImmSelect:
		imm := instr.Imm.(ir.SelectImm)
		var b strings.Builder
		for _, t := range imm.Types {
			fmt.Fprintf(&b, " %s", t)
		}
		return b.String()
	case ir.ImmBranch:
		imm := instr.Imm.(ir.BranchImm)
		return fmt.Sprintf(" %d", imm.Depth)
	case ir.ImmBranchTable:
		imm := instr.Imm.(ir.BranchTableImm)
		var b strings.Builder
		fmt.Fprintf(&b, " %d [", imm.Default)
		for i, t := range imm.Targets {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", t)
		}
		b.WriteByte(']')
		return b.String()
	case ir.ImmLiteral:
		return " " + describeLiteral(instr.Op, instr.Imm.(ir.LiteralImm))
	case ir.ImmVariable:
		imm := instr.Imm.(ir.VariableImm)
		if instr.Op == ir.OpLocalGet || instr.Op == ir.OpLocalSet || instr.Op == ir.OpLocalTee {
			return " " + localName(m, funcIdx, imm.Index)
		}
		return " " + n.global(imm.Index)
	case ir.ImmFunction:
		imm := instr.Imm.(ir.FunctionImm)
		return " " + n.function(imm.Index)
	case ir.ImmFunctionRef:
		imm := instr.Imm.(ir.FunctionRefImm)
		return " " + n.function(imm.Index)
	case ir.ImmCallIndirect:
		imm := instr.Imm.(ir.CallIndirectImm)
		s := " " + n.typ(imm.TypeIndex)
		if imm.TableIndex != 0 {
			s += " (table " + n.table(imm.TableIndex) + ")"
		}
		return s
	case ir.ImmLoadOrStore, ir.ImmAtomicLoadOrStore:
		memIdx, offset, alignLog2 := loadStoreFields(instr)
		s := ""
		if memIdx != 0 {
			s += fmt.Sprintf(" %s", n.memory(memIdx))
		}
		if offset != 0 {
			s += fmt.Sprintf(" offset=%d", offset)
		}
		s += fmt.Sprintf(" align=%d", uint64(1)<<alignLog2)
		return s
	case ir.ImmMemory:
		imm := instr.Imm.(ir.MemoryImm)
		if imm.Memory == 0 {
			return ""
		}
		return " " + n.memory(imm.Memory)
	case ir.ImmMemoryCopy:
		imm := instr.Imm.(ir.MemoryCopyImm)
		return fmt.Sprintf(" %s %s", n.memory(imm.Dst), n.memory(imm.Src))
	case ir.ImmTable:
		imm := instr.Imm.(ir.TableImm)
		if imm.Table == 0 {
			return ""
		}
		return " " + n.table(imm.Table)
	case ir.ImmTableCopy:
		imm := instr.Imm.(ir.TableCopyImm)
		return fmt.Sprintf(" %s %s", n.table(imm.Dst), n.table(imm.Src))
	case ir.ImmLaneIndex:
		imm := instr.Imm.(ir.LaneIndexImm)
		return fmt.Sprintf(" %d", imm.Lane)
	case ir.ImmShuffle:
		imm := instr.Imm.(ir.ShuffleImm)
		var b strings.Builder
		b.WriteString(" [")
		for i, lane := range imm.Lanes {
			if i > 0 {
				b.WriteByte(',')
			}
			if lane < 16 {
				fmt.Fprintf(&b, "a%d", lane)
			} else {
				fmt.Fprintf(&b, "b%d", lane-16)
			}
		}
		b.WriteByte(']')
		return b.String()
	case ir.ImmAtomicFence:
		return " seqcst"
	case ir.ImmExceptionType:
		imm := instr.Imm.(ir.ExceptionTypeImm)
		return " " + n.excType(imm.Index)
	case ir.ImmRethrow:
		imm := instr.Imm.(ir.RethrowImm)
		return fmt.Sprintf(" %d", imm.Depth)
	case ir.ImmDataSegmentAndMem:
		imm := instr.Imm.(ir.DataSegmentAndMemImm)
		return fmt.Sprintf(" %s %s", n.dataSeg(imm.Data), n.memory(imm.Memory))
	case ir.ImmDataSegment:
		imm := instr.Imm.(ir.DataSegmentImm)
		return " " + n.dataSeg(imm.Data)
	case ir.ImmElemSegmentAndTable:
		imm := instr.Imm.(ir.ElemSegmentAndTableImm)
		return fmt.Sprintf(" %s %s", n.elemSeg(imm.Elem), n.table(imm.Table))
	case ir.ImmElemSegment:
		imm := instr.Imm.(ir.ElemSegmentImm)
		return " " + n.elemSeg(imm.Elem)
	case ir.ImmReferenceType:
		imm := instr.Imm.(ir.ReferenceTypeImm)
		return " " + imm.Type.String()
	}
	return ""
}

func loadStoreFields(instr ir.Instr) (mem uint32, offset uint64, alignLog2 uint32) {
	switch imm := instr.Imm.(type) {
	case ir.LoadOrStoreImm:
		return imm.Memory, imm.Offset, imm.AlignLog2
	case ir.AtomicLoadOrStoreImm:
		return imm.Memory, imm.Offset, imm.AlignLog2
	}
	return 0, 0, 0
}

func describeTuple(types []ir.ValueType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func describeLiteral(op ir.Opcode, imm ir.LiteralImm) string {
	switch op {
	case ir.OpI32Const:
		return strconv.FormatInt(int64(imm.I32), 10)
	case ir.OpI64Const:
		return strconv.FormatInt(imm.I64, 10)
	case ir.OpF32Const:
		return strconv.FormatFloat(float64(imm.F32), 'g', -1, 32)
	case ir.OpF64Const:
		return strconv.FormatFloat(imm.F64, 'g', -1, 64)
	case ir.OpV128Const:
		return fmt.Sprintf("i32x4 %#x %#x %#x %#x",
			leU32(imm.V128[0:4]), leU32(imm.V128[4:8]), leU32(imm.V128[8:12]), leU32(imm.V128[12:16]))
	}
	return ""
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// printInstr renders one decoded operator as `mnemonic operands...`,
// indented by nestDepth levels of two spaces, the flat one-instruction-per-
// line rendering spec.md §4.H calls for (as opposed to WAST's nested
// s-expression folded form, which this printer does not attempt to produce).
func printInstr(m *ir.Module, n *namer, funcIdx uint32, instr ir.Instr, nestDepth int) string {
	info, ok := ir.Lookup(instr.Op)
	mnemonic := info.Mnemonic
	if !ok {
		mnemonic = fmt.Sprintf("unknown(%#x)", uint16(instr.Op))
	}
	indent := strings.Repeat("  ", nestDepth)
	return indent + mnemonic + describeImm(m, n, funcIdx, instr, info)
}
