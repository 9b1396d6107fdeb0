package compiler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/wavmgo/wavm/internal/ir"
)

// slotCount is the number of 64-bit operand-stack/locals slots a value of
// type t occupies: one for every scalar, two for v128 (lo/hi halves),
// mirroring how the invocation ABI (spec.md §4.G) aligns v128 arguments to
// 16 bytes in the scratch buffer while everything else is 8-byte aligned.
func slotCount(t ir.ValueType) int {
	if t == ir.ValueTypeV128 {
		return 2
	}
	return 1
}

func slotsOf(types []ir.ValueType) int {
	n := 0
	for _, t := range types {
		n += slotCount(t)
	}
	return n
}

// blockSig resolves a ControlStructureImm.BlockType the same way
// internal/validate's unexported blockTypeSig does (spec.md §4.C/§4.D):
// -64 empty, -1..-17 a bare single result type, otherwise a type index.
func blockSig(types []*ir.FunctionType, bt int64) (params, results []ir.ValueType) {
	if bt == -64 {
		return nil, nil
	}
	if vt, ok := valueTypeFromBlockType(bt); ok {
		return nil, []ir.ValueType{vt}
	}
	ft := types[bt]
	return ft.Params.Types(), ft.Results.Types()
}

func valueTypeFromBlockType(bt int64) (ir.ValueType, bool) {
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

// catchClause is one `catch`/`catch_all` handler inside a try region.
type catchClause struct {
	pc      int
	typeIdx uint32
	isAll   bool
}

// ctrlFrame is the runtime control-frame stack entry: spec.md §4.E's
// ControlContext, tracked here at execution time (not just validation
// time) so br/br_if/br_table/rethrow can find their target.
type ctrlFrame struct {
	isLoop      bool
	isTry       bool
	stackBase   int // operand-stack slot height at entry (below params)
	paramSlots  int
	resultSlots int
	startPC     int // loop: jump-back target (the loop body's first instruction)
	endPC       int
	catches     []catchClause
	activeExc   error // set while executing inside one of this frame's catch handlers
}

// blockInfo is precomputed once per function body: for every
// block/loop/if/try opcode's index, its matching `end` index and (for
// `if`) its matching `else` index, plus (for `try`) its catch clauses.
// Grounded on the same single-pass nesting-counter idiom
// internal/validate's control stack walk uses.
type blockInfo struct {
	elsePC  int // -1 if none
	endPC   int
	catches []catchClause
}

func buildBlockInfo(instrs []ir.Instr) map[int]*blockInfo {
	info := make(map[int]*blockInfo)
	var stack []int
	for i, instr := range instrs {
		switch instr.Op {
		case ir.OpBlock, ir.OpLoop, ir.OpIf, ir.OpTry:
			stack = append(stack, i)
			info[i] = &blockInfo{elsePC: -1}
		case ir.OpElse:
			top := stack[len(stack)-1]
			info[top].elsePC = i
		case ir.OpCatch:
			top := stack[len(stack)-1]
			imm := instr.Imm.(ir.ExceptionTypeImm)
			info[top].catches = append(info[top].catches, catchClause{pc: i, typeIdx: imm.Index})
		case ir.OpCatchAll:
			top := stack[len(stack)-1]
			info[top].catches = append(info[top].catches, catchClause{pc: i, isAll: true})
		case ir.OpEnd:
			if len(stack) == 0 {
				continue // function-level end
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			info[top].endPC = i
		}
	}
	return info
}

// execState is one Execute call's working state.
type execState struct {
	ec            *ExecContext
	instrs        []ir.Instr
	blocks        map[int]*blockInfo
	stack         []uint64
	ctrl          []ctrlFrame
	locals        []uint64
	localTypes    []ir.ValueType
	localOffsets  []int
}

func (s *execState) push(v uint64) { s.stack = append(s.stack, v) }
func (s *execState) pop() uint64 {
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v
}
func (s *execState) pushI32(v int32)   { s.push(uint64(uint32(v))) }
func (s *execState) pushI64(v int64)   { s.push(uint64(v)) }
func (s *execState) pushF32(v float32) { s.push(uint64(math.Float32bits(v))) }
func (s *execState) pushF64(v float64) { s.push(math.Float64bits(v)) }
func (s *execState) popI32() int32     { return int32(uint32(s.pop())) }
func (s *execState) popU32() uint32    { return uint32(s.pop()) }
func (s *execState) popI64() int64     { return int64(s.pop()) }
func (s *execState) popU64() uint64    { return s.pop() }
func (s *execState) popF32() float32   { return math.Float32frombits(uint32(s.pop())) }
func (s *execState) popF64() float64   { return math.Float64frombits(s.pop()) }
func (s *execState) pushV128(v [16]byte) {
	s.push(binary.LittleEndian.Uint64(v[0:8]))
	s.push(binary.LittleEndian.Uint64(v[8:16]))
}
func (s *execState) popV128() [16]byte {
	var v [16]byte
	hi := s.pop()
	lo := s.pop()
	binary.LittleEndian.PutUint64(v[0:8], lo)
	binary.LittleEndian.PutUint64(v[8:16], hi)
	return v
}

func (s *execState) popTableIndex(tableIdx uint32) uint64 {
	if s.ec.Tables[tableIdx].Is64() {
		return s.pop()
	}
	return uint64(s.popU32())
}
func (s *execState) pushTableIndex(tableIdx uint32, v uint64) {
	if s.ec.Tables[tableIdx].Is64() {
		s.push(v)
	} else {
		s.push(uint64(uint32(v)))
	}
}
func (s *execState) popMemIndex(mem Memory) uint64 {
	if mem.Is64() {
		return s.pop()
	}
	return uint64(s.popU32())
}
func (s *execState) pushMemIndex(mem Memory, v uint64) {
	if mem.Is64() {
		s.push(v)
	} else {
		s.push(uint64(uint32(v)))
	}
}

const pageSize = 64 * 1024

// packElem encodes a TableElem onto the operand stack as a single 64-bit
// reference value: bit 0 set means initialized, bit 1 set means non-null,
// and (when non-null) bit 2 distinguishes funcref (0) from externref (1),
// with the payload in the remaining high bits.
func packElem(elemType ir.ValueType, e TableElem) uint64 {
	if !e.Initialized {
		return 0
	}
	if e.IsNull {
		return 1
	}
	if elemType == ir.ValueTypeExternref {
		return e.ExternRef<<3 | 0b111
	}
	return uint64(e.FuncIndex)<<3 | 0b011
}

func unpackElem(v uint64) TableElem {
	if v&1 == 0 {
		return TableElem{}
	}
	if v&0b10 == 0 {
		return TableElem{Initialized: true, IsNull: true}
	}
	if v&0b100 != 0 {
		return TableElem{Initialized: true, ExternRef: v >> 3}
	}
	return TableElem{Initialized: true, FuncIndex: uint32(v >> 3)}
}

// Execute runs fn against ec with the given argument slots (one uint64 per
// slot, v128 args occupying two consecutive slots lo,hi — see slotCount),
// returning its result slots or the error that aborted it: a *Trap for a
// trapping instruction, or whatever ec.Throw/ec.CallFunc/ec.CallIndirectFunc
// returned for an uncaught user exception.
func Execute(fn *CompiledFunction, ec *ExecContext, args []uint64) (results []uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	paramTypes := fn.Type.Params.Types()
	allLocalTypes := append(append([]ir.ValueType{}, paramTypes...), fn.LocalTypes...)
	offsets := make([]int, len(allLocalTypes))
	off := 0
	for i, t := range allLocalTypes {
		offsets[i] = off
		off += slotCount(t)
	}
	locals := make([]uint64, off)
	copy(locals, args)

	resultSlots := slotsOf(fn.Type.Results.Types())
	s := &execState{
		ec:           ec,
		instrs:       fn.Instrs,
		blocks:       buildBlockInfo(fn.Instrs),
		locals:       locals,
		localTypes:   allLocalTypes,
		localOffsets: offsets,
	}
	s.ctrl = []ctrlFrame{{stackBase: 0, paramSlots: 0, resultSlots: resultSlots, endPC: len(fn.Instrs)}}

	pc := 0
	for pc < len(s.instrs) && len(s.ctrl) > 0 {
		next, jumped := s.step(pc)
		if jumped {
			pc = next
		} else {
			pc++
		}
	}
	out := make([]uint64, resultSlots)
	base := len(s.stack) - resultSlots
	if base < 0 {
		base = 0
	}
	copy(out, s.stack[base:])
	return out, nil
}

// step executes the instruction at pc, returning (newPC, true) if control
// flow jumped (branch, loop back-edge, call-through-end) or (_, false) to
// fall through to pc+1. It panics a *Trap (or a propagating user
// exception) on any trapping/uncaught condition, caught by Execute's
// deferred recover.
func (s *execState) step(pc int) (int, bool) {
	instr := s.instrs[pc]
	ec := s.ec

	if fn, ok := numericOp(instr.Op); ok {
		fn(s)
		return 0, false
	}
	if s.execLoadStore(instr) {
		return 0, false
	}
	if s.execSIMDOrAtomic(instr) {
		return 0, false
	}

	switch instr.Op {
	case ir.OpNop:
		return 0, false

	case ir.OpUnreachable:
		panic(trap(TrapUnreachable, "unreachable executed"))

	case ir.OpDrop:
		s.pop()
		return 0, false

	case ir.OpSelect, ir.OpSelectT:
		n := 1
		if sel, ok := instr.Imm.(ir.SelectImm); ok && len(sel.Types) > 0 {
			n = slotCount(sel.Types[0])
		}
		c := s.popI32()
		b := make([]uint64, n)
		for i := n - 1; i >= 0; i-- {
			b[i] = s.pop()
		}
		a := make([]uint64, n)
		for i := n - 1; i >= 0; i-- {
			a[i] = s.pop()
		}
		if c != 0 {
			for _, v := range a {
				s.push(v)
			}
		} else {
			for _, v := range b {
				s.push(v)
			}
		}
		return 0, false

	case ir.OpBlock, ir.OpLoop, ir.OpIf:
		imm := instr.Imm.(ir.ControlStructureImm)
		params, results := blockSig(ec.Types, imm.BlockType)
		bi := s.blocks[pc]
		pSlots, rSlots := slotsOf(params), slotsOf(results)
		switch instr.Op {
		case ir.OpLoop:
			base := len(s.stack) - pSlots
			// startPC is the loop body's first instruction, not the `loop`
			// opcode itself: branching back here must resume execution,
			// not push a second frame by re-stepping OpLoop.
			s.ctrl = append(s.ctrl, ctrlFrame{isLoop: true, stackBase: base, paramSlots: pSlots, resultSlots: pSlots, startPC: pc + 1, endPC: bi.endPC})
		case ir.OpBlock:
			base := len(s.stack) - pSlots
			s.ctrl = append(s.ctrl, ctrlFrame{stackBase: base, paramSlots: pSlots, resultSlots: rSlots, endPC: bi.endPC})
		case ir.OpIf:
			c := s.popI32()
			base := len(s.stack) - pSlots
			s.ctrl = append(s.ctrl, ctrlFrame{stackBase: base, paramSlots: pSlots, resultSlots: rSlots, endPC: bi.endPC})
			if c == 0 {
				if bi.elsePC >= 0 {
					return bi.elsePC + 1, true
				}
				return bi.endPC, true
			}
		}
		return 0, false

	case ir.OpElse, ir.OpCatch, ir.OpCatchAll:
		// Reached only by falling straight through the preceding arm
		// (if-then with no exception / try body with no exception):
		// that arm's results are already on the stack, so skip the
		// remaining arms and let the frame's own `end` do the exit
		// bookkeeping.
		f := &s.ctrl[len(s.ctrl)-1]
		return f.endPC, true

	case ir.OpTry:
		imm := instr.Imm.(ir.ControlStructureImm)
		params, results := blockSig(ec.Types, imm.BlockType)
		bi := s.blocks[pc]
		pSlots, rSlots := slotsOf(params), slotsOf(results)
		base := len(s.stack) - pSlots
		s.ctrl = append(s.ctrl, ctrlFrame{isTry: true, stackBase: base, paramSlots: pSlots, resultSlots: rSlots, endPC: bi.endPC, catches: bi.catches})
		return 0, false

	case ir.OpThrow:
		imm := instr.Imm.(ir.ExceptionTypeImm)
		argSlots := ec.ExceptionParamSlots(imm.Index)
		args := make([]uint64, argSlots)
		for i := argSlots - 1; i >= 0; i-- {
			args[i] = s.pop()
		}
		uerr := ec.Throw(imm.Index, args)
		if target, ok := s.unwindToHandler(uerr); ok {
			return target, true
		}
		panic(uerr)

	case ir.OpRethrow:
		imm := instr.Imm.(ir.RethrowImm)
		f := s.ctrl[len(s.ctrl)-1-int(imm.Depth)]
		if !f.isTry || f.activeExc == nil {
			panic(trap(TrapInvalidArgument, "rethrow: no active exception at target frame"))
		}
		if target, ok := s.unwindToHandler(f.activeExc); ok {
			return target, true
		}
		panic(f.activeExc)

	case ir.OpEnd:
		f := s.ctrl[len(s.ctrl)-1]
		s.ctrl = s.ctrl[:len(s.ctrl)-1]
		want := f.stackBase + f.resultSlots
		if len(s.stack) > want {
			copy(s.stack[f.stackBase:], s.stack[len(s.stack)-f.resultSlots:])
			s.stack = s.stack[:want]
		}
		return 0, false

	case ir.OpBr:
		imm := instr.Imm.(ir.BranchImm)
		return s.branch(imm.Depth), true

	case ir.OpBrIf:
		imm := instr.Imm.(ir.BranchImm)
		c := s.popI32()
		if c == 0 {
			return 0, false
		}
		return s.branch(imm.Depth), true

	case ir.OpBrTable:
		imm := instr.Imm.(ir.BranchTableImm)
		idx := s.popU32()
		depth := imm.Default
		if int(idx) < len(imm.Targets) {
			depth = imm.Targets[idx]
		}
		return s.branch(depth), true

	case ir.OpReturn:
		return s.branch(uint32(len(s.ctrl) - 1)), true

	case ir.OpCall:
		imm := instr.Imm.(ir.FunctionImm)
		ft := ec.FuncType(imm.Index)
		argSlots := slotsOf(ft.Params.Types())
		args := make([]uint64, argSlots)
		for i := argSlots - 1; i >= 0; i-- {
			args[i] = s.pop()
		}
		res, err := ec.CallFunc(imm.Index, args)
		if err != nil {
			if target, ok := s.unwindToHandler(err); ok {
				return target, true
			}
			panic(err)
		}
		for _, v := range res {
			s.push(v)
		}
		return 0, false

	case ir.OpCallIndirect:
		imm := instr.Imm.(ir.CallIndirectImm)
		elemIdx := s.popTableIndex(imm.TableIndex)
		ft := ec.Types[imm.TypeIndex]
		argSlots := slotsOf(ft.Params.Types())
		args := make([]uint64, argSlots)
		for i := argSlots - 1; i >= 0; i-- {
			args[i] = s.pop()
		}
		res, err := ec.CallIndirectFunc(imm.TableIndex, imm.TypeIndex, elemIdx, args)
		if err != nil {
			if target, ok := s.unwindToHandler(err); ok {
				return target, true
			}
			panic(err)
		}
		for _, v := range res {
			s.push(v)
		}
		return 0, false

	case ir.OpLocalGet:
		imm := instr.Imm.(ir.VariableImm)
		off := s.localOffsets[imm.Index]
		n := slotCount(s.localTypes[imm.Index])
		for i := 0; i < n; i++ {
			s.push(s.locals[off+i])
		}
		return 0, false

	case ir.OpLocalSet, ir.OpLocalTee:
		imm := instr.Imm.(ir.VariableImm)
		off := s.localOffsets[imm.Index]
		n := slotCount(s.localTypes[imm.Index])
		vals := make([]uint64, n)
		for i := n - 1; i >= 0; i-- {
			vals[i] = s.pop()
		}
		copy(s.locals[off:off+n], vals)
		if instr.Op == ir.OpLocalTee {
			for _, v := range vals {
				s.push(v)
			}
		}
		return 0, false

	case ir.OpGlobalGet:
		imm := instr.Imm.(ir.VariableImm)
		g := ec.Globals[imm.Index]
		if g.Type().Value == ir.ValueTypeV128 {
			s.pushV128(g.GetV128())
		} else {
			s.push(g.Get())
		}
		return 0, false

	case ir.OpGlobalSet:
		imm := instr.Imm.(ir.VariableImm)
		g := ec.Globals[imm.Index]
		if g.Type().Value == ir.ValueTypeV128 {
			g.SetV128(s.popV128())
		} else {
			g.Set(s.pop())
		}
		return 0, false

	case ir.OpTableGet:
		imm := instr.Imm.(ir.TableImm)
		i := s.popTableIndex(imm.Table)
		e, ok := ec.Tables[imm.Table].Get(i)
		if !ok {
			panic(trap(TrapTableOutOfBounds, "table.get: index out of bounds"))
		}
		if !e.Initialized {
			panic(trap(TrapUninitializedTableElement, "table.get: uninitialized element"))
		}
		s.push(packElem(ec.Tables[imm.Table].ElementType(), e))
		return 0, false

	case ir.OpTableSet:
		imm := instr.Imm.(ir.TableImm)
		v := s.pop()
		i := s.popTableIndex(imm.Table)
		if !ec.Tables[imm.Table].Set(i, unpackElem(v)) {
			panic(trap(TrapTableOutOfBounds, "table.set: index out of bounds"))
		}
		return 0, false

	case ir.OpTableGrow:
		imm := instr.Imm.(ir.TableImm)
		tbl := ec.Tables[imm.Table]
		delta := s.popTableIndex(imm.Table)
		fillV := s.pop()
		prev, ok := tbl.Grow(delta, unpackElem(fillV))
		if !ok {
			s.pushTableIndex(imm.Table, ^uint64(0))
		} else {
			s.pushTableIndex(imm.Table, prev)
		}
		return 0, false

	case ir.OpTableSize:
		imm := instr.Imm.(ir.TableImm)
		s.pushTableIndex(imm.Table, ec.Tables[imm.Table].Len())
		return 0, false

	case ir.OpTableFill:
		imm := instr.Imm.(ir.TableImm)
		tbl := ec.Tables[imm.Table]
		n := s.popTableIndex(imm.Table)
		fillV := s.pop()
		i := s.popTableIndex(imm.Table)
		e := unpackElem(fillV)
		for k := uint64(0); k < n; k++ {
			if !tbl.Set(i+k, e) {
				panic(trap(TrapTableOutOfBounds, "table.fill: out of bounds"))
			}
		}
		return 0, false

	case ir.OpTableCopy:
		imm := instr.Imm.(ir.TableCopyImm)
		n := s.popTableIndex(imm.Dst)
		src := s.popTableIndex(imm.Src)
		dst := s.popTableIndex(imm.Dst)
		dstTbl, srcTbl := ec.Tables[imm.Dst], ec.Tables[imm.Src]
		for k := uint64(0); k < n; k++ {
			e, ok := srcTbl.Get(src + k)
			if !ok || !dstTbl.Set(dst+k, e) {
				panic(trap(TrapTableOutOfBounds, "table.copy: out of bounds"))
			}
		}
		return 0, false

	case ir.OpTableInit:
		imm := instr.Imm.(ir.ElemSegmentAndTableImm)
		n := uint64(s.popU32())
		src := uint64(s.popU32())
		dst := s.popTableIndex(imm.Table)
		elems := ec.ElemSegment(imm.Elem)
		tbl := ec.Tables[imm.Table]
		for k := uint64(0); k < n; k++ {
			if src+k >= uint64(len(elems)) {
				panic(trap(TrapTableOutOfBounds, "table.init: segment out of bounds"))
			}
			if !tbl.Set(dst+k, elems[src+k]) {
				panic(trap(TrapTableOutOfBounds, "table.init: table out of bounds"))
			}
		}
		return 0, false

	case ir.OpElemDrop:
		imm := instr.Imm.(ir.ElemSegmentImm)
		ec.DropElem(imm.Elem)
		return 0, false

	case ir.OpRefNull:
		s.push(1) // Initialized+null, regardless of reference kind.
		return 0, false

	case ir.OpRefIsNull:
		e := unpackElem(s.pop())
		if e.IsNull {
			s.pushI32(1)
		} else {
			s.pushI32(0)
		}
		return 0, false

	case ir.OpRefFunc:
		imm := instr.Imm.(ir.FunctionRefImm)
		s.push(packElem(ir.ValueTypeFuncref, TableElem{Initialized: true, FuncIndex: imm.Index}))
		return 0, false

	case ir.OpMemorySize:
		imm := instr.Imm.(ir.MemoryImm)
		mem := ec.Memories[imm.Memory]
		pages := uint64(len(mem.Bytes()) / pageSize)
		s.pushMemIndex(mem, pages)
		return 0, false

	case ir.OpMemoryGrow:
		imm := instr.Imm.(ir.MemoryImm)
		mem := ec.Memories[imm.Memory]
		delta := uint32(s.popMemIndex(mem))
		prev, ok := mem.Grow(delta)
		if !ok {
			s.pushMemIndex(mem, ^uint64(0))
		} else {
			s.pushMemIndex(mem, uint64(prev))
		}
		return 0, false

	case ir.OpMemoryFill:
		imm := instr.Imm.(ir.MemoryImm)
		mem := ec.Memories[imm.Memory]
		n := s.popMemIndex(mem)
		val := byte(s.popU32())
		off := s.popMemIndex(mem)
		b := mem.Bytes()
		if off+n > uint64(len(b)) || off+n < off {
			panic(trap(TrapMemoryOutOfBounds, "memory.fill: out of bounds"))
		}
		for i := uint64(0); i < n; i++ {
			b[off+i] = val
		}
		return 0, false

	case ir.OpMemoryCopy:
		imm := instr.Imm.(ir.MemoryCopyImm)
		dstMem, srcMem := ec.Memories[imm.Dst], ec.Memories[imm.Src]
		n := s.popMemIndex(dstMem)
		src := s.popMemIndex(srcMem)
		dst := s.popMemIndex(dstMem)
		sb, db := srcMem.Bytes(), dstMem.Bytes()
		if src+n > uint64(len(sb)) || dst+n > uint64(len(db)) {
			panic(trap(TrapMemoryOutOfBounds, "memory.copy: out of bounds"))
		}
		copy(db[dst:dst+n], sb[src:src+n])
		return 0, false

	case ir.OpMemoryInit:
		imm := instr.Imm.(ir.DataSegmentAndMemImm)
		mem := ec.Memories[imm.Memory]
		n := s.popMemIndex(mem)
		src := uint64(s.popU32())
		dst := s.popMemIndex(mem)
		data := ec.DataSegment(imm.Data)
		if src+n > uint64(len(data)) {
			panic(trap(TrapMemoryOutOfBounds, "memory.init: segment out of bounds"))
		}
		b := mem.Bytes()
		if dst+n > uint64(len(b)) {
			panic(trap(TrapMemoryOutOfBounds, "memory.init: memory out of bounds"))
		}
		copy(b[dst:dst+n], data[src:src+n])
		return 0, false

	case ir.OpDataDrop:
		imm := instr.Imm.(ir.DataSegmentImm)
		ec.DropData(imm.Data)
		return 0, false

	case ir.OpI32Const:
		s.pushI32(instr.Imm.(ir.LiteralImm).I32)
		return 0, false
	case ir.OpI64Const:
		s.pushI64(instr.Imm.(ir.LiteralImm).I64)
		return 0, false
	case ir.OpF32Const:
		s.pushF32(instr.Imm.(ir.LiteralImm).F32)
		return 0, false
	case ir.OpF64Const:
		s.pushF64(instr.Imm.(ir.LiteralImm).F64)
		return 0, false
	case ir.OpV128Const:
		s.pushV128(instr.Imm.(ir.LiteralImm).V128)
		return 0, false
	}

	panic(trap(TrapInvalidArgument, fmt.Sprintf("unimplemented opcode %#x", instr.Op)))
}

// branch implements spec.md §4.E's branch-target rule: depth 0 is the
// innermost frame. For a loop target, trim the operand stack to the loop's
// parameter arity, pop every frame nested inside the loop (keeping the
// loop's own frame) and jump to the first instruction of the loop body; for
// anything else, jump past its matching `end` after trimming the operand
// stack to its result arity and popping every frame up to and including the
// target.
func (s *execState) branch(depth uint32) int {
	idx := len(s.ctrl) - 1 - int(depth)
	f := s.ctrl[idx]
	if f.isLoop {
		arity := f.paramSlots
		top := append([]uint64(nil), s.stack[len(s.stack)-arity:]...)
		s.stack = s.stack[:f.stackBase]
		s.stack = append(s.stack, top...)
		s.ctrl = s.ctrl[:idx+1]
		return f.startPC
	}
	arity := f.resultSlots
	top := append([]uint64(nil), s.stack[len(s.stack)-arity:]...)
	s.stack = s.stack[:f.stackBase]
	s.stack = append(s.stack, top...)
	s.ctrl = s.ctrl[:idx]
	if idx == 0 {
		return len(s.instrs) // function-level return: run off the end
	}
	return f.endPC
}

// unwindToHandler propagates err (a user exception from throw/rethrow or a
// nested call) looking for the innermost open try frame with a matching
// catch/catch_all clause. *Trap values are never caught: traps propagate
// straight out of Execute (spec.md §4.G's predefined exception list is a
// distinct channel from user-declared exception types).
func (s *execState) unwindToHandler(err error) (int, bool) {
	if _, isTrap := err.(*Trap); isTrap {
		return 0, false
	}
	for i := len(s.ctrl) - 1; i >= 0; i-- {
		f := &s.ctrl[i]
		if !f.isTry {
			continue
		}
		for _, c := range f.catches {
			if c.isAll {
				s.stack = s.stack[:f.stackBase]
				f.activeExc = err
				s.ctrl = s.ctrl[:i+1]
				return c.pc + 1, true
			}
			if args, ok := s.ec.CatchMatch(err, c.typeIdx); ok {
				s.stack = s.stack[:f.stackBase]
				for _, a := range args {
					s.push(a)
				}
				f.activeExc = err
				s.ctrl = s.ctrl[:i+1]
				return c.pc + 1, true
			}
		}
	}
	return 0, false
}
