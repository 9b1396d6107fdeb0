package validate

import "github.com/wavmgo/wavm/internal/ir"

// step applies one decoded instruction's effect to the validator state,
// per spec.md §4.E's "for each instruction" rule list.
func (v *funcValidator) step(instr ir.Instr) error {
	op := instr.Op

	if sig, ok := numericSig(op); ok {
		if err := v.popExpectAll(sig.Params); err != nil {
			return err
		}
		v.pushAll(sig.Results)
		return nil
	}

	switch op {
	case ir.OpUnreachable:
		v.setUnreachable()
		return nil
	case ir.OpNop:
		return nil

	case ir.OpBlock, ir.OpLoop, ir.OpIf:
		imm := instr.Imm.(ir.ControlStructureImm)
		params, results, err := blockTypeSig(v.m, imm.BlockType)
		if err != nil {
			return err
		}
		if err := v.popExpectAll(params); err != nil {
			return err
		}
		switch op {
		case ir.OpBlock:
			v.pushCtrl(ctrlBlock, params, results)
		case ir.OpLoop:
			v.pushCtrl(ctrlLoop, params, results)
		case ir.OpIf:
			v.pushCtrl(ctrlIfThen, params, results)
			v.top().elseParams = params
		}
		return nil

	case ir.OpElse:
		f, err := v.popCtrl()
		if err != nil {
			return err
		}
		if f.kind != ctrlIfThen {
			return invalid("else without matching if")
		}
		v.pushCtrl(ctrlIfElse, f.elseParams, f.results)
		return nil

	case ir.OpTry:
		imm := instr.Imm.(ir.ControlStructureImm)
		params, results, err := blockTypeSig(v.m, imm.BlockType)
		if err != nil {
			return err
		}
		if err := v.popExpectAll(params); err != nil {
			return err
		}
		v.pushCtrl(ctrlTry, params, results)
		return nil

	case ir.OpCatch:
		f, err := v.popCtrl()
		if err != nil {
			return err
		}
		if f.kind != ctrlTry && f.kind != ctrlCatch {
			return invalid("catch without matching try")
		}
		imm := instr.Imm.(ir.ExceptionTypeImm)
		if int(imm.Index) >= v.m.ExceptionTypeCount() {
			return invalid("catch: exception type index out of range")
		}
		params := v.m.ExceptionTypeOf(imm.Index).Params.Types()
		v.pushCtrl(ctrlCatch, params, f.results)
		return nil

	case ir.OpCatchAll:
		f, err := v.popCtrl()
		if err != nil {
			return err
		}
		if f.kind != ctrlTry && f.kind != ctrlCatch {
			return invalid("catch_all without matching try")
		}
		v.pushCtrl(ctrlCatch, nil, f.results)
		return nil

	case ir.OpEnd:
		f := v.top()
		if f.kind == ctrlIfThen && !sameTypes(f.elseParams, f.results) {
			return invalid("if without else must have identity signature")
		}
		if f.kind == ctrlTry {
			return invalid("end forbidden inside try: must catch or catch_all first")
		}
		f2, err := v.popCtrl()
		if err != nil {
			return err
		}
		if len(v.ctrl) > 0 {
			v.pushAll(f2.results)
		}
		return nil

	case ir.OpBr:
		imm := instr.Imm.(ir.BranchImm)
		f, err := v.labelFrame(imm.Depth)
		if err != nil {
			return err
		}
		if err := v.popExpectAll(f.branchTargetTypes()); err != nil {
			return err
		}
		v.setUnreachable()
		return nil

	case ir.OpBrIf:
		imm := instr.Imm.(ir.BranchImm)
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		f, err := v.labelFrame(imm.Depth)
		if err != nil {
			return err
		}
		if err := v.popExpectAll(f.branchTargetTypes()); err != nil {
			return err
		}
		v.pushAll(f.branchTargetTypes())
		return nil

	case ir.OpBrTable:
		imm := instr.Imm.(ir.BranchTableImm)
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		def, err := v.labelFrame(imm.Default)
		if err != nil {
			return err
		}
		want := def.branchTargetTypes()
		for _, d := range imm.Targets {
			f, err := v.labelFrame(d)
			if err != nil {
				return err
			}
			if !sameArity(f.branchTargetTypes(), want) {
				return invalid("br_table: inconsistent branch target arity")
			}
		}
		if err := v.popExpectAll(want); err != nil {
			return err
		}
		v.setUnreachable()
		return nil

	case ir.OpReturn:
		fn := &v.ctrl[0]
		if err := v.popExpectAll(fn.results); err != nil {
			return err
		}
		v.setUnreachable()
		return nil

	case ir.OpThrow:
		imm := instr.Imm.(ir.ExceptionTypeImm)
		if int(imm.Index) >= v.m.ExceptionTypeCount() {
			return invalid("throw: exception type index out of range")
		}
		if err := v.popExpectAll(v.m.ExceptionTypeOf(imm.Index).Params.Types()); err != nil {
			return err
		}
		v.setUnreachable()
		return nil

	case ir.OpRethrow:
		imm := instr.Imm.(ir.RethrowImm)
		f, err := v.labelFrame(imm.Depth)
		if err != nil {
			return err
		}
		if f.kind != ctrlCatch {
			return invalid("rethrow must target a catch or catch_all frame")
		}
		v.setUnreachable()
		return nil

	case ir.OpCall:
		imm := instr.Imm.(ir.FunctionImm)
		if int(imm.Index) >= v.m.FunctionCount() {
			return invalid("call: function index out of range")
		}
		ft := v.m.FunctionType(imm.Index)
		if err := v.popExpectAll(ft.Params.Types()); err != nil {
			return err
		}
		v.pushAll(ft.Results.Types())
		return nil

	case ir.OpCallIndirect:
		imm := instr.Imm.(ir.CallIndirectImm)
		if int(imm.TypeIndex) >= len(v.m.Types) {
			return invalid("call_indirect: type index out of range")
		}
		if int(imm.TableIndex) >= v.m.TableCount() {
			return invalid("call_indirect: table index out of range")
		}
		tt := v.m.TableTypeOf(imm.TableIndex)
		if tt.Element != ir.ValueTypeFuncref {
			return invalid("call_indirect: table element type must be funcref")
		}
		if err := v.popExpect(tt.IndexType); err != nil {
			return err
		}
		ft := v.m.Types[imm.TypeIndex]
		if err := v.popExpectAll(ft.Params.Types()); err != nil {
			return err
		}
		v.pushAll(ft.Results.Types())
		return nil

	case ir.OpDrop:
		return v.popExpect(ir.ValueTypeAny)

	case ir.OpSelect:
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		b, err := v.popAny()
		if err != nil {
			return err
		}
		a, err := v.popAny()
		if err != nil {
			return err
		}
		result := a
		if a == ir.ValueTypeNone {
			result = b
		}
		if !result.IsNumeric() {
			return invalid("select without an explicit type requires numeric operands")
		}
		v.push(result)
		return nil

	case ir.OpSelectT:
		imm := instr.Imm.(ir.SelectImm)
		if len(imm.Types) != 1 {
			return invalid("select with explicit type expects exactly one result type")
		}
		t := imm.Types[0]
		if err := v.popExpect(ir.ValueTypeI32); err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.push(t)
		return nil

	case ir.OpLocalGet:
		idx := instr.Imm.(ir.VariableImm).Index
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		v.push(t)
		return nil
	case ir.OpLocalSet:
		idx := instr.Imm.(ir.VariableImm).Index
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		return v.popExpect(t)
	case ir.OpLocalTee:
		idx := instr.Imm.(ir.VariableImm).Index
		t, err := v.localType(idx)
		if err != nil {
			return err
		}
		if err := v.popExpect(t); err != nil {
			return err
		}
		v.push(t)
		return nil

	case ir.OpGlobalGet:
		idx := instr.Imm.(ir.VariableImm).Index
		if int(idx) >= v.m.GlobalCount() {
			return invalid("global.get: index out of range")
		}
		v.push(v.m.GlobalTypeOf(idx).Value)
		return nil
	case ir.OpGlobalSet:
		idx := instr.Imm.(ir.VariableImm).Index
		if int(idx) >= v.m.GlobalCount() {
			return invalid("global.set: index out of range")
		}
		gt := v.m.GlobalTypeOf(idx)
		if !gt.Mutable {
			return invalid("global.set: global %d is immutable", idx)
		}
		return v.popExpect(gt.Value)

	case ir.OpTableGet:
		idx := instr.Imm.(ir.TableImm).Table
		if int(idx) >= v.m.TableCount() {
			return invalid("table.get: index out of range")
		}
		tt := v.m.TableTypeOf(idx)
		if err := v.popExpect(tt.IndexType); err != nil {
			return err
		}
		v.push(tt.Element)
		return nil
	case ir.OpTableSet:
		idx := instr.Imm.(ir.TableImm).Table
		if int(idx) >= v.m.TableCount() {
			return invalid("table.set: index out of range")
		}
		tt := v.m.TableTypeOf(idx)
		if err := v.popExpect(tt.Element); err != nil {
			return err
		}
		return v.popExpect(tt.IndexType)

	case ir.OpMemorySize:
		idx := instr.Imm.(ir.MemoryImm).Memory
		if int(idx) >= v.m.MemoryCount() {
			return invalid("memory.size: index out of range")
		}
		v.push(v.m.MemoryTypeOf(idx).IndexType)
		return nil
	case ir.OpMemoryGrow:
		idx := instr.Imm.(ir.MemoryImm).Memory
		if int(idx) >= v.m.MemoryCount() {
			return invalid("memory.grow: index out of range")
		}
		idxType := v.m.MemoryTypeOf(idx).IndexType
		if err := v.popExpect(idxType); err != nil {
			return err
		}
		v.push(idxType)
		return nil

	case ir.OpI32Const:
		v.push(ir.ValueTypeI32)
		return nil
	case ir.OpI64Const:
		v.push(ir.ValueTypeI64)
		return nil
	case ir.OpF32Const:
		v.push(ir.ValueTypeF32)
		return nil
	case ir.OpF64Const:
		v.push(ir.ValueTypeF64)
		return nil
	case ir.OpV128Const:
		v.push(ir.ValueTypeV128)
		return nil

	case ir.OpRefNull:
		v.push(instr.Imm.(ir.ReferenceTypeImm).Type)
		return nil
	case ir.OpRefIsNull:
		if _, err := v.popRef(); err != nil {
			return err
		}
		v.push(ir.ValueTypeI32)
		return nil
	case ir.OpRefFunc:
		idx := instr.Imm.(ir.FunctionRefImm).Index
		if int(idx) >= v.m.FunctionCount() {
			return invalid("ref.func: function index out of range")
		}
		if !v.declared[idx] {
			return invalid("ref.func: function %d is not declared", idx)
		}
		v.push(ir.ValueTypeFuncref)
		return nil
	}

	if info, ok := ir.Lookup(op); ok {
		switch info.Imm {
		case ir.ImmLoadOrStore:
			return v.stepLoadStore(op, instr.Imm.(ir.LoadOrStoreImm))
		case ir.ImmAtomicLoadOrStore:
			return v.stepAtomicLoadOrStore(op, instr.Imm.(ir.AtomicLoadOrStoreImm))
		case ir.ImmMemoryCopy, ir.ImmMemory, ir.ImmDataSegment, ir.ImmDataSegmentAndMem,
			ir.ImmTableCopy, ir.ImmTable, ir.ImmElemSegment, ir.ImmElemSegmentAndTable:
			return v.stepBulkMemory(op, instr.Imm)
		}
	}
	return invalid("unsupported instruction in code-stream validator")
}

func (v *funcValidator) popAny() (ir.ValueType, error) {
	f := v.top()
	if len(v.operand) == f.outerStackSize {
		if !f.reachable {
			return ir.ValueTypeNone, nil
		}
		return 0, invalid("operand stack underflow")
	}
	got := v.operand[len(v.operand)-1]
	v.operand = v.operand[:len(v.operand)-1]
	return got, nil
}

func (v *funcValidator) popRef() (ir.ValueType, error) {
	t, err := v.popAny()
	if err != nil {
		return 0, err
	}
	if t != ir.ValueTypeNone && !t.IsReference() {
		return 0, invalid("expected a reference type, got %s", t)
	}
	return t, nil
}

func sameTypes(a, b []ir.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameArity(a, b []ir.ValueType) bool { return len(a) == len(b) }
