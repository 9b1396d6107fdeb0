package validate

import (
	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
)

type ctrlKind byte

const (
	ctrlFunction ctrlKind = iota
	ctrlBlock
	ctrlLoop
	ctrlIfThen
	ctrlIfElse
	ctrlTry
	ctrlCatch
)

// ctrlFrame is spec.md §4.E's ControlContext.
type ctrlFrame struct {
	kind           ctrlKind
	params         []ir.ValueType
	results        []ir.ValueType
	elseParams     []ir.ValueType // if-then's declared signature, checked against results at a bare end
	outerStackSize int
	reachable      bool
}

// branchTargetTypes returns the types br/br_if/br_table check against:
// params for loop (the retry point), results for every other frame kind.
func (f *ctrlFrame) branchTargetTypes() []ir.ValueType {
	if f.kind == ctrlLoop {
		return f.params
	}
	return f.results
}

type funcValidator struct {
	m        *ir.Module
	declared map[uint32]bool
	locals   []ir.ValueType
	operand  []ir.ValueType
	ctrl     []ctrlFrame
}

func (v *funcValidator) top() *ctrlFrame { return &v.ctrl[len(v.ctrl)-1] }

func (v *funcValidator) pushCtrl(kind ctrlKind, params, results []ir.ValueType) {
	v.operand = append(v.operand, params...)
	v.ctrl = append(v.ctrl, ctrlFrame{
		kind: kind, params: params, results: results,
		outerStackSize: len(v.operand) - len(params),
		reachable:      true,
	})
}

// popCtrl checks the exiting frame's operand stack equals exactly
// outer_stack_size + results, then pops the frame and pushes its results
// onto the enclosing frame.
func (v *funcValidator) popCtrl() (ctrlFrame, error) {
	f := v.top()
	for _, t := range reverse(f.results) {
		if err := v.popExpect(t); err != nil {
			return ctrlFrame{}, err
		}
	}
	if len(v.operand) != f.outerStackSize {
		return ctrlFrame{}, invalid("end: operand stack has extra values")
	}
	v.ctrl = v.ctrl[:len(v.ctrl)-1]
	return *f, nil
}

func reverse(ts []ir.ValueType) []ir.ValueType {
	out := make([]ir.ValueType, len(ts))
	for i, t := range ts {
		out[len(ts)-1-i] = t
	}
	return out
}

func (v *funcValidator) setUnreachable() {
	f := v.top()
	v.operand = v.operand[:f.outerStackSize]
	f.reachable = false
}

func (v *funcValidator) push(t ir.ValueType) { v.operand = append(v.operand, t) }

func (v *funcValidator) pushAll(ts []ir.ValueType) {
	for _, t := range ts {
		v.push(t)
	}
}

// popExpect pops the top of the operand stack and checks it against
// expected using is_subtype; in an unreachable region, popping below the
// frame base yields the polymorphic `none` type, which subtypes anything.
func (v *funcValidator) popExpect(expected ir.ValueType) error {
	f := v.top()
	if len(v.operand) == f.outerStackSize {
		if !f.reachable {
			return nil
		}
		return invalid("operand stack underflow")
	}
	got := v.operand[len(v.operand)-1]
	v.operand = v.operand[:len(v.operand)-1]
	if !ir.IsSubtype(got, expected) {
		return invalid("type mismatch: expected %s, got %s", expected, got)
	}
	return nil
}

func (v *funcValidator) popExpectAll(ts []ir.ValueType) error {
	for _, t := range reverse(ts) {
		if err := v.popExpect(t); err != nil {
			return err
		}
	}
	return nil
}

// labelFrame returns the control frame `depth` levels up from the top
// (depth 0 is the innermost enclosing structured instruction).
func (v *funcValidator) labelFrame(depth uint32) (*ctrlFrame, error) {
	if int(depth) >= len(v.ctrl) {
		return nil, invalid("branch depth %d out of range", depth)
	}
	return &v.ctrl[len(v.ctrl)-1-int(depth)], nil
}

func (v *funcValidator) localType(idx uint32) (ir.ValueType, error) {
	if int(idx) >= len(v.locals) {
		return 0, invalid("local index %d out of range", idx)
	}
	return v.locals[idx], nil
}

// blockTypeSig resolves a blocktype immediate (spec.md §4.C/§4.D: -64 for
// empty, -1..-17 for a bare single result type, or a non-negative type
// index) to its (params, results) pair.
func blockTypeSig(m *ir.Module, bt int64) (params, results []ir.ValueType, err error) {
	switch {
	case bt == -64:
		return nil, nil, nil
	case bt < 0:
		vt, ok := valueTypeFromBlockType(bt)
		if !ok {
			return nil, nil, invalid("unrecognized block type %d", bt)
		}
		return nil, []ir.ValueType{vt}, nil
	default:
		if int(bt) >= len(m.Types) {
			return nil, nil, invalid("block type index %d out of range", bt)
		}
		ft := m.Types[bt]
		return ft.Params.Types(), ft.Results.Types(), nil
	}
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

// validateFunction runs the code-stream validator over function funcIdx
// (an index in the combined import+def space; must be module-defined).
func validateFunction(m *ir.Module, funcIdx uint32, declared map[uint32]bool) error {
	def := m.FunctionDefs[int(funcIdx)-len(m.FunctionImports)]
	ft := m.Types[def.TypeIndex]

	instrs, err := binary.DecodeExpr(def.Body)
	if err != nil {
		return err
	}

	v := &funcValidator{m: m, declared: declared}
	v.locals = append(v.locals, ft.Params.Types()...)
	v.locals = append(v.locals, def.LocalTypes...)
	v.ctrl = []ctrlFrame{{kind: ctrlFunction, params: ft.Results.Types(), results: ft.Results.Types(), reachable: true}}

	for _, instr := range instrs {
		if err := v.step(instr); err != nil {
			return err
		}
	}
	if len(v.ctrl) != 0 {
		return invalid("function body missing end")
	}
	return nil
}
