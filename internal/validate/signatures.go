// Package validate implements spec.md §4.E's two-phase validator: module-
// level checks over the decoded ir.Module, then a per-function code-stream
// validator enforcing the stack-based type discipline with subtyping and
// polymorphic unreachable regions. Grounded on the shape implied by the
// stripped internal/wasm/func_validation_test.go (a table of minimal
// modules paired with accept/reject expectations) — the validator below is
// structured to make that kind of table easy to write against this
// package's own types.
package validate

import "github.com/wavmgo/wavm/internal/ir"

// Sig is an instruction's parameter and result type tuple — monomorphic
// instructions look theirs up once; polymorphic ones (call, loads/stores,
// local/global/table access, select) compute it per occurrence.
type Sig struct {
	Params  []ir.ValueType
	Results []ir.ValueType
}

func sig(params, results []ir.ValueType) Sig { return Sig{Params: params, Results: results} }

func t1(a ir.ValueType) []ir.ValueType          { return []ir.ValueType{a} }
func t2(a, b ir.ValueType) []ir.ValueType       { return []ir.ValueType{a, b} }
func t3(a, b, c ir.ValueType) []ir.ValueType    { return []ir.ValueType{a, b, c} }

var (
	i32, i64, f32, f64 = ir.ValueTypeI32, ir.ValueTypeI64, ir.ValueTypeF32, ir.ValueTypeF64
)

// numericSig returns the signature of the fixed-arity numeric/comparison
// instructions, whose opcodes form contiguous byte ranges by category
// (spec.md §4.C's taxonomy groups them the same way the raw opcode table
// does). Returns ok=false for anything outside this range, including all
// control/variable/memory/table/reference instructions handled elsewhere.
func numericSig(op ir.Opcode) (Sig, bool) {
	switch {
	case op == ir.OpI32Eqz:
		return sig(t1(i32), t1(i32)), true
	case op >= ir.OpI32Eq && op <= ir.OpI32GeU:
		return sig(t2(i32, i32), t1(i32)), true
	case op == ir.OpI64Eqz:
		return sig(t1(i64), t1(i32)), true
	case op >= ir.OpI64Eq && op <= ir.OpI64GeU:
		return sig(t2(i64, i64), t1(i32)), true
	case op >= ir.OpF32Eq && op <= ir.OpF32Ge:
		return sig(t2(f32, f32), t1(i32)), true
	case op >= ir.OpF64Eq && op <= ir.OpF64Ge:
		return sig(t2(f64, f64), t1(i32)), true

	case op >= ir.OpI32Clz && op <= ir.OpI32Popcnt:
		return sig(t1(i32), t1(i32)), true
	case op >= ir.OpI32Add && op <= ir.OpI32Rotr:
		return sig(t2(i32, i32), t1(i32)), true
	case op >= ir.OpI64Clz && op <= ir.OpI64Popcnt:
		return sig(t1(i64), t1(i64)), true
	case op >= ir.OpI64Add && op <= ir.OpI64Rotr:
		return sig(t2(i64, i64), t1(i64)), true

	case op >= ir.OpF32Abs && op <= ir.OpF32Sqrt:
		return sig(t1(f32), t1(f32)), true
	case op >= ir.OpF32Add && op <= ir.OpF32Copysign:
		return sig(t2(f32, f32), t1(f32)), true
	case op >= ir.OpF64Abs && op <= ir.OpF64Sqrt:
		return sig(t1(f64), t1(f64)), true
	case op >= ir.OpF64Add && op <= ir.OpF64Copysign:
		return sig(t2(f64, f64), t1(f64)), true

	case op == ir.OpI32WrapI64:
		return sig(t1(i64), t1(i32)), true
	case op == ir.OpI32TruncF32S || op == ir.OpI32TruncF32U:
		return sig(t1(f32), t1(i32)), true
	case op == ir.OpI32TruncF64S || op == ir.OpI32TruncF64U:
		return sig(t1(f64), t1(i32)), true
	case op == ir.OpI64ExtendI32S || op == ir.OpI64ExtendI32U:
		return sig(t1(i32), t1(i64)), true
	case op == ir.OpI64TruncF32S || op == ir.OpI64TruncF32U:
		return sig(t1(f32), t1(i64)), true
	case op == ir.OpI64TruncF64S || op == ir.OpI64TruncF64U:
		return sig(t1(f64), t1(i64)), true
	case op == ir.OpF32ConvertI32S || op == ir.OpF32ConvertI32U:
		return sig(t1(i32), t1(f32)), true
	case op == ir.OpF32ConvertI64S || op == ir.OpF32ConvertI64U:
		return sig(t1(i64), t1(f32)), true
	case op == ir.OpF32DemoteF64:
		return sig(t1(f64), t1(f32)), true
	case op == ir.OpF64ConvertI32S || op == ir.OpF64ConvertI32U:
		return sig(t1(i32), t1(f64)), true
	case op == ir.OpF64ConvertI64S || op == ir.OpF64ConvertI64U:
		return sig(t1(i64), t1(f64)), true
	case op == ir.OpF64PromoteF32:
		return sig(t1(f32), t1(f64)), true
	case op == ir.OpI32ReinterpretF32:
		return sig(t1(f32), t1(i32)), true
	case op == ir.OpI64ReinterpretF64:
		return sig(t1(f64), t1(i64)), true
	case op == ir.OpF32ReinterpretI32:
		return sig(t1(i32), t1(f32)), true
	case op == ir.OpF64ReinterpretI64:
		return sig(t1(i64), t1(f64)), true
	case op == ir.OpI32Extend8S || op == ir.OpI32Extend16S:
		return sig(t1(i32), t1(i32)), true
	case op == ir.OpI64Extend8S || op == ir.OpI64Extend16S || op == ir.OpI64Extend32S:
		return sig(t1(i64), t1(i64)), true

	case op == ir.OpI32TruncSatF32S || op == ir.OpI32TruncSatF32U:
		return sig(t1(f32), t1(i32)), true
	case op == ir.OpI32TruncSatF64S || op == ir.OpI32TruncSatF64U:
		return sig(t1(f64), t1(i32)), true
	case op == ir.OpI64TruncSatF32S || op == ir.OpI64TruncSatF32U:
		return sig(t1(f32), t1(i64)), true
	case op == ir.OpI64TruncSatF64S || op == ir.OpI64TruncSatF64U:
		return sig(t1(f64), t1(i64)), true
	}
	return Sig{}, false
}
