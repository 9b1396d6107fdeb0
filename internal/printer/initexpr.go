package printer

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/ir"
)

// printInitializer renders a constant-expression initializer (global's
// initial value, or an active segment's base offset) as a single
// parenthesized instruction, per WAVM's printInitializerExpression.
func printInitializer(n *namer, init ir.Initializer) string {
	switch init.Kind {
	case ir.InitExprI32Const:
		return fmt.Sprintf("(i32.const %d)", init.I32)
	case ir.InitExprI64Const:
		return fmt.Sprintf("(i64.const %d)", init.I64)
	case ir.InitExprF32Const:
		return fmt.Sprintf("(f32.const %s)", describeLiteral(ir.OpF32Const, ir.LiteralImm{F32: init.F32}))
	case ir.InitExprF64Const:
		return fmt.Sprintf("(f64.const %s)", describeLiteral(ir.OpF64Const, ir.LiteralImm{F64: init.F64}))
	case ir.InitExprV128Const:
		return fmt.Sprintf("(v128.const %s)", describeLiteral(ir.OpV128Const, ir.LiteralImm{V128: init.V128}))
	case ir.InitExprGlobalGet:
		return fmt.Sprintf("(global.get %s)", n.global(init.GlobalIdx))
	case ir.InitExprRefNull:
		return fmt.Sprintf("(ref.null %s)", init.RefType)
	case ir.InitExprRefFunc:
		return fmt.Sprintf("(ref.func %s)", n.function(init.FuncIdx))
	}
	return "(unknown-init)"
}
