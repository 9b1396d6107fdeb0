package printer

import (
	"fmt"
	"strings"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
)

// printFunctionBody renders one function definition: its param/result/local
// declarations followed by its decoded operator stream, one instruction per
// line, indented by block nesting depth. block/loop/if/try increase the
// indent of what follows; else/catch/catch_all print at the enclosing
// block's depth (so they visually line up with it) while still indenting
// their own body; end decreases the indent before printing itself.
func printFunctionBody(m *ir.Module, n *namer, funcIdx uint32, def ir.FunctionDef) (string, error) {
	instrs, err := binary.DecodeExpr(def.Body)
	if err != nil {
		return "", fmt.Errorf("decoding function %d body: %w", funcIdx, err)
	}

	ft := m.Types[def.TypeIndex]
	var b strings.Builder
	fmt.Fprintf(&b, "\n  (func %s (type %s)%s", n.function(funcIdx), n.typ(def.TypeIndex),
		printFuncTypeParamsResults(ft))

	nParams := uint32(ft.Params.Len())
	for i, lt := range def.LocalTypes {
		fmt.Fprintf(&b, "\n    (local %s %s)", localName(m, funcIdx, nParams+uint32(i)), lt)
	}

	depth := 1
	for _, instr := range instrs {
		switch instr.Op {
		case ir.OpElse, ir.OpCatch, ir.OpCatchAll:
			b.WriteString("\n")
			b.WriteString(printInstr(m, n, funcIdx, instr, depth-1))
		case ir.OpEnd:
			depth--
			b.WriteString("\n")
			b.WriteString(printInstr(m, n, funcIdx, instr, depth))
		default:
			b.WriteString("\n")
			b.WriteString(printInstr(m, n, funcIdx, instr, depth))
			switch instr.Op {
			case ir.OpBlock, ir.OpLoop, ir.OpIf, ir.OpTry:
				depth++
			}
		}
	}
	b.WriteString("\n  )")
	return b.String(), nil
}
