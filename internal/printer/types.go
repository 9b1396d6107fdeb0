package printer

import (
	"fmt"
	"strings"

	"github.com/wavmgo/wavm/internal/ir"
)

func printLimits(sc ir.SizeConstraints, shared bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", sc.Min)
	if sc.HasMax() {
		fmt.Fprintf(&b, " %d", sc.Max)
	}
	if shared {
		b.WriteString(" shared")
	}
	return b.String()
}

func printTableType(t ir.TableType) string {
	return fmt.Sprintf("%s %s", printLimits(t.Size, t.Shared), t.Element)
}

func printMemoryType(t ir.MemoryType) string {
	return printLimits(t.Size, t.Shared)
}

func printGlobalType(t ir.GlobalType) string {
	if t.Mutable {
		return fmt.Sprintf("(mut %s)", t.Value)
	}
	return t.Value.String()
}

// printFuncTypeParamsResults renders a function type's signature as the
// sequence of `(param t)`/`(result t)` groups the text format uses inside a
// `(type ...)` or `(func ...)` header, per spec.md §4.C (one group per
// parameter/result, not a single tuple group, matching WAVM's `print(string,
// FunctionType)` in Print.cpp).
func printFuncTypeParamsResults(ft *ir.FunctionType) string {
	var b strings.Builder
	for _, p := range ft.Params.Types() {
		fmt.Fprintf(&b, " (param %s)", p)
	}
	for _, r := range ft.Results.Types() {
		fmt.Fprintf(&b, " (result %s)", r)
	}
	return b.String()
}

func printExceptionTypeParams(et ir.ExceptionType) string {
	var b strings.Builder
	for _, p := range et.Params.Types() {
		fmt.Fprintf(&b, " (param %s)", p)
	}
	return b.String()
}
