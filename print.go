package wavm

import "github.com/wavmgo/wavm/internal/printer"

// PrintModule renders cm's IR as WAST text, for diagnostics and debugging
// (spec.md §4.H). It does not round-trip: there is no WAST parser in this
// module.
func PrintModule(cm *CompiledModule) (string, error) {
	return printer.PrintModule(cm.ir)
}
