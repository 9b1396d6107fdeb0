package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wavmgo/wavm/internal/ir"
)

// PrintModule renders m as WAST-style text: a top-level `(module ...)`
// s-expression containing types, imports, memories, tables, globals,
// exception types, function definitions, exports, the start function, and
// element/data segments, in that order — the order spec.md §4.D's section
// layout uses and WAVM's ModulePrintContext::printModule follows
// (original_source/Lib/WASTPrint/Print.cpp). This is a diagnostic rendering,
// not a format a WAST parser is expected to exist to round-trip: function
// bodies print as a flat, indented instruction stream rather than folded
// s-expressions (see printFunctionBody).
func PrintModule(m *ir.Module) (string, error) {
	n := newNamer(m)
	var b strings.Builder
	b.WriteString("(module")

	for i, ft := range m.Types {
		fmt.Fprintf(&b, "\n  (type %s (func%s))", n.typ(uint32(i)), printFuncTypeParamsResults(ft))
	}

	for i, imp := range m.FunctionImports {
		fmt.Fprintf(&b, "\n  (import %s %s (func %s (type %s)))",
			quote(imp.Module), quote(imp.Name), n.function(uint32(i)), typeIndexOf(m, imp.Type))
	}
	for i, imp := range m.TableImports {
		fmt.Fprintf(&b, "\n  (import %s %s (table %s %s))",
			quote(imp.Module), quote(imp.Name), n.table(uint32(i)), printTableType(imp.Type))
	}
	for i, imp := range m.MemoryImports {
		fmt.Fprintf(&b, "\n  (import %s %s (memory %s %s))",
			quote(imp.Module), quote(imp.Name), n.memory(uint32(i)), printMemoryType(imp.Type))
	}
	for i, imp := range m.GlobalImports {
		fmt.Fprintf(&b, "\n  (import %s %s (global %s %s))",
			quote(imp.Module), quote(imp.Name), n.global(uint32(i)), printGlobalType(imp.Type))
	}
	for i, imp := range m.ExceptionTypeImports {
		fmt.Fprintf(&b, "\n  (import %s %s (exception_type %s%s))",
			quote(imp.Module), quote(imp.Name), n.excType(uint32(i)), printExceptionTypeParams(imp.Type))
	}

	nMemImports := uint32(len(m.MemoryImports))
	for i, mt := range m.MemoryDefs {
		fmt.Fprintf(&b, "\n  (memory %s %s)", n.memory(nMemImports+uint32(i)), printMemoryType(mt))
	}

	nTableImports := uint32(len(m.TableImports))
	for i, tt := range m.TableDefs {
		fmt.Fprintf(&b, "\n  (table %s %s)", n.table(nTableImports+uint32(i)), printTableType(tt))
	}

	nGlobalImports := uint32(len(m.GlobalImports))
	for i, gd := range m.GlobalDefs {
		fmt.Fprintf(&b, "\n  (global %s %s %s)", n.global(nGlobalImports+uint32(i)),
			printGlobalType(gd.Type), printInitializer(n, gd.Init))
	}

	nExcImports := uint32(len(m.ExceptionTypeImports))
	for i, et := range m.ExceptionTypeDefs {
		fmt.Fprintf(&b, "\n  (exception_type %s%s)", n.excType(nExcImports+uint32(i)),
			printExceptionTypeParams(et))
	}

	nFuncImports := uint32(len(m.FunctionImports))
	for i, def := range m.FunctionDefs {
		funcIdx := nFuncImports + uint32(i)
		body, err := printFunctionBody(m, n, funcIdx, def)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
	}

	for _, exp := range m.Exports {
		fmt.Fprintf(&b, "\n  (export %s (%s %s))", quote(exp.Name), exportKindTag(exp.Kind), exportedName(n, exp))
	}

	if m.HasStartFunction {
		fmt.Fprintf(&b, "\n  (start %s)", n.function(m.StartFunctionIndex))
	}

	for i, seg := range m.ElementSegments {
		b.WriteString(printElementSegment(n, uint32(i), seg))
	}

	for i, seg := range m.DataSegments {
		b.WriteString(printDataSegment(n, uint32(i), seg))
	}

	b.WriteString("\n)")
	return b.String(), nil
}

func quote(s string) string {
	return strconv.Quote(s)
}

func typeIndexOf(m *ir.Module, ft *ir.FunctionType) string {
	for i, t := range m.Types {
		if t == ft {
			return fmt.Sprintf("$type%d", i)
		}
	}
	return "$type?"
}

func exportKindTag(k ir.ExportKind) string {
	switch k {
	case ir.ExportKindFunction:
		return "func"
	case ir.ExportKindTable:
		return "table"
	case ir.ExportKindMemory:
		return "memory"
	case ir.ExportKindGlobal:
		return "global"
	case ir.ExportKindExceptionType:
		return "exception_type"
	}
	return "unknown"
}

func exportedName(n *namer, exp ir.Export) string {
	switch exp.Kind {
	case ir.ExportKindFunction:
		return n.function(exp.Index)
	case ir.ExportKindTable:
		return n.table(exp.Index)
	case ir.ExportKindMemory:
		return n.memory(exp.Index)
	case ir.ExportKindGlobal:
		return n.global(exp.Index)
	case ir.ExportKindExceptionType:
		return n.excType(exp.Index)
	}
	return "?"
}

func printElementSegment(n *namer, idx uint32, seg ir.ElementSegment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  (elem %s", n.elemSeg(idx))
	switch seg.Kind {
	case ir.ElementSegmentActive:
		if seg.TableIndex != 0 {
			fmt.Fprintf(&b, " (table %s)", n.table(seg.TableIndex))
		}
		fmt.Fprintf(&b, " %s", printInitializer(n, seg.Offset))
	case ir.ElementSegmentDeclared:
		b.WriteString(" declare")
	}
	if seg.ElementType != ir.ValueTypeFuncref {
		fmt.Fprintf(&b, " %s", seg.ElementType)
	}
	if seg.FuncIndices != nil {
		for _, fi := range seg.FuncIndices {
			fmt.Fprintf(&b, " %s", n.function(fi))
		}
	} else {
		for _, e := range seg.Exprs {
			if e.IsNull {
				b.WriteString(" (ref.null)")
			} else {
				fmt.Fprintf(&b, " (ref.func %s)", n.function(e.FuncIdx))
			}
		}
	}
	b.WriteByte(')')
	return b.String()
}

func printDataSegment(n *namer, idx uint32, seg ir.DataSegment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  (data %s", n.dataSeg(idx))
	if seg.Active {
		if seg.MemoryIndex != 0 {
			fmt.Fprintf(&b, " (memory %s)", n.memory(seg.MemoryIndex))
		}
		fmt.Fprintf(&b, " %s", printInitializer(n, seg.Offset))
	}
	fmt.Fprintf(&b, " %s)", quote(string(seg.Bytes)))
	return b.String()
}
