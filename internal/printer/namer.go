// Package printer renders a decoded ir.Module as WAST-style text, the one
// direction spec.md §2's component table names for the text format: binary
// in, text out, for diagnostics and test-vector authoring only (no parser).
package printer

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/ir"
)

// namer resolves a module's combined import+def index spaces to the `$name`
// the name section gives them, falling back to a synthesized `$kindN`. WAVM's
// ModulePrintContext builds the equivalent `NameScope` table once per module
// and indexes it by position instead of re-deriving a name every time one is
// printed (original_source/Lib/WASTPrint/Print.cpp).
type namer struct {
	functions map[uint32]string
	types     map[uint32]string
	tables    map[uint32]string
	memories  map[uint32]string
	globals   map[uint32]string
	elemSegs  map[uint32]string
	dataSegs  map[uint32]string
	excTypes  map[uint32]string
}

func newNamer(m *ir.Module) *namer {
	n := &namer{}
	if m.Names != nil {
		n.functions = m.Names.Functions
		n.types = m.Names.Types
		n.tables = m.Names.Tables
		n.memories = m.Names.Memories
		n.globals = m.Names.Globals
		n.elemSegs = m.Names.ElementSegments
		n.dataSegs = m.Names.DataSegments
		n.excTypes = m.Names.ExceptionTypes
	}
	return n
}

func resolve(names map[uint32]string, idx uint32, kind string) string {
	if name, ok := names[idx]; ok && name != "" {
		return "$" + sanitizeName(name)
	}
	return fmt.Sprintf("$%s%d", kind, idx)
}

// sanitizeName strips characters the WAST `id` grammar forbids from a name
// pulled out of a custom name section, so a printed module always re-parses.
func sanitizeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		case c == '_' || c == '.' || c == '-' || c == '+' || c == '!' || c == '?' || c == '/':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

func (n *namer) function(idx uint32) string { return resolve(n.functions, idx, "func") }
func (n *namer) typ(idx uint32) string      { return resolve(n.types, idx, "type") }
func (n *namer) table(idx uint32) string    { return resolve(n.tables, idx, "table") }
func (n *namer) memory(idx uint32) string   { return resolve(n.memories, idx, "memory") }
func (n *namer) global(idx uint32) string   { return resolve(n.globals, idx, "global") }
func (n *namer) elemSeg(idx uint32) string  { return resolve(n.elemSegs, idx, "elem") }
func (n *namer) dataSeg(idx uint32) string  { return resolve(n.dataSegs, idx, "data") }
func (n *namer) excType(idx uint32) string  { return resolve(n.excTypes, idx, "except") }

func localName(m *ir.Module, funcIdx, localIdx uint32) string {
	if m.Names != nil {
		if perFunc, ok := m.Names.Locals[funcIdx]; ok {
			if name, ok := perFunc[localIdx]; ok && name != "" {
				return "$" + sanitizeName(name)
			}
		}
	}
	return fmt.Sprintf("%d", localIdx)
}
