// Package modgen generates a pseudo-random, always-instantiable ir.Module
// from a seed, spec.md §4.I's component I. Grounded directly on the
// teacher's own internal/modgen/modgen.go: same per-section generation
// order and the same four-rand.Rand seeding scheme keyed off a SHA-256
// digest of the input seed, retargeted from wazero's wasm.Module/
// wasm.Opcode vocabulary onto ir.Module/ir.Initializer.
package modgen

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/wavmgo/wavm/internal/ir"
)

// Gen generates a pseudo-random compilable module based on seed. "Pseudo"
// here means deterministic: the same seed returns exactly the same module
// for the same code base.
func Gen(seed []byte) *ir.Module {
	if len(seed) == 0 {
		return &ir.Module{}
	}

	checksum := sha256.Sum256(seed)
	g := &generator{size: len(seed), rands: make([]random, 4)}
	for i := 0; i < 4; i++ {
		g.rands[i] = rand.New(rand.NewSource(
			int64(binary.LittleEndian.Uint64(checksum[i*8 : (i+1)*8]))))
	}
	return g.gen()
}

type generator struct {
	rands         []random
	nextRandIndex int

	// size holds the original seed length, the knob every section's
	// random item count is bounded by.
	size int

	m *ir.Module

	// importedFuncTypes/importedGlobalTypes mirror m.FunctionImports/
	// GlobalImports' types in order, kept alongside since ir.Module's
	// import slices are typed per-kind rather than a single tagged list
	// (unlike the teacher's wasm.Import).
	importedGlobalTypes []ir.GlobalType
}

type random interface {
	// See rand.Intn.
	Intn(n int) int

	// See rand.Read.
	Read(p []byte) (n int, err error)
}

func (g *generator) nextRandom() (ret random) {
	ret = g.rands[g.nextRandIndex]
	g.nextRandIndex = (g.nextRandIndex + 1) % len(g.rands)
	return
}

func (g *generator) gen() *ir.Module {
	g.m = &ir.Module{Features: ir.All()}
	g.typeSection()
	g.importSection()
	g.functionSection()
	g.tableSection()
	g.memorySection()
	g.globalSection()
	g.exportSection()
	return g.m
}

func (g *generator) typeSection() {
	numTypes := g.nextRandom().Intn(g.size)
	for i := 0; i < numTypes; i++ {
		g.m.Types = append(g.m.Types, g.newFunctionType(g.nextRandom().Intn(g.size), g.nextRandom().Intn(g.size)))
	}
}

func (g *generator) newFunctionType(numParams, numResults int) *ir.FunctionType {
	params := make([]ir.ValueType, numParams)
	for i := range params {
		params[i] = g.newValueType()
	}
	results := make([]ir.ValueType, numResults)
	for i := range results {
		results[i] = g.newValueType()
	}
	return ir.InternFunctionType(params, results, ir.CallingConventionWasm)
}

func (g *generator) newValueType() ir.ValueType {
	switch g.nextRandom().Intn(4) {
	case 0:
		return ir.ValueTypeI32
	case 1:
		return ir.ValueTypeI64
	case 2:
		return ir.ValueTypeF32
	case 3:
		return ir.ValueTypeF64
	default:
		panic("BUG")
	}
}

// importSection distributes a random number of imports across function,
// global, memory (at most one), and table (at most one) kinds, the same
// per-kind cap the teacher's generator enforces (at most one memory and one
// table import total, since a module may define its own otherwise).
func (g *generator) importSection() {
	numImports := g.nextRandom().Intn(g.size)
	var memoryImported, tableImported int
	for i := 0; i < numImports; i++ {
		name := fmt.Sprintf("%d", i)
		module := fmt.Sprintf("module-%d", i)

		r := g.nextRandom().Intn(4 - memoryImported - tableImported)
		if r == 0 && len(g.m.Types) > 0 {
			ft := g.m.Types[g.nextRandom().Intn(len(g.m.Types))]
			g.m.FunctionImports = append(g.m.FunctionImports, ir.FunctionImport{Module: module, Name: name, Type: ft})
			continue
		}

		if r == 0 || r == 1 {
			gt := ir.GlobalType{Value: g.newValueType(), Mutable: g.nextRandom().Intn(2) == 0}
			g.m.GlobalImports = append(g.m.GlobalImports, ir.GlobalImport{Module: module, Name: name, Type: gt})
			g.importedGlobalTypes = append(g.importedGlobalTypes, gt)
			continue
		}

		if memoryImported == 0 {
			min := uint64(g.nextRandom().Intn(4))
			max := uint64(g.nextRandom().Intn(int(maxPages)-int(min))) + min
			g.m.MemoryImports = append(g.m.MemoryImports, ir.MemoryImport{
				Module: module, Name: name,
				Type: ir.MemoryType{Size: ir.SizeConstraints{Min: min, Max: max}},
			})
			memoryImported = 1
			continue
		}

		if tableImported == 0 {
			min := uint64(g.nextRandom().Intn(4))
			max := uint64(g.nextRandom().Intn(int(maxPages)-int(min))) + min
			g.m.TableImports = append(g.m.TableImports, ir.TableImport{
				Module: module, Name: name,
				Type: ir.TableType{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: min, Max: max}},
			})
			tableImported = 1
			continue
		}

		panic("BUG")
	}
}

// maxPages bounds the random min/max page counts importSection/
// tableSection/memorySection draw from; real modules rarely declare a
// max anywhere near Wasm's hard 65536-page ceiling, so this stays small to
// keep generated modules cheap to instantiate.
const maxPages = 16

// functionSection declares numFunctions fresh functions against the type
// section, giving each one a minimal valid body here
// (the teacher's own generator leaves bodies empty since it only exercises
// the decoder/encoder's section framing; this one must produce an
// instantiable module, so every declared function gets a body).
func (g *generator) functionSection() {
	numTypes := len(g.m.Types)
	if numTypes == 0 {
		return
	}
	numFunctions := g.nextRandom().Intn(g.size)
	for i := 0; i < numFunctions; i++ {
		typeIndex := uint32(g.nextRandom().Intn(numTypes))
		g.m.FunctionDefs = append(g.m.FunctionDefs, ir.FunctionDef{
			TypeIndex: typeIndex,
			// unreachable; end — valid under any declared signature, since
			// internal/validate treats unreachable as stack-polymorphic.
			Body: []byte{0x00, 0x0b},
		})
	}
}

func (g *generator) tableSection() {
	if len(g.m.TableImports) != 0 {
		return
	}
	min := uint64(g.nextRandom().Intn(4))
	max := uint64(g.nextRandom().Intn(int(maxPages)-int(min))) + min
	g.m.TableDefs = append(g.m.TableDefs, ir.TableType{Element: ir.ValueTypeFuncref, Size: ir.SizeConstraints{Min: min, Max: max}})
}

func (g *generator) memorySection() {
	if len(g.m.MemoryImports) != 0 {
		return
	}
	min := uint64(g.nextRandom().Intn(4))
	max := uint64(g.nextRandom().Intn(int(maxPages)-int(min))) + min
	g.m.MemoryDefs = append(g.m.MemoryDefs, ir.MemoryType{Size: ir.SizeConstraints{Min: min, Max: max}})
}

func (g *generator) globalSection() {
	numGlobals := g.nextRandom().Intn(g.size)
	for i := 0; i < numGlobals; i++ {
		init, t := g.newConstExpr()
		mutable := g.nextRandom().Intn(2) == 0
		g.m.GlobalDefs = append(g.m.GlobalDefs, ir.GlobalDef{
			Type: ir.GlobalType{Value: t, Mutable: mutable},
			Init: init,
		})
	}
}

func (g *generator) newConstExpr() (ir.Initializer, ir.ValueType) {
	var immutableImports []int
	for i, gt := range g.importedGlobalTypes {
		if !gt.Mutable {
			immutableImports = append(immutableImports, i)
		}
	}
	importedGlobalsNotExist := 1
	if len(immutableImports) > 0 {
		importedGlobalsNotExist = 0
	}
	switch g.nextRandom().Intn(5 - importedGlobalsNotExist) {
	case 0:
		v := g.nextRandom().Intn(math.MaxInt32)
		if g.nextRandom().Intn(2) == 0 {
			v = -v
		}
		return ir.Initializer{Kind: ir.InitExprI32Const, I32: int32(v)}, ir.ValueTypeI32
	case 1:
		v := g.nextRandom().Intn(math.MaxInt64)
		if g.nextRandom().Intn(2) == 0 {
			v = -v
		}
		return ir.Initializer{Kind: ir.InitExprI64Const, I64: int64(v)}, ir.ValueTypeI64
	case 2:
		b := make([]byte, 4)
		g.nextRandom().Read(b)
		return ir.Initializer{Kind: ir.InitExprF32Const, F32: math.Float32frombits(binary.LittleEndian.Uint32(b))}, ir.ValueTypeF32
	case 3:
		b := make([]byte, 8)
		g.nextRandom().Read(b)
		return ir.Initializer{Kind: ir.InitExprF64Const, F64: math.Float64frombits(binary.LittleEndian.Uint64(b))}, ir.ValueTypeF64
	case 4:
		// const-exprs may only reference an immutable imported global (core
		// Wasm restricts global.get in this position to such imports).
		idx := immutableImports[g.nextRandom().Intn(len(immutableImports))]
		return ir.Initializer{Kind: ir.InitExprGlobalGet, GlobalIdx: uint32(idx)}, g.importedGlobalTypes[idx].Value
	default:
		panic("BUG")
	}
}

func (g *generator) exportSection() {
	var possible []ir.Export
	for i := 0; i < g.m.FunctionCount(); i++ {
		possible = append(possible, ir.Export{Kind: ir.ExportKindFunction, Index: uint32(i)})
	}
	for i := 0; i < g.m.GlobalCount(); i++ {
		possible = append(possible, ir.Export{Kind: ir.ExportKindGlobal, Index: uint32(i)})
	}
	if g.m.TableCount() > 0 {
		possible = append(possible, ir.Export{Kind: ir.ExportKindTable, Index: 0})
	}
	if g.m.MemoryCount() > 0 {
		possible = append(possible, ir.Export{Kind: ir.ExportKindMemory, Index: 0})
	}
	if len(possible) == 0 {
		return
	}

	numExports := g.nextRandom().Intn(g.size)
	seen := make(map[string]bool, numExports)
	for i := 0; i < numExports; i++ {
		target := possible[g.nextRandom().Intn(len(possible))]
		name := strconv.Itoa(i)
		if seen[name] {
			continue
		}
		seen[name] = true
		g.m.Exports = append(g.m.Exports, ir.Export{Kind: target.Kind, Index: target.Index, Name: name})
	}
}
