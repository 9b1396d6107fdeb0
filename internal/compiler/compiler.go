// Package compiler implements spec.md §4.F's compiler interface contract
// (`compile(IRModule) → ObjectCode`, `load(IRModule, ObjectCode) → Module`)
// plus a reference interpreter that fulfils it: the spec treats the actual
// JIT backend as an external collaborator and specifies only this
// interface, so the in-repo implementation is the AOT backend's stand-in,
// not a second supported execution tier (see SPEC_FULL.md §4).
//
// Grounded on internal/engine/interpreter/interpreter.go's callEngine idiom
// (explicit operand-value stack, frame stack, panic/recover trap signalling
// recovered at the call boundary), which is not part of this tree; this
// package targets ir.Module/ir.Instr and a small accessor-interface seam
// (see interfaces.go) instead of wazero's wasm.Module/wazeroir operator set,
// so that internal/runtime can supply its own Memory/Table/Global objects
// without this package importing internal/runtime (which would cycle back,
// since internal/runtime is what invokes compiled code).
package compiler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wavmgo/wavm/internal/arena"
	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/leb128"
)

// ObjectCode is the opaque byte vector spec.md §4.F and §6 describe: the
// thing a real backend would hand back from compile() and that gets cached
// to disk as the module's `wavm.precompiled_object` custom section. Our
// reference backend's "object code" is each function's validated local
// declarations plus its raw operator-stream bytes — everything Load needs
// to reconstruct a runnable CompiledModule without re-walking the binary
// decoder's section framing.
type ObjectCode []byte

// CompiledFunction is one function's compiled (here: decoded) form.
type CompiledFunction struct {
	Type       *ir.FunctionType
	NumLocals  int // non-parameter locals only, per spec.md §3's FunctionDef
	LocalTypes []ir.ValueType
	Instrs     []ir.Instr
}

// CompiledModule is the handle spec.md §4.F's load() returns: "a handle
// usable in instantiation." Functions is indexed module-definition-order
// (excludes imports, mirroring ir.Module.FunctionDefs).
type CompiledModule struct {
	IR        *ir.Module
	Functions []*CompiledFunction
}

// Compile lowers m into an opaque ObjectCode. A valid implementation must
// preserve operator semantics for every function; this reference backend
// does so by validating each function decodes cleanly and serializing its
// local declarations and raw instruction bytes.
func Compile(m *ir.Module) (ObjectCode, error) {
	buf := new(bytes.Buffer)
	buf.Write(leb128.EncodeUint32(uint32(len(m.FunctionDefs))))
	for _, def := range m.FunctionDefs {
		// Decode once here so a malformed body fails Compile rather than
		// every subsequent Load; the decoded form is not kept (re-decoded
		// in Load), keeping ObjectCode a flat byte vector as spec'd.
		if _, err := binary.DecodeExpr(def.Body); err != nil {
			return nil, fmt.Errorf("compile: function body: %w", err)
		}
		buf.Write(leb128.EncodeUint32(def.TypeIndex))
		buf.Write(leb128.EncodeUint32(uint32(len(def.LocalTypes))))
		for _, lt := range def.LocalTypes {
			buf.WriteByte(byte(lt))
		}
		buf.Write(leb128.EncodeUint32(uint32(len(def.Body))))
		buf.Write(def.Body)
	}
	return ObjectCode(buf.Bytes()), nil
}

// Load reconstructs a CompiledModule from object code previously produced
// by Compile against the same (or a structurally identical) m.
func Load(m *ir.Module, obj ObjectCode) (*CompiledModule, error) {
	r := bytes.NewReader(obj)
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("load: function count: %w", err)
	}
	if int(count) != len(m.FunctionDefs) {
		return nil, fmt.Errorf("load: object code has %d functions, module declares %d", count, len(m.FunctionDefs))
	}
	// Each function body is scratch: copied out of obj just long enough for
	// DecodeExpr to turn it into ir.Instr values, then never touched again.
	// One arena for the whole Load call avoids a separate GC-tracked
	// allocation per function body.
	bodyArena := arena.New(0)
	funcs := make([]*CompiledFunction, count)
	for i := range funcs {
		typeIdx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("load: function %d: type index: %w", i, err)
		}
		if int(typeIdx) >= len(m.Types) {
			return nil, fmt.Errorf("load: function %d: type index %d out of range", i, typeIdx)
		}
		numLocals, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("load: function %d: local count: %w", i, err)
		}
		localTypes := make([]ir.ValueType, numLocals)
		for j := range localTypes {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("load: function %d: local type %d: %w", i, j, err)
			}
			localTypes[j] = ir.ValueType(b)
		}
		bodyLen, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("load: function %d: body length: %w", i, err)
		}
		body := bodyArena.Allocate(int(bodyLen))
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("load: function %d: body: %w", i, err)
		}
		instrs, err := binary.DecodeExpr(body)
		if err != nil {
			return nil, fmt.Errorf("load: function %d: %w", i, err)
		}
		funcs[i] = &CompiledFunction{
			Type:       m.Types[typeIdx],
			NumLocals:  int(numLocals),
			LocalTypes: localTypes,
			Instrs:     instrs,
		}
	}
	return &CompiledModule{IR: m, Functions: funcs}, nil
}
