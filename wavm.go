// Package wavm ties the decoder, validator, compiler, and runtime together
// into the load/link/instantiate/invoke sequence an embedder actually calls:
// decode a binary into internal/ir, validate it, compile and load it,
// instantiate it in a Compartment, and invoke its exports through the
// api package's value-type surface. Every lower layer lives under
// internal/ (spec.md's Compartment/Context/compiler architecture), so this
// package is the only importable entry point — mirroring how the teacher
// keeps its own engine under internal/ and exposes wazero.Runtime as the
// sole public surface (see DESIGN.md).
package wavm

import (
	"fmt"

	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/runtime"
	"github.com/wavmgo/wavm/internal/validate"
)

// CompiledModule is the handle DecodeModule returns: a validated IR module
// plus its compiled (here: decoded-and-checked) function bodies, ready for
// InstantiateModule. It corresponds to spec.md §4.F's load() result.
type CompiledModule struct {
	ir       *ir.Module
	compiled *compiler.CompiledModule
}

// IR exposes the module's decoded form, e.g. for internal/printer or for
// inspecting its declared imports/exports before linking.
func (cm *CompiledModule) IR() *ir.Module { return cm.ir }

// Name returns the module-level name carried by its name section, or "".
func (cm *CompiledModule) Name() string {
	if cm.ir.Names == nil {
		return ""
	}
	return cm.ir.Names.Module
}

// DecodeModule decodes, validates, and compiles a Wasm binary, running the
// full pipeline spec.md §7 describes: a decode failure is a
// *binary.MalformedError (a FatalSerializationException in spec terms), a
// validation failure is a *validate.InvalidError, and anything past that
// point is an internal compiler error (should not happen for a module that
// validated cleanly).
func DecodeModule(wasmBytes []byte) (*CompiledModule, error) {
	m, err := binary.Decode(wasmBytes, ir.All())
	if err != nil {
		return nil, fmt.Errorf("wavm: decode: %w", err)
	}
	if err := validate.Module(m); err != nil {
		return nil, fmt.Errorf("wavm: validate: %w", err)
	}
	obj, err := compiler.Compile(m)
	if err != nil {
		return nil, fmt.Errorf("wavm: compile: %w", err)
	}
	compiled, err := compiler.Load(m, obj)
	if err != nil {
		return nil, fmt.Errorf("wavm: load: %w", err)
	}
	return &CompiledModule{ir: m, compiled: compiled}, nil
}

// InstantiateModule links cm's imports against resolver within c, then runs
// its active element/data segments and start function under ctx, exactly
// spec.md §4.G's instantiation sequence (internal/runtime.InstantiateModule
// does the actual work; this just threads link + instantiate together and
// wraps the result in the api.Module-satisfying Module type below).
func InstantiateModule(c *runtime.Compartment, ctx *runtime.Context, cm *CompiledModule, moduleName string, resolver runtime.Resolver) (*Module, error) {
	lr, err := runtime.LinkModule(cm.ir, resolver)
	if err != nil {
		return nil, err
	}
	inst, err := runtime.InstantiateModule(c, ctx, cm.compiled, lr, moduleName)
	if err != nil {
		return nil, err
	}
	return &Module{name: moduleName, inst: inst, ctx: ctx}, nil
}
