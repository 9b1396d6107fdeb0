package runtime

import (
	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

// buildExecContext assembles the compiler.ExecContext a function body
// defined in inst executes against, binding every module-wide
// memory/table/global index to this particular (instance, Context) pair —
// crucially, Globals uses a fresh contextGlobal per call so a mutable
// global's value resolves against ctx.mutableGlobals, never inst's own
// state directly (global.go's documented per-context storage scheme).
func buildExecContext(inst *ModuleInstance, ctx *Context) *compiler.ExecContext {
	globals := make([]compiler.Global, len(inst.Globals))
	for i, g := range inst.Globals {
		globals[i] = contextGlobal{ctx: ctx, g: g}
	}
	memories := make([]compiler.Memory, len(inst.Memories))
	for i, m := range inst.Memories {
		memories[i] = m
	}
	tables := make([]compiler.Table, len(inst.Tables))
	for i, t := range inst.Tables {
		tables[i] = t
	}

	ec := &compiler.ExecContext{
		Memories: memories,
		Tables:   tables,
		Globals:  globals,
		Types:    inst.ir.Types,

		FuncType: func(funcIdx uint32) *ir.FunctionType {
			return inst.Functions[funcIdx].typ
		},
		CallFunc: func(funcIdx uint32, args []uint64) ([]uint64, error) {
			return callFunction(ctx, inst.Functions[funcIdx], args)
		},
		CallIndirectFunc: func(tableIdx, typeIdx uint32, elemIdx uint64, args []uint64) ([]uint64, error) {
			t := inst.Tables[tableIdx]
			elem, ok := t.Get(elemIdx)
			if !ok {
				return nil, &RuntimeException{Type: inst.compartment.predefinedException("tableIndexOutOfBounds")}
			}
			if !elem.Initialized {
				return nil, &RuntimeException{Type: inst.compartment.predefinedException("uninitializedTableElement")}
			}
			if elem.IsNull {
				return nil, &RuntimeException{Type: inst.compartment.predefinedException("uninitializedTableElement")}
			}
			if int(elem.FuncIndex) >= len(inst.Functions) {
				return nil, &RuntimeException{Type: inst.compartment.predefinedException("indirectCallSignatureMismatch")}
			}
			fn := inst.Functions[elem.FuncIndex]
			if fn.typ != inst.ir.Types[typeIdx] {
				return nil, &RuntimeException{Type: inst.compartment.predefinedException("indirectCallSignatureMismatch")}
			}
			return callFunction(ctx, fn, args)
		},

		DataSegment: inst.DataSegmentBytes,
		DropData:    inst.DropDataSegment,
		ElemSegment: inst.ElemSegmentElems,
		DropElem:    inst.DropElemSegment,

		Throw: func(exceptionTypeIdx uint32, args []uint64) error {
			et := inst.ExceptionTypes[exceptionTypeIdx]
			return &RuntimeException{Type: et, Arguments: append([]uint64(nil), args...)}
		},
		// Rethrow is never invoked by internal/compiler's interpreter: a
		// `rethrow` instruction resolves against the enclosing try frame's
		// own captured exception without crossing back into this package
		// (see interpreter.go's OpRethrow). Kept on ExecContext for
		// interface completeness against a future backend that might need it.
		Rethrow: func(depth uint32) error {
			return &RuntimeException{Type: inst.compartment.predefinedException("invalidArgument")}
		},
		CatchMatch: func(err error, exceptionTypeIdx uint32) ([]uint64, bool) {
			re, ok := err.(*RuntimeException)
			if !ok || re.Type != inst.ExceptionTypes[exceptionTypeIdx] {
				return nil, false
			}
			return re.Arguments, true
		},
		ExceptionParamSlots: func(idx uint32) int {
			et := inst.ExceptionTypes[idx]
			n := 0
			for _, t := range et.Params().Types() {
				n += slotWidth(t)
			}
			return n
		},

		Depth: ctx.depth,
	}
	return ec
}

// callFunction invokes fn (host or compiled) against ctx, enforcing the
// call-depth ceiling (spec.md §4.G's stackOverflow predefined exception).
func callFunction(ctx *Context, fn *Function, args []uint64) ([]uint64, error) {
	if !ctx.pushFrame() {
		return nil, &RuntimeException{Type: fn.instance.compartment.predefinedException("stackOverflow")}
	}
	defer ctx.popFrame()

	if fn.IsHost() {
		return fn.host(ctx, args)
	}
	ec := buildExecContext(fn.instance, ctx)
	results, err := compiler.Execute(fn.compiled, ec, args)
	if err != nil {
		return nil, wrapExecError(fn, err)
	}
	return results, nil
}

// wrapExecError converts a *compiler.Trap raised by Execute into this
// instance's compartment's matching predefined RuntimeException, appending
// a StackFrame for fn; a *RuntimeException (a user `throw` that propagated
// out of a nested call) is passed through with its frame appended.
func wrapExecError(fn *Function, err error) error {
	frame := StackFrame{FunctionIndex: fn.index, DebugName: fn.debugName}
	switch e := err.(type) {
	case *compiler.Trap:
		return trapException(fn.instance.compartment, e, []StackFrame{frame})
	case *RuntimeException:
		e.CallStack = append(e.CallStack, frame)
		return e
	default:
		return err
	}
}
