package runtime

// InvokeFunctionUnchecked calls fn with args already in slot-encoded form
// (one uint64 per scalar parameter, two consecutive slots per v128 — see
// internal/compiler's slotCount), without validating that args matches fn's
// signature. This is the ABI validated call sites (a compiled `call`/
// `call_indirect`, or an embedder that already checked the signature
// itself) use; spec.md §4.G's raw scratch-buffer invocation ABI is
// expressed here as an ordinary Go slice rather than a caller-owned pointer
// buffer, since Go has no analogue for placement into caller-provided
// unmanaged memory.
func InvokeFunctionUnchecked(ctx *Context, fn *Function, args []uint64) ([]uint64, error) {
	return callFunction(ctx, fn, args)
}

// InvokeFunctionChecked calls fn after validating that args has exactly the
// slot width fn's parameter types require, raising invokeSignatureMismatch
// otherwise (spec.md §4.G's predefined exception list). Use this at trust
// boundaries (an embedder invoking an export by name); internal call sites
// that already went through validation should use InvokeFunctionUnchecked.
func InvokeFunctionChecked(ctx *Context, fn *Function, args []uint64) ([]uint64, error) {
	want := 0
	for _, t := range fn.typ.Params.Types() {
		want += slotWidth(t)
	}
	if len(args) != want {
		return nil, &RuntimeException{Type: fn.instance.compartment.predefinedException("invokeSignatureMismatch")}
	}
	return callFunction(ctx, fn, args)
}

// CatchRuntimeExceptions runs body, recovering any panic raised by code it
// calls into and converting it to a *RuntimeException of the
// calledAbort predefined type, matching spec.md §4.G's
// "uncaught panics below a catchRuntimeExceptions boundary surface as a
// runtime exception, not a process crash." Errors body returns normally
// (including *RuntimeException from InvokeFunction*) pass through
// unchanged; this only guards against a true Go panic escaping embedder or
// host-function code.
func CatchRuntimeExceptions(c *Compartment, body func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeException{Type: c.predefinedException("calledAbort")}
		}
	}()
	return body()
}
