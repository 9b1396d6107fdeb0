package runtime

// Context is a per-thread execution state within a Compartment (spec.md
// §4.G / GLOSSARY: "the per-thread execution state a function call runs
// against — mutable global values and the call-stack depth counter, so two
// contexts sharing one compartment's tables/memories never see each
// other's global writes"). A Context is cheap to create and typically
// one-per-goroutine.
type Context struct {
	Object

	// mutableGlobals holds one cell per mutable global defined in (or
	// imported into) the owning compartment, indexed by Global.slot — the
	// same per-context storage scheme original_source/Lib/Runtime/ObjectGC.cpp
	// shows via context->runtimeData->mutableGlobals[global->mutableGlobalIndex].
	mutableGlobals []uint64

	// depth is the current call nesting depth, exposed to compiled code
	// via compiler.ExecContext.Depth and checked against maxCallDepth to
	// raise stackOverflow.
	depth int
}

func newContext(c *Compartment) *Context {
	ctx := &Context{mutableGlobals: append([]uint64(nil), c.initialMutableGlobals...)}
	ctx.Kind = ObjectKindContext
	ctx.compartment = c
	return ctx
}

// Depth returns the context's current call nesting depth.
func (ctx *Context) Depth() int { return ctx.depth }

const maxCallDepth = 8192

func (ctx *Context) pushFrame() (ok bool) {
	if ctx.depth >= maxCallDepth {
		return false
	}
	ctx.depth++
	return true
}

func (ctx *Context) popFrame() { ctx.depth-- }
