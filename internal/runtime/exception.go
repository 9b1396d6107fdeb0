package runtime

import (
	"fmt"
	"strings"

	"github.com/wavmgo/wavm/internal/compiler"
	"github.com/wavmgo/wavm/internal/ir"
)

// ExceptionType is a compartment-owned exception signature: a name plus the
// tuple of value types its instances carry as arguments (spec.md §4.G).
type ExceptionType struct {
	Object
	name   string
	params *ir.TypeTuple
}

func newExceptionType(c *Compartment, name string, params *ir.TypeTuple) *ExceptionType {
	et := &ExceptionType{name: name, params: params}
	et.Kind = ObjectKindExceptionType
	et.compartment = c
	return et
}

// Name returns the exception type's name (its predefined trap name, or the
// module-defined tag name).
func (et *ExceptionType) Name() string { return et.name }

// Params returns the argument types an exception instance of this type
// carries.
func (et *ExceptionType) Params() *ir.TypeTuple { return et.params }

// StackFrame records one call-stack entry captured when a RuntimeException
// unwinds, grounded on internal/engine/interpreter's
// wasmdebug.NewErrorBuilder/AddFrame idiom of recording the callee's debug
// name and signature at each popped frame.
type StackFrame struct {
	FunctionIndex uint32
	DebugName     string
}

// RuntimeException is a thrown exception that unwound out of
// InvokeFunctionUnchecked/Checked uncaught, or a trap (spec.md §4.G's
// exception protocol: every trap is surfaced as a predefined exception of
// this same shape). CallStack is captured innermost-frame-first.
type RuntimeException struct {
	Type      *ExceptionType
	Arguments []uint64
	CallStack []StackFrame
}

func (e *RuntimeException) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "wavm: %s", e.Type.name)
	if len(e.Arguments) > 0 {
		fmt.Fprintf(&b, " %v", e.Arguments)
	}
	for _, f := range e.CallStack {
		fmt.Fprintf(&b, "\n\tat %s (function %d)", f.DebugName, f.FunctionIndex)
	}
	return b.String()
}

// predefinedExceptionNames is spec.md §4.G's list of built-in trap exception
// types, named identically to internal/compiler.TrapKind.String() so a
// Compartment's registry and a Trap's Kind always resolve to the same
// ExceptionType.
var predefinedExceptionNames = []string{
	"memoryAddressOutOfBounds",
	"tableIndexOutOfBounds",
	"stackOverflow",
	"integerDivideByZeroOrOverflow",
	"invalidFloatOperation",
	"invokeSignatureMismatch",
	"reachedUnreachable",
	"indirectCallSignatureMismatch",
	"uninitializedTableElement",
	"calledAbort",
	"calledUnimplementedIntrinsic",
	"outOfMemory",
	"invalidSegmentOffset",
	"misalignedAtomicMemoryAccess",
	"invalidArgument",
}

// trapException builds a RuntimeException for a trap raised by the
// reference interpreter, looking up the compartment's predefined
// ExceptionType matching t.Kind.
func trapException(c *Compartment, t *compiler.Trap, stack []StackFrame) *RuntimeException {
	return &RuntimeException{
		Type:      c.predefinedException(t.Kind.String()),
		Arguments: nil,
		CallStack: stack,
	}
}
