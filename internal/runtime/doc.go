// Package runtime implements spec.md §4.G's object model: compartments,
// contexts, garbage-collected runtime objects (function, table, memory,
// global, exception-type, module instance), the linker, the invocation ABI,
// and the exception protocol. It is the concrete owner of the
// compiler.Memory/compiler.Table/compiler.Global objects and the
// compiler.ExecContext callbacks that internal/compiler's reference
// interpreter executes against.
//
// Grounded on original_source/Include/Runtime/Runtime.h (the object kind
// enum, GCPointer, Resolver, invocation ABI signatures) and
// original_source/Lib/Runtime/ObjectGC.cpp (the mark-and-sweep algorithm,
// including funcref→owning-instance and per-context mutable-global
// reachability edges), since the pack's retrieval stripped wazero's
// internal/wasm non-test sources to test-only stubs — internal/wasm's
// surviving store_test.go shape is used only for the module-instance/export
// lookup API's naming, not its Store/namespace object model, which this
// spec replaces with Compartment/Context.
package runtime
