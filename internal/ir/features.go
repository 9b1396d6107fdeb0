package ir

// FeatureSpec is a per-module bitset of enabled Wasm proposals. It replaces
// the teacher's internal/features (a Go-runtime environment-variable flag
// list, the wrong shape for per-module Wasm proposal gating) with the first-
// class IR type spec.md §4.B/§4.E require every decode and validation rule
// to consult.
type FeatureSpec struct {
	SIMD                       bool
	Threads                    bool // atomics
	ReferenceTypes             bool
	MultiValue                 bool
	BulkMemory                 bool
	Table64                    bool
	Memory64                   bool
	ExceptionHandling          bool
	ImportExportMutableGlobals bool
	ExtendedNameSection        bool
	MultipleMemories           bool
	MultipleTables             bool
}

// WasmMVP is the baseline Wasm 1.0 (MVP) feature set: all proposals off.
func WasmMVP() FeatureSpec { return FeatureSpec{} }

// All enables every extension spec.md §1 lists as in-scope.
func All() FeatureSpec {
	return FeatureSpec{
		SIMD:                       true,
		Threads:                    true,
		ReferenceTypes:             true,
		MultiValue:                 true,
		BulkMemory:                 true,
		Table64:                    true,
		Memory64:                   true,
		ExceptionHandling:          true,
		ImportExportMutableGlobals: true,
		ExtendedNameSection:        true,
		MultipleMemories:           true,
		MultipleTables:             true,
	}
}
