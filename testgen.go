package wavm

import (
	"github.com/wavmgo/wavm/internal/binary"
	"github.com/wavmgo/wavm/internal/modgen"
)

// GenerateTestModule deterministically generates a pseudo-random, always
// valid and instantiable Wasm binary from seed (spec.md §4.I), for fuzzing
// and property-testing callers that need module inputs without hand-writing
// one.
func GenerateTestModule(seed []byte) []byte {
	return binary.EncodeModule(modgen.Gen(seed))
}
