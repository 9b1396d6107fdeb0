package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupPlainOpcode(t *testing.T) {
	info, ok := Lookup(OpI32Add)
	require.True(t, ok)
	require.Equal(t, "i32.add", info.Mnemonic)
	require.Equal(t, ImmNone, info.Imm)
	require.True(t, info.Feature(WasmMVP()))
}

func TestLookupPrefixedOpcode(t *testing.T) {
	info, ok := Lookup(OpMemoryCopy)
	require.True(t, ok)
	require.Equal(t, "memory.copy", info.Mnemonic)
	require.Equal(t, ImmMemoryCopy, info.Imm)
	require.False(t, info.Feature(WasmMVP()))
	require.True(t, info.Feature(FeatureSpec{BulkMemory: true}))
}

func TestLookupUnknownOpcode(t *testing.T) {
	_, ok := Lookup(Opcode(0xffff))
	require.False(t, ok)
}

func TestOpcodePrefixEncoding(t *testing.T) {
	require.Equal(t, byte(0xFC), OpMemoryCopy.prefix())
	require.Equal(t, byte(0x00), OpI32Add.prefix())
}
