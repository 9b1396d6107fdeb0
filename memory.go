package wavm

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/wavmgo/wavm/api"
	"github.com/wavmgo/wavm/internal/runtime"
)

// hostMemory adapts a runtime.Memory to api.Memory. All accessors return a
// view into the memory's backing slice (Read/byte-range reads) or write
// through to it directly, matching api.Memory's "write-through" contract.
type hostMemory struct {
	mem *runtime.Memory
}

var _ api.Memory = (*hostMemory)(nil)

func (m *hostMemory) Size(context.Context) uint32 {
	return uint32(len(m.mem.Bytes()))
}

func (m *hostMemory) Grow(ctx context.Context, deltaPages uint32) (previousPages uint32, ok bool) {
	return m.mem.Grow(deltaPages)
}

func (m *hostMemory) Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool) {
	return m.mem.GetValidatedOffsetRange(uint64(offset), uint64(byteCount))
}

func (m *hostMemory) Write(ctx context.Context, offset uint32, v []byte) bool {
	dst, ok := m.mem.GetValidatedOffsetRange(uint64(offset), uint64(len(v)))
	if !ok {
		return false
	}
	copy(dst, v)
	return true
}

func (m *hostMemory) ReadByte(ctx context.Context, offset uint32) (byte, bool) {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (m *hostMemory) WriteByte(ctx context.Context, offset uint32, v byte) bool {
	dst, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 1)
	if !ok {
		return false
	}
	dst[0] = v
	return true
}

func (m *hostMemory) ReadUint16Le(ctx context.Context, offset uint32) (uint16, bool) {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (m *hostMemory) WriteUint16Le(ctx context.Context, offset uint32, v uint16) bool {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 2)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint16(b, v)
	return true
}

func (m *hostMemory) ReadUint32Le(ctx context.Context, offset uint32) (uint32, bool) {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (m *hostMemory) WriteUint32Le(ctx context.Context, offset, v uint32) bool {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 4)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint32(b, v)
	return true
}

func (m *hostMemory) ReadUint64Le(ctx context.Context, offset uint32) (uint64, bool) {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (m *hostMemory) WriteUint64Le(ctx context.Context, offset uint32, v uint64) bool {
	b, ok := m.mem.GetValidatedOffsetRange(uint64(offset), 8)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint64(b, v)
	return true
}

func (m *hostMemory) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(ctx, offset)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (m *hostMemory) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, math.Float32bits(v))
}

func (m *hostMemory) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(ctx, offset)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

func (m *hostMemory) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, math.Float64bits(v))
}
