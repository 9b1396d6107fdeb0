package binary

import "github.com/wavmgo/wavm/internal/ir"

const (
	nameSubModule         = 0
	nameSubFunction       = 1
	nameSubLocal          = 2
	nameSubLabel          = 3
	nameSubType           = 4
	nameSubTable          = 5
	nameSubMemory         = 6
	nameSubGlobal         = 7
	nameSubElementSegment = 8
	nameSubDataSegment    = 9
	nameSubExceptionType  = 10
)

func decodeNameMap(r *reader) (map[uint32]string, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]string, n)
	for i := uint32(0); i < n; i++ {
		idx, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		name, err := r.readName()
		if err != nil {
			return nil, err
		}
		out[idx] = name
	}
	return out, nil
}

func decodeIndirectNameMap(r *reader) (map[uint32]map[uint32]string, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]map[uint32]string, n)
	for i := uint32(0); i < n; i++ {
		outer, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		inner, err := decodeNameMap(r)
		if err != nil {
			return nil, err
		}
		out[outer] = inner
	}
	return out, nil
}

// DecodeNameSection parses the contents of a "name" custom section.
// Subsections beyond Local require features.ExtendedNameSection; an
// encoder that emitted them without the feature would itself be
// nonconformant, so decode tolerates them unconditionally and lets the
// caller decide whether to surface a feature-mismatch diagnostic.
func DecodeNameSection(data []byte) (*ir.NameSection, error) {
	r := &reader{buf: data}
	ns := &ir.NameSection{}
	for r.pos < len(r.buf) {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		body, err := r.take(int(size))
		if err != nil {
			return nil, err
		}
		sr := &reader{buf: body}
		switch id {
		case nameSubModule:
			name, err := sr.readName()
			if err != nil {
				return nil, err
			}
			ns.Module = name
		case nameSubFunction:
			if ns.Functions, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubLocal:
			if ns.Locals, err = decodeIndirectNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubLabel:
			if ns.Labels, err = decodeIndirectNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubType:
			if ns.Types, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubTable:
			if ns.Tables, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubMemory:
			if ns.Memories, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubGlobal:
			if ns.Globals, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubElementSegment:
			if ns.ElementSegments, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubDataSegment:
			if ns.DataSegments, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		case nameSubExceptionType:
			if ns.ExceptionTypes, err = decodeNameMap(sr); err != nil {
				return nil, err
			}
		default:
			// Unknown subsections are skipped, not fatal — forward
			// compatibility with future debug-info additions.
		}
	}
	return ns, nil
}

func encodeNameMap(m map[uint32]string) []byte {
	sub := &writer{}
	sub.writeUint32(uint32(len(m)))
	for _, idx := range sortedKeys(m) {
		sub.writeUint32(idx)
		sub.writeName(m[idx])
	}
	return sub.buf.Bytes()
}

func sortedKeys(m map[uint32]string) []uint32 {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func encodeIndirectNameMap(m map[uint32]map[uint32]string) []byte {
	outerKeys := make([]uint32, 0, len(m))
	for k := range m {
		outerKeys = append(outerKeys, k)
	}
	for i := 1; i < len(outerKeys); i++ {
		for j := i; j > 0 && outerKeys[j-1] > outerKeys[j]; j-- {
			outerKeys[j-1], outerKeys[j] = outerKeys[j], outerKeys[j-1]
		}
	}
	sub := &writer{}
	sub.writeUint32(uint32(len(m)))
	for _, outer := range outerKeys {
		sub.writeUint32(outer)
		sub.Write(encodeNameMap(m[outer]))
	}
	return sub.buf.Bytes()
}

// EncodeNameSection serializes ns into a "name" custom section's body
// (the caller wraps it with the CustomSection framing).
func EncodeNameSection(ns *ir.NameSection) []byte {
	w := &writer{}
	if ns.Module != "" {
		sub := &writer{}
		sub.writeName(ns.Module)
		w.WriteByte(nameSubModule)
		w.writeUint32(uint32(sub.buf.Len()))
		w.Write(sub.buf.Bytes())
	}
	writeSub := func(id byte, body []byte) {
		if len(body) == 0 {
			return
		}
		w.WriteByte(id)
		w.writeUint32(uint32(len(body)))
		w.Write(body)
	}
	writeSub(nameSubFunction, encodeNameMap(ns.Functions))
	writeSub(nameSubLocal, encodeIndirectNameMap(ns.Locals))
	writeSub(nameSubLabel, encodeIndirectNameMap(ns.Labels))
	writeSub(nameSubType, encodeNameMap(ns.Types))
	writeSub(nameSubTable, encodeNameMap(ns.Tables))
	writeSub(nameSubMemory, encodeNameMap(ns.Memories))
	writeSub(nameSubGlobal, encodeNameMap(ns.Globals))
	writeSub(nameSubElementSegment, encodeNameMap(ns.ElementSegments))
	writeSub(nameSubDataSegment, encodeNameMap(ns.DataSegments))
	writeSub(nameSubExceptionType, encodeNameMap(ns.ExceptionTypes))
	return w.buf.Bytes()
}
