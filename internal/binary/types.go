package binary

import (
	"github.com/wavmgo/wavm/internal/ir"
)

// decodeValueType reads spec.md §4.D's single signed LEB byte value-type
// encoding (-1 i32 … -17 externref).
func (r *reader) decodeValueType() (ir.ValueType, error) {
	b, err := r.readInt32()
	if err != nil {
		return 0, err
	}
	switch b {
	case -1:
		return ir.ValueTypeI32, nil
	case -2:
		return ir.ValueTypeI64, nil
	case -3:
		return ir.ValueTypeF32, nil
	case -4:
		return ir.ValueTypeF64, nil
	case -5:
		return ir.ValueTypeV128, nil
	case -16:
		return ir.ValueTypeFuncref, nil
	case -17:
		return ir.ValueTypeExternref, nil
	}
	return 0, malformed("unrecognized value type byte %d", b)
}

func (r *reader) decodeRefType() (ir.ValueType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0x70:
		return ir.ValueTypeFuncref, nil
	case 0x6F:
		return ir.ValueTypeExternref, nil
	}
	return 0, malformed("unrecognized reference type byte %#x", b)
}

func valueTypeByte(t ir.ValueType) int32 {
	switch t {
	case ir.ValueTypeI32:
		return -1
	case ir.ValueTypeI64:
		return -2
	case ir.ValueTypeF32:
		return -3
	case ir.ValueTypeF64:
		return -4
	case ir.ValueTypeV128:
		return -5
	case ir.ValueTypeFuncref:
		return -16
	case ir.ValueTypeExternref:
		return -17
	}
	return 0
}

func (r *reader) decodeTypeTuple() (*ir.TypeTuple, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	types := make([]ir.ValueType, n)
	for i := range types {
		vt, err := r.decodeValueType()
		if err != nil {
			return nil, err
		}
		types[i] = vt
	}
	return ir.InternTypeTuple(types), nil
}

func (r *reader) decodeFunctionType() (*ir.FunctionType, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	cc := ir.CallingConventionWasm
	switch prefix {
	case 0x60:
	case 0x61:
		ccByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		cc = ir.CallingConvention(ccByte)
	default:
		return nil, malformed("bad function type prefix %#x", prefix)
	}
	params, err := r.decodeTypeTuple()
	if err != nil {
		return nil, err
	}
	results, err := r.decodeTypeTuple()
	if err != nil {
		return nil, err
	}
	return ir.InternFunctionType(params.Types(), results.Types(), cc), nil
}

const (
	tableFlagHasMax = 1 << 0
	tableFlagShared = 1 << 1
	tableFlag64     = 1 << 2
)

func (r *reader) decodeSizeConstraints(flags byte) (ir.SizeConstraints, error) {
	readWidth := r.readUint32
	is64 := flags&tableFlag64 != 0
	var min, max uint64
	if is64 {
		v, err := r.readUint64()
		if err != nil {
			return ir.SizeConstraints{}, err
		}
		min = v
	} else {
		v, err := readWidth()
		if err != nil {
			return ir.SizeConstraints{}, err
		}
		min = uint64(v)
	}
	max = ir.SizeConstraintsUnbounded
	if flags&tableFlagHasMax != 0 {
		if is64 {
			v, err := r.readUint64()
			if err != nil {
				return ir.SizeConstraints{}, err
			}
			max = v
		} else {
			v, err := readWidth()
			if err != nil {
				return ir.SizeConstraints{}, err
			}
			max = uint64(v)
		}
	}
	return ir.SizeConstraints{Min: min, Max: max}, nil
}

func (r *reader) decodeTableType() (ir.TableType, error) {
	elem, err := r.decodeRefType()
	if err != nil {
		return ir.TableType{}, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return ir.TableType{}, err
	}
	size, err := r.decodeSizeConstraints(flags)
	if err != nil {
		return ir.TableType{}, err
	}
	idxType := ir.ValueTypeI32
	if flags&tableFlag64 != 0 {
		idxType = ir.ValueTypeI64
	}
	tt := ir.TableType{Element: elem, Shared: flags&tableFlagShared != 0, IndexType: idxType, Size: size}
	if tt.Shared && !tt.Size.HasMax() {
		return ir.TableType{}, malformed("shared table requires a maximum size")
	}
	return tt, nil
}

func (r *reader) decodeMemoryType() (ir.MemoryType, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return ir.MemoryType{}, err
	}
	size, err := r.decodeSizeConstraints(flags)
	if err != nil {
		return ir.MemoryType{}, err
	}
	idxType := ir.ValueTypeI32
	if flags&tableFlag64 != 0 {
		idxType = ir.ValueTypeI64
	}
	mt := ir.MemoryType{Shared: flags&tableFlagShared != 0, IndexType: idxType, Size: size}
	if mt.Shared && !mt.Size.HasMax() {
		return ir.MemoryType{}, malformed("shared memory requires a maximum size")
	}
	return mt, nil
}

func (r *reader) decodeGlobalType() (ir.GlobalType, error) {
	vt, err := r.decodeValueType()
	if err != nil {
		return ir.GlobalType{}, err
	}
	mutByte, err := r.ReadByte()
	if err != nil {
		return ir.GlobalType{}, err
	}
	if mutByte > 1 {
		return ir.GlobalType{}, malformed("bad global mutability byte %#x", mutByte)
	}
	return ir.GlobalType{Value: vt, Mutable: mutByte == 1}, nil
}
