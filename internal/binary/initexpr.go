package binary

import "github.com/wavmgo/wavm/internal/ir"

// decodeInitializer reads a constant expression: exactly one constant or
// global.get instruction followed by end (spec.md §3's Initializer).
func (r *reader) decodeInitializer() (ir.Initializer, error) {
	op, err := r.ReadByte()
	if err != nil {
		return ir.Initializer{}, err
	}
	var init ir.Initializer
	switch op {
	case 0x41: // i32.const
		v, err := r.readInt32()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprI32Const, I32: v}
	case 0x42: // i64.const
		v, err := r.readInt64()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprI64Const, I64: v}
	case 0x43: // f32.const
		v, err := r.readFloat32()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprF32Const, F32: v}
	case 0x44: // f64.const
		v, err := r.readFloat64()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprF64Const, F64: v}
	case 0xFD: // v128.const (misc-prefixed in the instruction set, literal here)
		sub, err := r.readUint32()
		if err != nil {
			return ir.Initializer{}, err
		}
		if sub != 12 {
			return ir.Initializer{}, malformed("unsupported v128 const-expr sub-opcode %d", sub)
		}
		b, err := r.take(16)
		if err != nil {
			return ir.Initializer{}, err
		}
		var v [16]byte
		copy(v[:], b)
		init = ir.Initializer{Kind: ir.InitExprV128Const, V128: v}
	case 0x23: // global.get
		idx, err := r.readUint32()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprGlobalGet, GlobalIdx: idx}
	case 0xD0: // ref.null
		rt, err := r.decodeRefType()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprRefNull, RefType: rt}
	case 0xD2: // ref.func
		idx, err := r.readUint32()
		if err != nil {
			return ir.Initializer{}, err
		}
		init = ir.Initializer{Kind: ir.InitExprRefFunc, FuncIdx: idx}
	default:
		return ir.Initializer{}, malformed("unsupported constant-expression opcode %#x", op)
	}
	end, err := r.ReadByte()
	if err != nil {
		return ir.Initializer{}, err
	}
	if end != 0x0B {
		return ir.Initializer{}, malformed("constant expression missing end opcode")
	}
	return init, nil
}
