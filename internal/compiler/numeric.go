package compiler

import (
	"math"
	"math/bits"

	"github.com/wavmgo/wavm/internal/ir"
	"github.com/wavmgo/wavm/internal/moremath"
)

// numericOp returns the execution function for every fixed-arity
// numeric/comparison/conversion opcode: the same opcode ranges
// internal/validate's numericSig type-checks, here performing the actual
// stack arithmetic. ok is false for anything outside those ranges (control
// flow, memory, table, SIMD, atomics), left for step's other dispatch
// stages.
func numericOp(op ir.Opcode) (func(*execState), bool) {
	if fn, ok := i32Ops[op]; ok {
		return fn, true
	}
	if fn, ok := i64Ops[op]; ok {
		return fn, true
	}
	if fn, ok := f32Ops[op]; ok {
		return fn, true
	}
	if fn, ok := f64Ops[op]; ok {
		return fn, true
	}
	if fn, ok := convOps[op]; ok {
		return fn, true
	}
	return nil, false
}

func b2i32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

var i32Ops = map[ir.Opcode]func(*execState){
	ir.OpI32Eqz: func(s *execState) { s.pushI32(b2i32(s.popI32() == 0)) },
	ir.OpI32Eq:  func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a == b)) },
	ir.OpI32Ne:  func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a != b)) },
	ir.OpI32LtS: func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a < b)) },
	ir.OpI32LtU: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(b2i32(a < b)) },
	ir.OpI32GtS: func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a > b)) },
	ir.OpI32GtU: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(b2i32(a > b)) },
	ir.OpI32LeS: func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a <= b)) },
	ir.OpI32LeU: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(b2i32(a <= b)) },
	ir.OpI32GeS: func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(b2i32(a >= b)) },
	ir.OpI32GeU: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(b2i32(a >= b)) },

	ir.OpI32Clz:    func(s *execState) { s.pushI32(int32(bits.LeadingZeros32(s.popU32()))) },
	ir.OpI32Ctz:    func(s *execState) { s.pushI32(int32(bits.TrailingZeros32(s.popU32()))) },
	ir.OpI32Popcnt: func(s *execState) { s.pushI32(int32(bits.OnesCount32(s.popU32()))) },
	ir.OpI32Add:    func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(a + b) },
	ir.OpI32Sub:    func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(a - b) },
	ir.OpI32Mul:    func(s *execState) { b := s.popI32(); a := s.popI32(); s.pushI32(a * b) },
	ir.OpI32DivS: func(s *execState) {
		b, a := s.popI32(), s.popI32()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i32.div_s: division by zero"))
		}
		if a == math.MinInt32 && b == -1 {
			panic(trap(TrapIntegerOverflow, "i32.div_s: overflow"))
		}
		s.pushI32(a / b)
	},
	ir.OpI32DivU: func(s *execState) {
		b, a := s.popU32(), s.popU32()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i32.div_u: division by zero"))
		}
		s.pushI32(int32(a / b))
	},
	ir.OpI32RemS: func(s *execState) {
		b, a := s.popI32(), s.popI32()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i32.rem_s: division by zero"))
		}
		if a == math.MinInt32 && b == -1 {
			s.pushI32(0)
			return
		}
		s.pushI32(a % b)
	},
	ir.OpI32RemU: func(s *execState) {
		b, a := s.popU32(), s.popU32()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i32.rem_u: division by zero"))
		}
		s.pushI32(int32(a % b))
	},
	ir.OpI32And:  func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(a & b)) },
	ir.OpI32Or:   func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(a | b)) },
	ir.OpI32Xor:  func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(a ^ b)) },
	ir.OpI32Shl:  func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(a << (b & 31))) },
	ir.OpI32ShrS: func(s *execState) { b := s.popU32(); a := s.popI32(); s.pushI32(a >> (b & 31)) },
	ir.OpI32ShrU: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(a >> (b & 31))) },
	ir.OpI32Rotl: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(bits.RotateLeft32(a, int(b&31)))) },
	ir.OpI32Rotr: func(s *execState) { b := s.popU32(); a := s.popU32(); s.pushI32(int32(bits.RotateLeft32(a, -int(b&31)))) },

	ir.OpI32Extend8S:  func(s *execState) { s.pushI32(int32(int8(s.popI32()))) },
	ir.OpI32Extend16S: func(s *execState) { s.pushI32(int32(int16(s.popI32()))) },
	ir.OpI32WrapI64:   func(s *execState) { s.pushI32(int32(s.popI64())) },
}

var i64Ops = map[ir.Opcode]func(*execState){
	ir.OpI64Eqz: func(s *execState) { s.pushI32(b2i32(s.popI64() == 0)) },
	ir.OpI64Eq:  func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a == b)) },
	ir.OpI64Ne:  func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a != b)) },
	ir.OpI64LtS: func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a < b)) },
	ir.OpI64LtU: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI32(b2i32(a < b)) },
	ir.OpI64GtS: func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a > b)) },
	ir.OpI64GtU: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI32(b2i32(a > b)) },
	ir.OpI64LeS: func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a <= b)) },
	ir.OpI64LeU: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI32(b2i32(a <= b)) },
	ir.OpI64GeS: func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI32(b2i32(a >= b)) },
	ir.OpI64GeU: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI32(b2i32(a >= b)) },

	ir.OpI64Clz:    func(s *execState) { s.pushI64(int64(bits.LeadingZeros64(s.popU64()))) },
	ir.OpI64Ctz:    func(s *execState) { s.pushI64(int64(bits.TrailingZeros64(s.popU64()))) },
	ir.OpI64Popcnt: func(s *execState) { s.pushI64(int64(bits.OnesCount64(s.popU64()))) },
	ir.OpI64Add:    func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI64(a + b) },
	ir.OpI64Sub:    func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI64(a - b) },
	ir.OpI64Mul:    func(s *execState) { b := s.popI64(); a := s.popI64(); s.pushI64(a * b) },
	ir.OpI64DivS: func(s *execState) {
		b, a := s.popI64(), s.popI64()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i64.div_s: division by zero"))
		}
		if a == math.MinInt64 && b == -1 {
			panic(trap(TrapIntegerOverflow, "i64.div_s: overflow"))
		}
		s.pushI64(a / b)
	},
	ir.OpI64DivU: func(s *execState) {
		b, a := s.popU64(), s.popU64()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i64.div_u: division by zero"))
		}
		s.pushI64(int64(a / b))
	},
	ir.OpI64RemS: func(s *execState) {
		b, a := s.popI64(), s.popI64()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i64.rem_s: division by zero"))
		}
		if a == math.MinInt64 && b == -1 {
			s.pushI64(0)
			return
		}
		s.pushI64(a % b)
	},
	ir.OpI64RemU: func(s *execState) {
		b, a := s.popU64(), s.popU64()
		if b == 0 {
			panic(trap(TrapIntegerDivideByZero, "i64.rem_u: division by zero"))
		}
		s.pushI64(int64(a % b))
	},
	ir.OpI64And:  func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(a & b)) },
	ir.OpI64Or:   func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(a | b)) },
	ir.OpI64Xor:  func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(a ^ b)) },
	ir.OpI64Shl:  func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(a << (b & 63))) },
	ir.OpI64ShrS: func(s *execState) { b := s.popU64(); a := s.popI64(); s.pushI64(a >> (b & 63)) },
	ir.OpI64ShrU: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(a >> (b & 63))) },
	ir.OpI64Rotl: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(bits.RotateLeft64(a, int(b&63)))) },
	ir.OpI64Rotr: func(s *execState) { b := s.popU64(); a := s.popU64(); s.pushI64(int64(bits.RotateLeft64(a, -int(b&63)))) },

	ir.OpI64Extend8S:  func(s *execState) { s.pushI64(int64(int8(s.popI64()))) },
	ir.OpI64Extend16S: func(s *execState) { s.pushI64(int64(int16(s.popI64()))) },
	ir.OpI64Extend32S: func(s *execState) { s.pushI64(int64(int32(s.popI64()))) },
}

func b2f32(b bool) int32 { return b2i32(b) }

var f32Ops = map[ir.Opcode]func(*execState){
	ir.OpF32Eq: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a == b)) },
	ir.OpF32Ne: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a != b)) },
	ir.OpF32Lt: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a < b)) },
	ir.OpF32Gt: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a > b)) },
	ir.OpF32Le: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a <= b)) },
	ir.OpF32Ge: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushI32(b2f32(a >= b)) },

	ir.OpF32Abs:   func(s *execState) { s.pushF32(float32(math.Abs(float64(s.popF32())))) },
	ir.OpF32Neg:   func(s *execState) { s.pushF32(-s.popF32()) },
	ir.OpF32Ceil:  func(s *execState) { s.pushF32(float32(math.Ceil(float64(s.popF32())))) },
	ir.OpF32Floor: func(s *execState) { s.pushF32(float32(math.Floor(float64(s.popF32())))) },
	ir.OpF32Trunc: func(s *execState) { s.pushF32(float32(math.Trunc(float64(s.popF32())))) },
	ir.OpF32Nearest: func(s *execState) {
		s.pushF32(moremath.WasmCompatNearestF32(s.popF32()))
	},
	ir.OpF32Sqrt: func(s *execState) { s.pushF32(float32(math.Sqrt(float64(s.popF32())))) },
	ir.OpF32Add:  func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushF32(a + b) },
	ir.OpF32Sub:  func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushF32(a - b) },
	ir.OpF32Mul:  func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushF32(a * b) },
	ir.OpF32Div:  func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushF32(a / b) },
	ir.OpF32Min: func(s *execState) {
		b, a := s.popF32(), s.popF32()
		s.pushF32(float32(moremath.WasmCompatMin(float64(a), float64(b))))
	},
	ir.OpF32Max: func(s *execState) {
		b, a := s.popF32(), s.popF32()
		s.pushF32(float32(moremath.WasmCompatMax(float64(a), float64(b))))
	},
	ir.OpF32Copysign: func(s *execState) { b := s.popF32(); a := s.popF32(); s.pushF32(float32(math.Copysign(float64(a), float64(b)))) },
}

var f64Ops = map[ir.Opcode]func(*execState){
	ir.OpF64Eq: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a == b)) },
	ir.OpF64Ne: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a != b)) },
	ir.OpF64Lt: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a < b)) },
	ir.OpF64Gt: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a > b)) },
	ir.OpF64Le: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a <= b)) },
	ir.OpF64Ge: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushI32(b2f32(a >= b)) },

	ir.OpF64Abs:     func(s *execState) { s.pushF64(math.Abs(s.popF64())) },
	ir.OpF64Neg:     func(s *execState) { s.pushF64(-s.popF64()) },
	ir.OpF64Ceil:    func(s *execState) { s.pushF64(math.Ceil(s.popF64())) },
	ir.OpF64Floor:   func(s *execState) { s.pushF64(math.Floor(s.popF64())) },
	ir.OpF64Trunc:   func(s *execState) { s.pushF64(math.Trunc(s.popF64())) },
	ir.OpF64Nearest: func(s *execState) { s.pushF64(moremath.WasmCompatNearestF64(s.popF64())) },
	ir.OpF64Sqrt:    func(s *execState) { s.pushF64(math.Sqrt(s.popF64())) },
	ir.OpF64Add:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(a + b) },
	ir.OpF64Sub:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(a - b) },
	ir.OpF64Mul:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(a * b) },
	ir.OpF64Div:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(a / b) },
	ir.OpF64Min:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(moremath.WasmCompatMin(a, b)) },
	ir.OpF64Max:     func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(moremath.WasmCompatMax(a, b)) },
	ir.OpF64Copysign: func(s *execState) { b := s.popF64(); a := s.popF64(); s.pushF64(math.Copysign(a, b)) },
}

// truncToI32 converts f to a signed/unsigned 32-bit integer, trapping on
// NaN or out-of-range magnitude per the non-saturating trunc instructions.
func truncToI32(f float64, signed bool) int32 {
	if math.IsNaN(f) {
		panic(trap(TrapInvalidConversionToInteger, "trunc: NaN"))
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt32 || t > math.MaxInt32 {
			panic(trap(TrapIntegerOverflow, "trunc: out of range"))
		}
		return int32(t)
	}
	if t < 0 || t > math.MaxUint32 {
		panic(trap(TrapIntegerOverflow, "trunc: out of range"))
	}
	return int32(uint32(t))
}

func truncToI64(f float64, signed bool) int64 {
	if math.IsNaN(f) {
		panic(trap(TrapInvalidConversionToInteger, "trunc: NaN"))
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt64 || t >= 9223372036854775808.0 {
			panic(trap(TrapIntegerOverflow, "trunc: out of range"))
		}
		return int64(t)
	}
	if t < 0 || t >= 18446744073709551616.0 {
		panic(trap(TrapIntegerOverflow, "trunc: out of range"))
	}
	return int64(uint64(t))
}

func satTruncToI32(f float64, signed bool) int32 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt32 {
			return math.MinInt32
		}
		if t > math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(t)
	}
	if t < 0 {
		return 0
	}
	if t > math.MaxUint32 {
		return -1 // bit pattern of math.MaxUint32
	}
	return int32(uint32(t))
}

func satTruncToI64(f float64, signed bool) int64 {
	if math.IsNaN(f) {
		return 0
	}
	t := math.Trunc(f)
	if signed {
		if t < math.MinInt64 {
			return math.MinInt64
		}
		if t >= 9223372036854775808.0 {
			return math.MaxInt64
		}
		return int64(t)
	}
	if t < 0 {
		return 0
	}
	if t >= 18446744073709551616.0 {
		return -1 // bit pattern of math.MaxUint64
	}
	return int64(uint64(t))
}

var convOps = map[ir.Opcode]func(*execState){
	ir.OpI32TruncF32S: func(s *execState) { s.pushI32(truncToI32(float64(s.popF32()), true)) },
	ir.OpI32TruncF32U: func(s *execState) { s.pushI32(truncToI32(float64(s.popF32()), false)) },
	ir.OpI32TruncF64S: func(s *execState) { s.pushI32(truncToI32(s.popF64(), true)) },
	ir.OpI32TruncF64U: func(s *execState) { s.pushI32(truncToI32(s.popF64(), false)) },
	ir.OpI64ExtendI32S: func(s *execState) { s.pushI64(int64(s.popI32())) },
	ir.OpI64ExtendI32U: func(s *execState) { s.pushI64(int64(s.popU32())) },
	ir.OpI64TruncF32S: func(s *execState) { s.pushI64(truncToI64(float64(s.popF32()), true)) },
	ir.OpI64TruncF32U: func(s *execState) { s.pushI64(truncToI64(float64(s.popF32()), false)) },
	ir.OpI64TruncF64S: func(s *execState) { s.pushI64(truncToI64(s.popF64(), true)) },
	ir.OpI64TruncF64U: func(s *execState) { s.pushI64(truncToI64(s.popF64(), false)) },
	ir.OpF32ConvertI32S: func(s *execState) { s.pushF32(float32(s.popI32())) },
	ir.OpF32ConvertI32U: func(s *execState) { s.pushF32(float32(s.popU32())) },
	ir.OpF32ConvertI64S: func(s *execState) { s.pushF32(float32(s.popI64())) },
	ir.OpF32ConvertI64U: func(s *execState) { s.pushF32(float32(s.popU64())) },
	ir.OpF32DemoteF64:   func(s *execState) { s.pushF32(float32(s.popF64())) },
	ir.OpF64ConvertI32S: func(s *execState) { s.pushF64(float64(s.popI32())) },
	ir.OpF64ConvertI32U: func(s *execState) { s.pushF64(float64(s.popU32())) },
	ir.OpF64ConvertI64S: func(s *execState) { s.pushF64(float64(s.popI64())) },
	ir.OpF64ConvertI64U: func(s *execState) { s.pushF64(float64(s.popU64())) },
	ir.OpF64PromoteF32:  func(s *execState) { s.pushF64(float64(s.popF32())) },
	ir.OpI32ReinterpretF32: func(s *execState) { s.pushI32(int32(math.Float32bits(s.popF32()))) },
	ir.OpI64ReinterpretF64: func(s *execState) { s.pushI64(int64(math.Float64bits(s.popF64()))) },
	ir.OpF32ReinterpretI32: func(s *execState) { s.pushF32(math.Float32frombits(s.popU32())) },
	ir.OpF64ReinterpretI64: func(s *execState) { s.pushF64(math.Float64frombits(s.popU64())) },

	ir.OpI32TruncSatF32S: func(s *execState) { s.pushI32(satTruncToI32(float64(s.popF32()), true)) },
	ir.OpI32TruncSatF32U: func(s *execState) { s.pushI32(satTruncToI32(float64(s.popF32()), false)) },
	ir.OpI32TruncSatF64S: func(s *execState) { s.pushI32(satTruncToI32(s.popF64(), true)) },
	ir.OpI32TruncSatF64U: func(s *execState) { s.pushI32(satTruncToI32(s.popF64(), false)) },
	ir.OpI64TruncSatF32S: func(s *execState) { s.pushI64(satTruncToI64(float64(s.popF32()), true)) },
	ir.OpI64TruncSatF32U: func(s *execState) { s.pushI64(satTruncToI64(float64(s.popF32()), false)) },
	ir.OpI64TruncSatF64S: func(s *execState) { s.pushI64(satTruncToI64(s.popF64(), true)) },
	ir.OpI64TruncSatF64U: func(s *execState) { s.pushI64(satTruncToI64(s.popF64(), false)) },
}
