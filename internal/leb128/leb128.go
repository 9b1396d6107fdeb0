// Package leb128 implements the variable-length integer encoding the
// WebAssembly binary format uses for every size, index, and immediate
// value: LEB128 (unsigned) and SLEB128 (signed), grounded on wazero's
// internal/leb128 package and the algorithm description in the
// WebAssembly core spec's binary format appendix.
package leb128

import (
	"fmt"
	"io"
)

const (
	maxVarintBytes32 = 5  // ceil(32/7)
	maxVarintBytes33 = 5  // ceil(33/7)
	maxVarintBytes64 = 10 // ceil(64/7)
)

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return encodeUint(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte { return encodeUint(v) }

func encodeUint(v uint64) []byte {
	out := make([]byte, 0, maxVarintBytes64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128 (SLEB128).
func EncodeInt32(v int32) []byte { return encodeInt(int64(v)) }

// EncodeInt64 encodes v as signed LEB128 (SLEB128).
func EncodeInt64(v int64) []byte { return encodeInt(v) }

func encodeInt(v int64) []byte {
	out := make([]byte, 0, maxVarintBytes64)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		done := (v == 0 && !signBitSet) || (v == -1 && signBitSet)
		if !done {
			out = append(out, b|0x80)
			continue
		}
		out = append(out, b)
		return out
	}
}

// LoadUint32 decodes an unsigned LEB128 value from the head of buf,
// returning the value, the number of bytes consumed, and an error if the
// encoding overflows 32 bits or buf is truncated.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUvarint(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned LEB128 value from the head of buf.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUvarint(buf, 64)
}

func loadUvarint(buf []byte, maxBits int) (uint64, uint64, error) {
	maxBytes := (maxBits + 6) / 7
	var result uint64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b := buf[i]
		chunk := uint64(b & 0x7f)
		// The last permitted byte may not continue, and its bits above
		// maxBits must be zero.
		if i == maxBytes-1 && (b&0x80 != 0 || chunk>>(uint(maxBits)-shift) != 0) {
			return 0, 0, fmt.Errorf("leb128: overflow decoding uint%d", maxBits)
		}
		result |= chunk << shift
		if b&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("leb128: overflow decoding uint%d", maxBits)
}

// LoadInt32 decodes a signed LEB128 (SLEB128) value from the head of buf,
// sign-extended to 32 bits.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadSvarint(buf, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(v), n, nil
}

// LoadInt64 decodes a signed LEB128 value from the head of buf.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadSvarint(buf, 64)
}

func loadSvarint(buf []byte, maxBits int) (int64, uint64, error) {
	var result int64
	var shift uint
	var b byte
	i := 0
	for {
		if i >= len(buf) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		b = buf[i]
		chunk := int64(b & 0x7f)
		if shift < 64 {
			result |= chunk << shift
		}
		i++
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: overflow decoding int%d", maxBits)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if maxBits < 64 {
		// Every bit above maxBits-1 must agree with the sign bit, i.e. sign
		// extending from maxBits must reproduce result exactly.
		shiftAmt := uint(64 - maxBits)
		truncated := (result << shiftAmt) >> shiftAmt
		if truncated != result {
			return 0, 0, fmt.Errorf("leb128: value exceeds int%d range", maxBits)
		}
	}
	return result, uint64(i), nil
}

// DecodeUint32 decodes an unsigned LEB128 value from r, for callers
// streaming a module rather than holding the whole byte slice.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUvarintReader(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes an unsigned LEB128 value from r.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUvarintReader(r, 64)
}

func decodeUvarintReader(r io.ByteReader, maxBits int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		n++
		chunk := uint64(b & 0x7f)
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: overflow decoding uint%d", maxBits)
		}
		result |= chunk << shift
		if b&0x80 == 0 {
			if maxBits < 64 && result>>uint(maxBits) != 0 {
				return 0, 0, fmt.Errorf("leb128: value exceeds uint%d range", maxBits)
			}
			return result, n, nil
		}
		shift += 7
	}
}

// DecodeInt32 decodes a signed LEB128 value from r, sign-extended to 32
// bits.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSvarintReader(r, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(v), n, nil
}

// DecodeInt64 decodes a signed LEB128 value from r.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSvarintReader(r, 64)
}

// DecodeInt33AsInt64 decodes a 33-bit signed LEB128 value, the encoding the
// binary format uses for block-type immediates (a signed type index packed
// alongside the 7 value-type tags), and sign-extends it into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSvarintReader(r, 33)
}

func decodeSvarintReader(r io.ByteReader, maxBits int) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		n++
		chunk := int64(b & 0x7f)
		if shift < 64 {
			result |= chunk << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			return 0, 0, fmt.Errorf("leb128: overflow decoding int%d", maxBits)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if maxBits < 64 {
		shiftAmt := uint(64 - maxBits)
		truncated := (result << shiftAmt) >> shiftAmt
		if truncated != result {
			return 0, 0, fmt.Errorf("leb128: value exceeds int%d range", maxBits)
		}
	}
	return result, n, nil
}
