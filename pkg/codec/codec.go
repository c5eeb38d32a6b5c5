// Package codec implements the pure, total encode/decode primitives
// over arrays of 16-bit Modbus/S7 registers: unsigned/signed 16/32/64-bit
// integers, IEEE-754 float32, booleans, enums and bitmasks, honoring
// configurable byte order.
package codec

import (
	"math"

	"github.com/coophouse/iocore/pkg/errdefs"
)

// ValueType enumerates the wire encodings a data point's register
// content may carry. It is the typed replacement for the
// configuration-file value_type string.
type ValueType string

const (
	ValueTypeUint16    ValueType = "uint16"
	ValueTypeInt16     ValueType = "int16"
	ValueTypeUint32    ValueType = "uint32"
	ValueTypeInt32     ValueType = "int32"
	ValueTypeUint32LE  ValueType = "uint32_le"
	ValueTypeInt32LE   ValueType = "int32_le"
	ValueTypeFloat32   ValueType = "float32"
	ValueTypeFloat32LE ValueType = "float32_le"
	ValueTypeUint64    ValueType = "uint64"
	ValueTypeBool      ValueType = "bool"
	ValueTypeEnum      ValueType = "enum"
	ValueTypeBitmask   ValueType = "bitmask"
)

// ByteOrder controls how a multi-register scalar is assembled.
type ByteOrder string

const (
	ByteOrderHighLow ByteOrder = "high_low"
	ByteOrderLowHigh ByteOrder = "low_high"
)

// RegisterCount returns how many 16-bit registers ValueType occupies.
func RegisterCount(vt ValueType) int {
	switch vt {
	case ValueTypeUint32, ValueTypeInt32, ValueTypeUint32LE, ValueTypeInt32LE, ValueTypeFloat32, ValueTypeFloat32LE:
		return 2
	case ValueTypeUint64:
		return 4
	default:
		return 1
	}
}

// DecodeUint16 returns reg[0] as-is.
func DecodeUint16(reg []uint16) (uint16, error) {
	if len(reg) < 1 {
		return 0, errdefs.ErrMalformedFrame
	}
	return reg[0], nil
}

// DecodeInt16 reinterprets reg[0] as two's complement.
func DecodeInt16(reg []uint16) (int16, error) {
	if len(reg) < 1 {
		return 0, errdefs.ErrMalformedFrame
	}
	return int16(reg[0]), nil
}

func join32(hi, lo uint16, order ByteOrder) uint32 {
	if order == ByteOrderLowHigh {
		return uint32(lo)<<16 | uint32(hi)
	}
	return uint32(hi)<<16 | uint32(lo)
}

// DecodeUint32 assembles two registers per order.
func DecodeUint32(reg []uint16, order ByteOrder) (uint32, error) {
	if len(reg) < 2 {
		return 0, errdefs.ErrMalformedFrame
	}
	return join32(reg[0], reg[1], order), nil
}

// DecodeInt32 assembles two registers into a two's-complement 32-bit value.
func DecodeInt32(reg []uint16, order ByteOrder) (int32, error) {
	u, err := DecodeUint32(reg, order)
	if err != nil {
		return 0, err
	}
	return int32(u), nil
}

// DecodeUint64 assembles four 16-bit groups, MSB first.
func DecodeUint64(reg []uint16) (uint64, error) {
	if len(reg) < 4 {
		return 0, errdefs.ErrMalformedFrame
	}
	var v uint64
	for i := 0; i < 4; i++ {
		v = v<<16 | uint64(reg[i])
	}
	return v, nil
}

// DecodeFloat32 assembles the IEEE-754 bit pattern across two registers.
// The low_high variant swaps the 16-bit halves before reinterpreting.
func DecodeFloat32(reg []uint16, order ByteOrder) (float32, error) {
	bits, err := DecodeUint32(reg, order)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// DecodeBool reports whether reg[0] is non-zero.
func DecodeBool(reg []uint16) (bool, error) {
	if len(reg) < 1 {
		return false, errdefs.ErrMalformedFrame
	}
	return reg[0] != 0, nil
}

// DecodeEnum looks up reg[0] in table; on miss it falls back to the raw
// integer rendered as a string, per spec.
func DecodeEnum(reg []uint16, table map[int]string) (string, error) {
	if len(reg) < 1 {
		return "", errdefs.ErrMalformedFrame
	}
	if s, ok := table[int(reg[0])]; ok {
		return s, nil
	}
	return itoa(int(reg[0])), nil
}

// DecodeBitmask expands reg[0] into the named bits present in table
// (bit index -> name), reporting every named bit's boolean state.
func DecodeBitmask(reg []uint16, table map[int]string) (map[string]bool, error) {
	if len(reg) < 1 {
		return nil, errdefs.ErrMalformedFrame
	}
	out := make(map[string]bool, len(table))
	for bit, name := range table {
		out[name] = reg[0]&(1<<uint(bit)) != 0
	}
	return out, nil
}

// EncodeUint16 round-trips a uint16 into a single register.
func EncodeUint16(v uint16) []uint16 { return []uint16{v} }

// EncodeInt16 round-trips an int16 into a single register.
func EncodeInt16(v int16) []uint16 { return []uint16{uint16(v)} }

// EncodeUint32 splits v into two registers per order.
func EncodeUint32(v uint32, order ByteOrder) []uint16 {
	hi := uint16(v >> 16)
	lo := uint16(v & 0xFFFF)
	if order == ByteOrderLowHigh {
		return []uint16{lo, hi}
	}
	return []uint16{hi, lo}
}

// EncodeInt32 splits v into two registers per order.
func EncodeInt32(v int32, order ByteOrder) []uint16 {
	return EncodeUint32(uint32(v), order)
}

// EncodeUint64 splits v into four registers, MSB first.
func EncodeUint64(v uint64) []uint16 {
	return []uint16{
		uint16(v >> 48),
		uint16(v >> 32),
		uint16(v >> 16),
		uint16(v),
	}
}

// EncodeFloat32 splits v's IEEE-754 bit pattern into two registers.
// Infinite and NaN values are rejected: they have no meaningful analog
// register representation and silently writing them would corrupt the
// downstream device's control loop.
func EncodeFloat32(v float32, order ByteOrder) ([]uint16, error) {
	f := float64(v)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errdefs.ErrEncodingFailed
	}
	return EncodeUint32(math.Float32bits(v), order), nil
}

// EncodeBool encodes a digital value as a single register (1/0).
func EncodeBool(v bool) []uint16 {
	if v {
		return []uint16{1}
	}
	return []uint16{0}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
