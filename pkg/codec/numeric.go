package codec

import "github.com/coophouse/iocore/pkg/errdefs"

// resolvedOrder maps the little-endian-variant types onto their base
// type and the byte order actually used to assemble the registers.
func resolvedOrder(vt ValueType, order ByteOrder) (ValueType, ByteOrder) {
	switch vt {
	case ValueTypeUint32LE:
		return ValueTypeUint32, flip(order)
	case ValueTypeInt32LE:
		return ValueTypeInt32, flip(order)
	case ValueTypeFloat32LE:
		return ValueTypeFloat32, flip(order)
	default:
		return vt, order
	}
}

func flip(order ByteOrder) ByteOrder {
	if order == ByteOrderLowHigh {
		return ByteOrderHighLow
	}
	return ByteOrderLowHigh
}

// DecodeNumeric decodes reg per vt/order into a float64, for the analog
// I/O path (4.D), which only ever carries numeric types; enum/bitmask
// decoding belongs to the Generic Device Interpreter (4.E).
func DecodeNumeric(vt ValueType, order ByteOrder, reg []uint16) (float64, error) {
	vt, order = resolvedOrder(vt, order)
	switch vt {
	case ValueTypeUint16:
		v, err := DecodeUint16(reg)
		return float64(v), err
	case ValueTypeInt16:
		v, err := DecodeInt16(reg)
		return float64(v), err
	case ValueTypeUint32:
		v, err := DecodeUint32(reg, order)
		return float64(v), err
	case ValueTypeInt32:
		v, err := DecodeInt32(reg, order)
		return float64(v), err
	case ValueTypeUint64:
		v, err := DecodeUint64(reg)
		return float64(v), err
	case ValueTypeFloat32:
		v, err := DecodeFloat32(reg, order)
		return float64(v), err
	default:
		return 0, errdefs.ErrEncodingFailed
	}
}

// EncodeNumeric is DecodeNumeric's inverse, used by the analog write path.
func EncodeNumeric(vt ValueType, order ByteOrder, value float64) ([]uint16, error) {
	vt, order = resolvedOrder(vt, order)
	switch vt {
	case ValueTypeUint16:
		return EncodeUint16(uint16(value)), nil
	case ValueTypeInt16:
		return EncodeInt16(int16(value)), nil
	case ValueTypeUint32:
		return EncodeUint32(uint32(value), order), nil
	case ValueTypeInt32:
		return EncodeInt32(int32(value), order), nil
	case ValueTypeUint64:
		return EncodeUint64(uint64(value)), nil
	case ValueTypeFloat32:
		return EncodeFloat32(float32(value), order)
	default:
		return nil, errdefs.ErrEncodingFailed
	}
}
