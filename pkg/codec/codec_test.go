package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint16RoundTrip(t *testing.T) {
	got, err := DecodeUint16(EncodeUint16(0xBEEF))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), got)
}

func TestInt16RoundTrip(t *testing.T) {
	got, err := DecodeInt16(EncodeInt16(-1234))
	require.NoError(t, err)
	assert.Equal(t, int16(-1234), got)
}

func TestUint32RoundTripBothOrders(t *testing.T) {
	for _, order := range []ByteOrder{ByteOrderHighLow, ByteOrderLowHigh} {
		got, err := DecodeUint32(EncodeUint32(0xDEADBEEF, order), order)
		require.NoError(t, err)
		assert.Equal(t, uint32(0xDEADBEEF), got)
	}
}

func TestInt32RoundTrip(t *testing.T) {
	got, err := DecodeInt32(EncodeInt32(-98765, ByteOrderHighLow), ByteOrderHighLow)
	require.NoError(t, err)
	assert.Equal(t, int32(-98765), got)
}

func TestUint64RoundTrip(t *testing.T) {
	got, err := DecodeUint64(EncodeUint64(0x0102030405060708))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), got)
}

func TestFloat32RoundTrip(t *testing.T) {
	for _, order := range []ByteOrder{ByteOrderHighLow, ByteOrderLowHigh} {
		enc, err := EncodeFloat32(3.25, order)
		require.NoError(t, err)
		got, err := DecodeFloat32(enc, order)
		require.NoError(t, err)
		assert.Equal(t, float32(3.25), got)
	}
}

func TestFloat32RejectsNaNAndInf(t *testing.T) {
	_, err := EncodeFloat32(float32(math.NaN()), ByteOrderHighLow)
	require.Error(t, err)

	_, err = EncodeFloat32(float32(math.Inf(1)), ByteOrderHighLow)
	require.Error(t, err)
}

func TestFloat32LittleEndianHalfSwap(t *testing.T) {
	// S5 from the spec: registers [0x3F80, 0x0000] big-endian decode to 1.0.
	v, err := DecodeFloat32([]uint16{0x3F80, 0x0000}, ByteOrderHighLow)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 0.0001)

	// The little-endian variant swaps the halves first.
	v2, err := DecodeFloat32([]uint16{0x0000, 0x3F80}, ByteOrderLowHigh)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v2, 0.0001)
}

func TestBoolDecode(t *testing.T) {
	v, err := DecodeBool([]uint16{0})
	require.NoError(t, err)
	assert.False(t, v)

	v, err = DecodeBool([]uint16{7})
	require.NoError(t, err)
	assert.True(t, v)
}

func TestEnumDecodeFallback(t *testing.T) {
	table := map[int]string{0: "off", 1: "on"}

	v, err := DecodeEnum([]uint16{1}, table)
	require.NoError(t, err)
	assert.Equal(t, "on", v)

	v, err = DecodeEnum([]uint16{99}, table)
	require.NoError(t, err)
	assert.Equal(t, "99", v)
}

func TestBitmaskDecode(t *testing.T) {
	// S5 from the spec: valve_status bits per the published table.
	table := map[int]string{0: "open", 1: "closed", 2: "abnormal", 3: "low_battery"}
	got, err := DecodeBitmask([]uint16{0b0001}, table)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		"open": true, "closed": false, "abnormal": false, "low_battery": false,
	}, got)
}

func TestDecodeErrorsOnShortBuffer(t *testing.T) {
	_, err := DecodeUint32(nil, ByteOrderHighLow)
	require.Error(t, err)

	_, err = DecodeUint64([]uint16{1, 2}, )
	require.Error(t, err)
}

func TestRegisterCount(t *testing.T) {
	assert.Equal(t, 1, RegisterCount(ValueTypeUint16))
	assert.Equal(t, 2, RegisterCount(ValueTypeFloat32))
	assert.Equal(t, 4, RegisterCount(ValueTypeUint64))
}

func TestConvertRoundsToThreeDecimals(t *testing.T) {
	assert.Equal(t, 1.235, Convert(12.3456, 0.1, 0))
}

func TestInRange(t *testing.T) {
	min, max := 0.0, 100.0
	assert.True(t, InRange(50, &min, &max))
	assert.False(t, InRange(-1, &min, &max))
	assert.False(t, InRange(101, &min, &max))
	assert.True(t, InRange(1e9, nil, nil))
}

func TestInvertBit(t *testing.T) {
	assert.Equal(t, 1, InvertBit(0))
	assert.Equal(t, 0, InvertBit(1))
}
