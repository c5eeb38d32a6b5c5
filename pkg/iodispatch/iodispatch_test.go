package iodispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

func TestReadDigitalInputModbusSelectsChannel(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	sim.SetInputBit(1, 100, false)
	sim.SetInputBit(1, 102, true)

	v, err := ReadDigitalInput(context.Background(), sim, model.ProtocolModbusRTU, 1, 100, 3)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestWriteDigitalOutputModbusChannelOffset(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	ctx := context.Background()

	err := WriteDigitalOutput(ctx, sim, model.ProtocolModbusRTU, 1, 100, 2, true)
	require.NoError(t, err)

	v, err := ReadDigitalOutput(ctx, sim, model.ProtocolModbusRTU, 1, 100, 2)
	require.NoError(t, err)
	assert.True(t, v)
}

func TestAnalogRoundTripUint16(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	ctx := context.Background()
	d := Descriptor{ValueType: codec.ValueTypeUint16, ByteOrder: codec.ByteOrderHighLow}

	require.NoError(t, WriteAnalogOutput(ctx, sim, 1, 10, d, 4242))
	v, err := ReadAnalogOutput(ctx, sim, 1, 10, d)
	require.NoError(t, err)
	assert.Equal(t, 4242.0, v)
}

func TestAnalogRoundTripFloat32(t *testing.T) {
	sim := transport.NewSimulatedDriver()
	ctx := context.Background()
	d := Descriptor{ValueType: codec.ValueTypeFloat32, ByteOrder: codec.ByteOrderHighLow}

	require.NoError(t, WriteAnalogOutput(ctx, sim, 1, 10, d, 12.5))
	v, err := ReadAnalogOutput(ctx, sim, 1, 10, d)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, v, 0.0001)
}

type fakeVirtualStore struct {
	states map[[2]int]bool
}

func newFakeVirtualStore() *fakeVirtualStore {
	return &fakeVirtualStore{states: make(map[[2]int]bool)}
}

func (f *fakeVirtualStore) ReadVirtualDigital(ctx context.Context, slaveID, channel int) (bool, error) {
	return f.states[[2]int{slaveID, channel}], nil
}

func (f *fakeVirtualStore) WriteVirtualDigital(ctx context.Context, slaveID, channel int, value bool) error {
	f.states[[2]int{slaveID, channel}] = value
	return nil
}

func TestVirtualDigitalRoundTrip(t *testing.T) {
	store := newFakeVirtualStore()
	ctx := context.Background()

	require.NoError(t, WriteVirtualDigitalOutput(ctx, store, 1, 1, true))
	v, err := ReadVirtualDigitalOutput(ctx, store, 1, 1)
	require.NoError(t, err)
	assert.True(t, v)
}
