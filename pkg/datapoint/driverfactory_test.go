package datapoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

func TestDriverFactorySelectsImplementationByProtocol(t *testing.T) {
	factory := NewDriverFactory()

	drv, err := factory(model.Port{Protocol: model.ProtocolModbusRTU, DevicePath: "/dev/ttyUSB0", Speed: 9600})
	require.NoError(t, err)
	assert.IsType(t, &transport.RTUDriver{}, drv)

	drv, err = factory(model.Port{Protocol: model.ProtocolModbusTCP, DevicePath: "127.0.0.1:502"})
	require.NoError(t, err)
	assert.IsType(t, &transport.TCPDriver{}, drv)

	drv, err = factory(model.Port{Protocol: model.ProtocolRTUOverTCP, DevicePath: "127.0.0.1:4001"})
	require.NoError(t, err)
	assert.IsType(t, &transport.RTUOverTCPDriver{}, drv)

	drv, err = factory(model.Port{Protocol: model.ProtocolS7, DevicePath: "192.168.0.10:102", Rack: 0, Slot: 2})
	require.NoError(t, err)
	assert.IsType(t, &transport.S7Driver{}, drv)

	_, err = factory(model.Port{Protocol: model.ProtocolVirtual})
	assert.ErrorIs(t, err, errdefs.ErrInvalidArgument)
}
