package datapoint

import (
	"time"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

// NewDriverFactory returns a DriverFactory that builds the concrete
// transport.Driver matching a port's configured protocol. Virtual ports
// never reach this factory: the Manager gives them no driver at all.
func NewDriverFactory() DriverFactory {
	return func(p model.Port) (transport.Driver, error) {
		timeout := time.Duration(p.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = transport.DefaultTimeout
		}

		switch p.Protocol {
		case model.ProtocolModbusRTU:
			return transport.NewRTUDriver(transport.RTUConfig{
				Device:   p.DevicePath,
				BaudRate: p.Speed,
				DataBits: p.DataBits,
				StopBits: p.StopBits,
				Parity:   string(p.Parity),
				Timeout:  timeout,
			}), nil

		case model.ProtocolModbusTCP:
			return transport.NewTCPDriver(transport.TCPConfig{
				Address: p.DevicePath,
				Timeout: timeout,
			}), nil

		case model.ProtocolRTUOverTCP:
			return transport.NewRTUOverTCPDriver(transport.TCPConfig{
				Address: p.DevicePath,
				Timeout: timeout,
			}), nil

		case model.ProtocolS7:
			return transport.NewS7Driver(transport.S7Config{
				Address: p.DevicePath,
				Rack:    p.Rack,
				Slot:    p.Slot,
				DBNum:   p.DBNum,
				Timeout: timeout,
			}), nil

		default:
			return nil, errdefs.ErrInvalidArgument
		}
	}
}
