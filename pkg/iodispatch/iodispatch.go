// Package iodispatch implements the protocol-agnostic read/write
// primitives (spec 4.D): DigitalIO, AnalogIO, and Virtual. Each function
// translates a (protocol, slave_id, register, channel_or_type) tuple
// into the right transport.Driver call, or, for virtual points, into a
// VirtualStore call with no transport involved.
package iodispatch

import (
	"context"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

// VirtualStore backs the database-resident virtual digital state table
// keyed (slave_id, channel). It is implemented by pkg/config against the
// shared sqlite database.
type VirtualStore interface {
	ReadVirtualDigital(ctx context.Context, slaveID, channel int) (bool, error)
	WriteVirtualDigital(ctx context.Context, slaveID, channel int, value bool) error
}

// ReadDigitalInput reads a discrete input. For Modbus it fetches eight
// bits starting at register and selects channel-1; for S7, register is
// a byte address and channel a 1-8 bit index.
func ReadDigitalInput(ctx context.Context, drv transport.Driver, proto model.Protocol, slaveID int, register uint16, channel int) (bool, error) {
	return readDigital(ctx, drv, proto, transport.ReadInputs, slaveID, register, channel)
}

// ReadDigitalOutput reads a coil's current state the same way ReadDigitalInput
// reads a discrete input.
func ReadDigitalOutput(ctx context.Context, drv transport.Driver, proto model.Protocol, slaveID int, register uint16, channel int) (bool, error) {
	return readDigital(ctx, drv, proto, transport.ReadCoils, slaveID, register, channel)
}

func readDigital(ctx context.Context, drv transport.Driver, proto model.Protocol, kind transport.CommandKind, slaveID int, register uint16, channel int) (bool, error) {
	if proto == model.ProtocolS7 {
		bitIdx := uint16(0)
		if channel > 0 {
			bitIdx = uint16(channel - 1)
		}
		frame, err := drv.Request(ctx, transport.Command{Kind: kind, SlaveID: slaveID, Addr: register, Value: bitIdx})
		if err != nil {
			return false, err
		}
		if len(frame.Bits) < 1 {
			return false, errdefs.ErrMalformedFrame
		}
		return frame.Bits[0], nil
	}

	frame, err := drv.Request(ctx, transport.Command{Kind: kind, SlaveID: slaveID, Addr: register, Count: 8})
	if err != nil {
		return false, err
	}
	idx := 0
	if channel > 0 {
		idx = channel - 1
	}
	if idx >= len(frame.Bits) {
		return false, errdefs.ErrMalformedFrame
	}
	return frame.Bits[idx], nil
}

// WriteDigitalOutput always targets a single bit/coil: the effective
// Modbus coil address is register+(channel-1); the S7 address is
// register (byte) with channel-1 as the bit index.
func WriteDigitalOutput(ctx context.Context, drv transport.Driver, proto model.Protocol, slaveID int, register uint16, channel int, value bool) error {
	if proto == model.ProtocolS7 {
		bitIdx := uint16(0)
		if channel > 0 {
			bitIdx = uint16(channel - 1)
		}
		_, err := drv.Request(ctx, transport.Command{Kind: transport.WriteCoil, SlaveID: slaveID, Addr: register, Value: bitIdx, Bit: value})
		return err
	}

	addr := register
	if channel > 0 {
		addr = register + uint16(channel-1)
	}
	_, err := drv.Request(ctx, transport.Command{Kind: transport.WriteCoil, SlaveID: slaveID, Addr: addr, Bit: value})
	return err
}

// descriptor carries the decode/encode shape an analog read or write needs.
type Descriptor struct {
	ValueType codec.ValueType
	ByteOrder codec.ByteOrder
}

// ReadAnalogInput reads an input-register-backed analog point and
// returns its raw (pre-scale/offset) numeric value.
func ReadAnalogInput(ctx context.Context, drv transport.Driver, slaveID int, register uint16, d Descriptor) (float64, error) {
	return readAnalog(ctx, drv, transport.ReadInputRegisters, slaveID, register, d)
}

// ReadAnalogOutput reads a holding-register-backed analog point.
func ReadAnalogOutput(ctx context.Context, drv transport.Driver, slaveID int, register uint16, d Descriptor) (float64, error) {
	return readAnalog(ctx, drv, transport.ReadHoldingRegisters, slaveID, register, d)
}

func readAnalog(ctx context.Context, drv transport.Driver, kind transport.CommandKind, slaveID int, register uint16, d Descriptor) (float64, error) {
	count := uint16(codec.RegisterCount(d.ValueType))
	frame, err := drv.Request(ctx, transport.Command{Kind: kind, SlaveID: slaveID, Addr: register, Count: count})
	if err != nil {
		return 0, err
	}
	return codec.DecodeNumeric(d.ValueType, d.ByteOrder, frame.Registers)
}

// WriteAnalogOutput encodes value per d and writes one, two or four holding
// registers, in order, depending on the type's register width.
func WriteAnalogOutput(ctx context.Context, drv transport.Driver, slaveID int, register uint16, d Descriptor, value float64) error {
	regs, err := codec.EncodeNumeric(d.ValueType, d.ByteOrder, value)
	if err != nil {
		return err
	}
	for i, reg := range regs {
		if _, err := drv.Request(ctx, transport.Command{Kind: transport.WriteHolding, SlaveID: slaveID, Addr: register + uint16(i), Value: reg}); err != nil {
			return err
		}
	}
	return nil
}

// ReadVirtualDigitalOutput reads the database-backed virtual state table;
// no transport call is made.
func ReadVirtualDigitalOutput(ctx context.Context, store VirtualStore, slaveID, channel int) (bool, error) {
	return store.ReadVirtualDigital(ctx, slaveID, channel)
}

// WriteVirtualDigitalOutput writes the database-backed virtual state table.
func WriteVirtualDigitalOutput(ctx context.Context, store VirtualStore, slaveID, channel int, value bool) error {
	return store.WriteVirtualDigital(ctx, slaveID, channel, value)
}
