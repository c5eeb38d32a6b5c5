package transport

import (
	"encoding/binary"

	"github.com/coophouse/iocore/pkg/errdefs"
)

// Modbus function codes.
const (
	fnReadCoils          byte = 0x01
	fnReadDiscreteInputs byte = 0x02
	fnReadHoldingRegs    byte = 0x03
	fnReadInputRegs      byte = 0x04
	fnWriteSingleCoil    byte = 0x05
	fnWriteSingleReg     byte = 0x06
)

const exceptionBit byte = 0x80

// Modbus exception codes. classifyException maps illegal-function to
// BadFunction and every other code to InvalidResponse.
const (
	exIllegalFunction    byte = 0x01
	exIllegalDataAddress byte = 0x02
	exIllegalDataValue   byte = 0x03
	exServerDeviceFail   byte = 0x04
)

// buildPDU renders cmd as a function-code byte plus payload, independent
// of RTU/TCP framing.
func buildPDU(cmd Command) ([]byte, error) {
	switch cmd.Kind {
	case ReadCoils:
		return readPDU(fnReadCoils, cmd.Addr, cmd.Count), nil
	case ReadInputs:
		return readPDU(fnReadDiscreteInputs, cmd.Addr, cmd.Count), nil
	case ReadHoldingRegisters:
		return readPDU(fnReadHoldingRegs, cmd.Addr, cmd.Count), nil
	case ReadInputRegisters:
		return readPDU(fnReadInputRegs, cmd.Addr, cmd.Count), nil
	case WriteCoil:
		v := uint16(0x0000)
		if cmd.Bit {
			v = 0xFF00
		}
		return writePDU(fnWriteSingleCoil, cmd.Addr, v), nil
	case WriteHolding:
		return writePDU(fnWriteSingleReg, cmd.Addr, cmd.Value), nil
	default:
		return nil, errdefs.ErrBadFunction
	}
}

func readPDU(fn byte, addr, count uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fn
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], count)
	return pdu
}

func writePDU(fn byte, addr, value uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fn
	binary.BigEndian.PutUint16(pdu[1:3], addr)
	binary.BigEndian.PutUint16(pdu[3:5], value)
	return pdu
}

// parsePDU interprets the reply payload (function code plus body) for
// cmd's kind into a Frame.
func parsePDU(cmd Command, pdu []byte) (Frame, error) {
	if len(pdu) < 1 {
		return Frame{}, errdefs.ErrMalformedFrame
	}
	fn := pdu[0]
	if fn&exceptionBit != 0 {
		return Frame{}, classifyException(pdu)
	}

	switch cmd.Kind {
	case ReadCoils, ReadInputs:
		if len(pdu) < 2 {
			return Frame{}, errdefs.ErrMalformedFrame
		}
		byteCount := int(pdu[1])
		if len(pdu) < 2+byteCount {
			return Frame{}, errdefs.ErrMalformedFrame
		}
		bits := make([]bool, 0, int(cmd.Count))
		for i := 0; i < int(cmd.Count); i++ {
			byteIdx := i / 8
			if byteIdx >= byteCount {
				break
			}
			bits = append(bits, pdu[2+byteIdx]&(1<<uint(i%8)) != 0)
		}
		return Frame{Bits: bits}, nil

	case ReadHoldingRegisters, ReadInputRegisters:
		if len(pdu) < 2 {
			return Frame{}, errdefs.ErrMalformedFrame
		}
		byteCount := int(pdu[1])
		if len(pdu) < 2+byteCount || byteCount%2 != 0 {
			return Frame{}, errdefs.ErrMalformedFrame
		}
		regs := make([]uint16, byteCount/2)
		for i := range regs {
			regs[i] = binary.BigEndian.Uint16(pdu[2+2*i : 4+2*i])
		}
		return Frame{Registers: regs}, nil

	case WriteCoil, WriteHolding:
		// Echo reply: address+value confirmation, nothing to surface.
		return Frame{}, nil

	default:
		return Frame{}, errdefs.ErrBadFunction
	}
}

func classifyException(pdu []byte) error {
	if len(pdu) < 2 {
		return errdefs.ErrMalformedFrame
	}
	switch pdu[1] {
	case exIllegalFunction:
		return errdefs.ErrBadFunction
	case exIllegalDataAddress, exIllegalDataValue:
		return errdefs.ErrInvalidResponse
	case exServerDeviceFail:
		return errdefs.ErrInvalidResponse
	default:
		return errdefs.ErrInvalidResponse
	}
}
