package deviceinterp

import (
	"context"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/transport"
)

func batchCommandKind(fn FunctionCode) transport.CommandKind {
	switch fn {
	case FunctionHolding:
		return transport.ReadHoldingRegisters
	case FunctionInput:
		return transport.ReadInputRegisters
	case FunctionCoil:
		return transport.ReadCoils
	case FunctionDiscrete:
		return transport.ReadInputs
	default:
		return transport.ReadHoldingRegisters
	}
}

// bitsToRegs renders a coil/discrete batch's bits as a synthetic 0/1
// register array so field decoding can share the codec path with
// register-backed batches.
func bitsToRegs(bits []bool) []uint16 {
	regs := make([]uint16, len(bits))
	for i, b := range bits {
		if b {
			regs[i] = 1
		}
	}
	return regs
}

// ReadRecord issues one transport read per batch and merges every
// field's decoded value into a single named-field record. Any
// single-batch error aborts the whole read and is surfaced as-is.
func ReadRecord(ctx context.Context, drv transport.Driver, slaveID int, t *Template) (map[string]any, error) {
	batches := t.EffectiveBatches()
	batchRegs := make([][]uint16, len(batches))

	for i, b := range batches {
		frame, err := drv.Request(ctx, transport.Command{
			Kind:    batchCommandKind(b.FunctionCode),
			SlaveID: slaveID,
			Addr:    b.Start,
			Count:   b.Count,
		})
		if err != nil {
			return nil, err
		}
		if b.FunctionCode == FunctionCoil || b.FunctionCode == FunctionDiscrete {
			batchRegs[i] = bitsToRegs(frame.Bits)
		} else {
			batchRegs[i] = frame.Registers
		}
	}

	record := make(map[string]any, len(t.Registers))
	for _, f := range t.Registers {
		if !f.canRead() {
			continue
		}
		bIdx, offset, ok := locateField(batches, f)
		if !ok {
			return nil, errdefs.ErrUnknownField
		}
		regs := batchRegs[bIdx]
		count := int(f.Count)
		if count == 0 {
			count = codec.RegisterCount(f.Type)
		}
		if offset+count > len(regs) {
			return nil, errdefs.ErrMalformedFrame
		}
		slice := regs[offset : offset+count]

		val, err := decodeField(f, slice)
		if err != nil {
			return nil, err
		}
		record[f.Name] = val
	}
	return record, nil
}

func locateField(batches []Batch, f FieldDescriptor) (batchIdx, offset int, ok bool) {
	for i, b := range batches {
		if f.Address >= b.Start && f.Address < b.Start+b.Count {
			return i, int(f.Address - b.Start), true
		}
	}
	return 0, 0, false
}

func decodeField(f FieldDescriptor, reg []uint16) (any, error) {
	switch f.Type {
	case codec.ValueTypeBool:
		v, err := codec.DecodeBool(reg)
		return v, err
	case codec.ValueTypeEnum:
		return codec.DecodeEnum(reg, intTable(f.Values))
	case codec.ValueTypeBitmask:
		return codec.DecodeBitmask(reg, intTable(f.Bits))
	default:
		v, err := codec.DecodeNumeric(f.Type, codec.ByteOrderHighLow, reg)
		if err != nil {
			return nil, err
		}
		if f.Multiplier != 0 {
			v *= f.Multiplier
		}
		return v, nil
	}
}

// WriteField encodes value per the named field's descriptor and writes
// as many registers as its type spans (one, two or four), in order. Fields without w/rw
// access are rejected.
func WriteField(ctx context.Context, drv transport.Driver, slaveID int, t *Template, name string, value float64) error {
	f, ok := t.FieldByName(name)
	if !ok {
		return errdefs.ErrUnknownField
	}
	if !f.canWrite() {
		return errdefs.ErrReadOnlyField
	}

	raw := value
	if f.Multiplier != 0 {
		raw = value / f.Multiplier
	}

	var regs []uint16
	var err error
	if f.Type == codec.ValueTypeBool {
		regs = codec.EncodeBool(raw != 0)
	} else {
		regs, err = codec.EncodeNumeric(f.Type, codec.ByteOrderHighLow, raw)
		if err != nil {
			return err
		}
	}

	for i, r := range regs {
		if _, err := drv.Request(ctx, transport.Command{
			Kind:    transport.WriteHolding,
			SlaveID: slaveID,
			Addr:    f.Address + uint16(i),
			Value:   r,
		}); err != nil {
			return err
		}
	}
	return nil
}
