package transport

import (
	"context"
	"sync"

	"github.com/coophouse/iocore/pkg/errdefs"
)

type simKind int

const (
	simCoil simKind = iota
	simInput
	simHoldingRegister
	simInputRegister
)

type simKey struct {
	slave int
	kind  simKind
	addr  uint16
}

// SimulatedDriver is the in-memory adapter used by tests and the e2e
// suite. It presents the same Driver surface as every wire transport,
// backed by a table keyed (slave, kind, address) instead of a socket or
// serial line. Its Set* hooks are called from test code and from the
// Manager's simulation operations (pkg/datapoint/simulate.go), never
// from I/O dispatch.
type SimulatedDriver struct {
	mu      sync.Mutex
	coils   map[simKey]bool
	inputs  map[simKey]bool
	holding map[simKey]uint16
	inputR  map[simKey]uint16
	offline bool
}

func NewSimulatedDriver() *SimulatedDriver {
	return &SimulatedDriver{
		coils:   make(map[simKey]bool),
		inputs:  make(map[simKey]bool),
		holding: make(map[simKey]uint16),
		inputR:  make(map[simKey]uint16),
	}
}

func (s *SimulatedDriver) Open(ctx context.Context) error  { return nil }
func (s *SimulatedDriver) Close() error                    { return nil }

func (s *SimulatedDriver) Request(ctx context.Context, cmd Command) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return Frame{}, errdefs.ErrTimeout
	}

	switch cmd.Kind {
	case ReadCoils:
		bits := make([]bool, cmd.Count)
		for i := range bits {
			bits[i] = s.coils[simKey{cmd.SlaveID, simCoil, cmd.Addr + uint16(i)}]
		}
		return Frame{Bits: bits}, nil

	case ReadInputs:
		bits := make([]bool, cmd.Count)
		for i := range bits {
			bits[i] = s.inputs[simKey{cmd.SlaveID, simInput, cmd.Addr + uint16(i)}]
		}
		return Frame{Bits: bits}, nil

	case ReadHoldingRegisters:
		regs := make([]uint16, cmd.Count)
		for i := range regs {
			regs[i] = s.holding[simKey{cmd.SlaveID, simHoldingRegister, cmd.Addr + uint16(i)}]
		}
		return Frame{Registers: regs}, nil

	case ReadInputRegisters:
		regs := make([]uint16, cmd.Count)
		for i := range regs {
			regs[i] = s.inputR[simKey{cmd.SlaveID, simInputRegister, cmd.Addr + uint16(i)}]
		}
		return Frame{Registers: regs}, nil

	case WriteCoil:
		s.coils[simKey{cmd.SlaveID, simCoil, cmd.Addr}] = cmd.Bit
		return Frame{}, nil

	case WriteHolding:
		s.holding[simKey{cmd.SlaveID, simHoldingRegister, cmd.Addr}] = cmd.Value
		return Frame{}, nil

	default:
		return Frame{}, errdefs.ErrBadFunction
	}
}

// SetCoil sets a coil's state directly, bypassing WriteCoil framing.
func (s *SimulatedDriver) SetCoil(slave int, addr uint16, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coils[simKey{slave, simCoil, addr}] = v
}

// SetInput sets a discrete input's state.
func (s *SimulatedDriver) SetInput(slave int, addr uint16, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[simKey{slave, simInput, addr}] = v
}

// SetRegister sets a holding register's value.
func (s *SimulatedDriver) SetRegister(slave int, addr uint16, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holding[simKey{slave, simHoldingRegister, addr}] = v
}

// SetOutputBit is an alias for SetCoil matching the simulation API's
// digital-output naming.
func (s *SimulatedDriver) SetOutputBit(slave int, addr uint16, v bool) {
	s.SetCoil(slave, addr, v)
}

// SetInputBit is an alias for SetInput matching the simulation API's
// digital-input naming.
func (s *SimulatedDriver) SetInputBit(slave int, addr uint16, v bool) {
	s.SetInput(slave, addr, v)
}

// SetAnalogInput sets an input register's raw value.
func (s *SimulatedDriver) SetAnalogInput(slave int, addr uint16, v uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputR[simKey{slave, simInputRegister, addr}] = v
}

// SetOffline forces every subsequent Request to fail with Timeout,
// modeling an unplugged or powered-down slave.
func (s *SimulatedDriver) SetOffline(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = on
}

var _ Driver = (*SimulatedDriver)(nil)
