// Package model holds the configuration and runtime shapes shared by
// the Data-Point Manager, the Port Workers, and the I/O dispatch layer:
// ports, data points, cache entries, and the value record a read
// produces.
package model

import "time"

// Protocol identifies a port's wire dialect.
type Protocol string

const (
	ProtocolModbusRTU  Protocol = "modbus_rtu"
	ProtocolModbusTCP  Protocol = "modbus_tcp"
	ProtocolRTUOverTCP Protocol = "rtu_over_tcp"
	ProtocolS7         Protocol = "s7"
	ProtocolVirtual    Protocol = "virtual"
)

// Parity is a serial line's parity setting.
type Parity string

const (
	ParityNone Parity = "none"
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// Port is the persisted configuration record for a physical or virtual
// communication port.
type Port struct {
	Name        string
	DevicePath  string // "/dev/ttyUSB0", "host:port", or "virtual"
	Protocol    Protocol
	Speed       int // baud, serial only
	Parity      Parity
	DataBits    int
	StopBits    int
	TimeoutMS   int // frame timeout, default 6000
	Description string

	// S7-only addressing.
	Rack  int
	Slot  int
	DBNum int
}

// PortStatus is the Manager's live view of a RuntimePort's connection state.
type PortStatus string

const (
	PortConnected    PortStatus = "Connected"
	PortDisconnected PortStatus = "Disconnected"
	PortError        PortStatus = "Error"
)

// ReadFn/WriteFn name the I/O dispatch entry point a data point uses.
type ReadFn string
type WriteFn string

const (
	ReadDigitalInput        ReadFn = "read_digital_input"
	ReadDigitalOutput       ReadFn = "read_digital_output"
	ReadAnalogInput         ReadFn = "read_analog_input"
	ReadAnalogOutput        ReadFn = "read_analog_output"
	ReadVirtualDigitalOut   ReadFn = "read_virtual_digital_output"

	WriteDigitalOutput      WriteFn = "write_digital_output"
	WriteAnalogOutput       WriteFn = "write_analog_output"
	WriteVirtualDigitalOut  WriteFn = "write_virtual_digital_output"
)

// ValueType mirrors codec.ValueType at the configuration layer, kept as
// its own string type so model has no compile-time dependency on codec.
type ValueType string

// ByteOrder mirrors codec.ByteOrder at the configuration layer.
type ByteOrder string

// DataPoint is the persisted configuration record for one logical point.
type DataPoint struct {
	Name        string
	Type        string
	Description string

	PortPath string
	SlaveID  int
	Register uint16
	Channel  int // 1-based; 0 means "not set"

	ReadFn  ReadFn
	WriteFn WriteFn

	ScaleFactor float64
	Offset      float64
	Unit        string
	ValueType   ValueType
	ByteOrder   ByteOrder

	MinValid *float64
	MaxValid *float64

	Inverted bool

	ColorZones []byte // opaque JSON, forwarded to UI untouched
}

// HasReadFn reports whether the data point can be read.
func (d DataPoint) HasReadFn() bool { return d.ReadFn != "" }

// HasWriteFn reports whether the data point can be written.
func (d DataPoint) HasWriteFn() bool { return d.WriteFn != "" }

// ValueRecord is the decoded, converted representation of an analog read.
type ValueRecord struct {
	Value      float64
	Raw        float64
	Unit       string
	ValueType  ValueType
	Valid      bool
	MinValid   *float64
	MaxValid   *float64
	ColorZones []byte
}

// DigitalRecord is the decoded representation of a digital read,
// post-inversion.
type DigitalRecord struct {
	State int // 0 or 1
}

// CacheEntry is the Manager's per-data-point cached result: exactly one
// of Analog/Digital/Record is meaningful, selected by Err == nil and the
// data point's read_fn.
type CacheEntry struct {
	Analog    *ValueRecord
	Digital   *DigitalRecord
	Record    map[string]any // composite/generic-device reads
	Err       error
	UpdatedAt time.Time
}
