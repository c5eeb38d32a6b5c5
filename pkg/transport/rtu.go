package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	serial "github.com/daedaluz/goserial"

	"github.com/coophouse/iocore/pkg/errdefs"
)

// RTUConfig describes a physical serial line.
type RTUConfig struct {
	Device   string
	BaudRate int
	DataBits int // 7 or 8
	StopBits int // 1 or 2
	Parity   string // "none", "even", "odd"
	Timeout  time.Duration
}

var baudRates = map[int]serial.CFlag{
	1200:   serial.B1200,
	2400:   serial.B2400,
	4800:   serial.B4800,
	9600:   serial.B9600,
	19200:  serial.B19200,
	38400:  serial.B38400,
	57600:  serial.B57600,
	115200: serial.B115200,
	230400: serial.B230400,
}

// RTUDriver speaks Modbus RTU over a local serial device.
type RTUDriver struct {
	cfg  RTUConfig
	port *serial.Port
}

func NewRTUDriver(cfg RTUConfig) *RTUDriver {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &RTUDriver{cfg: cfg}
}

func (d *RTUDriver) Open(ctx context.Context) error {
	opts := serial.NewOptions().SetReadTimeout(d.cfg.Timeout)
	port, err := serial.Open(d.cfg.Device, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}

	attrs, err := port.GetAttr()
	if err != nil {
		port.Close()
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}
	attrs.MakeRaw()
	baud, ok := baudRates[d.cfg.BaudRate]
	if !ok {
		baud = serial.B9600
	}
	attrs.SetSpeed(baud)
	attrs.Cflag &^= serial.CSIZE
	switch d.cfg.DataBits {
	case 7:
		attrs.Cflag |= serial.CS7
	default:
		attrs.Cflag |= serial.CS8
	}
	if d.cfg.StopBits == 2 {
		attrs.Cflag |= serial.CSTOPB
	}
	switch d.cfg.Parity {
	case "even":
		attrs.Cflag |= serial.PARENB
		attrs.Cflag &^= serial.PARODD
	case "odd":
		attrs.Cflag |= serial.PARENB
		attrs.Cflag |= serial.PARODD
	}
	attrs.Cflag |= serial.CREAD | serial.CLOCAL

	if err := port.SetAttr(serial.TCSANOW, attrs); err != nil {
		port.Close()
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}

	d.port = port
	return nil
}

func (d *RTUDriver) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *RTUDriver) Request(ctx context.Context, cmd Command) (Frame, error) {
	if d.port == nil {
		return Frame{}, errdefs.ErrTransportClosed
	}

	pdu, err := buildPDU(cmd)
	if err != nil {
		return Frame{}, err
	}

	adu := make([]byte, 0, len(pdu)+3)
	adu = append(adu, byte(cmd.SlaveID))
	adu = append(adu, pdu...)
	crc := crc16(adu)
	adu = append(adu, byte(crc&0xFF), byte(crc>>8))

	if deadline, ok := ctx.Deadline(); ok {
		d.port.SetReadTimeout(time.Until(deadline))
	} else {
		d.port.SetReadTimeout(d.cfg.Timeout)
	}

	if _, err := d.port.Write(adu); err != nil {
		return Frame{}, classifyIOErr(err)
	}

	reply, err := readRTUReply(d.port)
	if err != nil {
		return Frame{}, classifyIOErr(err)
	}
	if len(reply) < 4 {
		return Frame{}, errdefs.ErrMalformedFrame
	}

	body := reply[:len(reply)-2]
	wantCRC := crc16(body)
	gotCRC := uint16(reply[len(reply)-2]) | uint16(reply[len(reply)-1])<<8
	if wantCRC != gotCRC {
		return Frame{}, errdefs.ErrCRC
	}
	if body[0] != byte(cmd.SlaveID) {
		return Frame{}, errdefs.ErrMalformedFrame
	}

	return parsePDU(cmd, body[1:])
}

// readRTUReply reads one RTU ADU from port using the standard 3.5
// character silent-interval framing approximated by a short idle read:
// block for the first byte, then keep reading while bytes keep arriving
// promptly.
func readRTUReply(port *serial.Port) ([]byte, error) {
	buf := make([]byte, 256)
	n, err := port.Read(buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errdefs.ErrTimeout
	}
	frame := append([]byte(nil), buf[:n]...)

	port.SetReadTimeout(20 * time.Millisecond)
	for {
		n, err := port.Read(buf)
		if err != nil || n == 0 {
			break
		}
		frame = append(frame, buf[:n]...)
	}
	return frame, nil
}

// classifyIOErr distinguishes a plain read/write timeout (the common
// case, handled by the port worker's skip policy) from an error that
// indicates the serial line itself is gone -- closed fd, unplugged USB
// adapter -- which the Manager's liveness watch must see as transport
// death rather than a per-slave timeout.
func classifyIOErr(err error) error {
	if err == io.EOF || errors.Is(err, serial.ErrClosed) {
		return errdefs.ErrDisconnected
	}
	return errdefs.ErrTimeout
}
