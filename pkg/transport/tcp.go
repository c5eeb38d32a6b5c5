package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/coophouse/iocore/pkg/errdefs"
)

// TCPConfig describes a Modbus TCP (MBAP) endpoint.
type TCPConfig struct {
	Address string // host:port
	Timeout time.Duration
}

// TCPDriver speaks Modbus TCP (MBAP framing) over a persistent socket.
type TCPDriver struct {
	cfg  TCPConfig
	conn net.Conn
	txn  atomic.Uint32
}

func NewTCPDriver(cfg TCPConfig) *TCPDriver {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &TCPDriver{cfg: cfg}
}

func (d *TCPDriver) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}
	d.conn = conn
	return nil
}

func (d *TCPDriver) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *TCPDriver) Request(ctx context.Context, cmd Command) (Frame, error) {
	if d.conn == nil {
		return Frame{}, errdefs.ErrTransportClosed
	}

	pdu, err := buildPDU(cmd)
	if err != nil {
		return Frame{}, err
	}

	txnID := uint16(d.txn.Add(1))
	header := make([]byte, 7)
	binary.BigEndian.PutUint16(header[0:2], txnID)
	binary.BigEndian.PutUint16(header[2:4], 0) // protocol identifier
	binary.BigEndian.PutUint16(header[4:6], uint16(len(pdu)+1))
	header[6] = byte(cmd.SlaveID)

	deadline := time.Now().Add(d.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = d.conn.SetDeadline(deadline)

	if _, err := d.conn.Write(append(header, pdu...)); err != nil {
		return Frame{}, classifyTCPErr(err)
	}

	replyHeader := make([]byte, 7)
	if _, err := readFull(d.conn, replyHeader); err != nil {
		return Frame{}, classifyTCPErr(err)
	}
	gotTxn := binary.BigEndian.Uint16(replyHeader[0:2])
	length := binary.BigEndian.Uint16(replyHeader[4:6])
	if gotTxn != txnID {
		return Frame{}, errdefs.ErrMalformedFrame
	}
	if length < 1 || length > 253 {
		return Frame{}, errdefs.ErrMalformedFrame
	}

	body := make([]byte, length)
	if _, err := readFull(d.conn, body); err != nil {
		return Frame{}, classifyTCPErr(err)
	}
	if body[0] != byte(cmd.SlaveID) {
		return Frame{}, errdefs.ErrMalformedFrame
	}

	return parsePDU(cmd, body[1:])
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// classifyTCPErr distinguishes a plain read/write deadline timeout (the
// common case, handled by the port worker's skip policy) from a socket
// that has actually gone away -- EOF, connection reset, closed -- which
// the Manager's liveness watch must see as transport death.
func classifyTCPErr(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return errdefs.ErrTimeout
	}
	return errdefs.ErrDisconnected
}

// RTUOverTCPDriver tunnels raw Modbus RTU ADUs (slave+PDU+CRC, no MBAP
// header) across a TCP socket, as used by serial-to-Ethernet gateways.
type RTUOverTCPDriver struct {
	cfg  TCPConfig
	conn net.Conn
}

func NewRTUOverTCPDriver(cfg TCPConfig) *RTUOverTCPDriver {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &RTUOverTCPDriver{cfg: cfg}
}

func (d *RTUOverTCPDriver) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}
	d.conn = conn
	return nil
}

func (d *RTUOverTCPDriver) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *RTUOverTCPDriver) Request(ctx context.Context, cmd Command) (Frame, error) {
	if d.conn == nil {
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

	deadline := time.Now().Add(d.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = d.conn.SetDeadline(deadline)

	if _, err := d.conn.Write(adu); err != nil {
		return Frame{}, classifyTCPErr(err)
	}

	buf := make([]byte, 256)
	n, err := d.conn.Read(buf)
	if err != nil {
		return Frame{}, classifyTCPErr(err)
	}
	reply := buf[:n]
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
