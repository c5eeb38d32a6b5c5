package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/coophouse/iocore/pkg/errdefs"
)

// S7Config describes a Siemens S7 PLC reachable over ISO-on-TCP
// (RFC1006/COTP), addressed by rack/slot and a single data-block number
// that every data point on this port reads/writes within.
type S7Config struct {
	Address string // host:port, usually host:102
	Rack    int
	Slot    int
	DBNum   int
	Timeout time.Duration
}

const (
	s7AreaDB byte = 0x84

	cotpConnectRequest byte = 0xE0
	cotpConnectConfirm byte = 0xD0
	cotpData           byte = 0xF0

	s7PDUTypeJob  byte = 0x01
	s7PDUTypeAck  byte = 0x03
	s7FuncReadVar byte = 0x04
	s7FuncWriteVar byte = 0x05

	s7TransportSizeBit  byte = 0x03
	s7TransportSizeByte byte = 0x02
	s7TransportSizeWord byte = 0x04
)

// S7Driver speaks the S7comm protocol over ISO-on-TCP. Discrete points
// address a bit within a byte (register = byte offset, Command.Value
// holds the 0-7 bit index); analog
// points address a word within the configured data block.
type S7Driver struct {
	cfg  S7Config
	conn net.Conn
	pdu  uint16
}

func NewS7Driver(cfg S7Config) *S7Driver {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &S7Driver{cfg: cfg}
}

func (d *S7Driver) Open(ctx context.Context) error {
	dialer := net.Dialer{Timeout: d.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrPortNotConnected, err)
	}
	d.conn = conn
	_ = conn.SetDeadline(time.Now().Add(d.cfg.Timeout))

	if err := d.cotpConnect(); err != nil {
		conn.Close()
		d.conn = nil
		return err
	}
	if err := d.negotiatePDU(); err != nil {
		conn.Close()
		d.conn = nil
		return err
	}
	return nil
}

func (d *S7Driver) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// cotpConnect performs the RFC1006/COTP connection request/confirm
// handshake, addressing the PLC's rack/slot via the TSAP calling/called
// parameters as Siemens controllers expect.
func (d *S7Driver) cotpConnect() error {
	calling := uint16(0x0100)
	called := uint16(0x0300 | uint16(d.cfg.Rack)<<5 | uint16(d.cfg.Slot))

	pdu := []byte{
		0x11,       // length of remaining parameter bytes
		cotpConnectRequest,
		0x00, 0x00, // destination reference
		0x00, 0x01, // source reference
		0x00,       // class/options
		0xC1, 0x02, byte(calling >> 8), byte(calling), // calling TSAP
		0xC2, 0x02, byte(called >> 8), byte(called), // called TSAP
		0xC0, 0x01, 0x0A, // TPDU size
	}
	tpkt := tpktWrap(pdu)
	if _, err := d.conn.Write(tpkt); err != nil {
		return classifyTCPErr(err)
	}

	reply, err := readTPKT(d.conn)
	if err != nil {
		return classifyTCPErr(err)
	}
	if len(reply) < 2 || reply[1] != cotpConnectConfirm {
		return errdefs.ErrMalformedFrame
	}
	return nil
}

// negotiatePDU sends the S7 "Setup Communication" job and, once the PLC
// acknowledges it, records a fixed PDU length of 240; the length in the
// reply is not parsed.
func (d *S7Driver) negotiatePDU() error {
	job := []byte{
		s7PDUTypeJob, 0x00, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00,
		0xF0, 0x00,
		0x00, 0x01, // max AMQ calling
		0x00, 0x01, // max AMQ called
		0x02, 0x00, // PDU length requested (512)
	}
	if err := d.sendCOTPData(job); err != nil {
		return err
	}
	reply, err := d.recvCOTPData()
	if err != nil {
		return err
	}
	if len(reply) < 2 || reply[1] != s7PDUTypeAck {
		return errdefs.ErrMalformedFrame
	}
	d.pdu = 240
	return nil
}

func (d *S7Driver) sendCOTPData(s7pdu []byte) error {
	cotp := append([]byte{2, cotpData, 0x80}, s7pdu...)
	_, err := d.conn.Write(tpktWrap(cotp))
	if err != nil {
		return classifyTCPErr(err)
	}
	return nil
}

func (d *S7Driver) recvCOTPData() ([]byte, error) {
	raw, err := readTPKT(d.conn)
	if err != nil {
		return nil, classifyTCPErr(err)
	}
	if len(raw) < 3 {
		return nil, errdefs.ErrMalformedFrame
	}
	return raw[3:], nil
}

func tpktWrap(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	out[0] = 0x03
	out[1] = 0x00
	binary.BigEndian.PutUint16(out[2:4], uint16(len(out)))
	copy(out[4:], payload)
	return out
}

func readTPKT(conn net.Conn) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := readFull(conn, header); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint16(header[2:4])
	if length < 4 {
		return nil, errdefs.ErrMalformedFrame
	}
	body := make([]byte, length-4)
	if _, err := readFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (d *S7Driver) Request(ctx context.Context, cmd Command) (Frame, error) {
	if d.conn == nil {
		return Frame{}, errdefs.ErrTransportClosed
	}

	deadline := time.Now().Add(d.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}
	_ = d.conn.SetDeadline(deadline)

	switch cmd.Kind {
	case ReadInputs, ReadCoils:
		return d.readBit(cmd)
	case ReadHoldingRegisters, ReadInputRegisters:
		return d.readWord(cmd)
	case WriteCoil:
		return Frame{}, d.writeBit(cmd)
	case WriteHolding:
		return Frame{}, d.writeWord(cmd)
	default:
		return Frame{}, errdefs.ErrBadFunction
	}
}

// readBit reads one bit at byte offset cmd.Addr, bit index cmd.Value
// (0-7), within the configured data block.
func (d *S7Driver) readBit(cmd Command) (Frame, error) {
	item := d.readItem(s7TransportSizeBit, cmd.Addr, cmd.Value, 1)
	job := s7ReadVarJob(item)
	if err := d.sendCOTPData(job); err != nil {
		return Frame{}, err
	}
	reply, err := d.recvCOTPData()
	if err != nil {
		return Frame{}, err
	}
	data, err := parseReadVarAck(reply)
	if err != nil {
		return Frame{}, err
	}
	if len(data) < 1 {
		return Frame{}, errdefs.ErrMalformedFrame
	}
	return Frame{Bits: []bool{data[0] != 0}}, nil
}

func (d *S7Driver) readWord(cmd Command) (Frame, error) {
	item := d.readItem(s7TransportSizeByte, cmd.Addr, 0, int(cmd.Count)*2)
	job := s7ReadVarJob(item)
	if err := d.sendCOTPData(job); err != nil {
		return Frame{}, err
	}
	reply, err := d.recvCOTPData()
	if err != nil {
		return Frame{}, err
	}
	data, err := parseReadVarAck(reply)
	if err != nil {
		return Frame{}, err
	}
	if len(data) < int(cmd.Count)*2 {
		return Frame{}, errdefs.ErrMalformedFrame
	}
	regs := make([]uint16, cmd.Count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i : 2*i+2])
	}
	return Frame{Registers: regs}, nil
}

func (d *S7Driver) writeBit(cmd Command) error {
	v := byte(0)
	if cmd.Bit {
		v = 1
	}
	job := s7WriteVarJob(d.readItem(s7TransportSizeBit, cmd.Addr, cmd.Value, 1), []byte{v})
	if err := d.sendCOTPData(job); err != nil {
		return err
	}
	reply, err := d.recvCOTPData()
	if err != nil {
		return err
	}
	return checkWriteVarAck(reply)
}

func (d *S7Driver) writeWord(cmd Command) error {
	data := []byte{byte(cmd.Value >> 8), byte(cmd.Value)}
	job := s7WriteVarJob(d.readItem(s7TransportSizeByte, cmd.Addr, 0, 2), data)
	if err := d.sendCOTPData(job); err != nil {
		return err
	}
	reply, err := d.recvCOTPData()
	if err != nil {
		return err
	}
	return checkWriteVarAck(reply)
}

// readItem builds one S7 "variable specification" item addressing a bit
// or byte range in the configured data block.
func (d *S7Driver) readItem(transportSize byte, byteAddr, bitAddr uint16, length int) []byte {
	bitOffset := uint32(byteAddr)*8 + uint32(bitAddr)
	item := []byte{
		0x12, 0x0A, 0x10,
		transportSize,
		byte(length >> 8), byte(length),
		byte(d.cfg.DBNum >> 8), byte(d.cfg.DBNum),
		s7AreaDB,
		byte(bitOffset >> 16), byte(bitOffset >> 8), byte(bitOffset),
	}
	return item
}

func s7ReadVarJob(item []byte) []byte {
	header := []byte{
		s7PDUTypeJob, 0x00, 0x00, 0x00, 0x00,
		byte(2 >> 8), 0x02,
		byte(len(item) >> 8), byte(len(item)),
		0x00, 0x00,
		s7FuncReadVar, 0x01,
	}
	return append(header, item...)
}

func s7WriteVarJob(item, data []byte) []byte {
	dataSpec := append([]byte{0x00, 0x04, byte(len(data) >> 5), byte(len(data) * 8)}, data...)
	header := []byte{
		s7PDUTypeJob, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x02,
		byte(len(item) >> 8), byte(len(item)),
		byte(len(dataSpec) >> 8), byte(len(dataSpec)),
		s7FuncWriteVar, 0x01,
	}
	header = append(header, item...)
	return append(header, dataSpec...)
}

func parseReadVarAck(reply []byte) ([]byte, error) {
	if len(reply) < 14 {
		return nil, errdefs.ErrMalformedFrame
	}
	if reply[1] != s7PDUTypeAck {
		return nil, errdefs.ErrMalformedFrame
	}
	if reply[12] != 0xFF {
		return nil, errdefs.ErrInvalidResponse
	}
	length := binary.BigEndian.Uint16(reply[14:16])
	if len(reply) < 16+int(length) {
		return nil, errdefs.ErrMalformedFrame
	}
	return reply[16 : 16+int(length)], nil
}

func checkWriteVarAck(reply []byte) error {
	if len(reply) < 13 {
		return errdefs.ErrMalformedFrame
	}
	if reply[1] != s7PDUTypeAck {
		return errdefs.ErrMalformedFrame
	}
	if reply[12] != 0xFF {
		return errdefs.ErrInvalidResponse
	}
	return nil
}
