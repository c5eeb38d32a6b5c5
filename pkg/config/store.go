package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coophouse/iocore/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS ports (
	name TEXT PRIMARY KEY,
	device_path TEXT NOT NULL,
	protocol TEXT NOT NULL,
	speed INTEGER NOT NULL DEFAULT 0,
	parity TEXT NOT NULL DEFAULT '',
	data_bits INTEGER NOT NULL DEFAULT 0,
	stop_bits INTEGER NOT NULL DEFAULT 0,
	timeout_ms INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	rack INTEGER NOT NULL DEFAULT 0,
	slot INTEGER NOT NULL DEFAULT 0,
	db_num INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS data_points (
	name TEXT PRIMARY KEY,
	type TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	port_path TEXT NOT NULL DEFAULT '',
	slave_id INTEGER NOT NULL DEFAULT 0,
	register INTEGER NOT NULL DEFAULT 0,
	channel INTEGER NOT NULL DEFAULT 0,
	read_fn TEXT NOT NULL DEFAULT '',
	write_fn TEXT NOT NULL DEFAULT '',
	scale_factor REAL NOT NULL DEFAULT 1.0,
	value_offset REAL NOT NULL DEFAULT 0.0,
	unit TEXT NOT NULL DEFAULT '',
	value_type TEXT NOT NULL DEFAULT '',
	byte_order TEXT NOT NULL DEFAULT '',
	min_valid REAL,
	max_valid REAL,
	inverted INTEGER NOT NULL DEFAULT 0,
	color_zones BLOB
);

CREATE TABLE IF NOT EXISTS virtual_digital_states (
	slave_id INTEGER NOT NULL,
	channel INTEGER NOT NULL,
	value INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (slave_id, channel)
);
`

// Store is the sqlite-backed implementation of datapoint.Store and
// iodispatch.VirtualStore, split into a single read-write connection
// and a read-only pool the same way pkg/sqlite's callers elsewhere do,
// avoiding SQLITE_BUSY contention between the Manager's frequent
// virtual-state writes and the status API's concurrent reads.
type Store struct {
	dbRW *sql.DB
	dbRO *sql.DB
}

// NewStore wraps dbRW/dbRO. dbRO may be nil, in which case all reads
// also go through dbRW.
func NewStore(dbRW, dbRO *sql.DB) *Store {
	return &Store{dbRW: dbRW, dbRO: dbRO}
}

func (s *Store) reader() *sql.DB {
	if s.dbRO != nil {
		return s.dbRO
	}
	return s.dbRW
}

// EnsureSchema creates every table the Store needs if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.dbRW.ExecContext(ctx, schema)
	return err
}

func (s *Store) ListPorts(ctx context.Context) ([]model.Port, error) {
	rows, err := s.reader().QueryContext(ctx, `SELECT name, device_path, protocol, speed, parity, data_bits, stop_bits, timeout_ms, description, rack, slot, db_num FROM ports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Port
	for rows.Next() {
		var p model.Port
		var protocol, parity string
		if err := rows.Scan(&p.Name, &p.DevicePath, &protocol, &p.Speed, &parity, &p.DataBits, &p.StopBits, &p.TimeoutMS, &p.Description, &p.Rack, &p.Slot, &p.DBNum); err != nil {
			return nil, err
		}
		p.Protocol = model.Protocol(protocol)
		p.Parity = model.Parity(parity)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListDataPoints(ctx context.Context) ([]model.DataPoint, error) {
	rows, err := s.reader().QueryContext(ctx, `SELECT name, type, description, port_path, slave_id, register, channel, read_fn, write_fn, scale_factor, value_offset, unit, value_type, byte_order, min_valid, max_valid, inverted, color_zones FROM data_points`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DataPoint
	for rows.Next() {
		var d model.DataPoint
		var readFn, writeFn, valueType, byteOrder string
		var minValid, maxValid sql.NullFloat64
		var inverted int
		var colorZones []byte
		if err := rows.Scan(&d.Name, &d.Type, &d.Description, &d.PortPath, &d.SlaveID, &d.Register, &d.Channel,
			&readFn, &writeFn, &d.ScaleFactor, &d.Offset, &d.Unit, &valueType, &byteOrder,
			&minValid, &maxValid, &inverted, &colorZones); err != nil {
			return nil, err
		}
		d.ReadFn = model.ReadFn(readFn)
		d.WriteFn = model.WriteFn(writeFn)
		d.ValueType = model.ValueType(valueType)
		d.ByteOrder = model.ByteOrder(byteOrder)
		d.Inverted = inverted != 0
		d.ColorZones = colorZones
		if minValid.Valid {
			v := minValid.Float64
			d.MinValid = &v
		}
		if maxValid.Valid {
			v := maxValid.Float64
			d.MaxValid = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) PutPort(ctx context.Context, p model.Port) error {
	_, err := s.dbRW.ExecContext(ctx, `
		INSERT INTO ports (name, device_path, protocol, speed, parity, data_bits, stop_bits, timeout_ms, description, rack, slot, db_num)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			device_path=excluded.device_path, protocol=excluded.protocol, speed=excluded.speed,
			parity=excluded.parity, data_bits=excluded.data_bits, stop_bits=excluded.stop_bits,
			timeout_ms=excluded.timeout_ms, description=excluded.description,
			rack=excluded.rack, slot=excluded.slot, db_num=excluded.db_num
	`, p.Name, p.DevicePath, string(p.Protocol), p.Speed, string(p.Parity), p.DataBits, p.StopBits, p.TimeoutMS, p.Description, p.Rack, p.Slot, p.DBNum)
	return err
}

func (s *Store) DeletePort(ctx context.Context, name string) error {
	_, err := s.dbRW.ExecContext(ctx, `DELETE FROM ports WHERE name = ?`, name)
	return err
}

func (s *Store) PutDataPoint(ctx context.Context, d model.DataPoint) error {
	inverted := 0
	if d.Inverted {
		inverted = 1
	}
	_, err := s.dbRW.ExecContext(ctx, `
		INSERT INTO data_points (name, type, description, port_path, slave_id, register, channel, read_fn, write_fn, scale_factor, value_offset, unit, value_type, byte_order, min_valid, max_valid, inverted, color_zones)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type=excluded.type, description=excluded.description, port_path=excluded.port_path,
			slave_id=excluded.slave_id, register=excluded.register, channel=excluded.channel,
			read_fn=excluded.read_fn, write_fn=excluded.write_fn, scale_factor=excluded.scale_factor,
			value_offset=excluded.value_offset, unit=excluded.unit, value_type=excluded.value_type,
			byte_order=excluded.byte_order, min_valid=excluded.min_valid, max_valid=excluded.max_valid,
			inverted=excluded.inverted, color_zones=excluded.color_zones
	`, d.Name, d.Type, d.Description, d.PortPath, d.SlaveID, d.Register, d.Channel,
		string(d.ReadFn), string(d.WriteFn), d.ScaleFactor, d.Offset, d.Unit, string(d.ValueType), string(d.ByteOrder),
		d.MinValid, d.MaxValid, inverted, d.ColorZones)
	return err
}

// ReadVirtualDigital implements iodispatch.VirtualStore.
func (s *Store) ReadVirtualDigital(ctx context.Context, slaveID, channel int) (bool, error) {
	var v int
	err := s.reader().QueryRowContext(ctx, `SELECT value FROM virtual_digital_states WHERE slave_id = ? AND channel = ?`, slaveID, channel).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// WriteVirtualDigital implements iodispatch.VirtualStore.
func (s *Store) WriteVirtualDigital(ctx context.Context, slaveID, channel int, value bool) error {
	v := 0
	if value {
		v = 1
	}
	_, err := s.dbRW.ExecContext(ctx, `
		INSERT INTO virtual_digital_states (slave_id, channel, value) VALUES (?, ?, ?)
		ON CONFLICT(slave_id, channel) DO UPDATE SET value=excluded.value
	`, slaveID, channel, v)
	if err != nil {
		return fmt.Errorf("write virtual digital state: %w", err)
	}
	return nil
}
