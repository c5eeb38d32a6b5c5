// Package errdefs defines the stable error identifiers the core returns
// to its callers, independent of transport or protocol.
package errdefs

import (
	"context"
	"errors"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrUnavailable        = errors.New("unavailable")
	ErrNotImplemented     = errors.New("not implemented")
	ErrUnknown            = errors.New("unknown")
)

// Stable identifiers surfaced to callers, per the external-interface contract.
var (
	ErrNoData               = errors.New("no_data")
	ErrTimeout              = errors.New("timeout")
	ErrCommandTimeout       = errors.New("command_timeout")
	ErrCommandException     = errors.New("command_exception")
	ErrDeviceOfflineSkipped = errors.New("device_offline_skipped")
	ErrPortNotFound         = errors.New("port_not_found")
	ErrPortNotConnected     = errors.New("port_not_connected")
	ErrPortInUse            = errors.New("port_in_use")
	ErrVirtualPort          = errors.New("virtual_port")
	ErrNoDBPort             = errors.New("no_db_port")
	ErrInvalidResponse      = errors.New("invalid_response")
	ErrUnknownField         = errors.New("unknown_field")
	ErrReadOnlyField        = errors.New("read_only_field")
	ErrEncodingFailed       = errors.New("encoding_failed")
	ErrDisconnected         = errors.New("disconnected")
	ErrNoReadFunction       = errors.New("no_read_function")
	ErrNoWriteFunction      = errors.New("no_write_function")
	ErrMalformedFrame       = errors.New("malformed_frame")
	ErrCRC                  = errors.New("crc")
	ErrBadFunction          = errors.New("bad_function")
	ErrTransportClosed      = errors.New("transport_closed")
	ErrNotSimulated         = errors.New("not_simulated")
	ErrInterlocked          = errors.New("interlocked")
	ErrModeLocked           = errors.New("mode_locked")
)

func IsInvalidArgument(err error) bool    { return errors.Is(err, ErrInvalidArgument) }
func IsNotFound(err error) bool           { return errors.Is(err, ErrNotFound) }
func IsAlreadyExists(err error) bool      { return errors.Is(err, ErrAlreadyExists) }
func IsFailedPrecondition(err error) bool { return errors.Is(err, ErrFailedPrecondition) }
func IsUnavailable(err error) bool        { return errors.Is(err, ErrUnavailable) }
func IsNotImplemented(err error) bool     { return errors.Is(err, ErrNotImplemented) }
func IsCanceled(err error) bool           { return errors.Is(err, context.Canceled) }
func IsDeadlineExceeded(err error) bool   { return errors.Is(err, context.DeadlineExceeded) }

func IsTimeout(err error) bool              { return errors.Is(err, ErrTimeout) }
func IsDeviceOfflineSkipped(err error) bool { return errors.Is(err, ErrDeviceOfflineSkipped) }
func IsDisconnected(err error) bool         { return errors.Is(err, ErrDisconnected) }
