// Package config resolves the core's on-disk data directory and sqlite
// database path, and implements the Store/VirtualStore backing the
// Data-Point Manager against that database.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/mitchellh/go-homedir"
)

const (
	DefaultDataDirName  = ".iocore"
	DefaultDBFileName   = "iocore.db"
	DefaultAddress      = ":8980"
	DefaultTickInterval = time.Second
)

var ErrInvalidAddress = errors.New("invalid address")

// Config is the core daemon's resolved runtime configuration.
type Config struct {
	DataDir string
	DBFile  string
	Address string

	TickInterval   metav1.Duration
	ReloadDebounce metav1.Duration

	Simulation bool
}

// Validate reports whether cfg is internally consistent.
func (c *Config) Validate() error {
	if c.Address == "" {
		return ErrInvalidAddress
	}
	if c.TickInterval.Duration <= 0 {
		return errors.New("tick_interval must be positive")
	}
	return nil
}

// Op holds the options DefaultConfig applies.
type Op struct {
	DataDir    string
	Address    string
	Simulation bool
}

// OpOption mutates an Op.
type OpOption func(*Op)

func (op *Op) ApplyOpts(opts []OpOption) error {
	for _, apply := range opts {
		apply(op)
	}
	return nil
}

// WithDataDir overrides the resolved data directory.
func WithDataDir(dir string) OpOption {
	return func(op *Op) { op.DataDir = dir }
}

// WithAddress overrides the HTTP status API listen address.
func WithAddress(addr string) OpOption {
	return func(op *Op) { op.Address = addr }
}

// WithSimulation marks the resolved Config for simulated-transport mode.
func WithSimulation(b bool) OpOption {
	return func(op *Op) { op.Simulation = b }
}

// DefaultConfig resolves a Config from its defaults plus opts, creating
// the data directory if it does not already exist.
func DefaultConfig(opts ...OpOption) (*Config, error) {
	op := &Op{}
	_ = op.ApplyOpts(opts)

	dataDir := op.DataDir
	var err error
	if dataDir == "" {
		dataDir, err = ResolveDataDir("")
	} else {
		dataDir, err = ResolveDataDir(dataDir)
	}
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	addr := op.Address
	if addr == "" {
		addr = DefaultAddress
	}

	return &Config{
		DataDir:        dataDir,
		DBFile:         DBFilePath(dataDir),
		Address:        addr,
		TickInterval:   metav1.Duration{Duration: DefaultTickInterval},
		ReloadDebounce: metav1.Duration{Duration: 500 * time.Millisecond},
		Simulation:     op.Simulation,
	}, nil
}

// ResolveDataDir returns override if non-empty, otherwise the user's
// home directory joined with DefaultDataDirName.
func ResolveDataDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDataDirName), nil
}

// DBFilePath returns the sqlite database path under dataDir.
func DBFilePath(dataDir string) string {
	return filepath.Join(dataDir, DefaultDBFileName)
}

// DefaultDBFile resolves the sqlite database path under the default
// (non-overridden) data directory.
func DefaultDBFile() (string, error) {
	dataDir, err := ResolveDataDir("")
	if err != nil {
		return "", err
	}
	return DBFilePath(dataDir), nil
}
