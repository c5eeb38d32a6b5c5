// Package equipment implements the Equipment Controller Contract (spec
// 4.H): long-lived actors built on top of the Data-Point Manager's
// public operations that turn a handful of observed/driven data points
// into a higher-level machine state (on/off, running, interlocked) with
// a generic error-classification and command-gating policy shared by
// every concrete controller type.
package equipment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
)

// Mode is a controller's operating mode, sourced from its auto_manual
// data point.
type Mode string

const (
	Auto   Mode = "Auto"
	Manual Mode = "Manual"
)

// ErrorKind classifies a controller's reconciliation error (spec 4.H).
type ErrorKind string

const (
	ErrorNone            ErrorKind = ""
	ErrorTimeout         ErrorKind = "Timeout"
	ErrorInvalidData     ErrorKind = "InvalidData"
	ErrorOnButNotRunning ErrorKind = "OnButNotRunning"
	ErrorOffButRunning   ErrorKind = "OffButRunning"
	ErrorCommandFailed   ErrorKind = "CommandFailed"
)

func (k ErrorKind) message() string {
	switch k {
	case ErrorTimeout:
		return "SENSOR TIMEOUT"
	case ErrorInvalidData:
		return "INVALID SENSOR DATA"
	case ErrorOnButNotRunning:
		return "ON BUT NOT RUNNING"
	case ErrorOffButRunning:
		return "OFF BUT RUNNING"
	case ErrorCommandFailed:
		return "COMMAND FAILED"
	default:
		return ""
	}
}

// State is a controller's last-reconciled snapshot.
type State struct {
	Mode         Mode
	CommandedOn  bool
	ActualOn     bool
	IsRunning    bool
	Error        ErrorKind
	ErrorMessage string
	Interlocked  bool
	UpdatedAt    time.Time
}

// Reader is the subset of *datapoint.Manager a controller polls
// through. Satisfied by *datapoint.Manager directly; declared locally
// so this package depends only on the two operations it actually calls.
type Reader interface {
	ReadDirect(ctx context.Context, name string) (model.CacheEntry, error)
	Command(ctx context.Context, name string, value any) error
}

// digitalState extracts a digital read's logical state, treating a
// decode into the wrong record shape (e.g. an analog point wired here
// by mistake) as InvalidData rather than a panic.
func digitalState(entry model.CacheEntry) (int, error) {
	if entry.Digital == nil {
		return 0, errdefs.ErrEncodingFailed
	}
	return entry.Digital.State, nil
}

// Config is an equipment controller's builder-constructed, immutable
// wiring: its identity plus the data-point names it observes and drives.
type Config struct {
	Name  string
	Title string

	OnOffPoint      string // digital coil, both written by turn_on/turn_off and read back each tick as CommandedOn's source of truth
	FeedbackPoint   string // digital input, actual running state
	AutoManualPoint string // digital input, panel mode switch; empty means Auto is assumed permanently
	InterlockPoint  string // optional digital input; 1 means interlocked

	EnforceAutoGate bool          // reject turn_on/turn_off while Mode == Auto
	TickInterval    time.Duration // polling cadence, must be <= 1s per spec's >= 1Hz floor
	MismatchTicks   int           // consecutive ticks of commanded/feedback mismatch tolerated before flagging an error
}

// ConfigBuilder builds a Config fluently.
type ConfigBuilder struct {
	cfg Config
}

// NewConfig starts a ConfigBuilder for a controller named name.
func NewConfig(name, title string) *ConfigBuilder {
	return &ConfigBuilder{cfg: Config{
		Name:          name,
		Title:         title,
		TickInterval:  time.Second,
		MismatchTicks: 2,
	}}
}

func (b *ConfigBuilder) WithOnOff(dataPoint string) *ConfigBuilder {
	b.cfg.OnOffPoint = dataPoint
	return b
}

func (b *ConfigBuilder) WithFeedback(dataPoint string) *ConfigBuilder {
	b.cfg.FeedbackPoint = dataPoint
	return b
}

func (b *ConfigBuilder) WithAutoManual(dataPoint string) *ConfigBuilder {
	b.cfg.AutoManualPoint = dataPoint
	return b
}

func (b *ConfigBuilder) WithInterlock(dataPoint string) *ConfigBuilder {
	b.cfg.InterlockPoint = dataPoint
	return b
}

func (b *ConfigBuilder) WithEnforceAutoGate(enforce bool) *ConfigBuilder {
	b.cfg.EnforceAutoGate = enforce
	return b
}

func (b *ConfigBuilder) WithTickInterval(d time.Duration) *ConfigBuilder {
	b.cfg.TickInterval = d
	return b
}

func (b *ConfigBuilder) WithMismatchTicks(n int) *ConfigBuilder {
	b.cfg.MismatchTicks = n
	return b
}

// Build validates and returns the finished Config.
func (b *ConfigBuilder) Build() (Config, error) {
	cfg := b.cfg
	if cfg.Name == "" {
		return Config{}, errdefs.ErrInvalidArgument
	}
	if cfg.OnOffPoint == "" || cfg.FeedbackPoint == "" {
		return Config{}, errdefs.ErrInvalidArgument
	}
	if cfg.TickInterval <= 0 || cfg.TickInterval > time.Second {
		return Config{}, errdefs.ErrInvalidArgument
	}
	if cfg.MismatchTicks < 1 {
		cfg.MismatchTicks = 1
	}
	return cfg, nil
}

// Controller is a long-lived equipment actor (spec 4.H). It owns no
// transport of its own; every observation and command flows through the
// Data-Point Manager.
type Controller struct {
	cfg Config
	mgr Reader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.RWMutex
	state         State
	mismatchTicks int
}

// New constructs a Controller. Call Start to begin polling.
func New(mgr Reader, cfg Config) *Controller {
	return &Controller{mgr: mgr, cfg: cfg}
}

// Start begins the polling loop at cfg.TickInterval until ctx is
// canceled or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()

		c.poll()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.poll()
			}
		}
	}()
}

// Close stops the polling loop and waits for it to exit.
func (c *Controller) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

// State returns the controller's last-reconciled snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// poll reads every configured input, derives State, and logs error
// transitions (spec 4.H: nil -> X is an ERROR, X -> nil is an INFO).
func (c *Controller) poll() {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	next := State{UpdatedAt: time.Now()}

	mode := Auto
	if c.cfg.AutoManualPoint != "" {
		entry, err := c.mgr.ReadDirect(ctx, c.cfg.AutoManualPoint)
		if err == nil {
			var state int
			state, err = digitalState(entry)
			if err == nil && state == 0 {
				mode = Manual
			}
		}
		if err != nil {
			next.Error = classifyInputErr(err)
		}
	}
	next.Mode = mode

	if c.cfg.InterlockPoint != "" {
		entry, err := c.mgr.ReadDirect(ctx, c.cfg.InterlockPoint)
		var state int
		if err == nil {
			state, err = digitalState(entry)
		}
		if err != nil {
			if next.Error == ErrorNone {
				next.Error = classifyInputErr(err)
			}
		} else {
			next.Interlocked = state == 1
		}
	}

	onOffEntry, err := c.mgr.ReadDirect(ctx, c.cfg.OnOffPoint)
	var onOffState int
	if err == nil {
		onOffState, err = digitalState(onOffEntry)
	}
	if err != nil {
		if next.Error == ErrorNone {
			next.Error = classifyInputErr(err)
		}
	} else {
		next.CommandedOn = onOffState == 1
	}

	feedbackEntry, err := c.mgr.ReadDirect(ctx, c.cfg.FeedbackPoint)
	var feedbackState int
	if err == nil {
		feedbackState, err = digitalState(feedbackEntry)
	}
	if err != nil {
		if next.Error == ErrorNone {
			next.Error = classifyInputErr(err)
		}
	} else {
		next.ActualOn = feedbackState == 1
		next.IsRunning = next.ActualOn
	}

	if next.Error == ErrorNone {
		c.reconcileMismatch(&next, mode)
	} else {
		c.mu.Lock()
		c.mismatchTicks = 0
		c.mu.Unlock()
	}

	next.ErrorMessage = next.Error.message()
	c.commit(next)
}

// reconcileMismatch flags OnButNotRunning/OffButRunning once the
// commanded/feedback mismatch has persisted for cfg.MismatchTicks
// consecutive polls, suppressed entirely while Mode is Manual (spec
// 4.H: "suppresses on/off-but-running errors while mode = Manual").
func (c *Controller) reconcileMismatch(next *State, mode Mode) {
	mismatch := next.CommandedOn != next.ActualOn
	if mode == Manual || !mismatch {
		c.mu.Lock()
		c.mismatchTicks = 0
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.mismatchTicks++
	ticks := c.mismatchTicks
	c.mu.Unlock()

	if ticks < c.cfg.MismatchTicks {
		return
	}
	if next.CommandedOn {
		next.Error = ErrorOnButNotRunning
	} else {
		next.Error = ErrorOffButRunning
	}
}

func (c *Controller) commit(next State) {
	c.mu.Lock()
	prev := c.state.Error
	c.state = next
	c.mu.Unlock()

	if prev == ErrorNone && next.Error != ErrorNone {
		log.Logger.Errorw("equipment error", "equipment", c.cfg.Name, "error", string(next.Error), "message", next.ErrorMessage)
	} else if prev != ErrorNone && next.Error == ErrorNone {
		log.Logger.Infow("equipment error cleared", "equipment", c.cfg.Name, "previous_error", string(prev))
	}
}

func classifyInputErr(err error) ErrorKind {
	if errors.Is(err, errdefs.ErrTimeout) || errors.Is(err, errdefs.ErrDeviceOfflineSkipped) || errors.Is(err, errdefs.ErrDisconnected) {
		return ErrorTimeout
	}
	return ErrorInvalidData
}

// TurnOn commands the equipment on, subject to the gating rules (spec
// 4.H): rejected while interlocked, rejected while the input reports
// Timeout, and rejected in Auto mode if the controller enforces that
// gate.
func (c *Controller) TurnOn(ctx context.Context) error {
	return c.setOnOff(ctx, true)
}

// TurnOff commands the equipment off, subject to the same gates as TurnOn.
func (c *Controller) TurnOff(ctx context.Context) error {
	return c.setOnOff(ctx, false)
}

func (c *Controller) setOnOff(ctx context.Context, on bool) error {
	st := c.State()
	if st.Interlocked {
		return errdefs.ErrInterlocked
	}
	if st.Error == ErrorTimeout {
		return errdefs.ErrTimeout
	}
	if c.cfg.EnforceAutoGate && st.Mode == Auto {
		return errdefs.ErrModeLocked
	}

	if err := c.mgr.Command(ctx, c.cfg.OnOffPoint, on); err != nil {
		c.mu.Lock()
		c.state.Error = ErrorCommandFailed
		c.state.ErrorMessage = ErrorCommandFailed.message()
		c.mu.Unlock()
		log.Logger.Errorw("equipment command failed", "equipment", c.cfg.Name, "on", on, "error", err)
		return fmt.Errorf("%w: %v", errdefs.ErrInvalidResponse, err)
	}

	c.mu.Lock()
	c.state.CommandedOn = on
	c.mu.Unlock()
	return nil
}

// SetMode switches the controller between Auto and Manual by writing
// its auto_manual data point. A controller configured without one
// rejects mode changes.
func (c *Controller) SetMode(ctx context.Context, mode Mode) error {
	if c.cfg.AutoManualPoint == "" {
		return errdefs.ErrInvalidArgument
	}
	return c.mgr.Command(ctx, c.cfg.AutoManualPoint, mode == Auto)
}
