package equipment

import (
	"context"
	"sync"
	"time"

	"github.com/coophouse/iocore/pkg/deviceinterp"
	"github.com/coophouse/iocore/pkg/log"
)

// GenericSensor polls a Generic Device Interpreter template on a fixed
// cadence, for sensor banks (e.g. a multi-field environment probe) with
// no dedicated DataPoint per field and no on/off actuation of their own.
type GenericSensor struct {
	name     string
	mgr      RecordReader
	portName string
	slaveID  int
	tmpl     *deviceinterp.Template
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	record  map[string]any
	lastErr error
}

// NewGenericSensor constructs a GenericSensor. Call Start to begin polling.
func NewGenericSensor(mgr RecordReader, name, portName string, slaveID int, tmpl *deviceinterp.Template, interval time.Duration) *GenericSensor {
	if interval <= 0 {
		interval = time.Second
	}
	return &GenericSensor{name: name, mgr: mgr, portName: portName, slaveID: slaveID, tmpl: tmpl, interval: interval}
}

// Start begins the polling loop until ctx is canceled or Close is called.
func (s *GenericSensor) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.poll()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.poll()
			}
		}
	}()
}

// Close stops the polling loop and waits for it to exit.
func (s *GenericSensor) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// Record returns the last-read field map and read error, if any.
func (s *GenericSensor) Record() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record, s.lastErr
}

func (s *GenericSensor) poll() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	rec, err := s.mgr.ReadGenericRecord(ctx, s.portName, s.slaveID, s.tmpl)

	s.mu.Lock()
	wasErr := s.lastErr != nil
	s.record, s.lastErr = rec, err
	s.mu.Unlock()

	if err != nil && !wasErr {
		log.Logger.Errorw("generic sensor read failed", "sensor", s.name, "error", err)
	} else if err == nil && wasErr {
		log.Logger.Infow("generic sensor read recovered", "sensor", s.name)
	}
}
