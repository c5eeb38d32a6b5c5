// Package datapoint implements the Data-Point Manager (spec 4.G): the
// process-wide owner of the port and data-point registries, the result
// cache, and the auto-reconnect state machine. Equipment controllers
// talk to the Manager exclusively through its public operations; it is
// the only caller of the per-port workers.
package datapoint

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/iodispatch"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/portworker"
	"github.com/coophouse/iocore/pkg/transport"
)

// Store is the configuration source the Manager loads ports and data
// points from and persists CRUD operations to. Implemented by
// pkg/config against the shared sqlite database.
type Store interface {
	ListPorts(ctx context.Context) ([]model.Port, error)
	ListDataPoints(ctx context.Context) ([]model.DataPoint, error)
	PutPort(ctx context.Context, p model.Port) error
	DeletePort(ctx context.Context, name string) error
	PutDataPoint(ctx context.Context, d model.DataPoint) error
}

// DriverFactory builds the transport.Driver for a non-virtual port.
type DriverFactory func(model.Port) (transport.Driver, error)

// RuntimePort is a Port plus its live connection state (spec 3).
type RuntimePort struct {
	Port        model.Port
	Status      model.PortStatus
	ErrorReason string

	driver       transport.Driver
	worker       *portworker.Worker
	cancel       context.CancelFunc
	reconnecting bool
}

// Manager owns the ports/data_points registries, the result cache, and
// the auto-reconnect state machine. It is safe for concurrent use.
type Manager struct {
	store         Store
	virtual       iodispatch.VirtualStore
	driverFactory DriverFactory
	simulation    bool

	latencyObserve func(port, op string, d time.Duration)
	cacheObserve   func(dataPoint string)

	mu              sync.RWMutex
	ports           map[string]*RuntimePort
	dataPoints      map[string]model.DataPoint
	cache           map[string]model.CacheEntry
	reconnectCounts map[string]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures New.
type Option func(*Manager)

// WithSimulation marks the Manager as running against simulated
// transports, enabling the inverted-default pre-seed behavior at startup.
func WithSimulation() Option {
	return func(m *Manager) { m.simulation = true }
}

// WithLatencyObserver registers a callback invoked after every port
// worker read/write with the port name, operation kind, and elapsed time.
func WithLatencyObserver(fn func(port, op string, d time.Duration)) Option {
	return func(m *Manager) { m.latencyObserve = fn }
}

// WithCacheObserver registers a callback invoked every time a data
// point's cache entry is refreshed.
func WithCacheObserver(fn func(dataPoint string)) Option {
	return func(m *Manager) { m.cacheObserve = fn }
}

// New constructs a Manager. Call Start to load configuration and open
// every non-virtual port.
func New(store Store, virtual iodispatch.VirtualStore, driverFactory DriverFactory, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		virtual:         virtual,
		driverFactory:   driverFactory,
		ports:           make(map[string]*RuntimePort),
		dataPoints:      make(map[string]model.DataPoint),
		cache:           make(map[string]model.CacheEntry),
		reconnectCounts: make(map[string]int),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start loads the configuration and opens every non-virtual port,
// starting its worker and, for ports that fail to open, its
// auto-reconnect loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	ports, err := m.store.ListPorts(m.ctx)
	if err != nil {
		return err
	}
	dps, err := m.store.ListDataPoints(m.ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, dp := range dps {
		m.dataPoints[dp.Name] = dp
	}
	m.mu.Unlock()

	for _, p := range ports {
		m.addPort(p, true)
	}
	m.preSeedInvertedDefaults()
	return nil
}

// Close stops every worker and transport, closing each port's driver
// concurrently and aggregating whichever ones fail.
func (m *Manager) Close() error {
	if m.cancel != nil {
		m.cancel()
	}

	m.mu.RLock()
	drivers := make([]transport.Driver, 0, len(m.ports))
	for _, rp := range m.ports {
		if rp.driver != nil {
			drivers = append(drivers, rp.driver)
		}
	}
	m.mu.RUnlock()

	var eg errgroup.Group
	var mu sync.Mutex
	var closeErr error
	for _, drv := range drivers {
		drv := drv
		eg.Go(func() error {
			if err := drv.Close(); err != nil {
				mu.Lock()
				closeErr = multierr.Append(closeErr, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	m.wg.Wait()
	return closeErr
}

// addPort registers p, opening its transport and starting its worker
// unless p is virtual. initial marks a Manager-startup open attempt,
// distinguishing the Error terminal state from ordinary Disconnected.
func (m *Manager) addPort(p model.Port, initial bool) {
	rp := &RuntimePort{Port: p}

	m.mu.Lock()
	m.ports[p.Name] = rp
	m.mu.Unlock()

	if p.Protocol == model.ProtocolVirtual {
		rp.Status = model.PortConnected
		return
	}

	if err := m.openPort(rp); err != nil {
		log.Logger.Errorw("port open failed", "port", p.Name, "error", err)
		m.mu.Lock()
		if initial {
			rp.Status = model.PortError
		} else {
			rp.Status = model.PortDisconnected
		}
		rp.ErrorReason = err.Error()
		m.mu.Unlock()
		m.scheduleReconnect(p.Name)
		return
	}

	m.mu.Lock()
	rp.Status = model.PortConnected
	m.mu.Unlock()
}

// openPort opens p's driver and starts a fresh worker bound to it.
func (m *Manager) openPort(rp *RuntimePort) error {
	drv, err := m.driverFactory(rp.Port)
	if err != nil {
		return err
	}
	if err := drv.Open(m.ctx); err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(m.ctx)
	var workerOpts []portworker.Option
	if m.latencyObserve != nil {
		portName := rp.Port.Name
		workerOpts = append(workerOpts, portworker.WithLatencyObserver(func(op string, d time.Duration) {
			m.latencyObserve(portName, op, d)
		}))
	}
	w := portworker.New(rp.Port.DevicePath, workerOpts...)
	w.Start(workerCtx)

	m.mu.Lock()
	rp.driver = drv
	rp.worker = w
	rp.cancel = cancel
	m.mu.Unlock()
	return nil
}

func (m *Manager) getPort(name string) (*RuntimePort, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rp, ok := m.ports[name]
	return rp, ok
}

func (m *Manager) getDataPoint(name string) (model.DataPoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dp, ok := m.dataPoints[name]
	return dp, ok
}

func (m *Manager) setCache(name string, entry model.CacheEntry) {
	m.mu.Lock()
	m.cache[name] = entry
	m.mu.Unlock()
	if m.cacheObserve != nil {
		m.cacheObserve(name)
	}
}

func (m *Manager) getCache(name string) (model.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.cache[name]
	return e, ok
}

// portForDataPoint resolves a data point's owning RuntimePort, rejecting
// data points whose port is unknown.
func (m *Manager) portForDataPoint(dp model.DataPoint) (*RuntimePort, error) {
	rp, ok := m.getPort(dp.PortPath)
	if !ok {
		return nil, errdefs.ErrPortNotFound
	}
	return rp, nil
}
