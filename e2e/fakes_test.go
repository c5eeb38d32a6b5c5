package e2e

import (
	"context"
	"sync"

	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

// memStore is an in-memory datapoint.Store: no sqlite involved, so
// these scenarios exercise only the Manager's runtime behavior.
type memStore struct {
	mu    sync.Mutex
	ports map[string]model.Port
	dps   map[string]model.DataPoint
}

func newMemStore() *memStore {
	return &memStore{ports: map[string]model.Port{}, dps: map[string]model.DataPoint{}}
}

func (s *memStore) ListPorts(ctx context.Context) ([]model.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Port, 0, len(s.ports))
	for _, p := range s.ports {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) ListDataPoints(ctx context.Context) ([]model.DataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.DataPoint, 0, len(s.dps))
	for _, d := range s.dps {
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) PutPort(ctx context.Context, p model.Port) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[p.Name] = p
	return nil
}

func (s *memStore) DeletePort(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ports, name)
	return nil
}

func (s *memStore) PutDataPoint(ctx context.Context, d model.DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dps[d.Name] = d
	return nil
}

// memVirtualStore is an in-memory iodispatch.VirtualStore keyed by
// (slave_id, channel), matching the real store's key shape.
type memVirtualStore struct {
	mu    sync.Mutex
	state map[[2]int]bool
}

func newMemVirtualStore() *memVirtualStore {
	return &memVirtualStore{state: map[[2]int]bool{}}
}

func (v *memVirtualStore) ReadVirtualDigital(ctx context.Context, slaveID, channel int) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state[[2]int{slaveID, channel}], nil
}

func (v *memVirtualStore) WriteVirtualDigital(ctx context.Context, slaveID, channel int, value bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state[[2]int{slaveID, channel}] = value
	return nil
}

// flakyDriver toggles between a working transport.Driver and one that
// fails every Request with errdefs.ErrDisconnected, for S4's
// kill-and-reconnect scenario.
type flakyDriver struct {
	mu      sync.Mutex
	healthy bool
	inner   transport.Driver
}

func newFlakyDriver() *flakyDriver {
	return &flakyDriver{healthy: true, inner: transport.NewSimulatedDriver()}
}

func (d *flakyDriver) setHealthy(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.healthy = v
}

func (d *flakyDriver) Open(ctx context.Context) error { return nil }
func (d *flakyDriver) Close() error                   { return nil }

func (d *flakyDriver) Request(ctx context.Context, cmd transport.Command) (transport.Frame, error) {
	d.mu.Lock()
	healthy := d.healthy
	d.mu.Unlock()
	if !healthy {
		return transport.Frame{}, errdefs.ErrDisconnected
	}
	return d.inner.Request(ctx, cmd)
}

// timeoutNTimesDriver returns a timeout error for the first n requests,
// whatever their slave, then succeeds, for S3's consecutive-timeout-skip
// scenario.
type timeoutNTimesDriver struct {
	mu    sync.Mutex
	left  int
	inner *transport.SimulatedDriver
}

func newTimeoutNTimesDriver(n int) *timeoutNTimesDriver {
	return &timeoutNTimesDriver{left: n, inner: transport.NewSimulatedDriver()}
}

func (d *timeoutNTimesDriver) Open(ctx context.Context) error { return nil }
func (d *timeoutNTimesDriver) Close() error                   { return nil }

func (d *timeoutNTimesDriver) Request(ctx context.Context, cmd transport.Command) (transport.Frame, error) {
	d.mu.Lock()
	if d.left > 0 {
		d.left--
		d.mu.Unlock()
		return transport.Frame{}, errdefs.ErrTimeout
	}
	d.mu.Unlock()
	return d.inner.Request(ctx, cmd)
}
