package datapoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/deviceinterp"
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/iodispatch"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/portworker"
)

// PortStatusView is the read-only shape get_port_statuses returns.
type PortStatusView struct {
	Name      string
	Status    model.PortStatus
	Reason    string
	Connected bool
}

// Query returns the cached result for name without touching the
// transport. A data point that has never been polled returns NoData.
func (m *Manager) Query(name string) (model.CacheEntry, error) {
	entry, ok := m.getCache(name)
	if !ok {
		return model.CacheEntry{}, errdefs.ErrNoData
	}
	return entry, entry.Err
}

// ReadDirect forces a live read through the owning Port Worker (or the
// virtual store), updates the cache, and returns the result.
func (m *Manager) ReadDirect(ctx context.Context, name string) (model.CacheEntry, error) {
	dp, ok := m.getDataPoint(name)
	if !ok {
		return model.CacheEntry{}, errdefs.ErrNotFound
	}
	if !dp.HasReadFn() {
		return model.CacheEntry{}, errdefs.ErrNoReadFunction
	}

	if dp.ReadFn == model.ReadVirtualDigitalOut {
		v, err := iodispatch.ReadVirtualDigitalOutput(ctx, m.virtual, dp.SlaveID, dp.Channel)
		entry := m.digitalEntry(dp, v, err)
		m.setCache(name, entry)
		return entry, entry.Err
	}

	rp, err := m.portForDataPoint(dp)
	if err != nil {
		return model.CacheEntry{}, err
	}
	if rp.Status != model.PortConnected {
		entry := model.CacheEntry{Err: errdefs.ErrDisconnected, UpdatedAt: nowFn()}
		m.setCache(name, entry)
		return entry, errdefs.ErrDisconnected
	}

	job := m.buildReadJob(rp, dp)
	val, err := rp.worker.Read(ctx, dp.SlaveID, portworker.DefaultTimeout, job)
	if err != nil {
		if errors.Is(err, errdefs.ErrDisconnected) {
			m.handleDisconnect(rp.Port.Name)
		}
		entry := model.CacheEntry{Err: err, UpdatedAt: nowFn()}
		m.setCache(name, entry)
		return entry, err
	}

	entry := m.toCacheEntry(dp, val)
	m.setCache(name, entry)
	return entry, entry.Err
}

// Command dispatches a write to the data point named name. value is a
// bool for digital/virtual write functions, a float64 for analog ones.
func (m *Manager) Command(ctx context.Context, name string, value any) error {
	dp, ok := m.getDataPoint(name)
	if !ok {
		return errdefs.ErrNotFound
	}
	if !dp.HasWriteFn() {
		return errdefs.ErrNoWriteFunction
	}

	if dp.WriteFn == model.WriteVirtualDigitalOut {
		b, ok := value.(bool)
		if !ok {
			return errdefs.ErrEncodingFailed
		}
		return iodispatch.WriteVirtualDigitalOutput(ctx, m.virtual, dp.SlaveID, dp.Channel, b)
	}

	rp, err := m.portForDataPoint(dp)
	if err != nil {
		return err
	}
	if rp.Status != model.PortConnected {
		return errdefs.ErrDisconnected
	}

	job := m.buildWriteJob(rp, dp, value)
	_, err = rp.worker.Write(ctx, dp.SlaveID, portworker.DefaultTimeout, job)
	if err != nil && errors.Is(err, errdefs.ErrDisconnected) {
		m.handleDisconnect(rp.Port.Name)
	}
	return err
}

// ListDataPoints returns every configured data point's name and description.
func (m *Manager) ListDataPoints() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.dataPoints))
	for name, dp := range m.dataPoints {
		out[name] = dp.Description
	}
	return out
}

// ListPorts returns every configured port's name and description.
func (m *Manager) ListPorts() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.ports))
	for name, rp := range m.ports {
		out[name] = rp.Port.Description
	}
	return out
}

// GetPortStatuses returns each port's live connection state.
func (m *Manager) GetPortStatuses() []PortStatusView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PortStatusView, 0, len(m.ports))
	for name, rp := range m.ports {
		out = append(out, PortStatusView{
			Name:      name,
			Status:    rp.Status,
			Reason:    rp.ErrorReason,
			Connected: rp.Status == model.PortConnected,
		})
	}
	return out
}

// PortWorkerStats reports the per-slave skip set and failure counters
// for the named port's worker, or errdefs.ErrPortNotFound if no such
// port exists.
func (m *Manager) PortWorkerStats(ctx context.Context, portName string) (portworker.Stats, error) {
	rp, ok := m.getPort(portName)
	if !ok {
		return portworker.Stats{}, errdefs.ErrPortNotFound
	}
	return rp.worker.Stats(ctx)
}

// UnskipSlave clears one slave's skip state and failure counter on
// portName's worker without tearing down the transport, or
// errdefs.ErrPortNotFound if no such port exists.
func (m *Manager) UnskipSlave(ctx context.Context, portName string, slaveID int) error {
	rp, ok := m.getPort(portName)
	if !ok {
		return errdefs.ErrPortNotFound
	}
	return rp.worker.Unskip(ctx, slaveID)
}

// ReloadPort stops and reopens path's transport, clearing its worker's
// skip state and failure counters.
func (m *Manager) ReloadPort(ctx context.Context, path string) error {
	rp, ok := m.getPort(path)
	if !ok {
		return errdefs.ErrPortNotFound
	}
	if rp.Port.Protocol == model.ProtocolVirtual {
		return errdefs.ErrVirtualPort
	}

	m.mu.Lock()
	if rp.cancel != nil {
		rp.cancel()
	}
	if rp.driver != nil {
		_ = rp.driver.Close()
	}
	m.mu.Unlock()

	if err := m.openPort(rp); err != nil {
		m.mu.Lock()
		rp.Status = model.PortDisconnected
		rp.ErrorReason = err.Error()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	rp.Status = model.PortConnected
	rp.ErrorReason = ""
	m.reconnectCounts[path] = 0
	m.mu.Unlock()
	return nil
}

// Reload stops every worker and transport, reloads configuration from
// the store, and restarts every port.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	ports := m.ports
	m.ports = make(map[string]*RuntimePort)
	m.dataPoints = make(map[string]model.DataPoint)
	m.reconnectCounts = make(map[string]int)
	m.mu.Unlock()

	var eg errgroup.Group
	var mu sync.Mutex
	var shutdownErr error
	for _, rp := range ports {
		rp := rp
		eg.Go(func() error {
			if rp.cancel != nil {
				rp.cancel()
			}
			if rp.driver != nil {
				if err := rp.driver.Close(); err != nil {
					mu.Lock()
					shutdownErr = multierr.Append(shutdownErr, err)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = eg.Wait()
	if shutdownErr != nil {
		log.Logger.Errorw("errors closing ports during reload", "error", shutdownErr)
	}

	return m.Start(ctx)
}

// DeclarePort persists p and opens it immediately.
func (m *Manager) DeclarePort(ctx context.Context, p model.Port) error {
	if err := m.store.PutPort(ctx, p); err != nil {
		return err
	}
	if _, exists := m.getPort(p.Name); exists {
		return m.ReloadPort(ctx, p.Name)
	}
	m.addPort(p, false)
	return nil
}

// DeletePort removes a port; in-use data points block the delete.
func (m *Manager) DeletePort(ctx context.Context, name string) error {
	m.mu.RLock()
	for _, dp := range m.dataPoints {
		if dp.PortPath == name {
			m.mu.RUnlock()
			return errdefs.ErrPortInUse
		}
	}
	m.mu.RUnlock()

	rp, ok := m.getPort(name)
	if !ok {
		return errdefs.ErrPortNotFound
	}
	m.mu.Lock()
	if rp.cancel != nil {
		rp.cancel()
	}
	if rp.driver != nil {
		_ = rp.driver.Close()
	}
	delete(m.ports, name)
	m.mu.Unlock()

	return m.store.DeletePort(ctx, name)
}

// DeclareDataPoint persists d, making it immediately queryable.
func (m *Manager) DeclareDataPoint(ctx context.Context, d model.DataPoint) error {
	if err := m.store.PutDataPoint(ctx, d); err != nil {
		return err
	}
	m.mu.Lock()
	m.dataPoints[d.Name] = d
	m.mu.Unlock()
	return nil
}

// ReadGenericRecord reads every field of tmpl off slaveID on portName in
// one worker-serialized job (one transport read per template batch), for the Generic Device
// Interpreter's equipment-controller callers (e.g. a sensor bank with no
// dedicated data points of its own).
func (m *Manager) ReadGenericRecord(ctx context.Context, portName string, slaveID int, tmpl *deviceinterp.Template) (map[string]any, error) {
	rp, ok := m.getPort(portName)
	if !ok {
		return nil, errdefs.ErrPortNotFound
	}
	if rp.Status != model.PortConnected {
		return nil, errdefs.ErrDisconnected
	}

	job := func(ctx context.Context) (any, error) {
		return deviceinterp.ReadRecord(ctx, rp.driver, slaveID, tmpl)
	}
	val, err := rp.worker.Read(ctx, slaveID, portworker.DefaultTimeout, job)
	if err != nil {
		if errors.Is(err, errdefs.ErrDisconnected) {
			m.handleDisconnect(rp.Port.Name)
		}
		return nil, err
	}
	rec, ok := val.(map[string]any)
	if !ok {
		return nil, errdefs.ErrEncodingFailed
	}
	return rec, nil
}

// WriteGenericField writes a single named field of tmpl on slaveID, for
// device types whose write path is bespoke enough that no ordinary
// DataPoint models it (e.g. a water-meter valve command sequence).
func (m *Manager) WriteGenericField(ctx context.Context, portName string, slaveID int, tmpl *deviceinterp.Template, field string, value float64) error {
	rp, ok := m.getPort(portName)
	if !ok {
		return errdefs.ErrPortNotFound
	}
	if rp.Status != model.PortConnected {
		return errdefs.ErrDisconnected
	}

	job := func(ctx context.Context) (any, error) {
		return nil, deviceinterp.WriteField(ctx, rp.driver, slaveID, tmpl, field, value)
	}
	_, err := rp.worker.Write(ctx, slaveID, portworker.DefaultTimeout, job)
	if err != nil && errors.Is(err, errdefs.ErrDisconnected) {
		m.handleDisconnect(rp.Port.Name)
	}
	return err
}

func (m *Manager) digitalEntry(dp model.DataPoint, raw bool, err error) model.CacheEntry {
	if err != nil {
		return model.CacheEntry{Err: err, UpdatedAt: nowFn()}
	}
	state := 0
	if raw {
		state = 1
	}
	if dp.Inverted {
		state = codec.InvertBit(state)
	}
	return model.CacheEntry{Digital: &model.DigitalRecord{State: state}, UpdatedAt: nowFn()}
}

func (m *Manager) toCacheEntry(dp model.DataPoint, raw any) model.CacheEntry {
	switch v := raw.(type) {
	case bool:
		return m.digitalEntry(dp, v, nil)
	case float64:
		scale := dp.ScaleFactor
		if scale == 0 {
			scale = 1.0
		}
		converted := codec.Convert(v, scale, dp.Offset)
		valid := codec.InRange(converted, dp.MinValid, dp.MaxValid)
		return model.CacheEntry{
			Analog: &model.ValueRecord{
				Value:      converted,
				Raw:        v,
				Unit:       dp.Unit,
				ValueType:  dp.ValueType,
				Valid:      valid,
				MinValid:   dp.MinValid,
				MaxValid:   dp.MaxValid,
				ColorZones: dp.ColorZones,
			},
			UpdatedAt: nowFn(),
		}
	default:
		return model.CacheEntry{Err: errdefs.ErrEncodingFailed, UpdatedAt: nowFn()}
	}
}

func (m *Manager) buildReadJob(rp *RuntimePort, dp model.DataPoint) portworker.Job {
	descriptor := iodispatch.Descriptor{ValueType: codec.ValueType(dp.ValueType), ByteOrder: codec.ByteOrder(dp.ByteOrder)}
	return func(ctx context.Context) (any, error) {
		switch dp.ReadFn {
		case model.ReadDigitalInput:
			return iodispatch.ReadDigitalInput(ctx, rp.driver, rp.Port.Protocol, dp.SlaveID, dp.Register, dp.Channel)
		case model.ReadDigitalOutput:
			return iodispatch.ReadDigitalOutput(ctx, rp.driver, rp.Port.Protocol, dp.SlaveID, dp.Register, dp.Channel)
		case model.ReadAnalogInput:
			return iodispatch.ReadAnalogInput(ctx, rp.driver, dp.SlaveID, dp.Register, descriptor)
		case model.ReadAnalogOutput:
			return iodispatch.ReadAnalogOutput(ctx, rp.driver, dp.SlaveID, dp.Register, descriptor)
		default:
			return nil, errdefs.ErrNoReadFunction
		}
	}
}

func (m *Manager) buildWriteJob(rp *RuntimePort, dp model.DataPoint, value any) portworker.Job {
	descriptor := iodispatch.Descriptor{ValueType: codec.ValueType(dp.ValueType), ByteOrder: codec.ByteOrder(dp.ByteOrder)}
	return func(ctx context.Context) (any, error) {
		switch dp.WriteFn {
		case model.WriteDigitalOutput:
			b, ok := value.(bool)
			if !ok {
				return nil, errdefs.ErrEncodingFailed
			}
			if dp.Inverted {
				b = !b
			}
			return nil, iodispatch.WriteDigitalOutput(ctx, rp.driver, rp.Port.Protocol, dp.SlaveID, dp.Register, dp.Channel, b)
		case model.WriteAnalogOutput:
			f, ok := value.(float64)
			if !ok {
				return nil, errdefs.ErrEncodingFailed
			}
			scale := dp.ScaleFactor
			if scale == 0 {
				scale = 1.0
			}
			raw := (f - dp.Offset) / scale
			return nil, iodispatch.WriteAnalogOutput(ctx, rp.driver, dp.SlaveID, dp.Register, descriptor, raw)
		default:
			return nil, errdefs.ErrNoWriteFunction
		}
	}
}

// nowFn is a package-level indirection over time.Now so tests can stub
// out wall-clock time if ever needed; production always uses time.Now.
var nowFn = time.Now
