package datapoint

import (
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

// SimulateInput sets a digital data point's raw simulated bit directly,
// bypassing transport framing. Only meaningful when the data point's
// port is backed by a transport.SimulatedDriver.
func (m *Manager) SimulateInput(name string, value bool) error {
	dp, ok := m.getDataPoint(name)
	if !ok {
		return errdefs.ErrNotFound
	}
	sim, addr, err := m.simDriverFor(dp)
	if err != nil {
		return err
	}
	if dp.ReadFn == model.ReadDigitalInput {
		sim.SetInput(dp.SlaveID, addr, value)
		return nil
	}
	sim.SetCoil(dp.SlaveID, addr, value)
	return nil
}

// SimulateRegister sets an analog data point's raw simulated register
// value directly, bypassing transport framing and scale/offset.
func (m *Manager) SimulateRegister(name string, raw uint16) error {
	dp, ok := m.getDataPoint(name)
	if !ok {
		return errdefs.ErrNotFound
	}
	sim, addr, err := m.simDriverFor(dp)
	if err != nil {
		return err
	}
	if dp.ReadFn == model.ReadAnalogInput {
		sim.SetAnalogInput(dp.SlaveID, addr, raw)
		return nil
	}
	sim.SetRegister(dp.SlaveID, addr, raw)
	return nil
}

// SimulateOffline forces portName's simulated driver offline or back
// online, modeling a powered-down or unplugged slave.
func (m *Manager) SimulateOffline(portName string, on bool) error {
	rp, ok := m.getPort(portName)
	if !ok {
		return errdefs.ErrPortNotFound
	}
	m.mu.RLock()
	sim, ok := rp.driver.(*transport.SimulatedDriver)
	m.mu.RUnlock()
	if !ok {
		return errdefs.ErrNotSimulated
	}
	sim.SetOffline(on)
	return nil
}

func (m *Manager) simDriverFor(dp model.DataPoint) (*transport.SimulatedDriver, uint16, error) {
	rp, err := m.portForDataPoint(dp)
	if err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	sim, ok := rp.driver.(*transport.SimulatedDriver)
	m.mu.RUnlock()
	if !ok {
		return nil, 0, errdefs.ErrNotSimulated
	}
	addr := dp.Register
	if dp.Channel > 0 {
		addr += uint16(dp.Channel - 1)
	}
	return sim, addr, nil
}

// preSeedInvertedDefaults sets every inverted digital data point's raw
// simulated bit to 1 so its logical default reads OFF, matching the
// convention a normally-closed relay wiring would produce on a cold
// start. Only applies in simulation mode and only to points whose port
// is already backed by a SimulatedDriver.
func (m *Manager) preSeedInvertedDefaults() {
	if !m.simulation {
		return
	}
	m.mu.RLock()
	dps := make([]model.DataPoint, 0, len(m.dataPoints))
	for _, dp := range m.dataPoints {
		dps = append(dps, dp)
	}
	m.mu.RUnlock()

	for _, dp := range dps {
		if !dp.Inverted {
			continue
		}
		isDigital := dp.ReadFn == model.ReadDigitalInput || dp.ReadFn == model.ReadDigitalOutput ||
			dp.WriteFn == model.WriteDigitalOutput
		if !isDigital {
			continue
		}
		_ = m.SimulateInput(dp.Name, true)
	}
}
