package datapoint

import (
	"context"
	"math/rand"
	"time"

	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
)

// reconnectBaseDelay and reconnectMaxDelay bound the exponential backoff
// schedule: 5s, 10s, 20s, 40s, then 60s for every later attempt, applied
// with jitter.
const (
	reconnectBaseDelay = 5 * time.Second
	reconnectMaxDelay  = 60 * time.Second
	reconnectMaxShift  = 5
)

// backoffDelay returns the base delay for the n-th consecutive failed
// reconnect attempt (n starting at 0), jittered +/-20%.
func backoffDelay(n int) time.Duration {
	shift := n
	if shift > reconnectMaxShift {
		shift = reconnectMaxShift
	}
	delay := reconnectBaseDelay * time.Duration(uint64(1)<<uint(shift))
	if delay > reconnectMaxDelay {
		delay = reconnectMaxDelay
	}
	jitter := float64(delay) * (0.8 + 0.4*rand.Float64())
	return time.Duration(jitter)
}

// handleDisconnect transitions name to Disconnected and, if no reconnect
// loop is already running for it, starts one. Safe to call repeatedly
// from concurrent Port Worker callers racing to report the same failure.
func (m *Manager) handleDisconnect(name string) {
	rp, ok := m.getPort(name)
	if !ok {
		return
	}

	m.mu.Lock()
	if rp.Status == model.PortDisconnected && rp.reconnecting {
		m.mu.Unlock()
		return
	}
	rp.Status = model.PortDisconnected
	rp.ErrorReason = "transport disconnected"
	if rp.cancel != nil {
		rp.cancel()
	}
	if rp.driver != nil {
		_ = rp.driver.Close()
	}
	alreadyRunning := rp.reconnecting
	rp.reconnecting = true
	m.mu.Unlock()

	log.Logger.Errorw("port disconnected", "port", name)

	if !alreadyRunning {
		m.scheduleReconnect(name)
	}
}

// scheduleReconnect starts the backoff retry loop for name, unless the
// Manager itself is shutting down.
func (m *Manager) scheduleReconnect(name string) {
	if m.ctx == nil || m.ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	rp, ok := m.ports[name]
	if ok {
		rp.reconnecting = true
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	m.wg.Add(1)
	go m.reconnectLoop(name)
}

func (m *Manager) reconnectLoop(name string) {
	defer m.wg.Done()

	for {
		m.mu.RLock()
		attempt := m.reconnectCounts[name]
		m.mu.RUnlock()

		delay := backoffDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		rp, ok := m.getPort(name)
		if !ok {
			return
		}

		err := m.openPort(rp)
		if err != nil {
			m.mu.Lock()
			m.reconnectCounts[name] = attempt + 1
			rp.ErrorReason = err.Error()
			m.mu.Unlock()
			log.Logger.Infow("reconnect attempt failed", "port", name, "attempt", attempt+1, "error", err)
			continue
		}

		m.mu.Lock()
		rp.Status = model.PortConnected
		rp.ErrorReason = ""
		rp.reconnecting = false
		m.reconnectCounts[name] = 0
		m.mu.Unlock()

		if rp.worker != nil {
			_ = rp.worker.Reset(m.ctx)
		}
		log.Logger.Infow("port reconnected", "port", name)
		return
	}
}
