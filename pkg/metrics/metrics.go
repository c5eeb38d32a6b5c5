// Package metrics exposes the core's runtime state as Prometheus
// collectors: per-port connection status, per-slave skip/timeout
// bookkeeping, cache refresh activity, and Port Worker request
// latency.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coophouse/iocore/pkg/datapoint"
	"github.com/coophouse/iocore/pkg/log"
	"github.com/coophouse/iocore/pkg/model"
)

const namespace = "iocore"

var (
	portConnected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "port_connected",
			Help:      "1 if the port's transport is open, 0 otherwise",
		},
		[]string{"port"},
	)

	portSkippedSlaves = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "port_skipped_slaves",
			Help:      "number of slave addresses currently in the skip set",
		},
		[]string{"port"},
	)

	slaveConsecutiveTimeouts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "slave_consecutive_timeouts",
			Help:      "consecutive timeout count toward the skip threshold",
		},
		[]string{"port", "slave"},
	)

	cacheRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refresh_total",
			Help:      "total cache entries written by poll loops",
		},
		[]string{"data_point"},
	)

	requestLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "port_worker_request_duration_seconds",
			Help:      "time a read or write job spent executing in a port worker",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"port", "op"},
	)
)

// Register adds every collector to reg. Safe to call once per process;
// a duplicate registration returns an error from reg.Register, which
// callers should treat as fatal during startup.
func Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		portConnected, portSkippedSlaves, slaveConsecutiveTimeouts,
		cacheRefreshTotal, requestLatencySeconds,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// SetPortConnected records a port's live connection state.
func SetPortConnected(port string, status model.PortStatus) {
	v := 0.0
	if status == model.PortConnected {
		v = 1.0
	}
	portConnected.WithLabelValues(port).Set(v)
}

// SetPortSkippedSlaves records the current skip-set size for a port.
func SetPortSkippedSlaves(port string, n int) {
	portSkippedSlaves.WithLabelValues(port).Set(float64(n))
}

// SetSlaveConsecutiveTimeouts records one slave's running timeout count.
func SetSlaveConsecutiveTimeouts(port string, slaveID int, count int) {
	slaveConsecutiveTimeouts.WithLabelValues(port, strconv.Itoa(slaveID)).Set(float64(count))
}

// IncCacheRefresh records one successful cache write for a data point.
func IncCacheRefresh(dataPoint string) {
	cacheRefreshTotal.WithLabelValues(dataPoint).Inc()
}

// ObserveRequestLatency records the wall time a port worker spent on
// one read or write request.
func ObserveRequestLatency(port, op string, d time.Duration) {
	requestLatencySeconds.WithLabelValues(port, op).Observe(d.Seconds())
}

// Collector periodically samples a Manager's port/worker state into
// the gauges above. It does not sample cache-refresh counts or request
// latency, which are recorded inline by their callers as events occur.
type Collector struct {
	mgr      *datapoint.Manager
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector builds a Collector over mgr, sampling every interval.
func NewCollector(mgr *datapoint.Manager, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Collector{mgr: mgr, interval: interval, done: make(chan struct{})}
}

// Start begins the sampling loop until ctx is canceled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
}

func (c *Collector) run() {
	defer close(c.done)
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	for _, ps := range c.mgr.GetPortStatuses() {
		SetPortConnected(ps.Name, ps.Status)

		stats, err := c.mgr.PortWorkerStats(c.ctx, ps.Name)
		if err != nil {
			log.Logger.Debugw("skipping worker stats sample", "port", ps.Name, "error", err)
			continue
		}
		SetPortSkippedSlaves(ps.Name, len(stats.SkippedSlaves))
		for slaveID, count := range stats.FailureCounts {
			SetSlaveConsecutiveTimeouts(ps.Name, slaveID, count)
		}
	}
}

// Close stops the sampling loop.
func (c *Collector) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
	return nil
}
