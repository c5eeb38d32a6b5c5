package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricInsertUpdateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "insert_update_total",
		Help:      "tracks the total number of insert/update queries",
	})
	metricInsertUpdateSecondsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "insert_update_seconds_total",
		Help:      "tracks the total seconds spent on insert/update queries",
	})
	metricDeleteTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "delete_total",
		Help:      "tracks the total number of delete queries",
	})
	metricDeleteSecondsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "delete_seconds_total",
		Help:      "tracks the total seconds spent on delete queries",
	})
	metricSelectTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "select_total",
		Help:      "tracks the total number of select queries",
	})
	metricSelectSecondsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sqlite",
		Name:      "select_seconds_total",
		Help:      "tracks the total seconds spent on select queries",
	})
)

// RecordInsertUpdate records one insert/update query that took seconds.
func RecordInsertUpdate(seconds float64) {
	metricInsertUpdateTotal.Inc()
	metricInsertUpdateSecondsTotal.Add(seconds)
}

// RecordDelete records one delete query that took seconds.
func RecordDelete(seconds float64) {
	metricDeleteTotal.Inc()
	metricDeleteSecondsTotal.Add(seconds)
}

// RecordSelect records one select query that took seconds.
func RecordSelect(seconds float64) {
	metricSelectTotal.Inc()
	metricSelectSecondsTotal.Add(seconds)
}

// Metrics is a point-in-time snapshot of the counters above, with
// derived averages for convenience.
type Metrics struct {
	InsertUpdateTotal        int64
	InsertUpdateSecondsTotal float64
	InsertUpdateSecondsAvg   float64

	DeleteTotal        int64
	DeleteSecondsTotal float64
	DeleteSecondsAvg   float64

	SelectTotal        int64
	SelectSecondsTotal float64
	SelectSecondsAvg   float64
}

func (m Metrics) IsZero() bool {
	return m.InsertUpdateTotal == 0 && m.InsertUpdateSecondsTotal == 0 && m.InsertUpdateSecondsAvg == 0 &&
		m.DeleteTotal == 0 && m.DeleteSecondsTotal == 0 && m.DeleteSecondsAvg == 0 &&
		m.SelectTotal == 0 && m.SelectSecondsTotal == 0 && m.SelectSecondsAvg == 0
}

// ReadMetrics gathers the current counter values from reg.
func ReadMetrics(reg *prometheus.Registry) (Metrics, error) {
	mfs, err := reg.Gather()
	if err != nil {
		return Metrics{}, err
	}

	var m Metrics
	for _, mf := range mfs {
		if len(mf.Metric) == 0 {
			continue
		}
		val := mf.Metric[0].GetCounter().GetValue()
		switch mf.GetName() {
		case "sqlite_insert_update_total":
			m.InsertUpdateTotal = int64(val)
		case "sqlite_insert_update_seconds_total":
			m.InsertUpdateSecondsTotal = val
		case "sqlite_delete_total":
			m.DeleteTotal = int64(val)
		case "sqlite_delete_seconds_total":
			m.DeleteSecondsTotal = val
		case "sqlite_select_total":
			m.SelectTotal = int64(val)
		case "sqlite_select_seconds_total":
			m.SelectSecondsTotal = val
		}
	}

	if m.InsertUpdateTotal > 0 {
		m.InsertUpdateSecondsAvg = m.InsertUpdateSecondsTotal / float64(m.InsertUpdateTotal)
	}
	if m.DeleteTotal > 0 {
		m.DeleteSecondsAvg = m.DeleteSecondsTotal / float64(m.DeleteTotal)
	}
	if m.SelectTotal > 0 {
		m.SelectSecondsAvg = m.SelectSecondsTotal / float64(m.SelectTotal)
	}
	return m, nil
}
