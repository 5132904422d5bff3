package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rowPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "last_row_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent row persisted to Postgres.",
	})
	rowsCreatedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "persistence",
		Name:      "rows_created_total",
		Help:      "Count of rows inserted, labeled by entity.",
	}, []string{"entity"})
)

func init() {
	prometheus.MustRegister(rowPersistGauge, rowsCreatedCounter)
}

// RecordRowPersisted updates the persistence watermark and per-entity counter.
func RecordRowPersisted(entity string, ts time.Time) {
	rowsCreatedCounter.WithLabelValues(entity).Inc()
	if ts.IsZero() {
		return
	}
	rowPersistGauge.Set(float64(ts.Unix()))
}
