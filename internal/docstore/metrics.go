package docstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every Store in a process.
// A nil *Metrics records nothing.
type Metrics struct {
	updates  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	loads    *prometheus.CounterVec
}

// NewMetrics registers the document store collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dais_docstore_updates_total",
			Help: "Document store updates by store and outcome",
		}, []string{"store", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dais_docstore_update_duration_seconds",
			Help:    "Time spent in a document store update including the file write",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"store"}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dais_docstore_loads_total",
			Help: "Cold loads by store and where the state came from",
		}, []string{"store", "source"}),
	}
}

func (m *Metrics) observeUpdate(store, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(store, outcome).Inc()
	m.duration.WithLabelValues(store).Observe(elapsed.Seconds())
}

func (m *Metrics) observeLoad(store, source string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(store, source).Inc()
}
