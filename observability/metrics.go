package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts board operations. Register it on a dedicated registry so
// several instances can coexist in one process.
type Metrics struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	breadcrumbs *prometheus.CounterVec
	exceptions  *prometheus.CounterVec
}

// NewMetrics registers the board collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_operations_total",
				Help: "Board spans ended, by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		durations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "board_operation_duration_seconds",
				Help:    "Duration of board spans.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 3, 10},
			},
			[]string{"op"},
		),
		breadcrumbs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_breadcrumbs_total",
				Help: "Breadcrumbs recorded, by category.",
			},
			[]string{"category"},
		),
		exceptions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "board_exceptions_total",
				Help: "Exceptions captured, by kind.",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observeSpan(op string, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.durations.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeBreadcrumb(category string) {
	if m == nil {
		return
	}
	m.breadcrumbs.WithLabelValues(category).Inc()
}

func (m *Metrics) observeException(kind string) {
	if m == nil {
		return
	}
	m.exceptions.WithLabelValues(kind).Inc()
}
