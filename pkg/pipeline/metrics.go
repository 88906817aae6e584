package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for pipeline execution.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers pipeline metrics.
//
// Registration happens once per process; repeated calls return the same
// collectors, preventing duplicate-registration panics when multiple
// runners are constructed.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pipeline_runs_total",
					Help: "Total number of pipeline runs by verdict",
				},
				[]string{"verdict"},
			),
			PhaseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "pipeline_phase_duration_seconds",
					Help:    "Duration of pipeline phases in seconds",
					Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
				},
				[]string{"phase"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeRun(verdict Status) {
	m.RunsTotal.WithLabelValues(string(verdict)).Inc()
}

func (m *Metrics) observePhase(phase Phase, d time.Duration) {
	m.PhaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}
