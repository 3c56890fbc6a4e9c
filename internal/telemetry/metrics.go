// Package telemetry exposes Prometheus metrics for the analysis runner.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry holds all Prometheus metrics for dispatched factor analyses.
type MetricsRegistry struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	ActiveAnalyses   prometheus.Gauge
	FallbacksTotal   prometheus.Counter
	NonConvergence   prometheus.Counter
}

// NewMetricsRegistry creates the analysis metrics set.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qfactor_analyses_total",
				Help: "Completed factor analyses by result",
			},
			[]string{"result"},
		),
		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "qfactor_analysis_duration_seconds",
				Help:    "Wall time of a single factor analysis",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
		),
		ActiveAnalyses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "qfactor_active_analyses",
				Help: "Analyses currently executing on worker goroutines",
			},
		),
		FallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qfactor_extraction_fallbacks_total",
				Help: "Analyses that took the raw-component fallback path",
			},
		),
		NonConvergence: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qfactor_rotation_nonconvergence_total",
				Help: "Analyses whose varimax rotation hit the iteration cap",
			},
		),
	}
}

// Register attaches every metric to the given registerer.
func (m *MetricsRegistry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.ActiveAnalyses,
		m.FallbacksTotal,
		m.NonConvergence,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one finished analysis.
func (m *MetricsRegistry) ObserveAnalysis(elapsed time.Duration, failed, fallback, nonConverged bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	m.AnalysesTotal.WithLabelValues(result).Inc()
	m.AnalysisDuration.Observe(elapsed.Seconds())
	if fallback {
		m.FallbacksTotal.Inc()
	}
	if nonConverged {
		m.NonConvergence.Inc()
	}
}
