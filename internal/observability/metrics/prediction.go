package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PredictionMetrics contains all Prometheus metrics related to the external
// recognition service.
type PredictionMetrics struct {
	RequestTotal    *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPredictionMetrics creates a new instance of PredictionMetrics.
// It requires a Prometheus registry to register the metrics.
func NewPredictionMetrics(registry *prometheus.Registry) (*PredictionMetrics, error) {
	m := &PredictionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register prediction metrics: %w", err)
	}
	return m, nil
}

func (m *PredictionMetrics) initMetrics() {
	m.RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colsign_prediction_requests_total",
			Help: "Total number of recognition requests partitioned by model.",
		},
		[]string{"model"},
	)
	m.RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colsign_prediction_request_errors_total",
			Help: "Total number of failed recognition requests partitioned by model.",
		},
		[]string{"model"},
	)
	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colsign_prediction_request_duration_seconds",
			Help:    "Round-trip time of recognition requests.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)
}

// RecordRequest observes one completed recognition round trip.
func (m *PredictionMetrics) RecordRequest(model string, duration time.Duration, err error) {
	m.RequestTotal.WithLabelValues(model).Inc()
	m.RequestDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		m.RequestErrors.WithLabelValues(model).Inc()
	}
}

// Describe implements the prometheus.Collector interface.
func (m *PredictionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestTotal.Describe(ch)
	m.RequestErrors.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PredictionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestTotal.Collect(ch)
	m.RequestErrors.Collect(ch)
	m.RequestDuration.Collect(ch)
}
