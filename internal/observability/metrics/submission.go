// Package metrics provides custom Prometheus metrics for the Colsign-Go application.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SubmissionMetrics contains all Prometheus metrics related to clip
// submissions and their review.
type SubmissionMetrics struct {
	UploadTotal    *prometheus.CounterVec
	UploadErrors   *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec

	VerifiedTotal prometheus.Counter
	DeletedTotal  prometheus.Counter

	registry *prometheus.Registry
}

// NewSubmissionMetrics creates a new instance of SubmissionMetrics.
// It requires a Prometheus registry to register the metrics.
func NewSubmissionMetrics(registry *prometheus.Registry) (*SubmissionMetrics, error) {
	m := &SubmissionMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register submission metrics: %w", err)
	}
	return m, nil
}

func (m *SubmissionMetrics) initMetrics() {
	m.UploadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colsign_submission_uploads_total",
			Help: "Total number of accepted clip uploads partitioned by sign type.",
		},
		[]string{"sign_type"},
	)
	m.UploadErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colsign_submission_upload_errors_total",
			Help: "Total number of failed clip uploads partitioned by sign type.",
		},
		[]string{"sign_type"},
	)
	m.UploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colsign_submission_upload_duration_seconds",
			Help:    "Time taken to store an accepted clip and its record.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sign_type"},
	)
	m.VerifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colsign_submissions_verified_total",
			Help: "Total number of submissions marked verified by reviewers.",
		},
	)
	m.DeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "colsign_submissions_deleted_total",
			Help: "Total number of unverified submissions deleted by reviewers.",
		},
	)
}

// RecordUpload increments the upload counter and observes the duration.
func (m *SubmissionMetrics) RecordUpload(signType string, duration time.Duration) {
	m.UploadTotal.WithLabelValues(signType).Inc()
	m.UploadDuration.WithLabelValues(signType).Observe(duration.Seconds())
}

// RecordUploadError increments the failed-upload counter.
func (m *SubmissionMetrics) RecordUploadError(signType string) {
	m.UploadErrors.WithLabelValues(signType).Inc()
}

// RecordVerified increments the verified counter.
func (m *SubmissionMetrics) RecordVerified() {
	m.VerifiedTotal.Inc()
}

// RecordDeleted increments the deleted counter.
func (m *SubmissionMetrics) RecordDeleted() {
	m.DeletedTotal.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *SubmissionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.UploadTotal.Describe(ch)
	m.UploadErrors.Describe(ch)
	m.UploadDuration.Describe(ch)
	ch <- m.VerifiedTotal.Desc()
	ch <- m.DeletedTotal.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *SubmissionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.UploadTotal.Collect(ch)
	m.UploadErrors.Collect(ch)
	m.UploadDuration.Collect(ch)
	ch <- m.VerifiedTotal
	ch <- m.DeletedTotal
}
