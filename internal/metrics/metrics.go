// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics provides Prometheus metrics for species list submissions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Pending reasons, one per unresolved line of a rejected submission.
const (
	PendingAmbiguous  = "ambiguous"
	PendingDeprecated = "deprecated"
	PendingNew        = "new"
)

// ListMetrics contains the metrics recorded by the list service. A nil
// *ListMetrics records nothing.
type ListMetrics struct {
	submissionsTotal     *prometheus.CounterVec
	pendingLinesTotal    *prometheus.CounterVec
	observationsTotal    prometheus.Counter
	namesCreatedTotal    prometheus.Counter
	duplicatesSkipped    prometheus.Counter
	conflictRetriesTotal prometheus.Counter
	submissionDuration   *prometheus.HistogramVec
	catalogSizeGauge     prometheus.Gauge
	collectors           []prometheus.Collector
}

// NewListMetrics creates the metrics and registers them with registry.
func NewListMetrics(registry prometheus.Registerer) (*ListMetrics, error) {
	m := &ListMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ListMetrics) initMetrics() {
	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mycolist_submissions_total",
			Help: "Total number of species list submissions",
		},
		[]string{"operation", "outcome"}, // operation: create, edit; outcome: accepted, rejected, failed
	)

	m.pendingLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mycolist_pending_lines_total",
			Help: "Total number of submitted lines that needed a decision",
		},
		[]string{"reason"},
	)

	m.observationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mycolist_observations_created_total",
		Help: "Total number of observations materialized from species lists",
	})

	m.namesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mycolist_names_created_total",
		Help: "Total number of catalog names created, parents included",
	})

	m.duplicatesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mycolist_duplicates_skipped_total",
		Help: "Total number of entries suppressed by the skip duplicate policy",
	})

	m.conflictRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mycolist_name_conflict_retries_total",
		Help: "Total number of submissions retried after a concurrent name creation",
	})

	m.submissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mycolist_submission_duration_seconds",
			Help:    "Time taken to resolve and materialize a submission",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	m.catalogSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mycolist_catalog_names",
		Help: "Number of names in the catalog",
	})

	m.collectors = []prometheus.Collector{
		m.submissionsTotal,
		m.pendingLinesTotal,
		m.observationsTotal,
		m.namesCreatedTotal,
		m.duplicatesSkipped,
		m.conflictRetriesTotal,
		m.submissionDuration,
		m.catalogSizeGauge,
	}
}

// Describe implements the Collector interface
func (m *ListMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *ListMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSubmission records the outcome and duration of one submission.
func (m *ListMetrics) RecordSubmission(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(operation, outcome).Inc()
	m.submissionDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordPending counts the pending lines of a rejected submission by reason.
func (m *ListMetrics) RecordPending(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pendingLinesTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordMaterialized counts what an accepted submission wrote.
func (m *ListMetrics) RecordMaterialized(observations, namesCreated, skipped int) {
	if m == nil {
		return
	}
	m.observationsTotal.Add(float64(observations))
	m.namesCreatedTotal.Add(float64(namesCreated))
	m.duplicatesSkipped.Add(float64(skipped))
}

// RecordConflictRetry counts a retry after a name creation conflict.
func (m *ListMetrics) RecordConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetriesTotal.Inc()
}

// SetCatalogSize records the current number of catalog names.
func (m *ListMetrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.catalogSizeGauge.Set(float64(n))
}
