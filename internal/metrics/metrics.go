package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "moodfeed"

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	likeCount       *prometheus.CounterVec
	skippedRecords  prometheus.Counter
	degradedLookups prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Feed operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Feed operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		likeCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_changes_total",
			Help:      "Committed like state changes by direction.",
		}, []string{"direction"}),
		skippedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_skipped_total",
			Help:      "Stored entries that failed to parse and were left out of a feed.",
		}),
		degradedLookups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_lookups_degraded_total",
			Help:      "Like lookups that failed and were reported as not liked.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.likeCount, m.skippedRecords, m.degradedLookups)
	return m
}

// Observe records one finished operation.
func (m *Metrics) Observe(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) LikeChanged(liked bool) {
	if m == nil {
		return
	}
	direction := "unlike"
	if liked {
		direction = "like"
	}
	m.likeCount.WithLabelValues(direction).Inc()
}

func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.skippedRecords.Inc()
}

func (m *Metrics) LookupDegraded() {
	if m == nil {
		return
	}
	m.degradedLookups.Inc()
}
