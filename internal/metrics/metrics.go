// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RatingSubmissions counts finished AddRating calls.
// Labels: outcome (success, validation, authentication, remote, timeout, malformed_response)
var RatingSubmissions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_rating_submissions_total",
		Help: "Total number of rating submissions by outcome",
	},
	[]string{"outcome"},
)

// RatingSubmitDuration measures the collaborator round trip of a submission.
var RatingSubmitDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "lopperater_rating_submit_duration_seconds",
		Help:    "Duration of rating submissions in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

// CollaboratorRequests counts calls to the persistence collaborator.
// Labels: backend, operation, status
var CollaboratorRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_collaborator_requests_total",
		Help: "Total number of persistence collaborator requests",
	},
	[]string{"backend", "operation", "status"},
)

// CollaboratorDuration measures collaborator request latency.
var CollaboratorDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "lopperater_collaborator_request_duration_seconds",
		Help:    "Duration of persistence collaborator requests in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"backend", "operation"},
)

var CacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_cache_hits_total",
		Help: "Total number of Redis cache hits",
	},
	[]string{"key_prefix"},
)

var CacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_cache_misses_total",
		Help: "Total number of Redis cache misses",
	},
	[]string{"key_prefix"},
)

var CacheErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_cache_errors_total",
		Help: "Total number of Redis errors",
	},
	[]string{"operation"},
)

// EventsPublished counts Kafka messages produced. Labels: topic, status
var EventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_events_published_total",
		Help: "Total number of Kafka events produced",
	},
	[]string{"topic", "status"},
)

// PhotoStatus counts observed photo status transitions. Labels: status
var PhotoStatus = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_photo_status_transitions_total",
		Help: "Total number of photo processing status transitions observed",
	},
	[]string{"status"},
)

// SchedulerRuns counts cron job executions. Labels: job, status
var SchedulerRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lopperater_scheduler_runs_total",
		Help: "Total number of scheduled job runs",
	},
	[]string{"job", "status"},
)

// StoreLoading is 1 while the client store has requests in flight.
var StoreLoading = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "lopperater_store_loading",
		Help: "Whether the client store has requests in flight",
	},
)

// Status maps an error to a metrics label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
