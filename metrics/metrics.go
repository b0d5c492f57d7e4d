// Package metrics provides Prometheus metrics for trailer-engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessedTotal counts jobs reaching a terminal state.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailer",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs processed by terminal status",
		},
		[]string{"type", "status"},
	)

	// JobRetriesTotal counts retry re-enqueues.
	JobRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trailer",
			Name:      "job_retries_total",
			Help:      "Total number of job retry re-enqueues",
		},
		[]string{"type"},
	)

	// JobDuration measures end-to-end job processing duration.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trailer",
			Name:      "job_duration_seconds",
			Help:      "Duration of job processing in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	// PollAttempts observes how many polls a video job needed to finish.
	PollAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trailer",
			Name:      "poll_attempts",
			Help:      "Distribution of poll attempts per video generation job",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60},
		},
	)

	// QueueDepth tracks the number of dequeue-eligible jobs.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trailer",
			Name:      "queue_depth",
			Help:      "Number of pending jobs eligible for dequeue",
		},
	)

	// DelayedDepth tracks jobs waiting out a retry backoff.
	DelayedDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trailer",
			Name:      "delayed_depth",
			Help:      "Number of jobs waiting for their retry backoff to elapse",
		},
	)
)

// RecordJobProcessed records a terminal job outcome.
func RecordJobProcessed(jobType, status string, seconds float64) {
	JobsProcessedTotal.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType).Observe(seconds)
}

// RecordRetry records a retry re-enqueue.
func RecordRetry(jobType string) {
	JobRetriesTotal.WithLabelValues(jobType).Inc()
}
