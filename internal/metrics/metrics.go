package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueEntriesBuilt tracks queue entries inserted by the builder
	QueueEntriesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_queue_built_total",
			Help: "Total queue entries inserted by the daily build",
		},
		[]string{"category"},
	)

	// DispatchOutcomes tracks dispatch results by outcome
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_dispatch_total",
			Help: "Total dispatched queue entries by outcome",
		},
		[]string{"outcome"},
	)

	// DispatchDuration tracks the time spent sending one message
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_reminder_dispatch_duration_seconds",
			Help:    "Gateway send duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TriggerRuns tracks trigger task executions
	TriggerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_trigger_runs_total",
			Help: "Total trigger task executions",
		},
		[]string{"task"},
	)

	// TriggerSkipped tracks ticks coalesced because the previous run was still going
	TriggerSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_trigger_skipped_total",
			Help: "Trigger ticks skipped because the same task was still running",
		},
		[]string{"task"},
	)

	// TriggerDuration tracks trigger task run time
	TriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_reminder_trigger_duration_seconds",
			Help:    "Trigger task duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	// DigestsSent tracks daily digest messages by result
	DigestsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_digests_total",
			Help: "Total daily digest messages by result",
		},
		[]string{"status"},
	)

	// CleanupRemoved tracks queue entries removed by the nightly cleanup
	CleanupRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_reminder_cleanup_removed_total",
			Help: "Queue entries removed by the nightly cleanup",
		},
	)

	// RateLimitExceeded tracks API rate limit violations
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminder_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"tenant_id"},
	)

	// ConsumerRestarts tracks event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_reminder_consumer_restarts_total",
			Help: "Total number of event consumer restarts",
		},
	)
)

// NewDispatchTimer times one gateway send against DispatchDuration
func NewDispatchTimer() *prometheus.Timer {
	return prometheus.NewTimer(DispatchDuration)
}
