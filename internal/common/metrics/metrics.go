package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_lifecycle_operations_total",
			Help: "Total lifecycle operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	EventsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_events_reconciled_total",
			Help: "Total external events folded into the assignment ledger",
		},
		[]string{"event_type"},
	)

	EventsIgnored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_events_ignored_total",
			Help: "Total inbound events classified ignorable, by reason",
		},
		[]string{"event_type", "reason"},
	)

	AssignmentPeriodsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casework_assignment_periods_opened_total",
			Help: "Total assignment periods opened on the ledger",
		},
	)

	OutboxPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casework_outbox_publishes_total",
			Help: "Total outbox publish attempts by outcome",
		},
		[]string{"outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "casework_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
