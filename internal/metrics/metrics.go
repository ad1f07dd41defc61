// Package metrics holds the Prometheus collectors shared by the server and worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChargesGenerated counts charges inserted by the charge generator.
	ChargesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subsplit",
		Name:      "charges_generated_total",
		Help:      "Charges created by monthly generation, by payment strategy.",
	}, []string{"strategy"})

	// PlatformGenerationFailures counts platforms skipped because their insert failed.
	PlatformGenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subsplit",
		Name:      "charge_generation_failures_total",
		Help:      "Platforms whose charges could not be inserted.",
	})

	// Reminders counts reminder batches by milestone and outcome.
	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subsplit",
		Name:      "reminders_total",
		Help:      "Reminder batches processed, by type and status.",
	}, []string{"type", "status"})

	// TaskRuns counts scheduled task executions.
	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subsplit",
		Name:      "scheduled_task_runs_total",
		Help:      "Scheduled task executions, by task and status.",
	}, []string{"task", "status"})
)
