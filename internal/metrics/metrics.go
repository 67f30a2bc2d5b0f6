// Package metrics declares the Prometheus collectors shared across the
// service. Collectors register on the default registry; cmd/worker decides
// whether and where to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProgressUpdates counts persisted progress mutations by operation
	// ("record" or "remove").
	ProgressUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_progress_updates_total",
		Help: "Persisted participation progress mutations.",
	}, []string{"op"})

	// Completions counts event-driven challenge completions.
	Completions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "challenge_completions_total",
		Help: "Participations completed through the event-driven path.",
	})

	// SweepRuns counts daily sweep executions, including skipped ones.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_sweep_runs_total",
		Help: "Daily sweep executions by result (ran, already_ran, error).",
	}, []string{"result"})

	// SweepOutcomes counts per-participation sweep decisions.
	SweepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_sweep_outcomes_total",
		Help: "Per-participation sweep outcomes (completed, expired, missed_day, skipped, error, conflict).",
	}, []string{"outcome"})

	// BufferedEvents tracks the depth of the durable diary-event buffer.
	BufferedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "challenge_buffered_events",
		Help: "Diary events waiting in the durable retry buffer.",
	})
)
