// Package metrics exposes the service's Prometheus collectors. All
// collectors register on the default registry and are served from
// /metrics by the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveTimers tracks countdown loops currently running.
	ActiveTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizblitz_active_timers",
		Help: "Number of quiz timer loops currently running.",
	})

	// OpenStreams tracks SSE connections currently held open.
	OpenStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizblitz_open_event_streams",
		Help: "Number of server-sent event streams currently open.",
	})

	// EventsRecorded counts log appends by event type.
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizblitz_events_recorded_total",
		Help: "Quiz events appended to the event log, by type.",
	}, []string{"type"})

	// AnswersScored counts scored submissions by correctness.
	AnswersScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizblitz_answers_scored_total",
		Help: "Answer submissions scored, by correctness.",
	}, []string{"correct"})

	// AdvanceConflicts counts question advances lost to a concurrent
	// writer. A steady trickle is normal under manual host control.
	AdvanceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizblitz_advance_conflicts_total",
		Help: "Question advances rejected because another writer moved the session first.",
	})

	// StreamFallbackActive is 1 when event delivery runs on polling
	// instead of change streams.
	StreamFallbackActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quizblitz_stream_fallback_active",
		Help: "1 when event delivery uses polling because change streams are unavailable.",
	})
)
