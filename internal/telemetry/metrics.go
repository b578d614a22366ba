// Package telemetry registers the Prometheus collectors exposed on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application collectors.
type Metrics struct {
	RoundsSubmitted    *prometheus.CounterVec
	ValidationErrors   *prometheus.CounterVec
	RankingSource      *prometheus.CounterVec
	LeaderboardUpdates *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	SubmissionDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered, which tests rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordrush_rounds_submitted_total",
			Help: "Round submissions by outcome.",
		}, []string{"outcome"}),
		ValidationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordrush_validation_errors_total",
			Help: "Validation errors and flags by code.",
		}, []string{"code"}),
		RankingSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordrush_ranking_source_total",
			Help: "Percentile computations by source (primary, fallback, default).",
		}, []string{"source"}),
		LeaderboardUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wordrush_leaderboard_updates_total",
			Help: "Leaderboard upserts by result.",
		}, []string{"result"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wordrush_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full.",
		}),
		SubmissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wordrush_submission_duration_seconds",
			Help:    "Time spent handling a round submission.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RoundsSubmitted,
			m.ValidationErrors,
			m.RankingSource,
			m.LeaderboardUpdates,
			m.EventsDropped,
			m.SubmissionDuration,
		)
	}
	return m
}

// Nop returns unregistered collectors.
func Nop() *Metrics {
	return New(nil)
}
