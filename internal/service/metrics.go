package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the score pipeline
type Metrics struct {
	ScoresEvaluated    *prometheus.CounterVec
	SubmissionFailures *prometheus.CounterVec
	Unlocks            *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	UnlockCacheLookups *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScoresEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "achievements",
			Name:      "scores_evaluated_total",
			Help:      "Scores run through the achievement engine, by game mode.",
		}, []string{"mode"}),
		SubmissionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "achievements",
			Name:      "submission_failures_total",
			Help:      "Score submissions that failed, by stage.",
		}, []string{"stage"}),
		Unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "achievements",
			Name:      "unlocks_total",
			Help:      "Achievements newly awarded, by achievement key.",
		}, []string{"achievement"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "achievements",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating the catalog against one score.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		UnlockCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "achievements",
			Name:      "unlock_cache_lookups_total",
			Help:      "Owned-set cache lookups, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ScoresEvaluated,
		m.SubmissionFailures,
		m.Unlocks,
		m.EvaluationDuration,
		m.UnlockCacheLookups,
	)
	return m
}
