package metrics

import (
	"time"

	"github.com/ew73/slack-karma/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// VoteMetrics holds Prometheus metrics for webhook event handling.
type VoteMetrics struct {
	EventsProcessed    *prometheus.CounterVec
	VotesByOperator    *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
}

// NewVoteMetrics creates and registers vote metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_processed_total",
			Help:      "Total number of webhook events processed, by outcome.",
		}, []string{"outcome"}),
		VotesByOperator: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_by_operator_total",
			Help:      "Total number of applied karma votes, by operator.",
		}, []string{"operator"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of webhook event processing in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(m.EventsProcessed, m.VotesByOperator, m.ProcessingDuration)
	return m
}

// Observe records one processed event. It is safe to call on a nil receiver.
func (m *VoteMetrics) Observe(outcome domain.Outcome, op domain.Operator, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(outcome.String()).Inc()
	m.ProcessingDuration.Observe(elapsed.Seconds())
	if outcome == domain.OutcomeApplied {
		m.VotesByOperator.WithLabelValues(string(op)).Inc()
	}
}
