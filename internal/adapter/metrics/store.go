package metrics

import (
	"context"

	"github.com/ew73/slack-karma/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics holds Prometheus metrics for karma document storage.
type StoreMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Subjects   prometheus.Gauge
}

// NewStoreMetrics creates and registers storage metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of karma document operations, by backend, operation and status.",
		}, []string{"backend", "op", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of karma document operations in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		Subjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "subjects",
			Help:      "Number of subjects in the most recently loaded or saved document.",
		}),
	}

	reg.MustRegister(m.Operations, m.Duration, m.Subjects)
	return m
}

var _ domain.DocumentStore = (*InstrumentedStore)(nil)

// InstrumentedStore decorates a DocumentStore with operation metrics.
type InstrumentedStore struct {
	next    domain.DocumentStore
	backend string
	m       *StoreMetrics
}

func NewInstrumentedStore(next domain.DocumentStore, backend string, m *StoreMetrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, backend: backend, m: m}
}

func (s *InstrumentedStore) Load(ctx context.Context) (domain.Document, error) {
	timer := prometheus.NewTimer(s.m.Duration.WithLabelValues(s.backend, "load"))
	doc, err := s.next.Load(ctx)
	timer.ObserveDuration()

	s.m.Operations.WithLabelValues(s.backend, "load", status(err)).Inc()
	if err == nil {
		s.m.Subjects.Set(float64(len(doc)))
	}
	return doc, err
}

func (s *InstrumentedStore) Save(ctx context.Context, doc domain.Document) error {
	timer := prometheus.NewTimer(s.m.Duration.WithLabelValues(s.backend, "save"))
	err := s.next.Save(ctx, doc)
	timer.ObserveDuration()

	s.m.Operations.WithLabelValues(s.backend, "save", status(err)).Inc()
	if err == nil {
		s.m.Subjects.Set(float64(len(doc)))
	}
	return err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
