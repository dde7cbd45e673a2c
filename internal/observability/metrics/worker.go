package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/resume-review/internal/core/domain"
)

// WorkerMetrics tracks analysis events consumed by the event worker.
type WorkerMetrics struct {
	service string

	eventsTotal *prometheus.CounterVec
	eventLag    prometheus.Histogram
}

func NewWorkerMetrics(service string, registry prometheus.Registerer) *WorkerMetrics {
	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "analysis_events_total",
			Help:      "Consumed analysis events by run status and failure kind.",
		},
		[]string{"service", "status", "kind"},
	)
	eventLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between run completion and event consumption.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(eventsTotal, eventLag)
	return &WorkerMetrics{
		service:     service,
		eventsTotal: eventsTotal,
		eventLag:    eventLag,
	}
}

func (m *WorkerMetrics) ObserveEvent(event domain.AnalysisEvent, received time.Time) {
	kind := event.FailureKind
	if kind == "" {
		kind = "none"
	}
	m.eventsTotal.WithLabelValues(m.service, string(event.Status), kind).Inc()

	if event.OccurredAt.IsZero() {
		return
	}
	if lag := received.Sub(event.OccurredAt); lag >= 0 {
		m.eventLag.Observe(lag.Seconds())
	}
}
