package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
)

type PipelineMetrics struct {
	service string

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runsInFlight  prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registry prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Finished analysis runs by status and failure kind.",
		},
		[]string{"service", "status", "kind"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Analysis run duration in seconds by status.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 300},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of analysis runs in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "stage"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures by stage and kind.",
		},
		[]string{"service", "stage", "kind"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, stageDuration, stageFailures, breakerState)

	return &PipelineMetrics{
		service:       service,
		runsTotal:     runsTotal,
		runDuration:   runDuration,
		runsInFlight:  runsInFlight,
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		breakerState:  breakerState,
	}
}

func (m *PipelineMetrics) RunStarted() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) StageFinished(stage domain.RunStatus, duration time.Duration, err error) {
	m.stageDuration.WithLabelValues(m.service, string(stage)).Observe(duration.Seconds())
	if err != nil {
		m.stageFailures.WithLabelValues(m.service, string(stage), domain.FailureKind(err)).Inc()
	}
}

func (m *PipelineMetrics) RunFinished(status domain.RunStatus, failureKind string, duration time.Duration) {
	m.runsInFlight.Dec()
	if failureKind == "" {
		failureKind = "none"
	}
	m.runsTotal.WithLabelValues(m.service, string(status), failureKind).Inc()
	m.runDuration.WithLabelValues(m.service, string(status)).Observe(duration.Seconds())
}

// BreakerStateChanged matches resilience.StateObserver.
func (m *PipelineMetrics) BreakerStateChanged(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
}

var _ ports.PipelineObserver = (*PipelineMetrics)(nil)
