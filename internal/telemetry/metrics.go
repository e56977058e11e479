// Package telemetry exports pipeline metrics to Prometheus.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maraichr/ceindex/internal/pipeline"
)

// Metrics observes pipeline runs. Safe for concurrent use.
type Metrics struct {
	// RunsTotal counts finished runs by state (COMPLETED, FAILED).
	RunsTotal *prometheus.CounterVec

	// RunsInFlight is the number of runs between start and finish.
	RunsInFlight prometheus.Gauge

	// StepDurationSeconds measures each executed step by description and result.
	StepDurationSeconds *prometheus.HistogramVec

	// RunDurationSeconds measures the sum of step durations of a finished run.
	RunDurationSeconds *prometheus.HistogramVec

	// Retries counts analyses re-enqueued after a failed run.
	Retries prometheus.Counter
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ceindex",
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Finished pipeline runs by outcome state",
			},
			[]string{"state"},
		),
		RunsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ceindex",
				Subsystem: "pipeline",
				Name:      "runs_in_flight",
				Help:      "Pipeline runs currently executing steps",
			},
		),
		StepDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ceindex",
				Subsystem: "pipeline",
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"step", "result"},
		),
		RunDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ceindex",
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Total step time of finished pipeline runs",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"state"},
		),
		Retries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ceindex",
				Subsystem: "worker",
				Name:      "retries_total",
				Help:      "Analyses re-enqueued after a failed run",
			},
		),
	}
}

func (m *Metrics) RunStarted(context.Context, *pipeline.RunContext) {
	m.RunsInFlight.Inc()
}

func (m *Metrics) StepFinished(_ context.Context, _ *pipeline.RunContext, timing pipeline.StepTiming, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.StepDurationSeconds.WithLabelValues(timing.Description, result).Observe(timing.Duration.Seconds())
}

func (m *Metrics) RunFinished(_ context.Context, outcome *pipeline.Outcome) {
	m.RunsInFlight.Dec()
	state := string(outcome.State)
	m.RunsTotal.WithLabelValues(state).Inc()
	m.RunDurationSeconds.WithLabelValues(state).Observe(outcome.Total().Seconds())
}
