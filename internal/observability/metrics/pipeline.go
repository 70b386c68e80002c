package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PipelineMetrics tracks extraction pipeline outcomes on a private registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	extractionsTotal *prometheus.CounterVec
	stageFailures    *prometheus.CounterVec
	duration         prometheus.Histogram
	correctionsTotal prometheus.Counter
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	extractionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsift",
			Subsystem:   "pipeline",
			Name:        "extractions_total",
			Help:        "Total extraction requests by outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"outcome"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docsift",
			Subsystem:   "pipeline",
			Name:        "stage_failures_total",
			Help:        "Pipeline failures by originating stage.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"stage"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docsift",
			Subsystem:   "pipeline",
			Name:        "duration_seconds",
			Help:        "End-to-end extraction duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	correctionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "docsift",
			Subsystem:   "corrections",
			Name:        "appended_total",
			Help:        "Correction-log entries appended by reviewers.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(
		extractionsTotal,
		stageFailures,
		duration,
		correctionsTotal,
		collectors.NewGoCollector(),
	)

	return &PipelineMetrics{
		registry:         registry,
		extractionsTotal: extractionsTotal,
		stageFailures:    stageFailures,
		duration:         duration,
		correctionsTotal: correctionsTotal,
	}
}

// Registry exposes the private registry for the /metrics handler.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) ObserveExtraction(outcome string, elapsed time.Duration) {
	m.extractionsTotal.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *PipelineMetrics) ObserveStageFailure(stage string) {
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *PipelineMetrics) ObserveCorrection() {
	m.correctionsTotal.Inc()
}
