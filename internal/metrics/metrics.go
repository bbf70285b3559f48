// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records enrichment outcomes and latencies. A one-shot CLI
// has no scrape endpoint, so the registry is written to a node-exporter
// textfile at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder holds the pipeline metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	recordsProcessed prometheus.Counter
	failuresTotal    *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "protocol_analyzer",
				Name:      "enrichment_steps_total",
				Help:      "Enrichment step executions by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "protocol_analyzer",
				Name:      "enrichment_step_duration_seconds",
				Help:      "Enrichment step latency in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"step"},
		),
		recordsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "protocol_analyzer",
				Name:      "records_processed_total",
				Help:      "Drug records that completed enrichment",
			},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "protocol_analyzer",
				Name:      "enrichment_failures_total",
				Help:      "Recoverable enrichment failures by step and reason",
			},
			[]string{"step", "reason"},
		),
	}
}

// ObserveStep counts one step execution and, unless it was skipped, its latency.
func (r *Recorder) ObserveStep(step, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.stepsTotal.WithLabelValues(step, outcome).Inc()
	if outcome != OutcomeSkipped {
		r.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}

// Failure counts a classified step failure.
func (r *Recorder) Failure(step, reason string) {
	if r == nil {
		return
	}
	r.failuresTotal.WithLabelValues(step, reason).Inc()
}

// RecordProcessed counts one finished record.
func (r *Recorder) RecordProcessed() {
	if r == nil {
		return
	}
	r.recordsProcessed.Inc()
}

// WriteFile writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteFile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// Gatherer exposes the registry, e.g. for tests. A nil Recorder gathers an
// empty registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}
