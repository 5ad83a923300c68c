// Package observability reports provider attempts, verdicts and extraction
// results to Prometheus and the structured log.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mailsift"

type Metrics struct {
	// Labels: task, provider, role, outcome
	Attempts *prometheus.CounterVec
	// Labels: task, provider
	AttemptDuration *prometheus.HistogramVec
	// Labels: category, source, fallback
	Verdicts *prometheus.CounterVec
	// Labels: source
	VerdictConfidence *prometheus.HistogramVec
	// Labels: kind, source, valid
	Extractions *prometheus.CounterVec
	// Labels: status (processed, failed)
	Messages *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Provider attempts by outcome",
			},
			[]string{"task", "provider", "role", "outcome"},
		),
		AttemptDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "attempt_duration_seconds",
				Help:      "Latency of provider attempts in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"task", "provider"},
		),
		Verdicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "verdicts_total",
				Help:      "Classification verdicts by category",
			},
			[]string{"category", "source", "fallback"},
		),
		VerdictConfidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "classifier",
				Name:      "verdict_confidence",
				Help:      "Confidence of classification verdicts",
				Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"source"},
		),
		Extractions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "extraction",
				Name:      "results_total",
				Help:      "Extraction results by record kind and validity",
			},
			[]string{"kind", "source", "valid"},
		),
		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "messages_total",
				Help:      "Messages handled by the pipeline",
			},
			[]string{"status"},
		),
	}
}
