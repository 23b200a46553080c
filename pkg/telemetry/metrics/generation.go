package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics tracks the protected generation step.
type GenerationMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGenerationMetrics creates and registers generation metrics.
func NewGenerationMetrics(registry prometheus.Registerer) *GenerationMetrics {
	gm := &GenerationMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Name:      "suggestions_total",
				Help:      "Total number of suggestion requests by terminal outcome",
			},
			[]string{"outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quotagate",
				Name:      "generation_duration_seconds",
				Help:      "Duration of generator calls in seconds",
				// LLM latencies: 100ms to 30s
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"provider", "result"},
		),
	}

	registry.MustRegister(gm.outcomes, gm.duration)
	return gm
}

// RecordOutcome counts a terminal outcome.
func (gm *GenerationMetrics) RecordOutcome(outcome string) {
	gm.outcomes.WithLabelValues(outcome).Inc()
}

// RecordCall records a generator call duration.
func (gm *GenerationMetrics) RecordCall(provider string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	gm.duration.WithLabelValues(provider, result).Observe(duration.Seconds())
}
