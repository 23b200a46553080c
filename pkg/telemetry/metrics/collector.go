package metrics

import (
	"time"

	"materna360/quotagate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Suggestion outcomes.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomeDeclined  = "declined"
	OutcomeFallback  = "fallback"
)

// Collector owns the Prometheus registry and the service-level metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	http       *HTTPMetrics
	generation *GenerationMetrics
}

// NewCollector creates a collector. A nil registry gets a fresh registry
// with the Go runtime and process collectors installed.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		config:     cfg,
		registry:   registry,
		http:       NewHTTPMetrics(registry),
		generation: NewGenerationMetrics(registry),
	}
}

// Registry returns the underlying registry so other components can register
// their own metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Enabled reports whether recording is active.
func (c *Collector) Enabled() bool {
	return c != nil && c.config != nil && c.config.Enabled
}

// RecordHTTPRequest records a served HTTP request.
func (c *Collector) RecordHTTPRequest(route, method string, code int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.http.Record(route, method, code, duration)
}

// RecordSuggestion records the terminal outcome of a suggestion request.
func (c *Collector) RecordSuggestion(outcome string) {
	if !c.Enabled() {
		return
	}
	c.generation.RecordOutcome(outcome)
}

// RecordGeneration records a generator call.
func (c *Collector) RecordGeneration(provider string, duration time.Duration, err error) {
	if !c.Enabled() {
		return
	}
	c.generation.RecordCall(provider, duration, err)
}
