package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks requests served by the HTTP server.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics.
func NewHTTPMetrics(registry prometheus.Registerer) *HTTPMetrics {
	hm := &HTTPMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotagate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"route", "method", "code"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quotagate",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"route", "method"},
		),
	}

	registry.MustRegister(hm.requestsTotal, hm.requestDuration)
	return hm
}

// Record records one served request. The route is the matched mux pattern,
// never the raw path, which keeps label cardinality bounded.
func (hm *HTTPMetrics) Record(route, method string, code int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	hm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	hm.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
