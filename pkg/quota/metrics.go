package quota

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes recorded by Metrics.
const (
	OutcomeAllowed  = "allowed"
	OutcomeDeclined = "declined"
	OutcomeFailOpen = "fail_open"
)

// Metrics contains Prometheus metrics for the quota gate.
type Metrics struct {
	decisions      *prometheus.CounterVec
	releases       *prometheus.CounterVec
	ledgerErrors   *prometheus.CounterVec
	ledgerDuration *prometheus.HistogramVec
	dailyLimit     prometheus.Gauge
}

// NewMetrics creates the gate metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_decisions_total",
				Help: "Total number of quota gate decisions by outcome",
			},
			[]string{"outcome"},
		),

		releases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_releases_total",
				Help: "Total number of compensating releases by result",
			},
			[]string{"result"},
		),

		ledgerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotagate_ledger_errors_total",
				Help: "Total number of failed ledger operations",
			},
			[]string{"backend", "operation"},
		),

		ledgerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotagate_ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"backend", "operation"},
		),

		dailyLimit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotagate_daily_limit",
				Help: "Currently configured daily quota per actor",
			},
		),
	}

	reg.MustRegister(m.decisions, m.releases, m.ledgerErrors, m.ledgerDuration, m.dailyLimit)
	return m
}

// RecordDecision records a gate decision outcome.
func (m *Metrics) RecordDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// RecordRelease records a compensating release.
func (m *Metrics) RecordRelease(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.releases.WithLabelValues(result).Inc()
}

// RecordLedgerOperation records the latency and result of a ledger call.
func (m *Metrics) RecordLedgerOperation(backend, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.ledgerDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		m.ledgerErrors.WithLabelValues(backend, operation).Inc()
	}
}

// SetDailyLimit updates the configured limit gauge.
func (m *Metrics) SetDailyLimit(limit int) {
	if m == nil {
		return
	}
	m.dailyLimit.Set(float64(limit))
}
