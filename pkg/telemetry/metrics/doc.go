// Package metrics exposes Prometheus metrics for the HTTP surface and the
// protected generation step.
//
// Gate and ledger metrics live in package quota; they register with the same
// registry so a single /metrics endpoint serves everything.
//
// Metric families:
//
//	quotagate_http_requests_total{route, method, code}
//	quotagate_http_request_duration_seconds{route, method}
//	quotagate_suggestions_total{outcome}
//	quotagate_generation_duration_seconds{provider, result}
package metrics
