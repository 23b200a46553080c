// Package tracing configures OpenTelemetry tracing for quotagate.
//
// When enabled, spans are batched to an OTLP gRPC collector and the W3C
// trace context propagator is installed globally so incoming traceparent
// headers continue upstream traces. When disabled the global provider is a
// noop and instrumented code pays almost nothing.
//
// Instrumented packages obtain tracers with otel.Tracer and never depend on
// this package.
package tracing
