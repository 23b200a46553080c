// Package telemetry groups the observability packages used by quotagate.
//
// # Components
//
//   - logging: slog construction, request-scoped attributes and key redaction
//   - metrics: Prometheus registry, HTTP and suggestion metrics, /metrics handler
//   - tracing: OpenTelemetry tracer provider with an optional OTLP gRPC exporter
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Writer: os.Stdout})
//	if err != nil {
//		return err
//	}
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	checker := health.New(2 * time.Second)
//	checker.Register("ledger", false, ledger.Ping)
//
// Ledger and gate metrics live next to the code they measure, in
// pkg/quota; they register against collector.Registry().
package telemetry
