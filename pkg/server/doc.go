// Package server provides the quotagate HTTP server.
//
// It mounts the suggestion and quota endpoints, the health probes and the
// Prometheus endpoint behind the middleware chain from package middleware,
// and manages graceful shutdown.
//
// # Routes
//
//	POST /api/ai/suggestion   gated suggestion generation
//	GET  /api/ai/quota        remaining quota for the caller
//	GET  /health              liveness
//	GET  /ready               readiness (ledger ping)
//	GET  /version             build information
//	GET  /metrics             Prometheus exposition (path configurable)
//
// # Basic Usage
//
//	srv := server.New(&cfg.Server, server.Routes{
//	    Suggestion: suggestionHandler,
//	    Quota:      quotaHandler,
//	    Health:     checker,
//	    Metrics:    collector.Handler(),
//	}, collector, logger)
//
//	// Blocks until ctx is cancelled, then drains in-flight requests.
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
