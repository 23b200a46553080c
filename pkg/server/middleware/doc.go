// Package middleware provides the HTTP middleware chain wrapped around the
// quotagate routes.
//
// The server composes, outermost first:
//
//	Recovery -> RequestID -> Tracing -> Logging -> CORS -> BodyLimit -> mux
//
// RequestID runs before Logging so every log line carries request_id, and
// Tracing runs before Logging so log lines carry trace_id.
//
// Each middleware has the signature func(http.Handler) http.Handler and can be
// composed with Chain.
package middleware
