package middleware

import (
	"net/http"

	"materna360/quotagate/pkg/telemetry/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "materna360/quotagate/server"

// Tracing starts a server span per request, continuing any trace context
// propagated by the caller. The span is renamed to the matched route once
// the mux has run.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := otel.Tracer(tracerName).Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("request.id", logging.GetRequestID(r.Context())),
			),
		)
		defer span.End()

		rw := newStatusRecorder(w)
		req := r.WithContext(ctx)
		next.ServeHTTP(rw, req)

		if req.Pattern != "" {
			span.SetName(req.Pattern)
			span.SetAttributes(attribute.String("http.route", req.Pattern))
		}
		span.SetAttributes(attribute.Int("http.status_code", rw.status))
		if rw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rw.status))
		}
	})
}
