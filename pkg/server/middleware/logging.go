package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Recorder receives one observation per served request.
type Recorder interface {
	RecordHTTPRequest(route, method string, code int, duration time.Duration)
}

// Logging logs each completed request and reports it to rec when non-nil.
//
// The route is read from the mux pattern after the handler runs, so it must
// wrap the *http.ServeMux directly or through middleware that forwards the
// same request value.
func Logging(logger *slog.Logger, rec Recorder) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			latency := time.Since(start)
			if rec != nil {
				rec.RecordHTTPRequest(r.Pattern, r.Method, rw.status, latency)
			}

			level := slog.LevelInfo
			switch {
			case rw.status >= 500:
				level = slog.LevelError
			case rw.status >= 400:
				level = slog.LevelWarn
			case r.URL.Path == "/health" || r.URL.Path == "/ready":
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"latency_ms", latency.Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}
