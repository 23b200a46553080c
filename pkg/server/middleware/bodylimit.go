package middleware

import "net/http"

// BodyLimit caps the request body at n bytes. Reads past the cap fail, which
// handlers that tolerate malformed bodies treat like an empty request.
func BodyLimit(n int64) Middleware {
	return func(next http.Handler) http.Handler {
		if n <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
