package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds non-streaming request handling with a deadline on the
// request context. Streaming routes must not be wrapped: a healthy
// stream legitimately outlives any fixed request budget, and handlers
// detect expiry through ctx.Done() rather than a hijacked writer.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
