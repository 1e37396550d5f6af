package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"conduit-hq/conduit/pkg/tenant"
)

// Auth resolves the tenant for every request and rejects calls without
// a valid API key. The resolved tenant is stored in the context for
// handlers.
func Auth(resolver tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r)
			if err != nil {
				slog.DebugContext(r.Context(), "unauthorized request",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
				)
				writeAuthError(w, http.StatusUnauthorized, "Invalid or missing API key.")
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the channel administration routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := GetTenant(r.Context())
		if t == nil || !t.Admin {
			writeAuthError(w, http.StatusForbidden, "Admin access required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {
			"message": message,
			"type":    "authentication_error",
			"code":    "unauthorized",
		},
	})
}
