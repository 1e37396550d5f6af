package middleware

import (
	"context"

	"conduit-hq/conduit/pkg/tenant"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for storing values in request context.
const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// TenantKey stores the authenticated tenant.
	TenantKey contextKey = "tenant"
)

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetTenant extracts the authenticated tenant from the context.
// Returns nil if the request was not authenticated.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if t, ok := ctx.Value(TenantKey).(*tenant.Tenant); ok {
		return t
	}
	return nil
}
