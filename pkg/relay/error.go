package relay

import "fmt"

// ErrorKind is the closed set of unified error classifications. Every
// upstream failure is mapped to exactly one kind; the kind drives the
// dispatcher's retry decision and the HTTP status returned to the caller.
type ErrorKind string

const (
	// KindConnection covers network failures, timeouts, and unreachable upstreams.
	KindConnection ErrorKind = "connection"

	// KindAuthentication covers rejected channel credentials (upstream 401/403).
	KindAuthentication ErrorKind = "authentication"

	// KindRateLimit covers upstream throttling (429) and local RPM caps.
	KindRateLimit ErrorKind = "rate_limit"

	// KindQuotaExceeded covers exhausted upstream billing quota.
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// KindModelNotFound covers requests for models the upstream does not serve.
	KindModelNotFound ErrorKind = "model_not_found"

	// KindBadRequest covers malformed or rejected request payloads (4xx).
	KindBadRequest ErrorKind = "bad_request"

	// KindServerError covers upstream 5xx responses.
	KindServerError ErrorKind = "server_error"

	// KindUnknown is the fallback for anything the classifier cannot place.
	KindUnknown ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on a
// different channel. Authentication, bad-request, model-not-found, and
// quota failures reflect request- or configuration-level problems that
// switching channels cannot fix.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindConnection, KindServerError, KindRateLimit:
		return true
	default:
		return false
	}
}

// Error is the unified error carried from a classified upstream failure
// back to the dispatcher and, ultimately, the caller. It preserves the
// provider-native message for diagnostics.
type Error struct {
	// Kind is the unified classification
	Kind ErrorKind

	// Message is the provider-native error message
	Message string

	// Provider is the descriptor id of the upstream that failed
	Provider string

	// Status is the upstream HTTP status code, 0 if not applicable
	Status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: provider %q (status %d): %s", e.Kind, e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: provider %q: %s", e.Kind, e.Provider, e.Message)
}

// NewError builds a unified error.
func NewError(kind ErrorKind, provider, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message}
}
