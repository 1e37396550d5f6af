package proxy

import (
	"errors"
	"net/http"

	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/routing"
)

// ErrorResponse is the OpenAI-compatible error envelope returned for
// every error condition, so existing SDKs and tools keep working.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	Type string `json:"type"`

	// Param is the name of the parameter that caused the error.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants matching the OpenAI API specification.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorTypeServerError        = "server_error"
	ErrorTypeBadGateway         = "bad_gateway"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// Error code constants for common scenarios.
const (
	CodeInvalidJSON         = "invalid_json"
	CodeMissingField        = "missing_field"
	CodeInvalidValue        = "invalid_value"
	CodeModelNotFound       = "model_not_found"
	CodeQuotaExceeded       = "quota_exceeded"
	CodeProviderError       = "provider_error"
	CodeChannelUnavailable  = "channel_unavailable"
	CodeInternalError       = "internal_error"
	CodeUnauthorized        = "unauthorized"
)

// NewErrorResponse creates an error response with the given details.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// MapError converts a dispatch failure into an HTTP status and an
// OpenAI-compatible error body.
//
// Channel credential failures map to 502, not 401: the caller's own
// authentication already succeeded, and the broken credential is a
// server-side configuration fault the caller cannot fix.
func MapError(err error) (int, *ErrorResponse) {
	if errors.Is(err, routing.ErrNoChannel) {
		return http.StatusServiceUnavailable,
			NewErrorResponse(err.Error(), ErrorTypeServiceUnavailable, "", CodeChannelUnavailable)
	}

	var unified *relay.Error
	if errors.As(err, &unified) {
		return mapUnified(unified)
	}

	return http.StatusInternalServerError,
		NewErrorResponse(err.Error(), ErrorTypeServerError, "", CodeInternalError)
}

func mapUnified(e *relay.Error) (int, *ErrorResponse) {
	switch e.Kind {
	case relay.KindBadRequest:
		return http.StatusBadRequest,
			NewErrorResponse(e.Message, ErrorTypeInvalidRequest, "", CodeInvalidValue)
	case relay.KindModelNotFound:
		return http.StatusBadRequest,
			NewErrorResponse(e.Message, ErrorTypeInvalidRequest, "model", CodeModelNotFound)
	case relay.KindRateLimit:
		return http.StatusTooManyRequests,
			NewErrorResponse(e.Message, ErrorTypeRateLimitExceeded, "", "rate_limit_exceeded")
	case relay.KindQuotaExceeded:
		return http.StatusTooManyRequests,
			NewErrorResponse(e.Message, ErrorTypeRateLimitExceeded, "", CodeQuotaExceeded)
	case relay.KindConnection, relay.KindServerError, relay.KindAuthentication:
		return http.StatusBadGateway,
			NewErrorResponse(e.Message, ErrorTypeBadGateway, "", CodeProviderError)
	default:
		return http.StatusInternalServerError,
			NewErrorResponse(e.Message, ErrorTypeServerError, "", CodeInternalError)
	}
}
