package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"conduit-hq/conduit/pkg/relay"
)

// MaxRequestBodySize limits inbound request bodies to 10 MB.
const MaxRequestBodySize = 10 * 1024 * 1024

// RequestError reports a rejected inbound request.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts the error to the OpenAI envelope.
func (e *RequestError) ToErrorResponse() *ErrorResponse {
	return NewErrorResponse(e.Message, ErrorTypeInvalidRequest, e.Param, e.Code)
}

// ParseCompletionRequest parses and validates the inbound completion
// request body. The body is size-limited to prevent memory exhaustion.
func ParseCompletionRequest(r *http.Request) (*relay.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(body) > MaxRequestBodySize {
		return nil, &RequestError{
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", MaxRequestBodySize),
			Code:    CodeInvalidValue,
			Param:   "body",
		}
	}

	var req relay.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    CodeInvalidJSON,
			Param:   "body",
		}
	}

	if err := validateRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func validateRequest(req *relay.Request) error {
	if req.Model == "" {
		return &RequestError{Message: "model is required", Code: CodeMissingField, Param: "model"}
	}
	if len(req.Messages) == 0 {
		return &RequestError{Message: "messages must not be empty", Code: CodeMissingField, Param: "messages"}
	}
	for i, msg := range req.Messages {
		switch msg.Role {
		case relay.RoleSystem, relay.RoleUser, relay.RoleAssistant:
		default:
			return &RequestError{
				Message: fmt.Sprintf("messages[%d].role must be one of system, user, assistant", i),
				Code:    CodeInvalidValue,
				Param:   "messages",
			}
		}
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		return &RequestError{Message: "temperature must be between 0 and 2", Code: CodeInvalidValue, Param: "temperature"}
	}
	if req.TopP < 0 || req.TopP > 1 {
		return &RequestError{Message: "top_p must be between 0 and 1", Code: CodeInvalidValue, Param: "top_p"}
	}
	if req.MaxTokens < 0 {
		return &RequestError{Message: "max_tokens must not be negative", Code: CodeInvalidValue, Param: "max_tokens"}
	}
	return nil
}
