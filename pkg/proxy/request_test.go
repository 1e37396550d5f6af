package proxy

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func parseBody(t *testing.T, body string) error {
	t.Helper()
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	_, err := ParseCompletionRequest(r)
	return err
}

func TestParseCompletionRequestValid(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"stream":true,"temperature":0.7}`))

	req, err := ParseCompletionRequest(r)
	if err != nil {
		t.Fatalf("ParseCompletionRequest() error = %v", err)
	}
	if req.Model != "gpt-4o" || !req.Stream || len(req.Messages) != 1 {
		t.Errorf("parsed request = %+v", req)
	}
	if req.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", req.Temperature)
	}
}

func TestParseCompletionRequestRejections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		param string
		code  string
	}{
		{
			name:  "invalid json",
			body:  `{not json`,
			param: "body",
			code:  CodeInvalidJSON,
		},
		{
			name:  "missing model",
			body:  `{"messages":[{"role":"user","content":"hi"}]}`,
			param: "model",
			code:  CodeMissingField,
		},
		{
			name:  "empty messages",
			body:  `{"model":"gpt-4o","messages":[]}`,
			param: "messages",
			code:  CodeMissingField,
		},
		{
			name:  "bad role",
			body:  `{"model":"gpt-4o","messages":[{"role":"robot","content":"hi"}]}`,
			param: "messages",
			code:  CodeInvalidValue,
		},
		{
			name:  "temperature out of range",
			body:  `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"temperature":3.5}`,
			param: "temperature",
			code:  CodeInvalidValue,
		},
		{
			name:  "top_p out of range",
			body:  `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"top_p":1.5}`,
			param: "top_p",
			code:  CodeInvalidValue,
		},
		{
			name:  "negative max_tokens",
			body:  `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"max_tokens":-1}`,
			param: "max_tokens",
			code:  CodeInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseBody(t, tt.body)
			var rerr *RequestError
			if !errors.As(err, &rerr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if rerr.Param != tt.param || rerr.Code != tt.code {
				t.Errorf("param/code = %q/%q, want %q/%q", rerr.Param, rerr.Code, tt.param, tt.code)
			}
		})
	}
}

func TestParseCompletionRequestTooLarge(t *testing.T) {
	huge := `{"model":"gpt-4o","messages":[{"role":"user","content":"` +
		strings.Repeat("x", MaxRequestBodySize) + `"}]}`
	err := parseBody(t, huge)

	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if rerr.Param != "body" {
		t.Errorf("param = %q, want body", rerr.Param)
	}
}
