package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"conduit-hq/conduit/internal/relaytest"
	"conduit-hq/conduit/pkg/proxy"
	"conduit-hq/conduit/pkg/tenant"
)

const chatBody = `{"model":"mock-large","messages":[{"role":"user","content":"hi"}]}`

func chatRequest(body string, t *tenant.Tenant) *http.Request {
	r := httptest.NewRequest("POST", "/v1/chat/completions", strings.NewReader(body))
	return asTenant(r, t)
}

func TestChatCompletion(t *testing.T) {
	h := newHarness(t)
	h.addChannel(t, "tenant-a", "primary", relaytest.NewMockAdapter("mock").Script(
		relaytest.Outcome{Resp: relaytest.TextResponse("mock-large", "hello there")},
	))

	handler := NewChatHandler(h.dispatcher, time.Minute)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(chatBody, adminTenant("tenant-a")))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp proxy.ChatCompletionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("Object = %q", resp.Object)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "hello there" {
		t.Errorf("choices = %+v", resp.Choices)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	handler := NewChatHandler(h.dispatcher, 0)

	r := asTenant(httptest.NewRequest("GET", "/v1/chat/completions", nil), adminTenant("tenant-a"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestChatInvalidRequest(t *testing.T) {
	h := newHarness(t)
	handler := NewChatHandler(h.dispatcher, 0)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(`{"messages":[]}`, adminTenant("tenant-a")))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var body proxy.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Type != proxy.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q", body.Error.Type)
	}
}

func TestChatNoChannel(t *testing.T) {
	h := newHarness(t)
	handler := NewChatHandler(h.dispatcher, 0)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(chatBody, adminTenant("tenant-a")))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestChatStreaming(t *testing.T) {
	h := newHarness(t)
	h.addChannel(t, "tenant-a", "primary", relaytest.NewMockAdapter("mock").ScriptStream(
		relaytest.StreamOutcome{Chunks: relaytest.TextChunks("mock-large", "hel", "lo")},
	))

	handler := NewChatHandler(h.dispatcher, 0)
	streamBody := `{"model":"mock-large","messages":[{"role":"user","content":"hi"}],"stream":true}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(streamBody, adminTenant("tenant-a")))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}

	var content string
	var sawDone bool
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			sawDone = true
			continue
		}
		var chunk proxy.ChatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			t.Fatalf("unparseable SSE frame %q: %v", data, err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("Object = %q", chunk.Object)
		}
		if len(chunk.Choices) == 1 && chunk.Choices[0].Delta != nil {
			content += chunk.Choices[0].Delta.Content
		}
	}

	if content != "hello" {
		t.Errorf("streamed content = %q, want hello", content)
	}
	if !sawDone {
		t.Error("stream missing [DONE] sentinel")
	}
}

func TestChatStreamDispatchFailure(t *testing.T) {
	h := newHarness(t)
	handler := NewChatHandler(h.dispatcher, 0)

	streamBody := `{"model":"mock-large","messages":[{"role":"user","content":"hi"}],"stream":true}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(streamBody, adminTenant("tenant-a")))

	// No channel can serve the model; the error arrives as plain JSON
	// because nothing has been streamed yet.
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}
