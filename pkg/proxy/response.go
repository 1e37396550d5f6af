package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"conduit-hq/conduit/pkg/relay"
)

// ChatCompletionResponse is the OpenAI-compatible response envelope
// served on the public endpoint.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []Choice     `json:"choices"`
	Usage   *relay.Usage `json:"usage,omitempty"`
}

// Choice is one completion alternative; the router always returns one.
type Choice struct {
	Index        int            `json:"index"`
	Message      *relay.Message `json:"message,omitempty"`
	Delta        *Delta         `json:"delta,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
}

// Delta is the incremental content inside a streamed choice.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// FormatResponse converts a unified response to the public envelope.
func FormatResponse(resp *relay.Response) *ChatCompletionResponse {
	usage := resp.Usage
	return &ChatCompletionResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []Choice{{
			Message:      &relay.Message{Role: resp.Role, Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: &usage,
	}
}

// FormatChunk converts a unified stream chunk to the public envelope.
func FormatChunk(chunk *relay.Chunk, model, responseID string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      responseID,
		Object:  "chat.completion.chunk",
		Created: chunk.Created,
		Model:   model,
		Choices: []Choice{{
			Delta:        &Delta{Content: chunk.Delta},
			FinishReason: chunk.FinishReason,
		}},
		Usage: chunk.Usage,
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an error through the unified HTTP mapping.
func WriteError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		WriteJSON(w, http.StatusBadRequest, reqErr.ToErrorResponse())
		return
	}
	status, body := MapError(err)
	WriteJSON(w, status, body)
}

// SetSSEHeaders prepares the response writer for server-sent events.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSEChunk writes one data event and flushes it.
func WriteSSEChunk(w http.ResponseWriter, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSEDone writes the end-of-stream sentinel.
func WriteSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flush(w)
	return nil
}

// WriteSSEError writes an error event into an already-open stream.
func WriteSSEError(w http.ResponseWriter, resp *ErrorResponse) error {
	return WriteSSEChunk(w, resp)
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
