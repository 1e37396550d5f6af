package anthropic

import (
	"fmt"
	"strings"
	"time"

	"conduit-hq/conduit/pkg/relay"
)

const defaultMaxTokens = 4096

// Request is the Anthropic Messages API request format.
type Request struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	System        string    `json:"system,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   float64   `json:"temperature,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	Stream        bool      `json:"stream,omitempty"`
}

// Message is a single turn in Anthropic format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the Anthropic Messages API response format.
type Response struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage carries Anthropic token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is a single SSE event payload in the Messages streaming
// protocol. The Type field discriminates which of the optional fields
// are populated.
type StreamEvent struct {
	Type         string       `json:"type"`
	Message      *Response    `json:"message,omitempty"`
	Index        int          `json:"index,omitempty"`
	Delta        *StreamDelta `json:"delta,omitempty"`
	Usage        *Usage       `json:"usage,omitempty"`
	ErrorPayload *StreamError `json:"error,omitempty"`
}

// StreamDelta carries the incremental part of a streaming event.
type StreamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	StopReason string `json:"stop_reason"`
}

// StreamError is the error envelope inside an "error" stream event.
type StreamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// transformRequest converts the unified request to Anthropic format.
// System messages become the top-level system field; Anthropic rejects
// them inside the messages array.
func transformRequest(req *relay.Request) *Request {
	out := &Request{
		Model:         req.Model,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		MaxTokens:     defaultMaxTokens,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == relay.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		out.Messages = append(out.Messages, Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	out.System = strings.Join(system, "\n\n")
	return out
}

// transformResponse converts an Anthropic response to the unified format.
func transformResponse(resp *Response) (*relay.Response, error) {
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no content blocks in response")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &relay.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Role:         relay.RoleAssistant,
		Content:      text.String(),
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage: relay.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		Created: time.Now().Unix(),
	}, nil
}

// normalizeStopReason maps Anthropic stop reasons onto the unified set.
func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return relay.FinishReasonStop
	case "max_tokens":
		return relay.FinishReasonLength
	case "":
		return ""
	default:
		return reason
	}
}
