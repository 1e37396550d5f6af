package openai

import (
	"fmt"

	"conduit-hq/conduit/pkg/relay"
)

// OpenAI API request/response types

// Request represents an OpenAI chat completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	N           int       `json:"n,omitempty"`
}

// Message represents a message in OpenAI format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Response represents an OpenAI chat completion response.
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice in OpenAI format.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage in OpenAI format.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamResponse represents a chunk in OpenAI's SSE stream.
type StreamResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// StreamChoice represents a choice in a stream chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// StreamDelta represents the incremental content in a stream chunk.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Transformation functions

// transformRequest transforms a unified request to OpenAI format.
// Message order is preserved exactly.
func transformRequest(req *relay.Request) *Request {
	out := &Request{
		Model:       req.Model,
		Messages:    make([]Message, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      req.Stream,
		N:           1, // Always generate 1 completion
	}

	for i, msg := range req.Messages {
		out.Messages[i] = Message{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	return out
}

// transformResponse transforms an OpenAI response to the unified format.
func transformResponse(resp *Response) (*relay.Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	// Use the first choice (we always request N=1).
	choice := resp.Choices[0]

	return &relay.Response{
		ID:           resp.ID,
		Model:        resp.Model,
		Role:         relay.RoleAssistant,
		Content:      choice.Message.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Usage: relay.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Created: resp.Created,
	}, nil
}

// transformStreamChunk transforms an OpenAI stream chunk to the unified
// format. A nil result with nil error means the frame carried nothing
// user-visible (e.g., a role-only prelude delta) and should be skipped.
func transformStreamChunk(chunk *StreamResponse) (*relay.Chunk, error) {
	if len(chunk.Choices) == 0 {
		// Usage-only trailer frames have no choices.
		if chunk.Usage != nil {
			return &relay.Chunk{
				ID:      chunk.ID,
				Model:   chunk.Model,
				Created: chunk.Created,
				Usage: &relay.Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				},
			}, nil
		}
		return nil, nil
	}

	choice := chunk.Choices[0]
	if choice.Delta.Content == "" && choice.FinishReason == "" {
		return nil, nil
	}

	out := &relay.Chunk{
		ID:           chunk.ID,
		Model:        chunk.Model,
		Delta:        choice.Delta.Content,
		FinishReason: normalizeFinishReason(choice.FinishReason),
		Created:      chunk.Created,
	}

	if chunk.Usage != nil {
		out.Usage = &relay.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	return out, nil
}

// normalizeFinishReason normalizes OpenAI finish reasons to unified values.
func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop":
		return relay.FinishReasonStop
	case "length":
		return relay.FinishReasonLength
	case "content_filter":
		return relay.FinishReasonContentFilter
	default:
		return reason
	}
}
