// Package relay defines the vendor-agnostic request, response, and error
// shapes that the router speaks internally and at its public boundary.
// Every provider adapter translates between these types and its vendor's
// native wire format.
package relay

import "time"

// Message represents a single message in a conversation.
// It is provider-agnostic and is transformed to vendor-specific formats
// by the adapters.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`

	// Name is an optional name for the message sender
	Name string `json:"name,omitempty"`
}

// Usage tracks token consumption for a request.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// Request represents a provider-agnostic chat completion request.
// It is transformed to vendor-specific formats by each adapter.
type Request struct {
	// Model is the model identifier (e.g., "gpt-4", "claude-3-opus-20240229")
	Model string `json:"model"`

	// Messages is the ordered conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences that halt generation
	Stop []string `json:"stop,omitempty"`

	// Stream indicates whether to stream the response
	Stream bool `json:"stream,omitempty"`

	// Metadata carries internal request context (tenant id, request id).
	// It is never sent to the upstream.
	Metadata map[string]string `json:"-"`
}

// Response represents a provider-agnostic chat completion response,
// normalized from the vendor-specific response format.
type Response struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// Role is the responder role (always "assistant" in practice)
	Role string `json:"role"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (stop, length, content_filter)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption counters
	Usage Usage `json:"usage"`

	// Created is the Unix timestamp when the response was created
	Created int64 `json:"created"`
}

// Chunk represents a single fragment in a streaming response.
// A stream is an ordered sequence of chunks; the final chunk carries a
// non-empty FinishReason, and the channel closing marks end of stream.
type Chunk struct {
	// ID is the response identifier (same across all chunks of one stream)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk when the vendor reports it
	Usage *Usage `json:"usage,omitempty"`

	// Err is set if the stream failed mid-flight; no further chunks follow
	Err error `json:"-"`

	// Created is the Unix timestamp when the chunk was produced
	Created int64 `json:"created"`
}

// ProbeResult is the outcome of a single channel probe: whether the
// upstream accepted the credentials, and how long the round trip took.
type ProbeResult struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Message string        `json:"message,omitempty"`
}

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)
