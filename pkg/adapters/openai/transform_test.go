package openai

import (
	"testing"

	"conduit-hq/conduit/pkg/relay"
)

func TestTransformRequest(t *testing.T) {
	req := &relay.Request{
		Model: "gpt-4o",
		Messages: []relay.Message{
			{Role: relay.RoleSystem, Content: "be brief"},
			{Role: relay.RoleUser, Content: "hello"},
		},
		Temperature: 0.5,
		MaxTokens:   256,
		Stop:        []string{"END"},
	}

	out := transformRequest(req)
	if out.Model != "gpt-4o" || out.N != 1 {
		t.Errorf("request = %+v", out)
	}
	if len(out.Messages) != 2 || out.Messages[0].Role != "system" || out.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", out.Messages)
	}
	if out.Temperature != 0.5 || out.MaxTokens != 256 || out.Stop[0] != "END" {
		t.Errorf("sampling params not carried: %+v", out)
	}
}

func TestTransformResponse(t *testing.T) {
	resp := &Response{
		ID:    "chatcmpl-123",
		Model: "gpt-4o",
		Choices: []Choice{
			{Message: Message{Role: "assistant", Content: "hi there"}, FinishReason: "stop"},
		},
		Usage: Usage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
	}

	got, err := transformResponse(resp)
	if err != nil {
		t.Fatalf("transformResponse() error = %v", err)
	}
	if got.Content != "hi there" || got.FinishReason != relay.FinishReasonStop {
		t.Errorf("response = %+v", got)
	}
	if got.Usage.TotalTokens != 16 {
		t.Errorf("usage = %+v", got.Usage)
	}
}

func TestTransformResponseNoChoices(t *testing.T) {
	if _, err := transformResponse(&Response{ID: "chatcmpl-0"}); err == nil {
		t.Fatal("transformResponse() error = nil, want failure for empty choices")
	}
}

func TestTransformStreamChunk(t *testing.T) {
	tests := []struct {
		name  string
		frame StreamResponse
		want  *relay.Chunk
	}{
		{
			name: "content delta",
			frame: StreamResponse{
				ID:      "chatcmpl-1",
				Choices: []StreamChoice{{Delta: StreamDelta{Content: "hel"}}},
			},
			want: &relay.Chunk{ID: "chatcmpl-1", Delta: "hel"},
		},
		{
			name: "role-only prelude is skipped",
			frame: StreamResponse{
				Choices: []StreamChoice{{Delta: StreamDelta{Role: "assistant"}}},
			},
			want: nil,
		},
		{
			name: "finish frame",
			frame: StreamResponse{
				Choices: []StreamChoice{{FinishReason: "length"}},
			},
			want: &relay.Chunk{FinishReason: relay.FinishReasonLength},
		},
		{
			name: "usage-only trailer",
			frame: StreamResponse{
				Usage: &Usage{PromptTokens: 10, CompletionTokens: 7, TotalTokens: 17},
			},
			want: &relay.Chunk{Usage: &relay.Usage{PromptTokens: 10, CompletionTokens: 7, TotalTokens: 17}},
		},
		{
			name:  "empty frame is skipped",
			frame: StreamResponse{Choices: []StreamChoice{{}}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := transformStreamChunk(&tt.frame)
			if err != nil {
				t.Fatalf("transformStreamChunk() error = %v", err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("chunk = %+v, want %+v", got, tt.want)
			}
			if got == nil {
				return
			}
			if got.ID != tt.want.ID || got.Delta != tt.want.Delta || got.FinishReason != tt.want.FinishReason {
				t.Errorf("chunk = %+v, want %+v", got, tt.want)
			}
			if (got.Usage == nil) != (tt.want.Usage == nil) {
				t.Fatalf("usage = %+v, want %+v", got.Usage, tt.want.Usage)
			}
			if got.Usage != nil && *got.Usage != *tt.want.Usage {
				t.Errorf("usage = %+v, want %+v", got.Usage, tt.want.Usage)
			}
		})
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"stop", relay.FinishReasonStop},
		{"length", relay.FinishReasonLength},
		{"content_filter", relay.FinishReasonContentFilter},
		{"", ""},
		{"tool_calls", "tool_calls"},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
