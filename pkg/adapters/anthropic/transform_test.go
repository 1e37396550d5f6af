package anthropic

import (
	"testing"

	"conduit-hq/conduit/pkg/relay"
)

func TestTransformRequestHoistsSystem(t *testing.T) {
	req := &relay.Request{
		Model: "claude-sonnet-4-20250514",
		Messages: []relay.Message{
			{Role: relay.RoleSystem, Content: "be brief"},
			{Role: relay.RoleSystem, Content: "answer in English"},
			{Role: relay.RoleUser, Content: "hello"},
			{Role: relay.RoleAssistant, Content: "hi"},
		},
		MaxTokens: 512,
	}

	out := transformRequest(req)
	if out.System != "be brief\n\nanswer in English" {
		t.Errorf("System = %q", out.System)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("messages = %+v, want system turns removed", out.Messages)
	}
	if out.Messages[0].Role != "user" || out.Messages[1].Role != "assistant" {
		t.Errorf("messages = %+v", out.Messages)
	}
	if out.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", out.MaxTokens)
	}
}

func TestTransformRequestDefaultMaxTokens(t *testing.T) {
	out := transformRequest(&relay.Request{
		Model:    "claude-sonnet-4-20250514",
		Messages: []relay.Message{{Role: relay.RoleUser, Content: "hi"}},
	})
	if out.MaxTokens != defaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", out.MaxTokens, defaultMaxTokens)
	}
}

func TestTransformResponse(t *testing.T) {
	resp := &Response{
		ID:    "msg_01",
		Model: "claude-sonnet-4-20250514",
		Content: []ContentBlock{
			{Type: "text", Text: "part one"},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: " part two"},
		},
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: 9, OutputTokens: 4},
	}

	got, err := transformResponse(resp)
	if err != nil {
		t.Fatalf("transformResponse() error = %v", err)
	}
	if got.Content != "part one part two" {
		t.Errorf("Content = %q", got.Content)
	}
	if got.FinishReason != relay.FinishReasonStop {
		t.Errorf("FinishReason = %q", got.FinishReason)
	}
	if got.Usage.TotalTokens != 13 {
		t.Errorf("TotalTokens = %d, want 13", got.Usage.TotalTokens)
	}
}

func TestTransformResponseEmpty(t *testing.T) {
	if _, err := transformResponse(&Response{ID: "msg_02"}); err == nil {
		t.Fatal("transformResponse() error = nil, want failure for empty content")
	}
}

func TestNormalizeStopReason(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"end_turn", relay.FinishReasonStop},
		{"stop_sequence", relay.FinishReasonStop},
		{"max_tokens", relay.FinishReasonLength},
		{"", ""},
		{"tool_use", "tool_use"},
	}
	for _, tt := range tests {
		if got := normalizeStopReason(tt.in); got != tt.want {
			t.Errorf("normalizeStopReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
