package adapters

import (
	"context"
	"errors"
	"testing"

	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/relay"
)

func testDescriptor() *catalog.Descriptor {
	return &catalog.Descriptor{
		ID: "openai",
		ErrorRules: []catalog.ErrorRule{
			{Status: 429, MessageContains: "insufficient_quota", Kind: relay.KindQuotaExceeded},
			{Status: 401, Kind: relay.KindAuthentication},
			{Status: 429, Kind: relay.KindRateLimit},
			{Status: 500, Kind: relay.KindServerError},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want relay.ErrorKind
	}{
		{
			name: "timeout maps to connection",
			err:  &TimeoutError{Provider: "openai", Timeout: 0},
			want: relay.KindConnection,
		},
		{
			name: "transport failure maps to connection",
			err:  &TransportError{Provider: "openai", Cause: errors.New("dial tcp: refused")},
			want: relay.KindConnection,
		},
		{
			name: "upstream 401 via signature table",
			err:  &UpstreamError{Provider: "openai", Status: 401, Body: "bad key"},
			want: relay.KindAuthentication,
		},
		{
			name: "upstream quota message beats status rule",
			err:  &UpstreamError{Provider: "openai", Status: 429, Body: `{"code":"insufficient_quota"}`},
			want: relay.KindQuotaExceeded,
		},
		{
			name: "upstream 500",
			err:  &UpstreamError{Provider: "openai", Status: 500, Body: "oops"},
			want: relay.KindServerError,
		},
		{
			name: "bare deadline exceeded",
			err:  context.DeadlineExceeded,
			want: relay.KindConnection,
		},
		{
			name: "anything else is unknown",
			err:  errors.New("mystery"),
			want: relay.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(testDescriptor(), tt.err)
			if got == nil {
				t.Fatal("Classify() = nil for non-nil error")
			}
			if got.Kind != tt.want {
				t.Errorf("Classify() kind = %v, want %v", got.Kind, tt.want)
			}
			if got.Provider != "openai" {
				t.Errorf("Classify() provider = %q, want %q", got.Provider, "openai")
			}
		})
	}
}

func TestClassifyNilError(t *testing.T) {
	if got := Classify(testDescriptor(), nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
}

func TestClassifyPreservesUnifiedError(t *testing.T) {
	orig := relay.NewError(relay.KindRateLimit, "openai", "slow down")
	got := Classify(testDescriptor(), orig)
	if got != orig {
		t.Errorf("Classify() rewrapped an already classified error")
	}
}

func TestClassifyNilDescriptor(t *testing.T) {
	got := Classify(nil, &UpstreamError{Status: 500, Body: "oops"})
	if got.Kind != relay.KindUnknown {
		t.Errorf("Classify(nil descriptor) kind = %v, want unknown (no signature table)", got.Kind)
	}
}

func TestClassifyUpstreamPreservesStatus(t *testing.T) {
	got := Classify(testDescriptor(), &UpstreamError{Provider: "openai", Status: 429, Body: "limited"})
	if got.Status != 429 {
		t.Errorf("Classify() status = %d, want 429", got.Status)
	}
	if got.Message != "limited" {
		t.Errorf("Classify() message = %q, want native body preserved", got.Message)
	}
}
