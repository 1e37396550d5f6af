// Package relaytest contains shared test doubles for dispatch and
// adapter tests: a scriptable adapter and fake upstream HTTP servers.
package relaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"conduit-hq/conduit/pkg/relay"
)

// Outcome is one scripted result for a Complete call.
type Outcome struct {
	Resp  *relay.Response
	Err   error
	Delay time.Duration
}

// StreamOutcome is one scripted result for a Stream call. OpenErr
// fails the call before any chunk; otherwise Chunks are emitted in
// order and the channel closes.
type StreamOutcome struct {
	OpenErr error
	Chunks  []*relay.Chunk
}

// MockAdapter is a scriptable adapter. Each call consumes the next
// scripted outcome; the last outcome repeats once the script runs out.
// An unscripted adapter succeeds with a canned response.
type MockAdapter struct {
	ID string

	mu             sync.Mutex
	outcomes       []Outcome
	streamOutcomes []StreamOutcome
	probeErr       error

	CompleteCalls int
	StreamCalls   int
	ProbeCalls    int
}

// NewMockAdapter creates an adapter that reports the given descriptor id.
func NewMockAdapter(descriptorID string) *MockAdapter {
	return &MockAdapter{ID: descriptorID}
}

// Script appends outcomes for subsequent Complete calls.
func (m *MockAdapter) Script(outcomes ...Outcome) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcomes...)
	return m
}

// ScriptStream appends outcomes for subsequent Stream calls.
func (m *MockAdapter) ScriptStream(outcomes ...StreamOutcome) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamOutcomes = append(m.streamOutcomes, outcomes...)
	return m
}

// FailProbe makes Probe return err.
func (m *MockAdapter) FailProbe(err error) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeErr = err
	return m
}

// Complete implements adapters.Adapter.
func (m *MockAdapter) Complete(ctx context.Context, req *relay.Request) (*relay.Response, error) {
	m.mu.Lock()
	idx := m.CompleteCalls
	m.CompleteCalls++
	if idx >= len(m.outcomes) {
		idx = len(m.outcomes) - 1
	}
	var out Outcome
	if idx >= 0 {
		out = m.outcomes[idx]
	}
	m.mu.Unlock()

	if out.Delay > 0 {
		select {
		case <-time.After(out.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if out.Err != nil {
		return nil, out.Err
	}
	if out.Resp != nil {
		return out.Resp, nil
	}
	return TextResponse(req.Model, "mock response"), nil
}

// Stream implements adapters.Adapter.
func (m *MockAdapter) Stream(ctx context.Context, req *relay.Request) (<-chan *relay.Chunk, error) {
	m.mu.Lock()
	idx := m.StreamCalls
	m.StreamCalls++
	if idx >= len(m.streamOutcomes) {
		idx = len(m.streamOutcomes) - 1
	}
	var out StreamOutcome
	if idx >= 0 {
		out = m.streamOutcomes[idx]
	} else {
		out = StreamOutcome{Chunks: TextChunks(req.Model, "mock", " response")}
	}
	m.mu.Unlock()

	if out.OpenErr != nil {
		return nil, out.OpenErr
	}

	chunks := make(chan *relay.Chunk, len(out.Chunks))
	go func() {
		defer close(chunks)
		for _, c := range out.Chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return chunks, nil
}

// Probe implements adapters.Adapter.
func (m *MockAdapter) Probe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbeCalls++
	return m.probeErr
}

// DescriptorID implements adapters.Adapter.
func (m *MockAdapter) DescriptorID() string {
	if m.ID == "" {
		return "mock"
	}
	return m.ID
}

// TextResponse builds a minimal successful response.
func TextResponse(model, content string) *relay.Response {
	return &relay.Response{
		ID:           fmt.Sprintf("resp-%d", time.Now().UnixNano()),
		Model:        model,
		Content:      content,
		FinishReason: relay.FinishReasonStop,
		Usage: relay.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}
}

// TextChunks builds a chunk sequence delivering the given content
// pieces followed by a final chunk carrying the finish reason and
// usage totals.
func TextChunks(model string, pieces ...string) []*relay.Chunk {
	chunks := make([]*relay.Chunk, 0, len(pieces)+1)
	for _, p := range pieces {
		chunks = append(chunks, &relay.Chunk{Model: model, Delta: p})
	}
	chunks = append(chunks, &relay.Chunk{
		Model:        model,
		FinishReason: relay.FinishReasonStop,
		Usage: &relay.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	})
	return chunks
}
