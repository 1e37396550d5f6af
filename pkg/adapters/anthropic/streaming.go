package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/relay"
)

// streamReader reads Server-Sent Events from the Messages streaming API.
// Unlike OpenAI, Anthropic splits completion metadata across several
// event types, so the reader accumulates id, model, and usage as frames
// arrive and emits them on the final chunk.
type streamReader struct {
	client *adapters.HTTPClient
	body   io.ReadCloser
	sc     *bufio.Scanner
	closed bool

	// Accumulated across events within one stream.
	id    string
	model string
	usage relay.Usage
}

// newStreamReader opens the upstream SSE stream.
func newStreamReader(ctx context.Context, client *adapters.HTTPClient, url string, req *Request, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := client.Do(ctx, "POST", url, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		client: client,
		body:   resp.Body,
		sc:     bufio.NewScanner(resp.Body),
	}, nil
}

// Read returns the next user-visible chunk from the stream.
// It returns nil, io.EOF when the stream ends normally; bookkeeping
// events (message_start, ping, content_block_start/stop) are absorbed
// internally.
func (s *streamReader) Read(ctx context.Context) (*relay.Chunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return nil, &adapters.TransportError{
					Provider: s.client.Config().DescriptorID,
					Cause:    fmt.Errorf("read stream: %w", err),
				}
			}
			return nil, io.EOF
		}

		line := s.sc.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			// The event: lines are redundant with the type field
			// inside each data payload.
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			return nil, &adapters.UpstreamError{
				Provider: s.client.Config().DescriptorID,
				Body:     fmt.Sprintf("unparseable stream frame: %v", err),
			}
		}

		chunk, err := s.handleEvent(&event)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		return chunk, nil
	}
}

// handleEvent folds one stream event into the reader state, returning a
// chunk when the event carries user-visible output.
func (s *streamReader) handleEvent(event *StreamEvent) (*relay.Chunk, error) {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			s.id = event.Message.ID
			s.model = event.Message.Model
			s.usage.PromptTokens = event.Message.Usage.InputTokens
		}
		return nil, nil

	case "content_block_delta":
		if event.Delta == nil || event.Delta.Text == "" {
			return nil, nil
		}
		return &relay.Chunk{
			ID:      s.id,
			Model:   s.model,
			Delta:   event.Delta.Text,
			Created: time.Now().Unix(),
		}, nil

	case "message_delta":
		// Carries the stop reason and the final output token count.
		if event.Usage != nil {
			s.usage.CompletionTokens = event.Usage.OutputTokens
			s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens
		}
		if event.Delta == nil || event.Delta.StopReason == "" {
			return nil, nil
		}
		usage := s.usage
		return &relay.Chunk{
			ID:           s.id,
			Model:        s.model,
			FinishReason: normalizeStopReason(event.Delta.StopReason),
			Usage:        &usage,
			Created:      time.Now().Unix(),
		}, nil

	case "error":
		msg := "stream error"
		if event.ErrorPayload != nil {
			msg = event.ErrorPayload.Message
		}
		return nil, &adapters.UpstreamError{
			Provider: s.client.Config().DescriptorID,
			Body:     msg,
		}

	default:
		// ping, content_block_start, content_block_stop, message_stop.
		return nil, nil
	}
}

// Close closes the stream and releases the connection.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
