package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/relay"
)

// streamReader reads Server-Sent Events from OpenAI's streaming API.
type streamReader struct {
	client *adapters.HTTPClient
	body   io.ReadCloser
	sc     *bufio.Scanner
	closed bool
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
// It returns nil, io.EOF when the stream ends normally; content-free
// frames are skipped internally.
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
			// Skip blank separators, comments, and event-type lines.
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var frame StreamResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return nil, &adapters.UpstreamError{
				Provider: s.client.Config().DescriptorID,
				Body:     fmt.Sprintf("unparseable stream frame: %v", err),
			}
		}

		chunk, err := transformStreamChunk(&frame)
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		return chunk, nil
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
