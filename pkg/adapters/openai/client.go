// Package openai implements the provider adapter for the OpenAI chat
// completions API. It is also embedded by the generic adapter, which
// speaks the same wire format against OpenAI-compatible endpoints.
package openai

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/relay"
)

// Adapter is the OpenAI provider adapter.
type Adapter struct {
	client *adapters.HTTPClient
}

// New creates an OpenAI adapter for one channel.
func New(config adapters.Config) (adapters.Adapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	return &Adapter{client: adapters.NewHTTPClient(config)}, nil
}

// DescriptorID implements adapters.Adapter.
func (a *Adapter) DescriptorID() string {
	return a.client.Config().DescriptorID
}

func (a *Adapter) headers() map[string]string {
	cfg := a.client.Config()
	h := map[string]string{
		"Content-Type": "application/json",
	}
	// Credential presence is enforced by the provider descriptor at
	// registration; generic upstreams may legitimately run keyless.
	if key := cfg.Credentials["api_key"]; key != "" {
		h["Authorization"] = "Bearer " + key
	}
	if org := cfg.Credentials["organization"]; org != "" {
		h["OpenAI-Organization"] = org
	}
	return h
}

func (a *Adapter) endpoint(path string) string {
	return strings.TrimSuffix(a.client.Config().BaseURL, "/") + path
}

// Complete implements adapters.Adapter.
func (a *Adapter) Complete(ctx context.Context, req *relay.Request) (*relay.Response, error) {
	ctx, cancel := a.client.WithTimeout(ctx)
	defer cancel()

	nativeReq := transformRequest(req)
	nativeReq.Stream = false

	var nativeResp Response
	if err := a.client.DoJSON(ctx, "POST", a.endpoint("/chat/completions"), nativeReq, &nativeResp, a.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&nativeResp)
	if err != nil {
		return nil, &adapters.UpstreamError{
			Provider: a.DescriptorID(),
			Body:     err.Error(),
		}
	}

	slog.Debug("completion request succeeded",
		"provider", a.DescriptorID(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// Stream implements adapters.Adapter. The returned channel is bounded;
// the upstream reader blocks when the consumer falls behind, and exits
// when the context is cancelled.
func (a *Adapter) Stream(ctx context.Context, req *relay.Request) (<-chan *relay.Chunk, error) {
	nativeReq := transformRequest(req)
	nativeReq.Stream = true

	headers := a.headers()
	headers["Accept"] = "text/event-stream"

	// The per-attempt timeout covers the open and the wait for the
	// first chunk; an established stream runs on the caller's context.
	streamCtx, fbt := a.client.WithFirstByteTimeout(ctx)

	stream, err := newStreamReader(streamCtx, a.client, a.endpoint("/chat/completions"), nativeReq, headers)
	if err != nil {
		fbt.Cancel()
		return nil, fbt.Err(err)
	}

	chunks := make(chan *relay.Chunk, adapters.StreamBuffer)
	go func() {
		defer close(chunks)
		defer stream.Close()
		defer fbt.Cancel()

		for {
			chunk, err := stream.Read(streamCtx)
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					// Consumer cancelled; nobody is listening.
					return
				}
				select {
				case chunks <- &relay.Chunk{Err: fbt.Err(err)}:
				case <-ctx.Done():
				}
				return
			}
			fbt.Release()

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}

			if chunk.FinishReason != "" {
				return
			}
		}
	}()

	return chunks, nil
}

// Probe implements adapters.Adapter. It lists models, which validates
// the credential without consuming completion quota.
func (a *Adapter) Probe(ctx context.Context) error {
	ctx, cancel := a.client.WithTimeout(ctx)
	defer cancel()

	started := time.Now()
	resp, err := a.client.Do(ctx, "GET", a.endpoint("/models"), nil, a.headers())
	if err != nil {
		return err
	}
	resp.Body.Close()

	slog.Debug("probe succeeded",
		"provider", a.DescriptorID(),
		"channel", a.client.Config().ChannelID,
		"latency", time.Since(started),
	)
	return nil
}
