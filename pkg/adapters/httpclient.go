package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// UpstreamError is a non-2xx response from the upstream. It preserves
// the status code and raw body for the classifier.
type UpstreamError struct {
	// Provider is the descriptor id of the upstream
	Provider string

	// Status is the HTTP status code
	Status int

	// Body is the raw error response body
	Body string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("provider %q returned status %d: %s", e.Provider, e.Status, e.Body)
}

// TransportError is a network-level failure: dial errors, resets,
// unexpected connection closure.
type TransportError struct {
	Provider string
	Cause    error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %q transport error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// TimeoutError is a request that exceeded its deadline.
type TimeoutError struct {
	Provider string
	Timeout  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// HTTPClient is the shared HTTP plumbing embedded by the concrete
// adapters. It provides connection pooling, timeout handling, and typed
// error mapping. It makes exactly one attempt per call; the dispatcher
// owns retries.
type HTTPClient struct {
	config Config
	client *http.Client
}

// NewHTTPClient creates the shared client for one channel's upstream.
func NewHTTPClient(config Config) *HTTPClient {
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPClient{
		config: config,
		client: &http.Client{Transport: transport},
	}
}

// Config returns the adapter configuration.
func (c *HTTPClient) Config() Config {
	return c.config
}

// WithTimeout derives a context bounded by the configured per-attempt
// timeout. Non-streaming calls and probes wrap their context with this;
// streaming calls use WithFirstByteTimeout instead, since a healthy
// stream may legitimately outlive the per-attempt bound once the first
// byte has arrived.
func (c *HTTPClient) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

// FirstByteTimeout bounds a streaming attempt with the per-attempt
// timeout only until its first chunk arrives. The caller calls Release
// on the first chunk to stop the clock; from then on the stream runs on
// the parent context alone. If the clock runs out first, the derived
// context is cancelled and Err rewrites the resulting failure into a
// TimeoutError so it classifies like any other expired attempt.
type FirstByteTimeout struct {
	provider string
	timeout  time.Duration
	cancel   context.CancelFunc
	timer    *time.Timer
	expired  atomic.Bool
}

// WithFirstByteTimeout derives the request context for a streaming
// call and arms the first-byte clock. Cancel must be called when the
// stream ends to release the derived context.
func (c *HTTPClient) WithFirstByteTimeout(ctx context.Context) (context.Context, *FirstByteTimeout) {
	ctx, cancel := context.WithCancel(ctx)
	f := &FirstByteTimeout{
		provider: c.config.DescriptorID,
		timeout:  c.config.Timeout,
		cancel:   cancel,
	}
	if c.config.Timeout > 0 {
		f.timer = time.AfterFunc(c.config.Timeout, func() {
			f.expired.Store(true)
			cancel()
		})
	}
	return ctx, f
}

// Release stops the first-byte clock.
func (f *FirstByteTimeout) Release() {
	if f.timer != nil {
		f.timer.Stop()
	}
}

// Cancel releases the derived context.
func (f *FirstByteTimeout) Cancel() {
	f.cancel()
}

// Expired reports whether the clock ran out before Release.
func (f *FirstByteTimeout) Expired() bool {
	return f.expired.Load()
}

// Err returns a TimeoutError when the clock expired, otherwise err
// unchanged.
func (f *FirstByteTimeout) Err(err error) error {
	if f.Expired() {
		return &TimeoutError{Provider: f.provider, Timeout: f.timeout}
	}
	return err
}

// Do performs a single HTTP request. Non-2xx responses become
// UpstreamError with the body drained, network failures become
// TransportError, and deadline expiry becomes TimeoutError.
func (c *HTTPClient) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("sending upstream request",
		"provider", c.config.DescriptorID,
		"channel", c.config.ChannelID,
		"method", method,
		"url", url,
	)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Provider: c.config.DescriptorID, Timeout: c.config.Timeout}
		}
		return nil, &TransportError{Provider: c.config.DescriptorID, Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()

	return nil, &UpstreamError{
		Provider: c.config.DescriptorID,
		Status:   resp.StatusCode,
		Body:     string(errorBody),
	}
}

// DoJSON performs a JSON request and decodes the response into respBody.
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.Do(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Provider: c.config.DescriptorID, Cause: fmt.Errorf("read response: %w", err)}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &UpstreamError{
				Provider: c.config.DescriptorID,
				Status:   resp.StatusCode,
				Body:     fmt.Sprintf("unparseable response: %v", err),
			}
		}
	}
	return nil
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}
