// Package adapters contains the provider adapters that translate between
// the unified request/response shapes and each vendor's native wire
// format, plus the classifier that maps native failures into the unified
// error taxonomy.
//
// Adapters form a closed, compile-time-enumerated set registered into a
// dispatch table keyed by descriptor id. Adding a vendor means adding one
// adapter package and one registration; nothing else changes.
package adapters

import (
	"context"
	"time"

	"conduit-hq/conduit/pkg/relay"
)

// StreamBuffer is the capacity of the bounded chunk pipe between an
// adapter's upstream reader and the consumer. When the consumer is
// slower than the upstream, the reader blocks on the full pipe rather
// than buffering unboundedly.
const StreamBuffer = 16

// Adapter is the capability interface every provider adapter implements.
//
// All methods accept a context for cancellation and timeout control and
// must return promptly when the context is cancelled. An adapter makes
// exactly one upstream attempt per call; failover and retry decisions
// belong to the dispatcher.
type Adapter interface {
	// Complete sends a non-streaming completion request and returns the
	// normalized response.
	Complete(ctx context.Context, req *relay.Request) (*relay.Response, error)

	// Stream sends a streaming completion request. It returns a bounded
	// channel of chunks; the channel is closed when the stream ends. If
	// the stream fails mid-flight the final chunk carries Err.
	Stream(ctx context.Context, req *relay.Request) (<-chan *relay.Chunk, error)

	// Probe performs one lightweight credential-validation call against
	// the upstream. A nil error means the credentials were accepted.
	Probe(ctx context.Context) error

	// DescriptorID returns the catalog descriptor id this adapter serves.
	DescriptorID() string
}

// Config carries everything an adapter needs to talk to one concrete
// channel's upstream. It is assembled by the registry from the channel
// record and the opened credential blob.
type Config struct {
	// DescriptorID selects the adapter implementation
	DescriptorID string

	// ChannelID identifies the channel, for logging only
	ChannelID string

	// BaseURL is the endpoint, already defaulted from the descriptor
	BaseURL string

	// Credentials is the opened credential field map
	Credentials map[string]string

	// Timeout bounds each upstream call
	Timeout time.Duration

	// MaxIdleConns and MaxIdleConnsPerHost tune the connection pool
	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains pooled
	IdleConnTimeout time.Duration
}
