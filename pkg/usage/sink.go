// Package usage reports token and cost counters to the billing sink
// after each successful dispatch. Reporting is fire-and-forget: the
// sink's unavailability never fails a request.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"conduit-hq/conduit/pkg/relay"
)

// Record is one billable request outcome.
type Record struct {
	// RequestID correlates the record with logs
	RequestID string `json:"request_id"`

	// TenantID is the billed tenant
	TenantID string `json:"tenant_id"`

	// ChannelID is the channel that served the request
	ChannelID string `json:"channel_id"`

	// Provider is the descriptor id of the upstream
	Provider string `json:"provider"`

	// Model is the requested model
	Model string `json:"model"`

	// Usage is the token accounting, estimated when the upstream
	// omitted it
	Usage relay.Usage `json:"usage"`

	// Estimated marks usage counters derived locally, not reported by
	// the upstream
	Estimated bool `json:"estimated"`

	// Cost is the computed USD cost
	Cost float64 `json:"cost"`

	// Latency is the end-to-end request duration
	Latency time.Duration `json:"latency"`

	// At is when the request completed
	At time.Time `json:"at"`
}

// Sink receives usage records.
type Sink interface {
	Report(ctx context.Context, rec *Record) error
}

// LogSink writes usage records to the structured log. It stands in
// where no external billing endpoint is configured.
type LogSink struct{}

// Report implements Sink.
func (LogSink) Report(_ context.Context, rec *Record) error {
	slog.Info("usage",
		"request_id", rec.RequestID,
		"tenant", rec.TenantID,
		"channel", rec.ChannelID,
		"provider", rec.Provider,
		"model", rec.Model,
		"prompt_tokens", rec.Usage.PromptTokens,
		"completion_tokens", rec.Usage.CompletionTokens,
		"estimated", rec.Estimated,
		"cost", rec.Cost,
		"latency", rec.Latency,
	)
	return nil
}

// AsyncSink decouples the request path from the sink behind a bounded
// queue. When the queue is full records are dropped and counted; the
// caller never blocks.
type AsyncSink struct {
	sink    Sink
	queue   chan *Record
	dropped atomic.Int64
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
	done    chan struct{}
}

// NewAsyncSink wraps a sink with a bounded queue and a worker
// goroutine. queueSize defaults to 1024.
func NewAsyncSink(sink Sink, queueSize int) *AsyncSink {
	if queueSize <= 0 {
		queueSize = 1024
	}
	s := &AsyncSink{
		sink:   sink,
		queue:  make(chan *Record, queueSize),
		logger: slog.Default().With("component", "usage.sink"),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.queue:
			if err := s.sink.Report(context.Background(), rec); err != nil {
				s.logger.Warn("usage report failed", "request_id", rec.RequestID, "error", err)
			}
		case <-s.done:
			// Drain what is already queued, then exit.
			for {
				select {
				case rec := <-s.queue:
					if err := s.sink.Report(context.Background(), rec); err != nil {
						s.logger.Warn("usage report failed", "request_id", rec.RequestID, "error", err)
					}
				default:
					return
				}
			}
		}
	}
}

// Report enqueues a record without blocking. A full queue drops the
// record and increments the drop counter.
func (s *AsyncSink) Report(_ context.Context, rec *Record) error {
	select {
	case s.queue <- rec:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Dropped returns how many records were lost to a full queue.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops the worker after draining the queue.
func (s *AsyncSink) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}
