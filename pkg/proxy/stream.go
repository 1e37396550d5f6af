package proxy

import (
	"context"
	"strings"
	"time"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/relay"
)

// DispatchStream serves a streaming request. Failover follows the same
// budget and kind rules as Dispatch, but only until the first chunk has
// been delivered: once the client has seen partial content the stream
// is committed, and a later failure fails the stream outright.
func (d *Dispatcher) DispatchStream(ctx context.Context, tenantID string, req *relay.Request) (<-chan *relay.Chunk, error) {
	requestID := requestIDFrom(req)

	ch, err := d.selector.Select(ctx, req.Model, tenantID)
	if err != nil {
		return nil, err
	}

	attempted := map[string]bool{}
	var lastErr *relay.Error

	for attempt := 0; ; attempt++ {
		attempted[ch.ID] = true

		out, rerr := d.attemptStream(ctx, tenantID, ch, req, requestID)
		if rerr == nil {
			return out, nil
		}
		lastErr = rerr

		if !rerr.Kind.Retryable() {
			return nil, rerr
		}
		if attempt >= d.maxFailovers {
			break
		}

		backups, berr := d.selector.Backups(ctx, req.Model, tenantID, attempted, d.maxFailovers-attempt)
		if berr != nil || len(backups) == 0 {
			break
		}
		ch = backups[0]
		if d.metrics != nil {
			d.metrics.RecordFailover()
		}
		d.logger.Debug("failing over stream",
			"request_id", requestID,
			"channel", ch.ID,
			"attempt", attempt+1,
			"kind", rerr.Kind,
		)
	}

	return nil, lastErr
}

// attemptStream opens the upstream stream and waits for its first
// chunk. Failures up to that point are retry-eligible; after the first
// chunk the stream is handed to a forwarder and committed.
func (d *Dispatcher) attemptStream(ctx context.Context, tenantID string, ch *registry.Channel, req *relay.Request, requestID string) (<-chan *relay.Chunk, *relay.Error) {
	if d.limiter != nil && !d.limiter.Allow(ch.ID, ch.MaxRPM) {
		return nil, relay.NewError(relay.KindRateLimit, ch.DescriptorID, "channel request rate cap reached")
	}

	adapter, err := d.registry.AdapterFor(ctx, ch)
	if err != nil {
		return nil, d.localFault(ctx, ch, err, requestID)
	}

	started := time.Now()
	chunks, err := adapter.Stream(ctx, req)
	if err != nil {
		return nil, d.fail(ctx, ch, err, time.Since(started), requestID)
	}

	// Wait for the first chunk before committing to this channel.
	select {
	case <-ctx.Done():
		// Client gave up before any content; nothing to record.
		return nil, relay.NewError(relay.KindConnection, ch.DescriptorID, ctx.Err().Error())
	case first, ok := <-chunks:
		if !ok {
			return nil, d.fail(ctx, ch, &adapters.UpstreamError{Provider: ch.DescriptorID, Body: "stream ended before any content"}, time.Since(started), requestID)
		}
		if first.Err != nil {
			return nil, d.fail(ctx, ch, first.Err, time.Since(started), requestID)
		}

		firstByte := time.Since(started)
		out := make(chan *relay.Chunk, adapters.StreamBuffer)
		go d.forward(ctx, tenantID, ch, req, requestID, first, chunks, out, firstByte)
		return out, nil
	}
}

// forward relays chunks to the consumer, then settles the attempt: a
// drained stream records one success and reports usage, an upstream
// error records one failure, and a client cancellation records neither.
func (d *Dispatcher) forward(ctx context.Context, tenantID string, ch *registry.Channel, req *relay.Request, requestID string, first *relay.Chunk, in <-chan *relay.Chunk, out chan<- *relay.Chunk, firstByte time.Duration) {
	defer close(out)

	var content strings.Builder
	var finalUsage relay.Usage
	finished := false

	deliver := func(chunk *relay.Chunk) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	handle := func(chunk *relay.Chunk) bool {
		if chunk.Err != nil {
			d.fail(ctx, ch, chunk.Err, firstByte, requestID)
			deliver(chunk)
			return false
		}
		content.WriteString(chunk.Delta)
		if chunk.Usage != nil {
			finalUsage = *chunk.Usage
		}
		if !deliver(chunk) {
			return false
		}
		if chunk.FinishReason != "" {
			finished = true
		}
		return true
	}

	if !handle(first) {
		return
	}

	for chunk := range in {
		if !handle(chunk) {
			return
		}
	}

	if !finished {
		if ctx.Err() != nil {
			// Client disconnected mid-stream; the channel did nothing
			// wrong, so neither success nor failure is recorded.
			return
		}
		d.fail(ctx, ch, &adapters.UpstreamError{Provider: ch.DescriptorID, Body: "stream ended without completion"}, firstByte, requestID)
		return
	}

	d.succeed(ctx, ch, firstByte, req.Model)
	d.reportUsage(ctx, tenantID, ch, req, requestID, &relay.Response{
		Model:   req.Model,
		Content: content.String(),
		Usage:   finalUsage,
	})
}
