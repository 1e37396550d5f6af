// Package proxy is the request path: the dispatcher that drives
// selection, upstream calls, and failover, plus the HTTP surface in its
// subpackages.
package proxy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/catalog"
	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/limits/ratelimit"
	"conduit-hq/conduit/pkg/registry"
	"conduit-hq/conduit/pkg/relay"
	"conduit-hq/conduit/pkg/routing"
	"conduit-hq/conduit/pkg/telemetry/metrics"
	"conduit-hq/conduit/pkg/usage"
)

// DefaultMaxFailovers is how many backup channels a failed dispatch may
// try after the primary. Overridable via DispatcherConfig.
const DefaultMaxFailovers = 2

// DispatcherConfig tunes the dispatch state machine.
type DispatcherConfig struct {
	// MaxFailovers is the backup attempt budget per request.
	// Default: DefaultMaxFailovers.
	MaxFailovers int
}

// Dispatcher orchestrates each request: select a channel, call the
// upstream through its adapter, classify failures, and fail over to
// backups while the retry budget and error kind allow it. Callers see
// either a response (or stream) or one final classified error.
type Dispatcher struct {
	selector *routing.Selector
	registry *registry.Registry
	catalog  *catalog.Store
	book     *health.Book
	limiter  *ratelimit.ChannelLimiter
	sink     usage.Sink
	pricing  *usage.Pricing
	metrics  *metrics.Collector
	logger   *slog.Logger

	maxFailovers int
}

// NewDispatcher creates the request dispatcher. sink, pricing, and
// collector may be nil to disable usage reporting and metrics.
func NewDispatcher(
	sel *routing.Selector,
	reg *registry.Registry,
	cat *catalog.Store,
	book *health.Book,
	limiter *ratelimit.ChannelLimiter,
	sink usage.Sink,
	pricing *usage.Pricing,
	collector *metrics.Collector,
	config *DispatcherConfig,
) *Dispatcher {
	maxFailovers := DefaultMaxFailovers
	if config != nil && config.MaxFailovers >= 0 {
		maxFailovers = config.MaxFailovers
	}
	return &Dispatcher{
		selector:     sel,
		registry:     reg,
		catalog:      cat,
		book:         book,
		limiter:      limiter,
		sink:         sink,
		pricing:      pricing,
		metrics:      collector,
		logger:       slog.Default().With("component", "proxy.dispatcher"),
		maxFailovers: maxFailovers,
	}
}

// Dispatch serves a non-streaming request. The state machine is
// SELECT → DISPATCH → {SUCCESS | RETRY | EXHAUSTED}: retryable failures
// move on to the next backup until the budget runs out, any other kind
// surfaces immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID string, req *relay.Request) (*relay.Response, error) {
	requestID := requestIDFrom(req)

	ch, err := d.selector.Select(ctx, req.Model, tenantID)
	if err != nil {
		return nil, err
	}

	attempted := map[string]bool{}
	var lastErr *relay.Error

	for attempt := 0; ; attempt++ {
		attempted[ch.ID] = true

		resp, rerr := d.attempt(ctx, ch, req, requestID)
		if rerr == nil {
			d.reportUsage(ctx, tenantID, ch, req, requestID, resp)
			return resp, nil
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
		d.logger.Debug("failing over",
			"request_id", requestID,
			"channel", ch.ID,
			"attempt", attempt+1,
			"kind", rerr.Kind,
		)
	}

	return nil, lastErr
}

// attempt makes one upstream call against the channel and applies its
// outcome to the channel's metrics exactly once. A locally rate-capped
// attempt classifies as rate_limit without touching metrics — the
// channel did nothing.
func (d *Dispatcher) attempt(ctx context.Context, ch *registry.Channel, req *relay.Request, requestID string) (*relay.Response, *relay.Error) {
	if d.limiter != nil && !d.limiter.Allow(ch.ID, ch.MaxRPM) {
		return nil, relay.NewError(relay.KindRateLimit, ch.DescriptorID, "channel request rate cap reached")
	}

	adapter, err := d.registry.AdapterFor(ctx, ch)
	if err != nil {
		return nil, d.localFault(ctx, ch, err, requestID)
	}

	started := time.Now()
	resp, err := adapter.Complete(ctx, req)
	latency := time.Since(started)
	if err != nil {
		return nil, d.fail(ctx, ch, err, latency, requestID)
	}

	d.succeed(ctx, ch, latency, req.Model)
	return resp, nil
}

// fail classifies the error, records the failed attempt against the
// channel, and returns the classified error.
func (d *Dispatcher) fail(ctx context.Context, ch *registry.Channel, err error, latency time.Duration, requestID string) *relay.Error {
	desc, _ := d.catalog.Get(ch.DescriptorID)
	classified := adapters.Classify(desc, err)

	d.book.Record(ch.ID, health.Outcome{OK: false, Latency: latency, At: time.Now()})
	d.registry.RecordDispatch(ctx, ch.ID, false, classified.Kind, latency, classified.Message)
	if d.metrics != nil {
		d.metrics.RecordChannelError(ch.ID, ch.DescriptorID, string(classified.Kind))
	}

	d.logger.Warn("dispatch attempt failed",
		"request_id", requestID,
		"channel", ch.ID,
		"provider", ch.DescriptorID,
		"kind", classified.Kind,
		"error", classified.Message,
	)
	return classified
}

// localFault covers failures before the upstream was contacted, vault
// or adapter construction faults. The event is recorded for operators,
// but the channel's health stays untouched: the upstream did nothing.
func (d *Dispatcher) localFault(ctx context.Context, ch *registry.Channel, err error, requestID string) *relay.Error {
	desc, _ := d.catalog.Get(ch.DescriptorID)
	classified := adapters.Classify(desc, err)

	d.registry.RecordDispatch(ctx, ch.ID, false, classified.Kind, 0, classified.Message)

	d.logger.Error("channel unusable",
		"request_id", requestID,
		"channel", ch.ID,
		"provider", ch.DescriptorID,
		"error", classified.Message,
	)
	return classified
}

func (d *Dispatcher) succeed(ctx context.Context, ch *registry.Channel, latency time.Duration, model string) {
	d.book.Record(ch.ID, health.Outcome{OK: true, Latency: latency, At: time.Now()})
	d.registry.RecordDispatch(ctx, ch.ID, true, "", latency, "")
	if d.metrics != nil {
		d.metrics.RecordRequest(ch.DescriptorID, model, "success", latency)
	}
}

func (d *Dispatcher) reportUsage(ctx context.Context, tenantID string, ch *registry.Channel, req *relay.Request, requestID string, resp *relay.Response) {
	if d.sink == nil {
		return
	}

	u, estimated := usage.EstimateUsage(req, resp.Content, resp.Usage)
	var cost float64
	if d.pricing != nil {
		cost = d.pricing.Cost(req.Model, u.PromptTokens, u.CompletionTokens)
	}
	if d.metrics != nil {
		d.metrics.RecordTokens(ch.DescriptorID, req.Model, u.PromptTokens, u.CompletionTokens)
	}

	// Fire-and-forget; AsyncSink never blocks and never errors.
	d.sink.Report(ctx, &usage.Record{
		RequestID: requestID,
		TenantID:  tenantID,
		ChannelID: ch.ID,
		Provider:  ch.DescriptorID,
		Model:     req.Model,
		Usage:     u,
		Estimated: estimated,
		Cost:      cost,
		At:        time.Now().UTC(),
	})
}

func requestIDFrom(req *relay.Request) string {
	if id := req.Metadata["request_id"]; id != "" {
		return id
	}
	return uuid.NewString()
}
