// Package metrics exposes the router's Prometheus metrics: request
// outcomes on one side, channel health on the other.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "conduit"
	subsystem = "router"
)

// Collector registers and records all router metrics.
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	failoversTotal  prometheus.Counter

	// Channel metrics
	channelHealthy  *prometheus.GaugeVec
	probeDuration   *prometheus.HistogramVec
	channelErrors   *prometheus.CounterVec
	usageDropsTotal prometheus.Counter
}

// NewCollector creates the metrics collector. If registry is nil a
// fresh one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Completed requests by provider, model, and outcome.",
		}, []string{"provider", "model", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration.",
			// Optimized for LLM request latencies (100ms - 30s)
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}, []string{"provider", "model"}),

		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_total",
			Help:      "Tokens consumed by provider, model, and direction.",
		}, []string{"provider", "model", "direction"}),

		failoversTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failovers_total",
			Help:      "Dispatch attempts retried on a backup channel.",
		}),

		channelHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channel_healthy",
			Help:      "Whether the channel is currently eligible for routing (1/0).",
		}, []string{"channel", "provider"}),

		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "probe_duration_seconds",
			Help:      "Health probe round-trip time.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"channel", "provider"}),

		channelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "channel_errors_total",
			Help:      "Classified channel failures by error kind.",
		}, []string{"channel", "provider", "kind"}),

		usageDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "usage_drops_total",
			Help:      "Usage reports dropped because the sink queue was full.",
		}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.failoversTotal,
		c.channelHealthy,
		c.probeDuration,
		c.channelErrors,
		c.usageDropsTotal,
	)
	return c
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(provider, model, status).Inc()
	c.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token consumption for one request.
func (c *Collector) RecordTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}

// RecordFailover counts one retry on a backup channel.
func (c *Collector) RecordFailover() {
	c.failoversTotal.Inc()
}

// SetChannelHealthy publishes a channel's current eligibility.
func (c *Collector) SetChannelHealthy(channelID, provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	c.channelHealthy.WithLabelValues(channelID, provider).Set(v)
}

// RecordProbe records one health probe round trip.
func (c *Collector) RecordProbe(channelID, provider string, duration time.Duration) {
	c.probeDuration.WithLabelValues(channelID, provider).Observe(duration.Seconds())
}

// RecordChannelError counts one classified channel failure.
func (c *Collector) RecordChannelError(channelID, provider, kind string) {
	c.channelErrors.WithLabelValues(channelID, provider, kind).Inc()
}

// RecordUsageDrop counts one usage report dropped on a full queue.
func (c *Collector) RecordUsageDrop() {
	c.usageDropsTotal.Inc()
}

// Handler returns the /metrics HTTP handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
