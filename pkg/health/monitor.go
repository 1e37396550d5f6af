package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"conduit-hq/conduit/pkg/registry"
)

// MonitorConfig controls the background probe sweep.
type MonitorConfig struct {
	// Schedule is the cron expression for probe sweeps.
	// Default: "@every 60s".
	Schedule string

	// Concurrency caps how many probes run at once. Default: 8.
	Concurrency int

	// ProbeTimeout bounds each individual probe. Default: 10 seconds.
	ProbeTimeout time.Duration
}

// DefaultMonitorConfig returns the default monitor configuration.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Schedule:     "@every 60s",
		Concurrency:  8,
		ProbeTimeout: 10 * time.Second,
	}
}

// Monitor probes every active channel on a schedule and folds the
// outcomes into the book exactly as dispatched requests do. Probe
// failures never reach callers; they only affect future eligibility.
// The sweep exists to detect recovery and regression of idle channels
// — busy channels update on every real request.
type Monitor struct {
	registry *registry.Registry
	book     *Book
	config   *MonitorConfig
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewMonitor creates the health monitor.
func NewMonitor(reg *registry.Registry, book *Book, config *MonitorConfig) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	return &Monitor{
		registry: reg,
		book:     book,
		config:   config,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "health.monitor"),
	}
}

// Start begins the scheduled probe sweeps.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := cron.ParseStandard(m.config.Schedule); err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", m.config.Schedule, err)
	}

	if _, err := m.cron.AddFunc(m.config.Schedule, func() {
		m.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule probe sweep: %w", err)
	}

	m.cron.Start()
	m.running = true

	m.logger.Info("health monitor started",
		"schedule", m.config.Schedule,
		"concurrency", m.config.Concurrency,
	)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	return nil
}

// Sweep probes every active channel once, with bounded concurrency.
func (m *Monitor) Sweep(ctx context.Context) {
	channels, err := m.registry.ListActive(ctx)
	if err != nil {
		m.logger.Error("probe sweep failed to list channels", "error", err)
		return
	}
	if len(channels) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Concurrency)

	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			m.probeOne(gctx, ch)
			return nil
		})
	}
	g.Wait()

	m.logger.Debug("probe sweep completed", "channels", len(channels))
}

func (m *Monitor) probeOne(ctx context.Context, ch *registry.Channel) {
	ctx, cancel := context.WithTimeout(ctx, m.config.ProbeTimeout)
	defer cancel()

	result, err := m.registry.Probe(ctx, ch.ID)
	at := time.Now()
	if err != nil {
		// The channel was not reached at all; count the attempt as a
		// failure so eligibility reflects it.
		m.book.Record(ch.ID, Outcome{OK: false, At: at})
		m.logger.Warn("probe error", "channel", ch.ID, "error", err)
		return
	}

	m.book.Record(ch.ID, Outcome{OK: result.OK, Latency: result.Latency, At: at})
	if !result.OK {
		m.logger.Warn("probe failed",
			"channel", ch.ID,
			"provider", ch.DescriptorID,
			"message", result.Message,
		)
	}
}

// Stop stops the scheduler and waits for running probes to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.running = false
	m.logger.Info("health monitor stopped")
}
