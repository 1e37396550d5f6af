package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig controls pruning of the channel event history.
type RetentionConfig struct {
	// Window is how long events are kept. Default: 7 days.
	Window time.Duration

	// Schedule is the cron expression for prune runs. Empty disables
	// scheduled pruning. Default: "0 3 * * *" (daily at 3 AM).
	Schedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		Window:   7 * 24 * time.Hour,
		Schedule: "0 3 * * *",
	}
}

// Retention prunes old channel events on a cron schedule.
type Retention struct {
	store   *Store
	config  *RetentionConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewRetention creates the event history pruner.
func NewRetention(store *Store, config *RetentionConfig) *Retention {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	return &Retention{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "registry.retention"),
	}
}

// Start begins scheduled pruning. If no schedule is configured the
// scheduler does nothing.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Schedule == "" {
		r.logger.Info("prune schedule not configured, skipping retention")
		return nil
	}

	if _, err := cron.ParseStandard(r.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.config.Schedule, err)
	}

	if _, err := r.cron.AddFunc(r.config.Schedule, func() {
		r.runPrune(ctx)
	}); err != nil {
		return fmt.Errorf("schedule event pruning: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("event retention started",
		"schedule", r.config.Schedule,
		"window", r.config.Window,
	)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Prune removes events older than the retention window.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.config.Window)
	return r.store.PruneEvents(ctx, cutoff)
}

func (r *Retention) runPrune(ctx context.Context) {
	deleted, err := r.Prune(ctx)
	if err != nil {
		r.logger.Error("scheduled event pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("scheduled event pruning completed", "deleted_count", deleted)
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.running = false
	r.logger.Info("event retention stopped")
}
