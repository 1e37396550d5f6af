package routing

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"conduit-hq/conduit/pkg/health"
	"conduit-hq/conduit/pkg/registry"
)

// Config contains selector configuration.
type Config struct {
	// Cooldown is the health cooldown window after an error.
	// Default: health.DefaultCooldown.
	Cooldown time.Duration
}

// Selector picks healthy channels for dispatch: a weighted random
// choice for the primary, priority order for failover backups.
type Selector struct {
	registry *registry.Registry
	book     *health.Book
	stats    *Stats
	cooldown time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSelector creates a channel selector.
func NewSelector(reg *registry.Registry, book *health.Book, config *Config) *Selector {
	cooldown := health.DefaultCooldown
	if config != nil && config.Cooldown > 0 {
		cooldown = config.Cooldown
	}
	return &Selector{
		registry: reg,
		book:     book,
		stats:    NewStats(),
		cooldown: cooldown,
		logger:   slog.Default().With("component", "routing.selector"),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Stats returns the live selection statistics.
func (s *Selector) Stats() *Stats {
	return s.stats
}

// healthyCandidates fetches the tenant's channels for the model and
// drops the ones currently ineligible.
func (s *Selector) healthyCandidates(ctx context.Context, model, tenantID string) ([]*registry.Channel, int, error) {
	candidates, err := s.registry.ListForModel(ctx, model, tenantID)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	healthy := candidates[:0:0]
	for _, ch := range candidates {
		if health.Eligible(ch.Status == registry.StatusActive, s.book.Get(ch.ID), now, s.cooldown) {
			healthy = append(healthy, ch)
		}
	}
	s.stats.RecordUnhealthyFiltered(len(candidates) - len(healthy))
	return healthy, len(candidates), nil
}

// Select returns the channel to try first for the request. Among
// multiple healthy candidates it performs a weighted random pick scaled
// by demonstrated latency and success rate, spreading traffic across
// healthy channels instead of always choosing the single best one.
func (s *Selector) Select(ctx context.Context, model, tenantID string) (*registry.Channel, error) {
	healthy, total, err := s.healthyCandidates(ctx, model, tenantID)
	if err != nil {
		return nil, err
	}
	if len(healthy) == 0 {
		s.stats.RecordNoChannel()
		return nil, &NoChannelError{Model: model, TenantID: tenantID, Candidates: total}
	}
	if len(healthy) == 1 {
		s.stats.RecordSelection(healthy[0].ID)
		return healthy[0], nil
	}

	weights := make([]float64, len(healthy))
	for i, ch := range healthy {
		m := s.book.Get(ch.ID)
		weights[i] = effectiveWeight(ch.Weight, float64(m.AvgLatency.Milliseconds()), m.SuccessRate())
	}

	s.mu.Lock()
	rnd := s.rnd.Float64()
	s.mu.Unlock()

	idx := weightedPick(weights, rnd)
	if idx < 0 {
		// All weights zero (e.g. every candidate configured weight 0);
		// fall back to the first in registration order.
		idx = 0
	}

	picked := healthy[idx]
	s.stats.RecordSelection(picked.ID)
	s.logger.Debug("channel selected",
		"channel", picked.ID,
		"model", model,
		"candidates", len(healthy),
	)
	return picked, nil
}

// Backups returns up to limit additional healthy candidates for the
// failover path, excluding already-attempted channels, sorted by
// descending priority with registration order breaking ties.
func (s *Selector) Backups(ctx context.Context, model, tenantID string, exclude map[string]bool, limit int) ([]*registry.Channel, error) {
	if limit <= 0 {
		return nil, nil
	}

	healthy, _, err := s.healthyCandidates(ctx, model, tenantID)
	if err != nil {
		return nil, err
	}

	backups := []*registry.Channel{}
	for _, ch := range healthy {
		if exclude[ch.ID] {
			continue
		}
		backups = append(backups, ch)
	}

	// healthyCandidates preserves registration order, so a stable sort
	// on priority keeps it as the tiebreak.
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Priority > backups[j].Priority
	})

	if len(backups) > limit {
		backups = backups[:limit]
	}
	return backups, nil
}
