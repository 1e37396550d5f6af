package health

import (
	"sync"
	"time"
)

// Book holds the live metrics for every channel. Each entry has its own
// mutex so a probe and a concurrent dispatch against the same channel
// apply their outcomes one at a time, and traffic on other channels is
// never blocked.
type Book struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu sync.Mutex
	m  Metrics
}

// NewBook creates an empty metrics book.
func NewBook() *Book {
	return &Book{entries: make(map[string]*entry)}
}

func (b *Book) entryFor(channelID string) *entry {
	b.mu.RLock()
	e, ok := b.entries[channelID]
	b.mu.RUnlock()
	if ok {
		return e
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok = b.entries[channelID]; ok {
		return e
	}
	e = &entry{}
	b.entries[channelID] = e
	return e
}

// Record folds one outcome into a channel's metrics atomically.
func (b *Book) Record(channelID string, o Outcome) Metrics {
	e := b.entryFor(channelID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.m = Apply(e.m, o)
	return e.m
}

// Get returns a channel's current metrics snapshot. A channel never
// seen before reports zero metrics.
func (b *Book) Get(channelID string) Metrics {
	b.mu.RLock()
	e, ok := b.entries[channelID]
	b.mu.RUnlock()
	if !ok {
		return Metrics{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m
}

// Snapshot returns a copy of all tracked metrics keyed by channel id.
func (b *Book) Snapshot() map[string]Metrics {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]Metrics, len(b.entries))
	for id, e := range b.entries {
		e.mu.Lock()
		out[id] = e.m
		e.mu.Unlock()
	}
	return out
}

// Forget drops a channel's metrics, for channels removed from routing.
func (b *Book) Forget(channelID string) {
	b.mu.Lock()
	delete(b.entries, channelID)
	b.mu.Unlock()
}

// Healthy reports whether the channel is currently eligible for
// selection under the default cooldown.
func (b *Book) Healthy(channelID string, active bool, now time.Time) bool {
	return Eligible(active, b.Get(channelID), now, DefaultCooldown)
}
