package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats implements thread-safe selection statistics using atomic
// operations, so the hot path never takes a lock.
type Stats struct {
	// totalSelections is the total number of selection requests
	totalSelections atomic.Int64

	// selectionsPerChannel tracks picks per channel id
	selectionsPerChannel sync.Map // map[string]*atomic.Int64

	// unhealthyFiltered is the number of candidates dropped for health
	unhealthyFiltered atomic.Int64

	// noChannelCount is the number of selections that found no candidate
	noChannelCount atomic.Int64

	// lastResetTime is when statistics were last reset
	lastResetTime time.Time

	// mu protects lastResetTime
	mu sync.RWMutex
}

// NewStats creates a new selection statistics tracker.
func NewStats() *Stats {
	return &Stats{lastResetTime: time.Now()}
}

// RecordSelection counts one successful pick of the given channel.
func (s *Stats) RecordSelection(channelID string) {
	s.totalSelections.Add(1)
	val, _ := s.selectionsPerChannel.LoadOrStore(channelID, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

// RecordUnhealthyFiltered counts candidates dropped by the health filter.
func (s *Stats) RecordUnhealthyFiltered(n int) {
	if n > 0 {
		s.unhealthyFiltered.Add(int64(n))
	}
}

// RecordNoChannel counts a selection that found no eligible candidate.
func (s *Stats) RecordNoChannel() {
	s.totalSelections.Add(1)
	s.noChannelCount.Add(1)
}

// Snapshot is a point-in-time copy of the statistics.
type Snapshot struct {
	TotalSelections      int64            `json:"total_selections"`
	SelectionsPerChannel map[string]int64 `json:"selections_per_channel"`
	UnhealthyFiltered    int64            `json:"unhealthy_filtered"`
	NoChannelCount       int64            `json:"no_channel_count"`
	LastResetTime        time.Time        `json:"last_reset_time"`
}

// Snapshot returns a copy of the current statistics.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	reset := s.lastResetTime
	s.mu.RUnlock()

	perChannel := map[string]int64{}
	s.selectionsPerChannel.Range(func(key, value interface{}) bool {
		perChannel[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return Snapshot{
		TotalSelections:      s.totalSelections.Load(),
		SelectionsPerChannel: perChannel,
		UnhealthyFiltered:    s.unhealthyFiltered.Load(),
		NoChannelCount:       s.noChannelCount.Load(),
		LastResetTime:        reset,
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.totalSelections.Store(0)
	s.unhealthyFiltered.Store(0)
	s.noChannelCount.Store(0)
	s.selectionsPerChannel.Range(func(key, _ interface{}) bool {
		s.selectionsPerChannel.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
