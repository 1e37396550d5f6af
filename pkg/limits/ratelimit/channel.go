package ratelimit

import (
	"sync"
)

// ChannelLimiter keys one token bucket per channel id, sized from the
// channel's MaxRPM. A channel without a cap is always allowed.
type ChannelLimiter struct {
	mu      sync.Mutex
	buckets map[string]*channelBucket
}

type channelBucket struct {
	bucket *TokenBucket
	rpm    int
}

// NewChannelLimiter creates an empty per-channel limiter.
func NewChannelLimiter() *ChannelLimiter {
	return &ChannelLimiter{buckets: make(map[string]*channelBucket)}
}

// Allow reports whether a request against the channel fits its RPM cap
// and consumes one slot when it does. maxRPM <= 0 means uncapped.
// Changing a channel's cap replaces its bucket on the next call.
func (l *ChannelLimiter) Allow(channelID string, maxRPM int) bool {
	if maxRPM <= 0 {
		return true
	}

	l.mu.Lock()
	cb, ok := l.buckets[channelID]
	if !ok || cb.rpm != maxRPM {
		cb = &channelBucket{
			bucket: NewTokenBucket(int64(maxRPM), float64(maxRPM)/60.0),
			rpm:    maxRPM,
		}
		l.buckets[channelID] = cb
	}
	l.mu.Unlock()

	return cb.bucket.Take(1)
}

// Forget drops a channel's bucket, for channels removed from routing.
func (l *ChannelLimiter) Forget(channelID string) {
	l.mu.Lock()
	delete(l.buckets, channelID)
	l.mu.Unlock()
}
