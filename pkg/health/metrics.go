// Package health tracks live per-channel metrics and decides channel
// eligibility. The metric math is split into pure functions so the
// update rule and the health predicate are testable without locks,
// clocks, or probes.
package health

import (
	"time"
)

// Alpha is the exponential moving average smoothing factor applied to
// new latency samples.
const Alpha = 0.3

// DefaultCooldown is how long a channel stays ineligible after an error
// with no intervening success.
const DefaultCooldown = 5 * time.Minute

// MinSuccessRate is the eligibility floor for a channel's success rate.
const MinSuccessRate = 0.8

// Metrics is one channel's live quality snapshot. It is a value type;
// updates go through Apply, which returns the successor state.
type Metrics struct {
	// AvgLatency is the exponentially smoothed response time
	AvgLatency time.Duration `json:"avg_latency"`

	// RequestCount is the cumulative number of dispatches and probes
	RequestCount int64 `json:"request_count"`

	// ErrorCount is the cumulative number of failures
	ErrorCount int64 `json:"error_count"`

	// LastSuccessAt is when the channel last completed a call
	LastSuccessAt time.Time `json:"last_success_at"`

	// LastErrorAt is when the channel last failed a call
	LastErrorAt time.Time `json:"last_error_at"`
}

// SuccessRate is (requests - errors) / requests, clamped to [0,1].
// A channel with no traffic yet reports 1.0 so that new channels are
// eligible until proven otherwise.
func (m Metrics) SuccessRate() float64 {
	if m.RequestCount == 0 {
		return 1.0
	}
	rate := float64(m.RequestCount-m.ErrorCount) / float64(m.RequestCount)
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}

// Outcome is one observed dispatch or probe result.
type Outcome struct {
	// OK reports whether the call succeeded
	OK bool

	// Latency is the observed round-trip time
	Latency time.Duration

	// At is when the outcome was observed
	At time.Time
}

// Apply folds one outcome into the metrics and returns the new state.
// Latency smoothing uses a fixed-alpha exponential moving average; the
// first sample seeds the average directly.
func Apply(m Metrics, o Outcome) Metrics {
	m.RequestCount++
	if o.OK {
		m.LastSuccessAt = o.At
	} else {
		m.ErrorCount++
		m.LastErrorAt = o.At
	}

	if o.Latency > 0 {
		if m.AvgLatency == 0 {
			m.AvgLatency = o.Latency
		} else {
			m.AvgLatency = time.Duration(Alpha*float64(o.Latency) + (1-Alpha)*float64(m.AvgLatency))
		}
	}
	return m
}

// Eligible reports whether a channel may receive traffic: it must be
// administratively active, its success rate must clear the floor, and
// its most recent error must either be older than the cooldown or be
// followed by a success.
func Eligible(active bool, m Metrics, now time.Time, cooldown time.Duration) bool {
	if !active {
		return false
	}
	if m.SuccessRate() < MinSuccessRate {
		return false
	}
	if !m.LastErrorAt.IsZero() &&
		m.LastErrorAt.After(m.LastSuccessAt) &&
		now.Sub(m.LastErrorAt) < cooldown {
		return false
	}
	return true
}
