// Package registry manages the channel lifecycle: registration with
// credential validation and a live probe, persistence in SQLite, and
// lookup of routable channels for a model.
package registry

import (
	"time"
)

// Status is the administrative state of a channel.
type Status string

// Channel status values.
const (
	// StatusActive marks a channel eligible for routing.
	StatusActive Status = "active"

	// StatusInactive marks a channel excluded from routing.
	StatusInactive Status = "inactive"

	// StatusTesting marks a channel reachable only via explicit probe,
	// never via routing.
	StatusTesting Status = "testing"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusTesting:
		return true
	}
	return false
}

// Channel is one registered upstream credential set. Credentials are
// stored vault-sealed; the registry opens them only while building an
// adapter.
type Channel struct {
	// ID is the channel's unique identifier (uuid)
	ID string `json:"id"`

	// TenantID is the owning tenant
	TenantID string `json:"tenant_id"`

	// DescriptorID names the provider descriptor this channel uses
	DescriptorID string `json:"descriptor_id"`

	// Name is the human-readable channel name
	Name string `json:"name"`

	// EncryptedCredentials is the vault-sealed credential blob
	EncryptedCredentials []byte `json:"-"`

	// BaseURL overrides the descriptor's default endpoint when set
	BaseURL string `json:"base_url,omitempty"`

	// Models restricts this channel to the listed models; empty defers
	// to the descriptor's model list
	Models []string `json:"models,omitempty"`

	// Status is the administrative state
	Status Status `json:"status"`

	// Priority orders failover candidates (higher first)
	Priority int `json:"priority"`

	// Weight scales this channel's share of weighted selection
	Weight int `json:"weight"`

	// MaxRPM caps requests per minute; zero means uncapped
	MaxRPM int `json:"max_rpm"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SupportsModel reports whether the channel itself allows the model.
// An empty model list defers the decision to the descriptor.
func (c *Channel) SupportsModel(model string) bool {
	if len(c.Models) == 0 {
		return true
	}
	for _, m := range c.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Event kinds recorded in the channel history.
const (
	EventProbe    = "probe"
	EventDispatch = "dispatch"
)

// Event is one probe or dispatch outcome in a channel's history. The
// history powers the status overview and is pruned on a retention
// schedule.
type Event struct {
	ID        int64         `json:"id"`
	ChannelID string        `json:"channel_id"`
	Kind      string        `json:"kind"`
	OK        bool          `json:"ok"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Latency   time.Duration `json:"latency"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
