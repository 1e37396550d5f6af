package adapters

import (
	"fmt"
	"log/slog"
)

// Constructor builds an adapter from a resolved channel configuration.
type Constructor func(config Config) (Adapter, error)

// Registry is the closed dispatch table of adapter constructors keyed by
// descriptor id. It is populated once at startup; selection never
// mutates it, so lookups are lock-free.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register binds a constructor to a descriptor id. Registering the same
// id twice is a programming error and panics at startup rather than
// silently shadowing an adapter.
func (r *Registry) Register(descriptorID string, ctor Constructor) {
	if _, dup := r.constructors[descriptorID]; dup {
		panic(fmt.Sprintf("adapter already registered for descriptor %q", descriptorID))
	}
	r.constructors[descriptorID] = ctor
}

// New constructs an adapter for the given configuration.
func (r *Registry) New(config Config) (Adapter, error) {
	ctor, ok := r.constructors[config.DescriptorID]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for descriptor %q", config.DescriptorID)
	}

	adapter, err := ctor(config)
	if err != nil {
		return nil, fmt.Errorf("create adapter for descriptor %q: %w", config.DescriptorID, err)
	}

	slog.Debug("adapter created",
		"descriptor", config.DescriptorID,
		"channel", config.ChannelID,
		"base_url", config.BaseURL,
	)
	return adapter, nil
}

// Supports reports whether a constructor exists for the descriptor id.
func (r *Registry) Supports(descriptorID string) bool {
	_, ok := r.constructors[descriptorID]
	return ok
}
