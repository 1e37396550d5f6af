// Package factory assembles the adapter registry with the compiled-in
// constructors. It exists as a separate package so that the adapter
// implementations may depend on pkg/adapters without a cycle.
package factory

import (
	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/adapters/anthropic"
	"conduit-hq/conduit/pkg/adapters/generic"
	"conduit-hq/conduit/pkg/adapters/openai"
)

// NewRegistry returns the registry of all built-in adapters.
func NewRegistry() *adapters.Registry {
	r := adapters.NewRegistry()
	r.Register("openai", openai.New)
	r.Register("anthropic", anthropic.New)
	r.Register("generic", generic.New)
	return r
}
