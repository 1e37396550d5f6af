// Package generic implements the adapter for OpenAI-compatible
// endpoints: self-hosted gateways, vLLM, Ollama's compatibility layer,
// and similar. It reuses the OpenAI wire format but requires an explicit
// base URL and imposes no model restrictions.
package generic

import (
	"fmt"

	"conduit-hq/conduit/pkg/adapters"
	"conduit-hq/conduit/pkg/adapters/openai"
)

// New creates an adapter for an OpenAI-compatible upstream.
func New(config adapters.Config) (adapters.Adapter, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("generic adapter requires an explicit base_url")
	}
	return openai.New(config)
}
