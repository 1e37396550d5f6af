package usage

import (
	"strings"
	"sync"
)

// ModelPricing is the USD cost per 1K tokens for one model.
type ModelPricing struct {
	PromptCostPer1K     float64 `yaml:"prompt_cost_per_1k" json:"prompt_cost_per_1k"`
	CompletionCostPer1K float64 `yaml:"completion_cost_per_1k" json:"completion_cost_per_1k"`
}

// Pricing computes request costs from a per-model price table.
// It is thread-safe and supports hot reload of the table.
type Pricing struct {
	mu     sync.RWMutex
	models map[string]ModelPricing
}

// defaultPricing applies when a model has no table entry.
var defaultPricing = ModelPricing{
	PromptCostPer1K:     0.001,
	CompletionCostPer1K: 0.002,
}

// NewPricing creates a pricing table. A nil table starts empty and
// prices everything at the default rate.
func NewPricing(models map[string]ModelPricing) *Pricing {
	if models == nil {
		models = map[string]ModelPricing{}
	}
	return &Pricing{models: models}
}

// Cost computes the USD cost for the given token usage. Unknown models
// match by prefix first (so "gpt-4o-2024-08-06" prices as "gpt-4o"),
// then fall back to the default rate.
func (p *Pricing) Cost(model string, promptTokens, completionTokens int) float64 {
	pricing := p.lookup(model)
	return float64(promptTokens)/1000*pricing.PromptCostPer1K +
		float64(completionTokens)/1000*pricing.CompletionCostPer1K
}

func (p *Pricing) lookup(model string) ModelPricing {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if pricing, ok := p.models[model]; ok {
		return pricing
	}
	for name, pricing := range p.models {
		if strings.HasPrefix(model, name) {
			return pricing
		}
	}
	return defaultPricing
}

// Replace swaps the full price table, for config hot reload.
func (p *Pricing) Replace(models map[string]ModelPricing) {
	if models == nil {
		models = map[string]ModelPricing{}
	}
	p.mu.Lock()
	p.models = models
	p.mu.Unlock()
}
