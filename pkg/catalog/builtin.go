package catalog

import "conduit-hq/conduit/pkg/relay"

// commonErrorRules is the status-code classification shared by all
// HTTP-speaking vendors. Vendor descriptors prepend their own
// message-signature rules so vendor-specific phrasing wins.
func commonErrorRules() []ErrorRule {
	return []ErrorRule{
		{Status: 401, Kind: relay.KindAuthentication},
		{Status: 403, Kind: relay.KindAuthentication},
		{Status: 404, Kind: relay.KindModelNotFound},
		{Status: 429, Kind: relay.KindRateLimit},
		{Status: 400, Kind: relay.KindBadRequest},
		{Status: 422, Kind: relay.KindBadRequest},
		{Status: 500, Kind: relay.KindServerError},
		{Status: 502, Kind: relay.KindServerError},
		{Status: 503, Kind: relay.KindServerError},
		{Status: 529, Kind: relay.KindServerError},
	}
}

// BuiltinDescriptors returns the compiled-in provider catalog.
func BuiltinDescriptors() []*Descriptor {
	return []*Descriptor{
		{
			ID:             "openai",
			DisplayName:    "OpenAI",
			DefaultBaseURL: "https://api.openai.com/v1",
			CredentialFields: []CredentialField{
				{Name: "api_key", Required: true, Pattern: `^sk-`},
				{Name: "organization", Required: false},
			},
			Models: []string{
				"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo",
			},
			ErrorRules: append([]ErrorRule{
				{Status: 429, MessageContains: "insufficient_quota", Kind: relay.KindQuotaExceeded},
				{Status: 429, MessageContains: "exceeded your current quota", Kind: relay.KindQuotaExceeded},
				{Status: 404, MessageContains: "does not exist", Kind: relay.KindModelNotFound},
				{MessageContains: "model_not_found", Kind: relay.KindModelNotFound},
			}, commonErrorRules()...),
		},
		{
			ID:             "anthropic",
			DisplayName:    "Anthropic",
			DefaultBaseURL: "https://api.anthropic.com",
			CredentialFields: []CredentialField{
				{Name: "api_key", Required: true, Pattern: `^sk-ant-`},
			},
			Models: []string{
				"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
				"claude-3-opus-20240229", "claude-3-haiku-20240307",
			},
			ErrorRules: append([]ErrorRule{
				{Status: 400, MessageContains: "credit balance", Kind: relay.KindQuotaExceeded},
				{MessageContains: "not_found_error", Kind: relay.KindModelNotFound},
				{MessageContains: "overloaded_error", Kind: relay.KindServerError},
			}, commonErrorRules()...),
		},
		{
			// Generic OpenAI-compatible endpoints (Ollama, vLLM, LM Studio,
			// third-party aggregators). No model restriction and no
			// credential format assumptions beyond a bearer key.
			ID:             "generic",
			DisplayName:    "OpenAI-compatible",
			DefaultBaseURL: "http://localhost:11434/v1",
			CredentialFields: []CredentialField{
				{Name: "api_key", Required: false},
			},
			ErrorRules: commonErrorRules(),
		},
	}
}
