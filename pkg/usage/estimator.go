package usage

import (
	"conduit-hq/conduit/pkg/relay"
)

// charsPerToken is the character-based estimation ratio. It holds to
// within a few percent for English text on current tokenizers.
const charsPerToken = 4.0

// roleOverhead approximates the per-message framing tokens.
const roleOverhead = 1

// EstimateText estimates the token count of a single text string.
// Non-empty text counts at least one token.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(text))/charsPerToken + 0.5)
	if tokens < 1 {
		return 1
	}
	return tokens
}

// EstimateMessages estimates prompt tokens for a message list,
// including per-message framing overhead.
func EstimateMessages(messages []relay.Message) int {
	total := 0
	for _, msg := range messages {
		total += roleOverhead + EstimateText(msg.Content)
	}
	return total
}

// EstimateUsage fills in usage counters for a request/response pair
// when the upstream omitted them. Reported counters pass through
// untouched; the second return value marks a local estimate.
func EstimateUsage(req *relay.Request, content string, reported relay.Usage) (relay.Usage, bool) {
	if reported.TotalTokens > 0 {
		return reported, false
	}

	u := relay.Usage{
		PromptTokens:     EstimateMessages(req.Messages),
		CompletionTokens: EstimateText(content),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u, true
}
