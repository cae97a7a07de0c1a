package deepresearch

import "unicode/utf8"

// Tokenizer counts and truncates text in model tokens.
// tokenizer/tiktoken provides a BPE implementation.
type Tokenizer interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that fits in maxTokens.
	Truncate(text string, maxTokens int) string
}

// messageOverhead is the per-message framing cost added on top of the role
// and content tokens.
const messageOverhead = 4

// CountMessages returns the prompt size of msgs: content tokens plus role
// tokens plus a fixed overhead per message.
func CountMessages(t Tokenizer, msgs []ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += t.Count(m.Content) + t.Count(m.Role) + messageOverhead
	}
	return total
}

// EstimateTokenizer approximates one token per four bytes. It is the default
// when no BPE tokenizer is configured.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (EstimateTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * 4
	if len(text) <= limit {
		return text
	}
	// Back off to a rune boundary.
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

var _ Tokenizer = EstimateTokenizer{}
