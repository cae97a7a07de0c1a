package openaicompat

import (
	"strings"

	"github.com/nevindra/deepresearch"
)

// ParseResponse converts an OpenAI-format ChatResponse to a
// deepresearch.ChatResponse. It reads content, reasoning and usage from
// choices[0].
func ParseResponse(resp ChatResponse) deepresearch.ChatResponse {
	var out deepresearch.ChatResponse

	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		msg := resp.Choices[0].Message
		out.Content = msg.Content
		out.Reasoning = strings.TrimSpace(msg.Reasoning)
		if out.Reasoning == "" {
			out.Reasoning = strings.TrimSpace(msg.ReasoningContent)
		}
	}

	if resp.Usage != nil {
		out.Usage = deepresearch.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}
