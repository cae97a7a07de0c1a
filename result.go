package deepresearch

import (
	"slices"
	"time"
)

// Result is what a run returns. Content is empty unless Termination is
// TerminationAnswer.
type Result struct {
	RunID          string           `json:"run_id"`
	Content        string           `json:"content"`
	EvidenceChains []EvidenceRecord `json:"evidence_chains"`
	Termination    Termination      `json:"termination"`

	LLMCallsUsed int           `json:"llm_calls_used"`
	Rounds       int           `json:"rounds"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	Usage        Usage         `json:"usage"`
	Duration     time.Duration `json:"duration"`
}

func newResult(id string, s State, usage Usage, calls []ToolCall, elapsed time.Duration) Result {
	content := s.Prediction
	if s.Termination != TerminationAnswer {
		content = ""
	}
	evidence := slices.Clone(s.EvidenceChains)
	if evidence == nil {
		evidence = []EvidenceRecord{}
	}
	return Result{
		RunID:          id,
		Content:        content,
		EvidenceChains: evidence,
		Termination:    s.Termination,
		LLMCallsUsed:   s.LLMCallsUsed,
		Rounds:         s.RoundIndex,
		ToolCalls:      slices.Clone(calls),
		Messages:       slices.Clone(s.Messages),
		Usage:          usage,
		Duration:       elapsed,
	}
}
