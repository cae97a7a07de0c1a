package deepresearch

import (
	"maps"
	"slices"
	"time"
)

// Termination is the reason a run stopped.
type Termination string

const (
	TerminationAnswer            Termination = "answer"
	TerminationExhaustedLLMCalls Termination = "exhausted_llm_calls"
	TerminationTimeout           Termination = "timeout"
	TerminationTokenLimit        Termination = "token_limit_reached"
	TerminationNoAnswer          Termination = "no_answer"
)

// Metadata is run-scoped bookkeeping. Steps receive a copy and hand back
// their modified copy in a Delta.
type Metadata struct {
	Round             int            `json:"round"`
	LLMCallsRemaining int            `json:"llm_calls_remaining"`
	StartTime         time.Time      `json:"start_time"`
	MaxRuntime        time.Duration  `json:"max_runtime"`
	TokenLimit        int            `json:"token_limit"`
	TokenModel        string         `json:"token_model"`
	TokenUsage        int            `json:"token_usage,omitempty"`
	TerminationReason string         `json:"termination_reason,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m Metadata) Clone() Metadata {
	m.Extra = maps.Clone(m.Extra)
	return m
}

// State is threaded through every step of a run.
//
// Messages, EvidenceChains and the two counters accumulate. PendingToolCall,
// ToolResponse, Prediction, Termination and Metadata are overwritten by the
// last step that sets them.
type State struct {
	Messages        []ChatMessage
	LLMCallsUsed    int
	RoundIndex      int
	EvidenceChains  []EvidenceRecord
	PendingToolCall *ToolCall
	ToolResponse    string
	Prediction      string
	Termination     Termination
	Metadata        Metadata
}

// Clone deep-copies s.
func (s State) Clone() State {
	s.Messages = slices.Clone(s.Messages)
	s.EvidenceChains = slices.Clone(s.EvidenceChains)
	if s.PendingToolCall != nil {
		tc := *s.PendingToolCall
		tc.Arguments = maps.Clone(tc.Arguments)
		s.PendingToolCall = &tc
	}
	s.Metadata = s.Metadata.Clone()
	return s
}

// Update is an optional overwrite. The zero value leaves the field untouched.
type Update[T any] struct {
	Set   bool
	Value T
}

// Assign returns an Update that overwrites the field with v.
func Assign[T any](v T) Update[T] {
	return Update[T]{Set: true, Value: v}
}

// Clear returns an Update that resets the field to its zero value.
func Clear[T any]() Update[T] {
	return Update[T]{Set: true}
}

func (u Update[T]) apply(cur T) T {
	if u.Set {
		return u.Value
	}
	return cur
}

// Delta is what a step contributes to State. Messages and Evidence are
// appended, LLMCalls and Rounds are added, the Update fields overwrite.
type Delta struct {
	Messages []ChatMessage
	LLMCalls int
	Rounds   int
	Evidence []EvidenceRecord

	PendingToolCall Update[*ToolCall]
	ToolResponse    Update[string]
	Prediction      Update[string]
	Termination     Update[Termination]
	Metadata        Update[Metadata]
}

// Merge folds d into s with the per-field reducers and returns the new state.
// s itself is not modified.
func Merge(s State, d Delta) State {
	out := State{
		Messages:        slices.Concat(s.Messages, d.Messages),
		LLMCallsUsed:    s.LLMCallsUsed + d.LLMCalls,
		RoundIndex:      s.RoundIndex + d.Rounds,
		EvidenceChains:  slices.Concat(s.EvidenceChains, d.Evidence),
		PendingToolCall: d.PendingToolCall.apply(s.PendingToolCall),
		ToolResponse:    d.ToolResponse.apply(s.ToolResponse),
		Prediction:      d.Prediction.apply(s.Prediction),
		Termination:     d.Termination.apply(s.Termination),
		Metadata:        d.Metadata.apply(s.Metadata).Clone(),
	}
	return out
}

// NewState builds the initial state of a run: the system prompt with today's
// date appended, followed by the question as the first user turn.
func NewState(question, systemPrompt string, cfg AgentConfig, now time.Time, extra map[string]any) State {
	today := now.Format("2006-01-02")
	sys := today
	if systemPrompt != "" {
		sys = systemPrompt + today
	}
	return State{
		Messages: []ChatMessage{
			SystemMessage(sys),
			UserMessage(question),
		},
		EvidenceChains: []EvidenceRecord{},
		Metadata: Metadata{
			LLMCallsRemaining: cfg.MaxLLMCalls,
			StartTime:         now,
			MaxRuntime:        cfg.MaxRuntime,
			TokenLimit:        cfg.TokenLimit,
			TokenModel:        cfg.TokenModel,
			Extra:             maps.Clone(extra),
		},
	}
}
