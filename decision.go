package deepresearch

import (
	"context"
	"fmt"
	"slices"
)

// Placeholder predictions for runs that stop on a budget.
const (
	predictionCallLimit  = "No answer found: maximum LLM call limit reached."
	predictionTimeoutFmt = "No answer found after %.1f mins"
	predictionTokenLimit = "Token limit exceeded before producing a final answer."
)

// decision calls the model once and decides what happens next: run a tool,
// finish with an answer, stop on a budget, or think again.
//
// Evidence is read from the tool observation left by the previous tool step,
// so a tool's evidence lands in state one decision later.
func (r *runner) decision(ctx context.Context, s State) (Delta, error) {
	meta := s.Metadata.Clone()
	maxCalls := r.cfg.Agent.MaxLLMCalls

	if s.LLMCallsUsed >= maxCalls {
		return r.limitReached(meta, TerminationExhaustedLLMCalls, s.LLMCallsUsed), nil
	}
	if meta.MaxRuntime > 0 && !meta.StartTime.IsZero() && r.now().Sub(meta.StartTime) > meta.MaxRuntime {
		return r.limitReached(meta, TerminationTimeout, s.LLMCallsUsed), nil
	}

	meta.Round = s.RoundIndex + 1
	meta.LLMCallsRemaining = max(maxCalls-(s.LLMCallsUsed+1), 0)

	ctx, span := startSpan(ctx, r.tracer, "agent.decision", IntAttr("agent.round", meta.Round))
	defer span.End()

	resp, err := r.provider.Chat(ctx, ChatRequest{
		Messages:         s.Messages,
		GenerationParams: r.cfg.params(),
	})
	if err != nil {
		span.Error(err)
		return Delta{}, fmt.Errorf("decision round %d: %w", meta.Round, err)
	}
	r.usage.InputTokens += resp.Usage.InputTokens
	r.usage.OutputTokens += resp.Usage.OutputTokens

	content := StripToolResponse(WithReasoning(resp.Reasoning, resp.Content))
	msg := AssistantMessage(content)
	r.logger.Debug("model responded",
		"round", meta.Round,
		"llm_calls_used", s.LLMCallsUsed+1,
		"content_length", len(content))

	if meta.TokenLimit > 0 {
		used := CountMessages(r.tokenizer, append(slices.Clone(s.Messages), msg))
		meta.TokenUsage = used
		span.SetAttr(IntAttr("agent.token_usage", used))
		if used > meta.TokenLimit {
			// The call happened, so it is counted; the oversized message is dropped.
			d := r.limitReached(meta, TerminationTokenLimit, s.LLMCallsUsed+1)
			d.LLMCalls = 1
			d.Rounds = 1
			return d, nil
		}
	}

	d := Delta{
		Messages:        []ChatMessage{msg},
		LLMCalls:        1,
		Rounds:          1,
		PendingToolCall: Assign(ParseToolCall(content)),
		ToolResponse:    Clear[string](),
	}

	if s.ToolResponse != "" {
		d.Evidence = ExtractEvidence(s.ToolResponse)
		if len(d.Evidence) > 0 {
			span.Event("evidence.extracted", IntAttr("evidence.count", len(d.Evidence)))
		}
	}

	if answer, ok := ExtractAnswer(content); ok {
		d.Termination = Assign(TerminationAnswer)
		d.Prediction = Assign(answer)
		d.PendingToolCall = Clear[*ToolCall]()
		meta.TerminationReason = string(TerminationAnswer)
	}

	if tc := d.PendingToolCall.Value; tc != nil {
		span.SetAttr(StringAttr("agent.tool_call", tc.Name))
	}
	d.Metadata = Assign(meta)
	return d, nil
}

// limitReached builds the delta for a budget stop. callsUsed is the call
// count after this step.
func (r *runner) limitReached(meta Metadata, reason Termination, callsUsed int) Delta {
	var prediction string
	switch reason {
	case TerminationExhaustedLLMCalls:
		prediction = predictionCallLimit
	case TerminationTimeout:
		prediction = fmt.Sprintf(predictionTimeoutFmt, meta.MaxRuntime.Minutes())
	case TerminationTokenLimit:
		prediction = predictionTokenLimit
	default:
		prediction = "No answer found."
	}
	meta.Round = callsUsed
	meta.LLMCallsRemaining = max(r.cfg.Agent.MaxLLMCalls-callsUsed, 0)
	meta.TerminationReason = string(reason)

	r.logger.Info("budget exhausted",
		"reason", string(reason),
		"llm_calls_used", callsUsed,
		"token_usage", meta.TokenUsage)

	return Delta{
		PendingToolCall: Clear[*ToolCall](),
		ToolResponse:    Clear[string](),
		Prediction:      Assign(prediction),
		Termination:     Assign(reason),
		Metadata:        Assign(meta),
	}
}
