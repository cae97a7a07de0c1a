package deepresearch

import (
	"context"
	"strings"
)

// toolStep runs the pending tool call and feeds its output back as a user
// turn. Failures become observation text; the step never errors.
func (r *runner) toolStep(ctx context.Context, s State) Delta {
	call := s.PendingToolCall
	if call == nil {
		return Delta{}
	}

	ctx, span := startSpan(ctx, r.tracer, "agent.tool", StringAttr("tool.name", call.Name))
	defer span.End()

	text := r.tools.Execute(ctx, call.Name, call.ArgsJSON())
	if strings.HasPrefix(text, "Error: tool '") {
		r.logger.Warn("tool failed", "tool", call.Name, "result", text)
		span.SetAttr(StringAttr("tool.status", "error"))
	} else {
		r.logger.Debug("tool executed", "tool", call.Name, "result_length", len(text))
		span.SetAttr(StringAttr("tool.status", "ok"))
	}
	span.SetAttr(IntAttr("tool.result_length", len(text)))
	r.toolCalls = append(r.toolCalls, *call)

	return Delta{
		Messages:        []ChatMessage{UserMessage(WrapToolResponse(text))},
		PendingToolCall: Clear[*ToolCall](),
		ToolResponse:    Assign(text),
	}
}
