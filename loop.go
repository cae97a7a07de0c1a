package deepresearch

import (
	"context"
)

// Node is a state of the research loop.
type Node int

const (
	NodeDecision Node = iota
	NodeTool
	NodeFinalize
)

func (n Node) String() string {
	switch n {
	case NodeDecision:
		return "decision"
	case NodeTool:
		return "tool"
	case NodeFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Route returns the node that runs after from, given the state it produced.
// A pending tool call wins over a termination; finalize is absorbing.
func Route(s State, from Node) Node {
	switch from {
	case NodeDecision:
		if s.PendingToolCall != nil {
			return NodeTool
		}
		if s.Termination != "" {
			return NodeFinalize
		}
		return NodeDecision
	case NodeTool:
		return NodeDecision
	default:
		return NodeFinalize
	}
}

// StepCeiling is the hard cap on node executions for a run allowed
// maxLLMCalls model calls.
func StepCeiling(maxLLMCalls int) int {
	return max(2*maxLLMCalls+10, 50)
}

// loop drives the state machine from the decision node to finalize.
func (r *runner) loop(ctx context.Context, s State) (State, error) {
	ceiling := StepCeiling(r.cfg.Agent.MaxLLMCalls)
	node := NodeDecision
	for step := 0; ; step++ {
		if step >= ceiling {
			return s, &ErrStepCeiling{Limit: ceiling}
		}
		r.logger.Debug("step", "n", step+1, "node", node.String())

		switch node {
		case NodeDecision:
			d, err := r.decision(ctx, s)
			if err != nil {
				return s, err
			}
			s = Merge(s, d)
		case NodeTool:
			s = Merge(s, r.toolStep(ctx, s))
		case NodeFinalize:
			return Finalize(s), nil
		}
		node = r.route(s, node)
	}
}
