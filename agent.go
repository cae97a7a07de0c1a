package deepresearch

import (
	"context"
	"log/slog"
	"maps"
	"time"
)

// Agent runs research loops. It is safe for concurrent use; each Run owns
// its own state.
type Agent struct {
	provider  Provider
	tools     *ToolRegistry
	cfg       Config
	prompt    string
	tokenizer Tokenizer
	tracer    Tracer
	logger    *slog.Logger
	store     RunStore
	metadata  map[string]any
	now       func() time.Time
	route     func(State, Node) Node
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithTokenizer sets the tokenizer used for the token budget.
// Defaults to EstimateTokenizer.
func WithTokenizer(t Tokenizer) AgentOption {
	return func(a *Agent) { a.tokenizer = t }
}

// WithTracer sets the tracer for run, decision and tool spans.
func WithTracer(t Tracer) AgentOption {
	return func(a *Agent) { a.tracer = t }
}

// WithLogger sets the structured logger. Without it nothing is logged.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// WithRunStore persists every finished run.
func WithRunStore(s RunStore) AgentOption {
	return func(a *Agent) { a.store = s }
}

// WithMetadata adds caller bookkeeping to every run's Metadata.Extra.
func WithMetadata(m map[string]any) AgentOption {
	return func(a *Agent) { a.metadata = maps.Clone(m) }
}

// WithClock overrides the wall clock used for the time budget.
func WithClock(now func() time.Time) AgentOption {
	return func(a *Agent) { a.now = now }
}

// New creates an Agent. tools is narrowed to cfg.Agent.ToolNames. When
// cfg.SystemPrompt is empty the default prompt lists the narrowed tools.
func New(provider Provider, tools *ToolRegistry, cfg Config, opts ...AgentOption) *Agent {
	if tools == nil {
		tools = NewToolRegistry()
	}
	a := &Agent{
		provider:  provider,
		tools:     tools.Only(cfg.Agent.ToolNames),
		cfg:       cfg,
		tokenizer: EstimateTokenizer{},
		logger:    nopLogger,
		now:       time.Now,
		route:     Route,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.prompt = cfg.SystemPrompt
	if a.prompt == "" {
		a.prompt = DefaultSystemPrompt(a.tools.AllDefinitions())
	}
	return a
}

// runner carries one run's collaborators and the totals that live outside
// State.
type runner struct {
	*Agent
	logger    *slog.Logger
	usage     Usage
	toolCalls []ToolCall
}

// Run answers question. Budget stops are not errors: they come back as a
// Result with the matching Termination. Errors are reserved for a failing
// model endpoint and for exceeding the step ceiling.
func (a *Agent) Run(ctx context.Context, question string) (Result, error) {
	id := NewID()
	start := a.now()

	ctx, span := startSpan(ctx, a.tracer, "agent.run",
		StringAttr("run.id", id),
		IntAttr("agent.max_llm_calls", a.cfg.Agent.MaxLLMCalls))
	defer span.End()

	r := &runner{Agent: a, logger: a.logger.With("run_id", id)}
	r.logger.Info("run started", "question_length", len(question), "tools", a.tools.Names())

	state := NewState(question, a.prompt, a.cfg.Agent, start, a.metadata)
	final, err := r.loop(ctx, state)
	if err != nil {
		span.Error(err)
		r.logger.Error("run failed", "error", err, "llm_calls_used", final.LLMCallsUsed)
		return Result{RunID: id}, err
	}

	res := newResult(id, final, r.usage, r.toolCalls, a.now().Sub(start))
	span.SetAttr(
		StringAttr("agent.termination", string(res.Termination)),
		IntAttr("agent.llm_calls", res.LLMCallsUsed),
		IntAttr("agent.evidence", len(res.EvidenceChains)))
	r.logger.Info("run finished",
		"termination", string(res.Termination),
		"llm_calls_used", res.LLMCallsUsed,
		"evidence", len(res.EvidenceChains),
		"duration", res.Duration)

	if a.store != nil {
		if err := a.store.SaveRun(ctx, NewRunRecord(question, res, start)); err != nil {
			r.logger.Warn("save run failed", "error", err)
		}
	}
	return res, nil
}

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
