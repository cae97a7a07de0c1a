package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/deepresearch"
	"github.com/nevindra/deepresearch/internal/config"
	"github.com/nevindra/deepresearch/internal/serper"
	"github.com/nevindra/deepresearch/observer"
	"github.com/nevindra/deepresearch/provider/openaicompat"
	"github.com/nevindra/deepresearch/store/postgres"
	"github.com/nevindra/deepresearch/store/sqlite"
	"github.com/nevindra/deepresearch/tokenizer/tiktoken"
	"github.com/nevindra/deepresearch/tools/scholar"
	"github.com/nevindra/deepresearch/tools/search"
	"github.com/nevindra/deepresearch/tools/visit"
)

// runStore is what the CLI needs from a run history backend.
type runStore interface {
	deepresearch.RunStore
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

// StoreFactory opens the configured run store.
type StoreFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger) (runStore, error)

// RunnerFactory builds the research agent. The returned shutdown flushes
// telemetry and must be called once the run is over.
type RunnerFactory func(ctx context.Context, cfg config.Config, store deepresearch.RunStore, logger *slog.Logger) (observer.Runner, func(context.Context) error, error)

// DefaultStoreFactory opens sqlite or postgres according to cfg.Database.
func DefaultStoreFactory(ctx context.Context, cfg config.Config, logger *slog.Logger) (runStore, error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("database url not set: set [database] url or DEEPRESEARCH_DATABASE_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &pooledStore{Store: s, pool: pool}, nil
	case "", "sqlite":
		s := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		if err := s.Init(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// pooledStore closes the pool the CLI created for the postgres store.
type pooledStore struct {
	*postgres.Store
	pool *pgxpool.Pool
}

func (p *pooledStore) Close() error {
	p.pool.Close()
	return nil
}

// DefaultRunnerFactory wires the provider stack, the tools and the agent.
func DefaultRunnerFactory(ctx context.Context, cfg config.Config, store deepresearch.RunStore, logger *slog.Logger) (observer.Runner, func(context.Context) error, error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("LLM API key not set: set [llm] api_key or OPENROUTER_API_KEY")
	}

	shutdown := func(context.Context) error { return nil }
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		var err error
		inst, shutdown, err = observer.Init(ctx, pricing)
		if err != nil {
			return nil, nil, fmt.Errorf("init observer: %w", err)
		}
	}

	var tokenizer deepresearch.Tokenizer = deepresearch.EstimateTokenizer{}
	if tok, err := tiktoken.ForModel(cfg.Agent.TokenModel); err != nil {
		logger.Warn("tiktoken unavailable, estimating tokens", "model", cfg.Agent.TokenModel, "error", err)
	} else {
		tokenizer = tok
	}

	agentCfg := cfg.ToAgentConfig()
	provider := buildProvider(cfg, logger, inst)
	tools := buildTools(cfg, tokenizer, logger, inst)

	opts := []deepresearch.AgentOption{
		deepresearch.WithTokenizer(tokenizer),
		deepresearch.WithLogger(logger),
	}
	if store != nil {
		opts = append(opts, deepresearch.WithRunStore(store))
	}
	if inst != nil {
		opts = append(opts, deepresearch.WithTracer(observer.NewTracer()))
	}

	var runner observer.Runner = deepresearch.New(provider, tools, agentCfg, opts...)
	if inst != nil {
		runner = observer.WrapAgent(runner, inst)
	}
	return runner, shutdown, nil
}

// buildProvider stacks observer -> retry -> rate limit -> HTTP provider.
func buildProvider(cfg config.Config, logger *slog.Logger, inst *observer.Instruments) deepresearch.Provider {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	var p deepresearch.Provider = openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL,
		openaicompat.WithName("openrouter"),
		openaicompat.WithRequireKey(),
		openaicompat.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	var limits []deepresearch.RateLimitOption
	if cfg.RateLimit.RPM > 0 {
		limits = append(limits, deepresearch.RPM(cfg.RateLimit.RPM))
	}
	if cfg.RateLimit.TPM > 0 {
		limits = append(limits, deepresearch.TPM(cfg.RateLimit.TPM))
	}
	if len(limits) > 0 {
		p = deepresearch.WithRateLimit(p, limits...)
	}
	p = deepresearch.WithRetry(p,
		deepresearch.RetryMaxAttempts(cfg.LLM.MaxRetries),
		deepresearch.RetryLogger(logger),
	)
	if inst != nil {
		p = observer.WrapProvider(p, cfg.LLM.Model, inst)
	}
	return p
}

func buildTools(cfg config.Config, tok deepresearch.Tokenizer, logger *slog.Logger, inst *observer.Instruments) *deepresearch.ToolRegistry {
	reg := deepresearch.NewToolRegistry()
	add := func(t deepresearch.Tool) {
		if inst != nil {
			t = observer.WrapTool(t, inst)
		}
		reg.Add(t)
	}

	if cfg.Search.SerperKey != "" {
		opts := []serper.Option{serper.WithLogger(logger)}
		if cfg.Search.BaseURL != "" {
			opts = append(opts, serper.WithBaseURL(cfg.Search.BaseURL))
		}
		client := serper.New(cfg.Search.SerperKey, opts...)
		add(search.New(client))
		add(scholar.New(client))
	} else {
		logger.Warn("serper key not set, search and google_scholar disabled")
	}

	visitOpts := []visit.Option{visit.WithLogger(logger), visit.WithTokenizer(tok)}
	if cfg.Visit.MaxTokens > 0 {
		visitOpts = append(visitOpts, visit.WithMaxTokens(cfg.Visit.MaxTokens))
	}
	if cfg.Visit.BatchBudgetMinutes > 0 {
		visitOpts = append(visitOpts, visit.WithBatchBudget(time.Duration(cfg.Visit.BatchBudgetMinutes)*time.Minute))
	}
	if j := visit.NewJina(cfg.Visit.JinaKeys, nil); j != nil {
		visitOpts = append(visitOpts, visit.WithJina(j))
	}
	if r := visit.NewRenderer(cfg.Visit.RenderURL, nil); r != nil {
		visitOpts = append(visitOpts, visit.WithRenderer(r))
	}
	if cfg.Summarizer.Enabled() {
		var sp deepresearch.Provider = openaicompat.NewProvider(cfg.Summarizer.APIKey, cfg.Summarizer.Model, cfg.Summarizer.BaseURL,
			openaicompat.WithName("summarizer"),
			openaicompat.WithRequireKey(),
		)
		if inst != nil {
			sp = observer.WrapProvider(sp, cfg.Summarizer.Model, inst)
		}
		visitOpts = append(visitOpts, visit.WithSummarizer(visit.NewProviderSummarizer(sp)))
	} else {
		logger.Warn("summarizer not configured, visit falls back to extractive evidence")
	}
	add(visit.New(visitOpts...))
	return reg
}
