// Package visit implements the "visit" tool: it fetches one or more pages
// through a fallback chain, trims them to a token budget and asks a
// summarization model for the evidence relevant to a goal. When the model is
// unavailable it falls back to a keyword-based extract.
//
// Each page becomes a text block followed by an embedded evidence record:
//
//	The useful information in {url} for user goal {goal} as follows: ...
//	<evidence_json>{"rational":...,"evidence":...,"summary":...,"url":...}</evidence_json>
package visit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nevindra/deepresearch"
)

const (
	msgInvalid = "[Visit] Invalid request format: Input must be a JSON object containing 'url' and 'goal' fields"
	separator  = "\n=======\n"

	// DefaultMaxTokens caps the page text handed to the summarizer.
	DefaultMaxTokens = 95000
	// DefaultBatchBudget bounds the wall clock spent on one multi-URL call.
	DefaultBatchBudget = 15 * time.Minute
)

// Tool visits web pages and PDFs and summarizes them against a goal.
type Tool struct {
	client      *http.Client
	jina        *Jina
	render      *Renderer
	summarizer  Summarizer
	tokenizer   deepresearch.Tokenizer
	maxTokens   int
	batchBudget time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithSummarizer sets the model used for extraction. Without one every page
// goes straight to the extractive fallback.
func WithSummarizer(s Summarizer) Option {
	return func(t *Tool) { t.summarizer = s }
}

// WithTokenizer sets the tokenizer used for the token ceiling.
func WithTokenizer(tok deepresearch.Tokenizer) Option {
	return func(t *Tool) { t.tokenizer = tok }
}

// WithJina enables the Jina reader stage. A nil reader is ignored.
func WithJina(j *Jina) Option {
	return func(t *Tool) { t.jina = j }
}

// WithRenderer enables the headless-browser stage. A nil renderer is ignored.
func WithRenderer(r *Renderer) Option {
	return func(t *Tool) { t.render = r }
}

// WithHTTPClient sets the client for direct page and PDF downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.client = c }
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(t *Tool) { t.maxTokens = n }
}

// WithBatchBudget overrides DefaultBatchBudget.
func WithBatchBudget(d time.Duration) Option {
	return func(t *Tool) { t.batchBudget = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tool) { t.now = now }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) { t.logger = l }
}

// New creates a visit tool.
func New(opts ...Option) *Tool {
	t := &Tool{
		client:      &http.Client{Timeout: 60 * time.Second},
		tokenizer:   deepresearch.EstimateTokenizer{},
		maxTokens:   DefaultMaxTokens,
		batchBudget: DefaultBatchBudget,
		now:         time.Now,
		logger:      slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tool) Definitions() []deepresearch.ToolDefinition {
	return []deepresearch.ToolDefinition{{
		Name:        deepresearch.ToolVisit,
		Description: "Visit webpage(s) and return the summary of the content.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"url":{"type":["string","array"],"items":{"type":"string"},"minItems":1,"description":"The URL(s) of the webpage(s) to visit. Can be a single URL or an array of URLs."},"goal":{"type":"string","description":"The goal of the visit for webpage(s)."}},"required":["url","goal"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (deepresearch.ToolResult, error) {
	urls, list, goal, ok := parseArgs(args)
	if !ok {
		return deepresearch.ToolResult{Content: msgInvalid}, nil
	}
	var out string
	if list {
		out = t.VisitAll(ctx, urls, goal)
	} else {
		out = t.Visit(ctx, urls[0], goal)
	}
	t.logger.Info("visit: done", "urls", len(urls), "chars", len(out))
	return deepresearch.ToolResult{Content: strings.TrimSpace(out)}, nil
}

// parseArgs reads {url: string|[]string, goal: string}.
func parseArgs(args json.RawMessage) (urls []string, list bool, goal string, ok bool) {
	res := gjson.ParseBytes(args)
	if !res.IsObject() {
		return nil, false, "", false
	}
	u, g := res.Get("url"), res.Get("goal")
	if !u.Exists() || !g.Exists() {
		return nil, false, "", false
	}
	goal = g.String()
	switch {
	case u.IsArray():
		for _, v := range u.Array() {
			urls = append(urls, strings.TrimSpace(v.String()))
		}
		return urls, true, goal, true
	case u.Type == gjson.String:
		return []string{strings.TrimSpace(u.String())}, false, goal, true
	default:
		return nil, false, "", false
	}
}

// VisitAll processes urls in order. Once the batch budget is spent the
// remaining URLs get the no-content block without being fetched.
func (t *Tool) VisitAll(ctx context.Context, urls []string, goal string) string {
	start := t.now()
	blocks := make([]string, 0, len(urls))
	for _, u := range urls {
		if t.now().Sub(start) > t.batchBudget || ctx.Err() != nil {
			blocks = append(blocks, emptyBlock(u, goal))
			continue
		}
		blocks = append(blocks, t.Visit(ctx, u, goal))
	}
	return strings.Join(blocks, separator)
}

// Visit runs the full pipeline for one URL.
func (t *Tool) Visit(ctx context.Context, rawURL, goal string) string {
	pdf := t.isPDF(ctx, rawURL)
	text := t.fetchText(ctx, rawURL, pdf)
	if strings.TrimSpace(text) == "" {
		t.logger.Warn("visit: no content retrieved", "url", rawURL, "pdf", pdf)
		return emptyBlock(rawURL, goal)
	}

	text = t.tokenizer.Truncate(text, t.maxTokens)
	if t.summarizer != nil {
		if rec, ok := t.summarize(ctx, text, goal); ok {
			return formatBlock(rawURL, goal, rec)
		}
		t.logger.Warn("visit: summarizer exhausted, using extractive fallback", "url", rawURL)
	}
	return formatBlock(rawURL, goal, extractive(text, goal))
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

var _ deepresearch.Tool = (*Tool)(nil)
