package observer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nevindra/deepresearch"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockProvider struct {
	name     string
	chatResp deepresearch.ChatResponse
	chatErr  error
	calls    int
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Chat(_ context.Context, _ deepresearch.ChatRequest) (deepresearch.ChatResponse, error) {
	m.calls++
	return m.chatResp, m.chatErr
}

type mockTool struct {
	defs   []deepresearch.ToolDefinition
	result deepresearch.ToolResult
	err    error
	panics bool
}

func (m *mockTool) Definitions() []deepresearch.ToolDefinition { return m.defs }
func (m *mockTool) Execute(_ context.Context, _ string, _ json.RawMessage) (deepresearch.ToolResult, error) {
	if m.panics {
		panic("tool exploded")
	}
	return m.result, m.err
}

type mockRunner struct {
	result deepresearch.Result
	err    error
}

func (m *mockRunner) Run(_ context.Context, _ string) (deepresearch.Result, error) {
	return m.result, m.err
}

// testInstruments creates Instruments on the global OTEL providers, which are
// no-ops by default.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments(nil)
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

// recordingInstruments returns Instruments whose tracer writes to an
// in-memory span recorder.
func recordingInstruments(t *testing.T) (*Instruments, *tracetest.SpanRecorder) {
	t.Helper()
	inst := testInstruments(t)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	inst.Tracer = tp.Tracer(scopeName)
	return inst, rec
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// ---------------------------------------------------------------------------
// ObservedProvider tests
// ---------------------------------------------------------------------------

func TestObservedProviderName(t *testing.T) {
	p := WrapProvider(&mockProvider{name: "openrouter"}, "m", testInstruments(t))
	if p.Name() != "openrouter" {
		t.Errorf("Name() = %q, want %q", p.Name(), "openrouter")
	}
}

func TestObservedProviderChat(t *testing.T) {
	inner := &mockProvider{
		name: "openrouter",
		chatResp: deepresearch.ChatResponse{
			Content:   "<answer>42</answer>",
			Reasoning: "thinking",
			Usage:     deepresearch.Usage{InputTokens: 10, OutputTokens: 5},
		},
	}
	inst, rec := recordingInstruments(t)
	p := WrapProvider(inner, "gpt-4o", inst)

	resp, err := p.Chat(context.Background(), deepresearch.ChatRequest{
		Messages: []deepresearch.ChatMessage{deepresearch.UserMessage("q")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "<answer>42</answer>" || resp.Usage.InputTokens != 10 {
		t.Errorf("response not passed through: %+v", resp)
	}

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "llm.chat" {
		t.Fatalf("spans = %v", spans)
	}
	if v, ok := attrValue(spans[0], AttrTokensOutput); !ok || v.AsInt64() != 5 {
		t.Errorf("output tokens attr = %v", v)
	}
	if v, ok := attrValue(spans[0], AttrReasoning); !ok || !v.AsBool() {
		t.Error("reasoning attr not set")
	}
	if v, _ := attrValue(spans[0], AttrCostUSD); v.AsFloat64() <= 0 {
		t.Errorf("cost attr = %v, want > 0 for a priced model", v.AsFloat64())
	}
}

func TestObservedProviderChatError(t *testing.T) {
	inner := &mockProvider{name: "openrouter", chatErr: errors.New("api error")}
	inst, rec := recordingInstruments(t)
	p := WrapProvider(inner, "m", inst)

	_, err := p.Chat(context.Background(), deepresearch.ChatRequest{})
	if err == nil || err.Error() != "api error" {
		t.Fatalf("expected api error, got %v", err)
	}
	if got := rec.Ended()[0].Status().Code; got != codes.Error {
		t.Errorf("span status = %v, want Error", got)
	}
}

// ---------------------------------------------------------------------------
// ObservedTool tests
// ---------------------------------------------------------------------------

func TestObservedToolDefinitions(t *testing.T) {
	inner := &mockTool{defs: []deepresearch.ToolDefinition{{Name: "search"}, {Name: "google_scholar"}}}
	tool := WrapTool(inner, testInstruments(t))

	defs := tool.Definitions()
	if len(defs) != 2 || defs[0].Name != "search" || defs[1].Name != "google_scholar" {
		t.Errorf("definitions = %+v", defs)
	}
}

func TestObservedToolExecute(t *testing.T) {
	inner := &mockTool{
		defs:   []deepresearch.ToolDefinition{{Name: "visit"}},
		result: deepresearch.ToolResult{Content: "page summary"},
	}
	inst, rec := recordingInstruments(t)
	tool := WrapTool(inner, inst)

	result, err := tool.Execute(context.Background(), "visit", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "page summary" {
		t.Errorf("Content = %q", result.Content)
	}
	if v, _ := attrValue(rec.Ended()[0], AttrToolStatus); v.AsString() != "ok" {
		t.Errorf("status = %q, want ok", v.AsString())
	}
}

func TestObservedToolExecuteReportedError(t *testing.T) {
	inner := &mockTool{result: deepresearch.ToolResult{Error: "quota"}}
	inst, rec := recordingInstruments(t)

	if _, err := WrapTool(inner, inst).Execute(context.Background(), "search", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := attrValue(rec.Ended()[0], AttrToolStatus); v.AsString() != "tool_error" {
		t.Errorf("status = %q, want tool_error", v.AsString())
	}
}

func TestObservedToolPanicReachesRegistry(t *testing.T) {
	inner := &mockTool{defs: []deepresearch.ToolDefinition{{Name: "visit"}}, panics: true}
	inst, rec := recordingInstruments(t)

	reg := deepresearch.NewToolRegistry()
	reg.Add(WrapTool(inner, inst))
	got := reg.Execute(context.Background(), "visit", nil)
	if got != "Error: tool 'visit' failed with tool exploded." {
		t.Errorf("observation = %q", got)
	}
	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	if v, _ := attrValue(spans[0], AttrToolStatus); v.AsString() != "panic" {
		t.Errorf("status = %q, want panic", v.AsString())
	}
}

// ---------------------------------------------------------------------------
// ObservedAgent tests
// ---------------------------------------------------------------------------

func TestObservedAgentRun(t *testing.T) {
	inner := &mockRunner{result: deepresearch.Result{
		RunID:        "run-1",
		Content:      "42",
		Termination:  deepresearch.TerminationAnswer,
		LLMCallsUsed: 3,
	}}
	inst, rec := recordingInstruments(t)

	res, err := WrapAgent(inner, inst).Run(context.Background(), "q")
	if err != nil || res.Content != "42" {
		t.Fatalf("got (%+v, %v)", res, err)
	}
	span := rec.Ended()[0]
	if span.Name() != "research.run" {
		t.Errorf("span name = %q", span.Name())
	}
	if v, _ := attrValue(span, AttrRunTermination); v.AsString() != string(deepresearch.TerminationAnswer) {
		t.Errorf("termination = %q", v.AsString())
	}
	if v, _ := attrValue(span, AttrRunLLMCalls); v.AsInt64() != 3 {
		t.Errorf("llm calls = %d", v.AsInt64())
	}
}

func TestObservedAgentRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inst, rec := recordingInstruments(t)

	_, err := WrapAgent(&mockRunner{err: context.Canceled}, inst).Run(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if v, _ := attrValue(rec.Ended()[0], AttrRunStatus); v.AsString() != "cancelled" {
		t.Errorf("status = %q, want cancelled", v.AsString())
	}
}

// ---------------------------------------------------------------------------
// Tracer tests
// ---------------------------------------------------------------------------

func TestTracerBridgesSpanAttrs(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	tr := NewTracer()
	_, span := tr.Start(context.Background(), "agent.decision",
		deepresearch.StringAttr("run.id", "abc"),
		deepresearch.IntAttr("round", 2))
	span.SetAttr(deepresearch.BoolAttr("answered", true))
	span.Event("tool.dispatched", deepresearch.StringAttr("tool", "search"))
	span.Error(errors.New("boom"))
	span.End()

	got := rec.Ended()
	if len(got) != 1 {
		t.Fatalf("got %d spans", len(got))
	}
	s := got[0]
	if v, _ := attrValue(s, "run.id"); v.AsString() != "abc" {
		t.Errorf("run.id = %q", v.AsString())
	}
	if v, _ := attrValue(s, "round"); v.AsInt64() != 2 {
		t.Errorf("round = %d", v.AsInt64())
	}
	if v, _ := attrValue(s, "answered"); !v.AsBool() {
		t.Error("answered not set")
	}
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v", s.Status().Code)
	}
	var sawEvent bool
	for _, ev := range s.Events() {
		if ev.Name == "tool.dispatched" {
			sawEvent = true
		}
	}
	if !sawEvent {
		t.Error("event not recorded")
	}
}

func TestToOTELAttrFallback(t *testing.T) {
	kv := toOTELAttr(deepresearch.SpanAttr{Key: "d", Value: []int{1, 2}})
	if kv.Value.AsString() != "[1 2]" {
		t.Errorf("got %q", kv.Value.AsString())
	}
	if kv := toOTELAttr(deepresearch.SpanAttr{Key: "f", Value: 0.5}); kv.Value.AsFloat64() != 0.5 {
		t.Errorf("float = %v", kv.Value.AsFloat64())
	}
}
