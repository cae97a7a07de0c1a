package deepresearch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// stubProvider is a test Provider that returns pre-configured results in order.
// Once the queue is exhausted it keeps returning the last result.
type stubProvider struct {
	mu       sync.Mutex
	calls    int
	results  []stubResult
	requests []ChatRequest
}

type stubResult struct {
	resp ChatResponse
	err  error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	i := s.calls
	s.calls++
	if len(s.results) == 0 {
		return ChatResponse{}, nil
	}
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	r := s.results[i]
	return r.resp, r.err
}

// replies builds a stubProvider that answers with the given contents in order.
func replies(contents ...string) *stubProvider {
	s := &stubProvider{}
	for _, c := range contents {
		s.results = append(s.results, stubResult{resp: ChatResponse{Content: c}})
	}
	return s
}

var _ Provider = (*stubProvider)(nil)

// --- Tool mocks ---

// recordingTool returns a fixed output and remembers every call.
type recordingTool struct {
	name   string
	output string
	err    error
	calls  []json.RawMessage
}

func (m *recordingTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: m.name, Description: "test tool " + m.name, Parameters: json.RawMessage(`{"type":"object"}`)}}
}

func (m *recordingTool) Execute(_ context.Context, _ string, args json.RawMessage) (ToolResult, error) {
	m.calls = append(m.calls, args)
	return ToolResult{Content: m.output}, m.err
}

type panicTool struct{}

func (panicTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{Name: "boom", Description: "panics"}}
}

func (panicTool) Execute(context.Context, string, json.RawMessage) (ToolResult, error) {
	panic("kaboom")
}

var errToolDown = errors.New("backend down")

// testConfig is DefaultConfig with small budgets and no token limit.
func testConfig(maxCalls int) Config {
	cfg := DefaultConfig()
	cfg.SystemPrompt = "You are a test agent. Current date: "
	cfg.Agent.MaxLLMCalls = maxCalls
	cfg.Agent.TokenLimit = 0
	cfg.Agent.ToolNames = nil
	return cfg
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memRunStore is an in-memory RunStore.
type memRunStore struct {
	runs []RunRecord
}

func (m *memRunStore) SaveRun(_ context.Context, rec RunRecord) error {
	m.runs = append(m.runs, rec)
	return nil
}

func (m *memRunStore) GetRun(_ context.Context, id string) (RunRecord, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return RunRecord{}, ErrRunNotFound
}

func (m *memRunStore) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	return m.runs, nil
}
