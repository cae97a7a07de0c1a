package deepresearch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestWithRetry_SucceedsFirstAttempt(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{resp: ChatResponse{Content: "hello"}},
	}}
	p := WithRetry(stub, RetryBaseDelay(0))

	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("got %q, want %q", resp.Content, "hello")
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestWithRetry_RetriesServerAndTransportErrors(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{err: &ErrHTTP{Status: 503, Body: "unavailable"}},
		{err: &ErrHTTP{Status: 429, Body: "slow down"}},
		{err: io.ErrUnexpectedEOF},
		{resp: ChatResponse{Content: "hello"}},
	}}
	p := WithRetry(stub, RetryBaseDelay(0))

	resp, err := p.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("got %q, want %q", resp.Content, "hello")
	}
	if stub.calls != 4 {
		t.Errorf("got %d calls, want 4", stub.calls)
	}
}

func TestWithRetry_ClientErrorNotRetried(t *testing.T) {
	stub := &stubProvider{results: []stubResult{
		{err: &ErrHTTP{Status: 400, Body: "bad request"}},
		{resp: ChatResponse{Content: "unreachable"}},
	}}
	p := WithRetry(stub, RetryBaseDelay(0))

	_, err := p.Chat(context.Background(), ChatRequest{})
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) || httpErr.Status != 400 {
		t.Fatalf("got %v, want ErrHTTP 400", err)
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestWithRetry_MissingCredentialsNotRetried(t *testing.T) {
	stub := &stubProvider{results: []stubResult{{err: ErrMissingCredentials}}}
	p := WithRetry(stub, RetryBaseDelay(0))

	if _, err := p.Chat(context.Background(), ChatRequest{}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("got %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	stub := &stubProvider{results: []stubResult{{err: &ErrHTTP{Status: 502, Body: "bad gateway"}}}}
	p := WithRetry(stub, RetryBaseDelay(0), RetryMaxAttempts(3))

	_, err := p.Chat(context.Background(), ChatRequest{})
	if statusOf(err) != 502 {
		t.Fatalf("got %v, want the last 502", err)
	}
	if stub.calls != 3 {
		t.Errorf("got %d calls, want 3", stub.calls)
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	stub := &stubProvider{results: []stubResult{{err: &ErrHTTP{Status: 503}}}}
	p := WithRetry(stub, RetryBaseDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Chat(ctx, ChatRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
	if stub.calls != 1 {
		t.Errorf("got %d calls, want 1", stub.calls)
	}
}

func TestWithRetry_Name(t *testing.T) {
	if got := WithRetry(&stubProvider{}).Name(); got != "stub" {
		t.Errorf("got %q", got)
	}
}

func TestRetryBackoff(t *testing.T) {
	base := time.Second
	ceiling := 30 * time.Second
	for i := 0; i < 10; i++ {
		d := retryBackoff(base, ceiling, i)
		floor := base * (1 << i)
		if floor > ceiling {
			floor = ceiling
		}
		if d < floor || d > ceiling {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", i, d, floor, ceiling)
		}
	}
	if d := retryBackoff(base, ceiling, 64); d != ceiling {
		t.Errorf("large attempt: got %v, want %v", d, ceiling)
	}
}

func TestRetryDelay_HonoursRetryAfter(t *testing.T) {
	r := &retryProvider{baseDelay: time.Millisecond, maxDelay: 30 * time.Second}
	err := &ErrHTTP{Status: 429, RetryAfter: 5 * time.Second}
	if d := r.retryDelay(0, err); d != 5*time.Second {
		t.Errorf("got %v, want 5s", d)
	}
}
