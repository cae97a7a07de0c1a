package deepresearch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitProvider wraps a Provider with proactive rate limiting.
// Requests are blocked until the rate budget allows them to proceed.
type rateLimitProvider struct {
	inner Provider

	// RPM: token bucket refilled at rpm/60 per second, burst of 1.
	rpm     int
	limiter *rate.Limiter

	// TPM: sliding window of (timestamp, tokenCount) pairs.
	mu        sync.Mutex
	tpm       int
	tpmWindow []tpmEntry
	now       func() time.Time
}

type tpmEntry struct {
	at     time.Time
	tokens int
}

// RateLimitOption configures a rateLimitProvider.
type RateLimitOption func(*rateLimitProvider)

// RPM sets the maximum requests per minute.
func RPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.rpm = n }
}

// TPM sets the maximum tokens per minute (input + output combined).
// Token counts are recorded from ChatResponse.Usage after each request.
// This is a soft limit: the request that exceeds the budget completes,
// but subsequent requests block until the window slides.
func TPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.tpm = n }
}

// WithRateLimit wraps p with proactive rate limiting. Compose with other wrappers:
//
//	llm = deepresearch.WithRateLimit(provider, deepresearch.RPM(60))
//	llm = deepresearch.WithRateLimit(deepresearch.WithRetry(provider), deepresearch.RPM(20), deepresearch.TPM(200000))
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	r := &rateLimitProvider{inner: p, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.rpm > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.rpm)), 1)
	}
	return r
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.waitForBudget(ctx); err != nil {
		return ChatResponse{}, err
	}
	resp, err := r.inner.Chat(ctx, req)
	if err == nil {
		r.recordUsage(resp.Usage)
	}
	return resp, err
}

// waitForBudget blocks until both RPM and TPM budgets allow a request.
// Returns ctx.Err() if the context is cancelled while waiting.
func (r *rateLimitProvider) waitForBudget(ctx context.Context) error {
	if err := r.waitForTokens(ctx); err != nil {
		return err
	}
	if r.limiter != nil {
		return r.limiter.Wait(ctx)
	}
	return nil
}

func (r *rateLimitProvider) waitForTokens(ctx context.Context) error {
	if r.tpm <= 0 {
		return nil
	}
	for {
		r.mu.Lock()
		now := r.now()
		r.tpmWindow = pruneTpm(r.tpmWindow, now.Add(-time.Minute))
		var total int
		for _, e := range r.tpmWindow {
			total += e.tokens
		}
		if total < r.tpm {
			r.mu.Unlock()
			return nil
		}
		// Wait until the oldest entry leaves the window.
		wait := r.tpmWindow[0].at.Add(time.Minute).Sub(now)
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// recordUsage adds token counts to the TPM sliding window.
func (r *rateLimitProvider) recordUsage(u Usage) {
	if r.tpm <= 0 {
		return
	}
	total := u.InputTokens + u.OutputTokens
	if total <= 0 {
		return
	}
	r.mu.Lock()
	r.tpmWindow = append(r.tpmWindow, tpmEntry{at: r.now(), tokens: total})
	r.mu.Unlock()
}

// pruneTpm removes entries older than cutoff from a sorted tpmEntry slice.
func pruneTpm(s []tpmEntry, cutoff time.Time) []tpmEntry {
	i := 0
	for i < len(s) && s[i].at.Before(cutoff) {
		i++
	}
	return s[i:]
}

// compile-time check
var _ Provider = (*rateLimitProvider)(nil)
