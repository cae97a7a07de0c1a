package deepresearch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryProvider wraps a Provider and retries failed calls with exponential
// backoff. Client errors (4xx other than 408/429), missing credentials and
// context cancellation are returned immediately.
type retryProvider struct {
	inner       Provider
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger  // nil = nopLogger
}

// RetryOption configures a retryProvider.
type RetryOption func(*retryProvider)

// RetryMaxAttempts sets the maximum number of attempts (default: 10).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryProvider) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt (default: 1s).
// Each subsequent delay doubles: baseDelay, 2×baseDelay, 4×baseDelay, …
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.baseDelay = d }
}

// RetryMaxDelay caps a single backoff sleep (default: 30s).
func RetryMaxDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.maxDelay = d }
}

// RetryTimeout sets the overall timeout for the entire retry sequence. If the
// total time across all attempts exceeds this duration, the retry loop gives up
// and returns the last error. The zero value (default) disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.timeout = d }
}

// RetryLogger sets the structured logger for retry events. When set, retries
// log at WARN level and final failures after exhausting attempts log at ERROR.
// If not set, a no-op logger is used (no output).
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryProvider) { r.logger = l }
}

// WithRetry wraps p with automatic retry. Retries use exponential backoff with
// jitter, capped at 30s per sleep. When the error includes a Retry-After
// duration, the retry delay is at least that long. Compose with any Provider:
//
//	llm = deepresearch.WithRetry(openaicompat.NewProvider(key, model, baseURL))
//	llm = deepresearch.WithRetry(p, deepresearch.RetryMaxAttempts(5))
//	llm = deepresearch.WithRetry(p, deepresearch.RetryTimeout(10*time.Minute))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	r := &retryProvider{
		inner:       p,
		maxAttempts: 10,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	return r
}

// Name delegates to the inner provider.
func (r *retryProvider) Name() string { return r.inner.Name() }

// Chat implements Provider with retry.
func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return retryCall(ctx, r, func() (ChatResponse, error) {
		return r.inner.Chat(ctx, req)
	})
}

// withTimeout returns a child context with a deadline if r.timeout is set.
// If timeout is zero or ctx already has an earlier deadline, returns ctx unchanged.
// The caller must call the returned CancelFunc when done.
func (r *retryProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(r.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// isRetryable reports whether err is worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, ErrMissingCredentials) || errors.Is(err, context.Canceled) {
		return false
	}
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status == 408 || e.Status == 429 || e.Status >= 500
	}
	return true
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// retryDelay computes the delay before retry attempt i. The server's
// Retry-After value wins over the backoff when it is longer.
func (r *retryProvider) retryDelay(i int, err error) time.Duration {
	backoff := retryBackoff(r.baseDelay, r.maxDelay, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryCall calls fn up to r.maxAttempts times, sleeping between retryable failures.
func retryCall[T any](ctx context.Context, r *retryProvider, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	name := r.inner.Name()
	for i := 0; i < r.maxAttempts; i++ {
		result, err := fn()
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return result, err
		}
		last = err
		r.logger.Warn("retrying failed llm call",
			"provider", name,
			"status", statusOf(err),
			"attempt", i+1,
			"max_attempts", r.maxAttempts,
			"error", err)
		if i < r.maxAttempts-1 {
			timer := time.NewTimer(r.retryDelay(i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	r.logger.Error("all retry attempts exhausted",
		"provider", name,
		"attempts", r.maxAttempts,
		"error", last)
	return zero, last
}

// retryBackoff returns the delay for retry i (0-indexed):
// base * 2^i plus up to one base of random jitter, capped at ceiling.
func retryBackoff(base, ceiling time.Duration, i int) time.Duration {
	if i > 30 {
		i = 30
	}
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	d := exp + jitter
	if ceiling > 0 && (d > ceiling || d < 0) {
		return ceiling
	}
	return d
}

// compile-time check
var _ Provider = (*retryProvider)(nil)
