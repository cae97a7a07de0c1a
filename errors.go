package deepresearch

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrMissingCredentials is returned by providers that have no API key
// configured. It is never retried.
var ErrMissingCredentials = errors.New("missing API credentials")

type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a non-2xx response from an upstream API. RetryAfter is parsed from
// the Retry-After header when present.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrStepCeiling reports that a run made more state transitions than its hard
// ceiling allows. It points at a routing or budget misconfiguration.
type ErrStepCeiling struct {
	Limit int
}

func (e *ErrStepCeiling) Error() string {
	return fmt.Sprintf("step ceiling of %d transitions exceeded", e.Limit)
}

// ParseRetryAfter parses a Retry-After header value given either as
// delay-seconds or as an HTTP date. Returns 0 when absent or unparseable.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
