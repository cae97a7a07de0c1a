// Package serper is a small client for the Serper Google search API shared by
// the search and google_scholar tools.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the public Serper endpoint.
	DefaultBaseURL = "https://google.serper.dev"

	// PathSearch and PathScholar are the two endpoints the tools use.
	PathSearch  = "/search"
	PathScholar = "/scholar"

	defaultAttempts = 5
	maxBody         = 4 << 20
)

var (
	// ErrUnavailable is returned when every attempt failed at the transport level.
	ErrUnavailable = errors.New("serper: request failed")
	// ErrDecode is returned when the body is not a JSON object.
	ErrDecode = errors.New("serper: response could not be decoded")
)

// Client talks to the Serper API. Safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	attempts int
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAttempts sets how many times a request is tried before giving up.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client authenticating with apiKey (SERPER_KEY_ID).
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		attempts: defaultAttempts,
		logger:   slog.New(discardHandler{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Payload builds the request body for query. Web searches are localized to
// China when the query contains Han characters and to the United States
// otherwise; scholar queries carry only the query text.
func Payload(path, query string) map[string]any {
	if path == PathScholar {
		return map[string]any{"q": query}
	}
	if containsHan(query) {
		return map[string]any{"q": query, "location": "China", "gl": "cn", "hl": "zh-cn"}
	}
	return map[string]any{"q": query, "location": "United States", "gl": "us", "hl": "en"}
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// Query posts the payload for query to path and returns the parsed body.
// Transport failures and 5xx responses are retried immediately, up to the
// configured attempt count.
func (c *Client) Query(ctx context.Context, path, query string) (gjson.Result, error) {
	payload, err := json.Marshal(Payload(path, query))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("serper: marshal: %w", err)
	}

	var body []byte
	for i := 0; i < c.attempts; i++ {
		if ctx.Err() != nil {
			return gjson.Result{}, ctx.Err()
		}
		body, err = c.post(ctx, path, payload)
		if err == nil {
			break
		}
		c.logger.Warn("serper request failed", "path", path, "query", query, "attempt", i+1, "error", err)
	}
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return gjson.Result{}, ErrDecode
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// Fanout runs fn for every query with at most limit in flight and returns the
// outputs in query order.
func Fanout(ctx context.Context, queries []string, limit int, fn func(ctx context.Context, query string) string) []string {
	out := make([]string, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			out[i] = fn(gctx, q)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
