package visit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const (
	userAgent   = "Mozilla/5.0 (compatible; DeepResearchBot/1.0)"
	maxHTMLBody = 5 << 20
	maxPDFBody  = 32 << 20
)

// stage is one step of a fetch fallback chain.
type stage struct {
	name  string
	fetch func(ctx context.Context, rawURL string) (string, error)
}

// stages returns the fallback chain for a URL. Optional backends are left out
// when unconfigured.
func (t *Tool) stages(pdf bool) []stage {
	var out []stage
	if pdf {
		out = append(out, stage{"pdf", t.fetchPDF})
		if t.render != nil {
			out = append(out, stage{"render-pdf", func(ctx context.Context, u string) (string, error) {
				return t.render.Render(ctx, u, true)
			}})
		}
		return out
	}
	out = append(out, stage{"readability", t.fetchReadable})
	if t.jina != nil {
		out = append(out, stage{"jina", t.jina.Read})
	}
	if t.render != nil {
		out = append(out, stage{"render", func(ctx context.Context, u string) (string, error) {
			return t.render.Render(ctx, u, false)
		}})
	}
	return out
}

// fetchText walks the chain and returns the first non-blank text. Errors and
// panics inside a stage count as empty content.
func (t *Tool) fetchText(ctx context.Context, rawURL string, pdf bool) string {
	for _, s := range t.stages(pdf) {
		if ctx.Err() != nil {
			return ""
		}
		text, err := runStage(ctx, s, rawURL)
		if err != nil {
			t.logger.Debug("visit: fetch stage failed", "stage", s.name, "url", rawURL, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			t.logger.Debug("visit: content fetched", "stage", s.name, "url", rawURL, "chars", len(text))
			return text
		}
	}
	return ""
}

func runStage(ctx context.Context, s stage, rawURL string) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", s.name, p)
		}
	}()
	return s.fetch(ctx, rawURL)
}

// get downloads rawURL, failing on 4xx/5xx.
func (t *Tool) get(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, "", fmt.Errorf("read error: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// fetchReadable downloads a page and extracts its main text with readability,
// falling back to a markdown rendering of the whole document.
func (t *Tool) fetchReadable(ctx context.Context, rawURL string) (string, error) {
	body, ctype, err := t.get(ctx, rawURL, maxHTMLBody)
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToLower(ctype), "pdf") {
		return "", fmt.Errorf("unexpected PDF body from %s", rawURL)
	}
	page := string(body)

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(page), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent), nil
	}
	return htmlToMarkdown(page), nil
}

// fetchPDF downloads a PDF and extracts its text.
func (t *Tool) fetchPDF(ctx context.Context, rawURL string) (string, error) {
	body, _, err := t.get(ctx, rawURL, maxPDFBody)
	if err != nil {
		return "", err
	}
	return pdfText(body)
}
