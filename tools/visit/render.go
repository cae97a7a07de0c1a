package visit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Renderer drives a headless-browser crawl service speaking the Crawl4AI
// server protocol: POST {base}/crawl with the URL list and a crawler config,
// answered with per-URL markdown.
type Renderer struct {
	base   string
	client *http.Client
}

// NewRenderer creates a render client for the service at base (RENDER_URL).
// Returns nil when base is empty.
func NewRenderer(base string, client *http.Client) *Renderer {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Minute}
	}
	return &Renderer{base: base, client: client}
}

func renderPayload(rawURL string, pdf bool) map[string]any {
	payload := map[string]any{
		"urls":           []string{rawURL},
		"browser_config": map[string]any{"type": "BrowserConfig", "params": map[string]any{"headless": true, "verbose": false}},
	}
	if pdf {
		payload["crawler_config"] = map[string]any{
			"type": "CrawlerRunConfig",
			"params": map[string]any{
				"scraping_strategy": map[string]any{
					"type":   "PDFContentScrapingStrategy",
					"params": map[string]any{"extract_images": false, "save_images_locally": false, "batch_size": 4},
				},
			},
		}
		payload["crawler_strategy"] = "pdf"
	} else {
		payload["crawler_config"] = map[string]any{"type": "CrawlerRunConfig", "params": map[string]any{}}
	}
	return payload
}

// Render fetches rawURL through the browser service. pdf selects the PDF
// scraping strategy.
func (r *Renderer) Render(ctx context.Context, rawURL string, pdf bool) (string, error) {
	body, err := json.Marshal(renderPayload(rawURL, pdf))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/crawl", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPDFBody))
	if err != nil {
		return "", fmt.Errorf("render: read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render: HTTP %d", resp.StatusCode)
	}
	return pickMarkdown(gjson.ParseBytes(data))
}

// pickMarkdown prefers fit_markdown over raw_markdown. Older servers return
// markdown as a plain string.
func pickMarkdown(res gjson.Result) (string, error) {
	first := res.Get("results.0")
	if !first.Exists() {
		first = res
	}
	if !first.Get("success").Bool() {
		return "", fmt.Errorf("render: crawl failed: %s", first.Get("error_message").String())
	}
	md := first.Get("markdown")
	if md.IsObject() {
		if fit := md.Get("fit_markdown").String(); strings.TrimSpace(fit) != "" {
			return fit, nil
		}
		return md.Get("raw_markdown").String(), nil
	}
	return md.String(), nil
}
