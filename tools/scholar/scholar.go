// Package scholar implements the "google_scholar" tool over the Serper
// /scholar endpoint.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nevindra/deepresearch"
	"github.com/nevindra/deepresearch/internal/serper"
)

const (
	msgInvalid = "[google_scholar] Invalid request format: Input must be a JSON object containing 'query' field"
	msgTimeout = "Google Scholar Timeout, return None, Please try again later."
	msgDecode  = "Google Scholar response could not be decoded."

	videoNoise  = "Your browser can't play this video."
	separator   = "\n=======\n"
	parallelism = 3
)

// Tool retrieves academic publications from Google Scholar.
type Tool struct {
	client *serper.Client
}

// New creates a scholar tool backed by client.
func New(client *serper.Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Definitions() []deepresearch.ToolDefinition {
	return []deepresearch.ToolDefinition{{
		Name:        deepresearch.ToolScholar,
		Description: "Leverage Google Scholar to retrieve relevant information from academic publications. Accepts multiple queries.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"array","items":{"type":"string","description":"The search query."},"minItems":1,"description":"The list of search queries for Google Scholar."}},"required":["query"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (deepresearch.ToolResult, error) {
	queries, list, err := serper.ParseQueries(args)
	if err != nil {
		return deepresearch.ToolResult{Content: msgInvalid}, nil
	}
	if !list {
		return deepresearch.ToolResult{Content: t.Search(ctx, queries[0])}, nil
	}
	out := serper.Fanout(ctx, queries, parallelism, t.Search)
	return deepresearch.ToolResult{Content: strings.Join(out, separator)}, nil
}

// Search runs one scholar query and renders the results.
func (t *Tool) Search(ctx context.Context, query string) string {
	res, err := t.client.Query(ctx, serper.PathScholar, query)
	switch {
	case errors.Is(err, serper.ErrDecode):
		return msgDecode
	case err != nil:
		return msgTimeout
	}
	return Format(query, res)
}

// Format renders a Serper /scholar response.
func Format(query string, res gjson.Result) string {
	organic := res.Get("organic")
	if !organic.Exists() || !organic.IsArray() {
		return fmt.Sprintf("No results found for '%s'. Try with a more general query.", query)
	}

	var snippets, evidence []string
	for i, page := range organic.Array() {
		idx := i + 1
		title := page.Get("title").String()
		snippet := page.Get("snippet").String()

		linkInfo := "no available link"
		if v := page.Get("pdfUrl"); v.Exists() {
			linkInfo = "pdfUrl: " + v.String()
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d. [%s](%s)", idx, title, linkInfo)
		if v := page.Get("publicationInfo"); v.Exists() {
			b.WriteString("\npublicationInfo: " + v.String())
		}
		if v := page.Get("year"); v.Exists() {
			b.WriteString("\nDate published: " + v.String())
		}
		if v := page.Get("citedBy"); v.Exists() {
			b.WriteString("\ncitedBy: " + v.String())
		}
		b.WriteString("\n")
		if page.Get("snippet").Exists() {
			b.WriteString("\n" + snippet)
		}
		snippets = append(snippets, strings.ReplaceAll(b.String(), videoNoise, ""))

		text := snippet
		if text == "" {
			text = title
		}
		text = strings.TrimSpace(text)
		evidence = append(evidence, deepresearch.FormatEvidenceBlock(deepresearch.EvidenceRecord{
			Rational: fmt.Sprintf("Scholar result %d for query '%s'.", idx, query),
			Evidence: text,
			Summary:  text,
			URL:      bestLink(page),
		}))
	}

	content := fmt.Sprintf("A Google scholar for '%s' found %d results:\n\n## Scholar Results\n", query, len(snippets)) +
		strings.Join(snippets, "\n\n")
	if len(evidence) == 0 {
		return content
	}
	return content + "\n" + strings.Join(evidence, "\n")
}

func bestLink(page gjson.Result) string {
	for _, key := range []string{"link", "pdfUrl", "cachedPageUrl"} {
		if v := page.Get(key).String(); v != "" {
			return v
		}
	}
	return ""
}

var _ deepresearch.Tool = (*Tool)(nil)
