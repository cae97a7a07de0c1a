// Package search implements the "search" tool: Google web search through
// Serper, returning ranked snippets plus one evidence record per result.
package search

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
	msgInvalid = "[search] Invalid request format: Input must be a JSON object containing 'query' field"
	msgTimeout = "Google search Timeout, return None, Please try again later."
	msgDecode  = "Google search response could not be decoded."

	videoNoise  = "Your browser can't play this video."
	separator   = "\n=======\n"
	parallelism = 3
)

// Tool performs Google web searches.
type Tool struct {
	client *serper.Client
}

// New creates a search tool backed by client.
func New(client *serper.Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Definitions() []deepresearch.ToolDefinition {
	return []deepresearch.ToolDefinition{{
		Name:        deepresearch.ToolSearch,
		Description: "Perform Google web searches then returns a string of the top search results. Accepts multiple queries.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"array","items":{"type":"string","description":"The search query."},"minItems":1,"description":"The list of search queries."}},"required":["query"]}`),
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

// Search runs one query and renders the results. Failures are rendered as
// text for the model to read.
func (t *Tool) Search(ctx context.Context, query string) string {
	res, err := t.client.Query(ctx, serper.PathSearch, query)
	switch {
	case errors.Is(err, serper.ErrDecode):
		return msgDecode
	case err != nil:
		return msgTimeout
	}
	return Format(query, res)
}

// Format renders a Serper /search response.
func Format(query string, res gjson.Result) string {
	organic := res.Get("organic")
	if !organic.Exists() || !organic.IsArray() {
		return fmt.Sprintf("No results found for '%s'. Try with a more general query.", query)
	}

	var snippets, evidence []string
	for i, page := range organic.Array() {
		idx := i + 1
		title := page.Get("title").String()
		link := page.Get("link").String()
		snippet := page.Get("snippet").String()

		var b strings.Builder
		fmt.Fprintf(&b, "%d. [%s](%s)", idx, title, link)
		if v := page.Get("date"); v.Exists() {
			b.WriteString("\nDate published: " + v.String())
		}
		if v := page.Get("source"); v.Exists() {
			b.WriteString("\nSource: " + v.String())
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
			Rational: fmt.Sprintf("Search result %d for query '%s'.", idx, query),
			Evidence: text,
			Summary:  text,
			URL:      link,
		}))
	}

	content := fmt.Sprintf("A Google search for '%s' found %d results:\n\n## Web Results\n", query, len(snippets)) +
		strings.Join(snippets, "\n\n")
	if len(evidence) == 0 {
		return content
	}
	return content + "\n" + strings.Join(evidence, "\n")
}

var _ deepresearch.Tool = (*Tool)(nil)
