package visit

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/nevindra/deepresearch"
)

const (
	summarizeAttempts = 3
	shrinkFactor      = 0.7
	shrinkMinChars    = 2000
	summaryTemp       = 0.7
)

// Summarizer sends an extraction prompt to a model and returns its raw reply.
// An error or empty reply counts as a failed attempt.
type Summarizer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderSummarizer adapts a deepresearch.Provider into a Summarizer.
type ProviderSummarizer struct {
	provider deepresearch.Provider
}

// NewProviderSummarizer wraps p. The summarizer samples at temperature 0.7.
func NewProviderSummarizer(p deepresearch.Provider) *ProviderSummarizer {
	return &ProviderSummarizer{provider: p}
}

func (s *ProviderSummarizer) Complete(ctx context.Context, prompt string) (string, error) {
	temp := summaryTemp
	resp, err := s.provider.Chat(ctx, deepresearch.ChatRequest{
		Messages:         []deepresearch.ChatMessage{deepresearch.UserMessage(prompt)},
		GenerationParams: &deepresearch.GenerationParams{Temperature: &temp},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

const extractorPrompt = `Please process the following webpage content and user goal to extract relevant information:

## **Webpage Content**
%s

## **User Goal**
%s

## **Task Guidelines**
1. **Content Scanning for Rational**: Locate the specific sections or data directly related to the user's goal within the webpage content.
2. **Key Extraction for Evidence**: Identify and extract the most relevant information from the content. Never miss important information and output the full original context of the content as far as possible. It can be more than three paragraphs.
3. **Summary Output for Summary**: Organize the findings into a concise paragraph with logical flow, prioritizing clarity, and judge the contribution of the information to the goal.

**Final Output Format using JSON format has "rational", "evidence", "summary" fields**
`

// ExtractorPrompt renders the extraction prompt for content and goal.
func ExtractorPrompt(content, goal string) string {
	return fmt.Sprintf(extractorPrompt, content, goal)
}

// summarize asks the summarizer for a structured extraction, shrinking the
// content to 70% after every failed attempt while it is longer than 2000
// characters. Returns false when all attempts failed.
func (t *Tool) summarize(ctx context.Context, content, goal string) (deepresearch.EvidenceRecord, bool) {
	working := content
	for attempt := 1; attempt <= summarizeAttempts; attempt++ {
		if ctx.Err() != nil {
			return deepresearch.EvidenceRecord{}, false
		}
		raw, err := t.summarizer.Complete(ctx, ExtractorPrompt(working, goal))
		if err != nil {
			t.logger.Warn("visit: summarizer call failed", "attempt", attempt, "error", err)
		} else if rec, ok := parseSummary(raw); ok {
			return rec, true
		} else {
			t.logger.Debug("visit: summarizer reply unusable", "attempt", attempt, "chars", len(raw))
		}
		if n := utf8.RuneCountInString(working); n > shrinkMinChars {
			working = cutRunes(working, int(float64(n)*shrinkFactor))
		}
	}
	return deepresearch.EvidenceRecord{}, false
}

// parseSummary reads a summarizer reply: code fences are stripped, the
// outermost {...} is sliced out and evidence and summary must be non-empty.
func parseSummary(raw string) (deepresearch.EvidenceRecord, bool) {
	raw = stripFences(raw)
	left, right := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if left == -1 || right < left {
		return deepresearch.EvidenceRecord{}, false
	}
	obj := gjson.Parse(raw[left : right+1])
	if !obj.IsObject() {
		return deepresearch.EvidenceRecord{}, false
	}
	rec := deepresearch.EvidenceRecord{
		Rational: obj.Get("rational").String(),
		Evidence: obj.Get("evidence").String(),
		Summary:  obj.Get("summary").String(),
	}
	if strings.TrimSpace(rec.Evidence) == "" || strings.TrimSpace(rec.Summary) == "" {
		return deepresearch.EvidenceRecord{}, false
	}
	return rec, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "``````", "")
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
