package visit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"

	"github.com/nevindra/deepresearch"
)

const (
	fallbackRational  = "Extracted directly from webpage due to summarizer fallback."
	keepUntilChars    = 1500
	evidenceCharLimit = 2000
	summaryCharWindow = 600
	headParagraphs    = 3
)

var (
	wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	folder = cases.Fold()
	md     = goldmark.New()
)

// extractive builds an evidence record from the page text without a model:
// paragraphs mentioning a goal keyword are kept until their join passes
// 1500 characters, otherwise the first three paragraphs are used.
func extractive(content, goal string) deepresearch.EvidenceRecord {
	paragraphs := splitParagraphs(content)
	keywords := goalKeywords(goal)

	var kept []string
	if len(keywords) > 0 {
		for _, p := range paragraphs {
			folded := folder.String(p)
			for _, k := range keywords {
				if strings.Contains(folded, k) {
					kept = append(kept, p)
					break
				}
			}
			if utf8.RuneCountInString(strings.Join(kept, "\n\n")) > keepUntilChars {
				break
			}
		}
	}
	if len(kept) == 0 {
		kept = paragraphs[:min(headParagraphs, len(paragraphs))]
	}

	joined := strings.Join(kept, " ")
	snippet := cutRunes(joined, summaryCharWindow)
	suffix := ""
	if utf8.RuneCountInString(joined) > summaryCharWindow {
		suffix = "..."
	}
	return deepresearch.EvidenceRecord{
		Rational: fallbackRational,
		Evidence: cutRunes(strings.Join(kept, "\n\n"), evidenceCharLimit),
		Summary:  fmt.Sprintf("Based on the captured passages related to '%s', key points include: %s%s", goal, snippet, suffix),
	}
}

// goalKeywords returns the case-folded word tokens of goal longer than one
// character.
func goalKeywords(goal string) []string {
	var out []string
	for _, w := range wordRe.FindAllString(goal, -1) {
		if utf8.RuneCountInString(w) > 1 {
			out = append(out, folder.String(w))
		}
	}
	return out
}

// splitParagraphs returns the non-empty trimmed lines of content. Markdown
// documents (headings, lists, links or fenced code) are split into their leaf
// blocks instead so that wrapped paragraphs stay whole.
func splitParagraphs(content string) []string {
	if blocks := markdownBlocks(content); len(blocks) > 0 {
		return blocks
	}
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// markdownBlocks returns nil when content shows no markdown structure.
func markdownBlocks(content string) []string {
	src := []byte(content)
	doc := md.Parser().Parse(text.NewReader(src))

	structured := false
	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindList, ast.KindLink, ast.KindFencedCodeBlock:
			structured = true
		}
		if n.Type() != ast.TypeBlock || n.HasChildren() && n.FirstChild().Type() == ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		var parts []string
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if s := strings.TrimSpace(string(seg.Value(src))); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			blocks = append(blocks, strings.Join(parts, " "))
		}
		return ast.WalkContinue, nil
	})
	if !structured {
		return nil
	}
	return blocks
}

// cutRunes returns at most n runes of s.
func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
