package visit

import (
	"fmt"
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// htmlToMarkdown converts a limited subset of HTML into markdown. Used when
// readability cannot find an article.
func htmlToMarkdown(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	node, err := xhtml.Parse(strings.NewReader(trimmed))
	if err != nil {
		return strings.TrimSpace(html.UnescapeString(trimmed))
	}
	b := &markdownBuilder{}
	b.walk(node)
	return strings.TrimSpace(b.String())
}

type markdownBuilder struct {
	strings.Builder
	lists []listState
	links []string
	inPre bool
}

type listState struct {
	ordered bool
	index   int
}

func (m *markdownBuilder) walk(n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		m.text(n.Data)
	case xhtml.ElementNode:
		switch strings.ToLower(n.Data) {
		case "script", "style", "noscript", "template", "svg":
			return
		}
		m.open(n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			m.walk(c)
		}
		m.close(n)
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			m.walk(c)
		}
	}
}

func (m *markdownBuilder) open(n *xhtml.Node) {
	name := strings.ToLower(n.Data)
	switch name {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		m.blankLine()
		m.WriteString(strings.Repeat("#", int(name[1]-'0')) + " ")
	case "p", "div", "section", "article", "table", "tr", "blockquote":
		m.blankLine()
	case "br":
		m.WriteString("\n")
	case "pre":
		if !m.inPre {
			m.blankLine()
			m.WriteString("```\n")
			m.inPre = true
		}
	case "ul":
		m.lists = append(m.lists, listState{})
		m.blankLine()
	case "ol":
		m.lists = append(m.lists, listState{ordered: true})
		m.blankLine()
	case "li":
		m.listItem()
	case "a":
		if href := attr(n, "href"); href != "" {
			m.links = append(m.links, href)
			m.WriteString("[")
		}
	}
}

func (m *markdownBuilder) close(n *xhtml.Node) {
	switch name := strings.ToLower(n.Data); name {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p", "div", "section", "article", "tr", "blockquote":
		m.WriteString("\n")
	case "pre":
		if m.inPre {
			if !strings.HasSuffix(m.String(), "\n") {
				m.WriteString("\n")
			}
			m.WriteString("```\n")
			m.inPre = false
		}
	case "ul", "ol":
		if len(m.lists) > 0 {
			m.lists = m.lists[:len(m.lists)-1]
		}
		m.WriteString("\n")
	case "a":
		if attr(n, "href") != "" && len(m.links) > 0 {
			href := m.links[len(m.links)-1]
			m.links = m.links[:len(m.links)-1]
			m.WriteString("](" + href + ")")
		}
	}
}

func (m *markdownBuilder) text(s string) {
	if m.inPre {
		m.WriteString(s)
		return
	}
	cleaned := strings.Join(strings.Fields(html.UnescapeString(s)), " ")
	if cleaned == "" {
		return
	}
	if cur := m.String(); cur != "" && !strings.HasSuffix(cur, "\n") && !strings.HasSuffix(cur, " ") && !strings.HasSuffix(cur, "[") {
		m.WriteString(" ")
	}
	m.WriteString(cleaned)
}

func (m *markdownBuilder) blankLine() {
	if m.Len() == 0 {
		return
	}
	switch s := m.String(); {
	case strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		m.WriteString("\n")
	default:
		m.WriteString("\n\n")
	}
}

func (m *markdownBuilder) listItem() {
	if len(m.lists) == 0 {
		m.lists = append(m.lists, listState{})
	}
	l := &m.lists[len(m.lists)-1]
	marker := "- "
	if l.ordered {
		l.index++
		marker = fmt.Sprintf("%d. ", l.index)
	}
	if !strings.HasSuffix(m.String(), "\n") {
		m.WriteString("\n")
	}
	m.WriteString(strings.Repeat("  ", len(m.lists)-1) + marker)
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
