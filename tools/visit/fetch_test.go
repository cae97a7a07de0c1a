package visit

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestHTMLToMarkdown(t *testing.T) {
	in := `<html><body><script>var x=1;</script><h2>Heading</h2><p>Some <b>bold</b> text with a <a href="https://x.test">link</a>.</p><ul><li>one</li><li>two</li></ul></body></html>`
	got := htmlToMarkdown(in)
	for _, want := range []string{"## Heading", "[link](https://x.test)", "- one", "- two"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "var x") {
		t.Error("script content leaked")
	}
}

func TestPickMarkdown(t *testing.T) {
	tests := []struct {
		name, body, want string
		wantErr          bool
	}{
		{"fit preferred", `{"results":[{"success":true,"markdown":{"raw_markdown":"raw","fit_markdown":"fit"}}]}`, "fit", false},
		{"raw fallback", `{"results":[{"success":true,"markdown":{"raw_markdown":"raw","fit_markdown":""}}]}`, "raw", false},
		{"string markdown", `{"success":true,"markdown":"plain"}`, "plain", false},
		{"failed crawl", `{"results":[{"success":false,"error_message":"timeout"}]}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickMarkdown(gjson.Parse(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewJina_NoKeys(t *testing.T) {
	if NewJina(" , ", nil) != nil {
		t.Error("blank key list should disable the reader")
	}
	j := NewJina("a,b", nil)
	if j.key() != "a" || j.key() != "b" || j.key() != "a" {
		t.Error("keys should rotate round robin")
	}
}

func TestNewRenderer_Empty(t *testing.T) {
	if NewRenderer("  ", nil) != nil {
		t.Error("empty base should disable rendering")
	}
}

func TestPDFText_Invalid(t *testing.T) {
	if _, err := pdfText(nil); err == nil {
		t.Error("empty content should fail")
	}
	if _, err := pdfText([]byte("not a pdf")); err == nil {
		t.Error("garbage should fail")
	}
}
