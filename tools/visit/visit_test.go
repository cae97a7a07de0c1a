package visit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nevindra/deepresearch"
)

const articleHTML = `<html><head><title>Solar power</title></head><body>
<article>
<h1>Solar power in 2024</h1>
<p>Solar capacity grew by a record amount last year, led by utility scale projects.</p>
<p>Panel prices fell again, which pushed residential adoption higher in most markets.</p>
<p>Grid operators are investing in storage to smooth the evening ramp.</p>
</article>
</body></html>`

// scriptedSummarizer returns replies in order and records every prompt.
type scriptedSummarizer struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

func (s *scriptedSummarizer) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r, nil
}

func pageServer(t *testing.T, gets *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodGet && gets != nil {
			gets.Add(1)
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(articleHTML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func evidenceOf(t *testing.T, block string) deepresearch.EvidenceRecord {
	t.Helper()
	recs := deepresearch.ExtractEvidence(block)
	if len(recs) != 1 {
		t.Fatalf("expected one evidence record, got %d in:\n%s", len(recs), block)
	}
	return recs[0]
}

func TestVisit_SummarizerSuccess(t *testing.T) {
	srv := pageServer(t, nil)
	sum := &scriptedSummarizer{replies: []string{"```json\n{\"rational\":\"r\",\"evidence\":\"record growth\",\"summary\":\"solar grew\"}\n```"}}
	tool := New(WithSummarizer(sum))

	out := tool.Visit(context.Background(), srv.URL+"/solar", "solar growth")

	if !strings.HasPrefix(out, "The useful information in "+srv.URL+"/solar for user goal solar growth as follows: \n\nEvidence in page: \nrecord growth\n\nSummary: \nsolar grew\n\n") {
		t.Errorf("unexpected block:\n%s", out)
	}
	rec := evidenceOf(t, out)
	if rec.Rational != "r" || rec.URL != srv.URL+"/solar" {
		t.Errorf("record = %+v", rec)
	}
	if len(sum.prompts) != 1 || !strings.Contains(sum.prompts[0], "Solar capacity grew") {
		t.Errorf("prompt did not carry page text: %d prompts", len(sum.prompts))
	}
}

func TestVisit_EmptySummarizerFallsBackAfterThreeAttempts(t *testing.T) {
	srv := pageServer(t, nil)
	sum := &scriptedSummarizer{}
	tool := New(WithSummarizer(sum))

	out := tool.Visit(context.Background(), srv.URL, "storage")

	if len(sum.prompts) != 3 {
		t.Fatalf("got %d summarizer attempts, want 3", len(sum.prompts))
	}
	rec := evidenceOf(t, out)
	if rec.Rational != fallbackRational {
		t.Errorf("rational = %q", rec.Rational)
	}
	if !strings.Contains(rec.Evidence, "storage") {
		t.Errorf("evidence should hold the matching paragraph: %q", rec.Evidence)
	}
	if !strings.HasPrefix(rec.Summary, "Based on the captured passages related to 'storage', key points include: ") {
		t.Errorf("summary = %q", rec.Summary)
	}
}

func TestVisit_SummarizerErrorsCountAsAttempts(t *testing.T) {
	srv := pageServer(t, nil)
	sum := &scriptedSummarizer{err: errors.New("502")}
	out := New(WithSummarizer(sum)).Visit(context.Background(), srv.URL, "panel prices")
	if len(sum.prompts) != 3 {
		t.Errorf("got %d attempts, want 3", len(sum.prompts))
	}
	if evidenceOf(t, out).Rational != fallbackRational {
		t.Error("expected extractive fallback")
	}
}

func TestVisit_InvalidThenValidReply(t *testing.T) {
	srv := pageServer(t, nil)
	sum := &scriptedSummarizer{replies: []string{
		"not json at all",
		`{"evidence":"","summary":"missing evidence"}`,
		`Sure! {"evidence":"prices fell","summary":"cheaper panels"} Hope this helps.`,
	}}
	out := New(WithSummarizer(sum)).Visit(context.Background(), srv.URL, "prices")
	if len(sum.prompts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(sum.prompts))
	}
	rec := evidenceOf(t, out)
	if rec.Summary != "cheaper panels" || rec.Rational != "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestVisit_NoSummarizerUsesFallback(t *testing.T) {
	srv := pageServer(t, nil)
	rec := evidenceOf(t, New().Visit(context.Background(), srv.URL, "grid"))
	if rec.Rational != fallbackRational || rec.Evidence == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestVisit_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	sum := &scriptedSummarizer{}

	out := New(WithSummarizer(sum)).Visit(context.Background(), srv.URL, "anything")

	rec := evidenceOf(t, out)
	if rec.Rational != "No accessible content retrieved; returning default summary." {
		t.Errorf("rational = %q", rec.Rational)
	}
	if rec.Summary != "No meaningful content found for 'anything'." || rec.Evidence != "" {
		t.Errorf("record = %+v", rec)
	}
	if len(sum.prompts) != 0 {
		t.Error("summarizer must not run without content")
	}
}

func TestVisit_JinaAfterReadabilityFails(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer page.Close()

	var gotAuth, gotPath string
	jinaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte("# Mirror\n\nWind output doubled in the north sea."))
	}))
	defer jinaSrv.Close()

	j := NewJina("k1, k2", nil)
	j.base = jinaSrv.URL + "/"
	rec := evidenceOf(t, New(WithJina(j)).Visit(context.Background(), page.URL+"/wind", "wind output"))

	if gotAuth != "Bearer k1" {
		t.Errorf("auth = %q", gotAuth)
	}
	if !strings.HasSuffix(gotPath, "/wind") {
		t.Errorf("jina path = %q", gotPath)
	}
	if !strings.Contains(rec.Evidence, "Wind output doubled") {
		t.Errorf("evidence = %q", rec.Evidence)
	}
}

func TestVisit_RenderIsLastResort(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer page.Close()

	var strategy string
	render := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crawl" {
			t.Errorf("render path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		strategy, _ = body["crawler_strategy"].(string)
		w.Write([]byte(`{"results":[{"success":true,"markdown":{"raw_markdown":"raw text","fit_markdown":"Rendered tidal energy notes"}}]}`))
	}))
	defer render.Close()

	tool := New(WithRenderer(NewRenderer(render.URL, nil)))
	rec := evidenceOf(t, tool.Visit(context.Background(), page.URL+"/paper.pdf", "tidal"))
	if strategy != "pdf" {
		t.Errorf("expected the PDF strategy for a .pdf URL, got %q", strategy)
	}
	if !strings.Contains(rec.Evidence, "Rendered tidal energy notes") {
		t.Errorf("evidence = %q", rec.Evidence)
	}
}

func TestVisitAll_BatchBudget(t *testing.T) {
	var gets atomic.Int32
	srv := pageServer(t, &gets)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)-1) * 6 * time.Minute)
	}
	tool := New(WithClock(clock))

	urls := []string{srv.URL + "/1", srv.URL + "/2", srv.URL + "/3", srv.URL + "/4"}
	out := tool.VisitAll(context.Background(), urls, "solar")

	blocks := strings.Split(out, "\n=======\n")
	if len(blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(blocks))
	}
	if gets.Load() != 2 {
		t.Errorf("fetched %d pages, want 2 before the budget ran out", gets.Load())
	}
	for i, b := range blocks[2:] {
		if evidenceOf(t, b).Rational != noContentRational {
			t.Errorf("block %d should be the no-content block", i+2)
		}
		if !strings.Contains(b, urls[i+2]) {
			t.Errorf("block %d does not name its URL", i+2)
		}
	}
}

func TestExecute_Args(t *testing.T) {
	srv := pageServer(t, nil)
	tool := New()

	res, err := tool.Execute(context.Background(), "visit", json.RawMessage(`{"url":"`+srv.URL+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != msgInvalid {
		t.Errorf("missing goal: got %q", res.Content)
	}

	res, _ = tool.Execute(context.Background(), "visit", json.RawMessage(`not json`))
	if res.Content != msgInvalid {
		t.Errorf("bad json: got %q", res.Content)
	}

	res, _ = tool.Execute(context.Background(), "visit", json.RawMessage(`{"url":["`+srv.URL+`/a","`+srv.URL+`/b"],"goal":"solar"}`))
	if n := strings.Count(res.Content, "\n=======\n"); n != 1 {
		t.Errorf("got %d separators, want 1", n)
	}
	if strings.HasSuffix(res.Content, "\n") {
		t.Error("output should be trimmed")
	}
}

func TestIsPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/doc") {
			w.Header().Set("Content-Type", "application/PDF")
			return
		}
		w.Header().Set("Content-Type", "text/html")
	}))
	defer srv.Close()

	tool := New()
	ctx := context.Background()
	if !tool.isPDF(ctx, "https://example.invalid/Paper.PDF?x=1") {
		t.Error("suffix should classify without a probe")
	}
	if !tool.isPDF(ctx, srv.URL+"/doc") {
		t.Error("content type should classify as PDF")
	}
	if tool.isPDF(ctx, srv.URL+"/page") {
		t.Error("html page classified as PDF")
	}
	if tool.isPDF(ctx, "http://127.0.0.1:1/unreachable") {
		t.Error("probe failure should mean not a PDF")
	}
}

func TestTruncatesToTokenBudget(t *testing.T) {
	srv := pageServer(t, nil)
	sum := &scriptedSummarizer{}
	New(WithSummarizer(sum), WithMaxTokens(10)).Visit(context.Background(), srv.URL, "solar")
	if len(sum.prompts) == 0 {
		t.Fatal("summarizer not called")
	}
	if strings.Contains(sum.prompts[0], "storage") {
		t.Error("page text should be truncated before summarization")
	}
}
