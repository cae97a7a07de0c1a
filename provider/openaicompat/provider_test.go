package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nevindra/deepresearch"
)

func TestProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Title") != "deepresearch" {
			t.Errorf("unexpected X-Title: %s", r.Header.Get("X-Title"))
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "alibaba/tongyi-deepresearch-30b-a3b" {
			t.Errorf("unexpected model %s", req.Model)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ChatResponse{
			ID: "gen-1",
			Choices: []Choice{{
				Message: &ChoiceMessage{Role: "assistant", Content: "<answer>Paris</answer>", Reasoning: "capital"},
			}},
			Usage: &Usage{PromptTokens: 5, CompletionTokens: 2},
		})
	}))
	defer srv.Close()

	p := NewProvider("test-key", "alibaba/tongyi-deepresearch-30b-a3b", srv.URL+"/",
		WithName("openrouter"), WithHeader("X-Title", "deepresearch"))

	resp, err := p.Chat(context.Background(), deepresearch.ChatRequest{
		Messages: []deepresearch.ChatMessage{deepresearch.UserMessage("Capital of France?")},
	})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if resp.Content != "<answer>Paris</answer>" {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Reasoning != "capital" {
		t.Errorf("reasoning = %q", resp.Reasoning)
	}
	if resp.Usage.InputTokens != 5 || resp.Usage.OutputTokens != 2 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if p.Name() != "openrouter" {
		t.Errorf("name = %q", p.Name())
	}
}

func TestProvider_GenerationParamsOverrideDefaults(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: &ChoiceMessage{Content: "ok"}}}})
	}))
	defer srv.Close()

	p := NewProvider("", "m", srv.URL, WithOptions(WithTemperature(0.1), WithMaxTokens(50)))
	temp, topP, pp, maxTok := 0.6, 0.95, 1.1, 10000
	_, err := p.Chat(context.Background(), deepresearch.ChatRequest{
		Messages: []deepresearch.ChatMessage{deepresearch.UserMessage("q")},
		GenerationParams: &deepresearch.GenerationParams{
			Temperature:     &temp,
			TopP:            &topP,
			PresencePenalty: &pp,
			MaxTokens:       &maxTok,
			Stop:            []string{"\n<tool_response>", "<tool_response>"},
			Logprobs:        true,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Temperature == nil || *got.Temperature != 0.6 {
		t.Errorf("temperature = %v", got.Temperature)
	}
	if got.MaxTokens != 10000 {
		t.Errorf("max_tokens = %d", got.MaxTokens)
	}
	if got.PresencePenalty == nil || *got.PresencePenalty != 1.1 {
		t.Errorf("presence_penalty = %v", got.PresencePenalty)
	}
	if len(got.Stop) != 2 || !got.Logprobs {
		t.Errorf("stop = %v, logprobs = %v", got.Stop, got.Logprobs)
	}
}

func TestProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	p := NewProvider("k", "m", srv.URL)
	_, err := p.Chat(context.Background(), deepresearch.ChatRequest{})
	var httpErr *deepresearch.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected ErrHTTP, got %T: %v", err, err)
	}
	if httpErr.Status != 429 {
		t.Errorf("status = %d", httpErr.Status)
	}
	if httpErr.RetryAfter != 3*time.Second {
		t.Errorf("retry after = %v", httpErr.RetryAfter)
	}
}

func TestProvider_EmptyResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer srv.Close()

	_, err := NewProvider("k", "m", srv.URL).Chat(context.Background(), deepresearch.ChatRequest{})
	var llmErr *deepresearch.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected ErrLLM, got %v", err)
	}
}

func TestProvider_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewProvider("k", "m", srv.URL).Chat(context.Background(), deepresearch.ChatRequest{})
	var llmErr *deepresearch.ErrLLM
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected ErrLLM, got %v", err)
	}
}

func TestProvider_RequireKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewProvider("", "m", srv.URL, WithRequireKey())
	_, err := p.Chat(context.Background(), deepresearch.ChatRequest{})
	if !errors.Is(err, deepresearch.ErrMissingCredentials) {
		t.Fatalf("got %v, want ErrMissingCredentials", err)
	}
	if called {
		t.Error("no request should be sent without a key")
	}
}

func TestProvider_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("unexpected auth header %q", auth)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	if _, err := NewProvider("", "m", srv.URL).Chat(context.Background(), deepresearch.ChatRequest{}); err != nil {
		t.Fatal(err)
	}
}

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ deepresearch.Provider = NewProvider("", "m", "http://localhost")
}
