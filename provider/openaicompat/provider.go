package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nevindra/deepresearch"
)

// Provider implements deepresearch.Provider for any OpenAI-compatible API.
//
// Works with OpenRouter, OpenAI, Together, DeepSeek, vLLM, SGLang, Ollama and
// any other server that implements the chat completions endpoint.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	client     *http.Client
	name       string
	opts       []Option
	headers    http.Header
	requireKey bool
}

// NewProvider creates an OpenAI-compatible chat provider.
//
// baseURL is the API base (e.g. "https://openrouter.ai/api/v1",
// "http://localhost:8000/v1"). The /chat/completions path is appended
// automatically.
func NewProvider(apiKey, model, baseURL string, opts ...ProviderOption) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		name:    "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Model returns the model identifier sent with every request.
func (p *Provider) Model() string { return p.model }

// mergeGenParams returns the provider's base options with any per-request
// GenerationParams appended. Per-request params override provider defaults
// because options are applied in order (last wins).
func (p *Provider) mergeGenParams(params *deepresearch.GenerationParams) []Option {
	if params == nil {
		return p.opts
	}
	opts := make([]Option, len(p.opts), len(p.opts)+6)
	copy(opts, p.opts)
	if params.Temperature != nil {
		opts = append(opts, WithTemperature(*params.Temperature))
	}
	if params.TopP != nil {
		opts = append(opts, WithTopP(*params.TopP))
	}
	if params.PresencePenalty != nil {
		opts = append(opts, WithPresencePenalty(*params.PresencePenalty))
	}
	if params.MaxTokens != nil {
		opts = append(opts, WithMaxTokens(*params.MaxTokens))
	}
	if len(params.Stop) > 0 {
		opts = append(opts, WithStop(params.Stop...))
	}
	if params.Logprobs {
		opts = append(opts, WithLogprobs(true))
	}
	return opts
}

// Chat sends a chat request and returns the complete response. A reply with
// neither content nor reasoning is reported as an ErrLLM so retry middleware
// asks again.
func (p *Provider) Chat(ctx context.Context, req deepresearch.ChatRequest) (deepresearch.ChatResponse, error) {
	if p.requireKey && p.apiKey == "" {
		return deepresearch.ChatResponse{}, deepresearch.ErrMissingCredentials
	}
	body := BuildBody(req.Messages, p.model, p.mergeGenParams(req.GenerationParams)...)
	out, err := p.doRequest(ctx, body)
	if err != nil {
		return deepresearch.ChatResponse{}, err
	}
	if strings.TrimSpace(out.Content) == "" && out.Reasoning == "" {
		return out, &deepresearch.ErrLLM{Provider: p.name, Message: "empty response"}
	}
	return out, nil
}

// doRequest sends the request and parses the response.
func (p *Provider) doRequest(ctx context.Context, body ChatRequest) (deepresearch.ChatResponse, error) {
	resp, err := p.sendHTTP(ctx, body)
	if err != nil {
		return deepresearch.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return deepresearch.ChatResponse{}, p.httpErr(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return deepresearch.ChatResponse{}, &deepresearch.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return ParseResponse(chatResp), nil
}

// sendHTTP marshals the request body and sends it to the chat completions endpoint.
func (p *Provider) sendHTTP(ctx context.Context, body ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &deepresearch.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &deepresearch.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	for k, v := range p.headers {
		httpReq.Header[k] = v
	}

	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP for retry middleware.
// Parses the Retry-After header when present (429/503 responses).
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &deepresearch.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: deepresearch.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

// Compile-time interface check.
var _ deepresearch.Provider = (*Provider)(nil)
