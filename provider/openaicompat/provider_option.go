package openaicompat

import "net/http"

// ProviderOption configures a Provider instance.
type ProviderOption func(*Provider)

// WithName sets the provider name returned by Name() (default "openai").
// Use this to distinguish providers in logs and observability.
func WithName(name string) ProviderOption {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) { p.client = c }
}

// WithOptions appends request-level options (temperature, top_p, etc.)
// that are applied to every request made by this provider.
func WithOptions(opts ...Option) ProviderOption {
	return func(p *Provider) { p.opts = append(p.opts, opts...) }
}

// WithHeader adds a header to every request. OpenRouter reads HTTP-Referer
// and X-Title for attribution.
func WithHeader(key, value string) ProviderOption {
	return func(p *Provider) {
		if p.headers == nil {
			p.headers = http.Header{}
		}
		p.headers.Set(key, value)
	}
}

// WithRequireKey makes Chat fail with deepresearch.ErrMissingCredentials when
// no API key is configured. Local servers usually run without one.
func WithRequireKey() ProviderOption {
	return func(p *Provider) { p.requireKey = true }
}
