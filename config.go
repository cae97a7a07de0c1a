package deepresearch

import "time"

// Config enumerates everything a run needs besides the provider and tools.
type Config struct {
	// SystemPrompt is sent as the first message with today's date appended.
	// Empty means DefaultSystemPrompt rendered with the registry's tools.
	SystemPrompt string
	Generate     GenerateConfig
	LLM          LLMConfig
	Agent        AgentConfig
}

// GenerateConfig holds model sampling parameters.
type GenerateConfig struct {
	Temperature     float64
	TopP            float64
	PresencePenalty float64
	MaxTokens       int
	Logprobs        bool
}

// LLMConfig holds model runtime parameters. Model, BaseURL, MaxRetries and
// Timeout configure the provider stack; StopSequences go on every request.
type LLMConfig struct {
	Model         string
	BaseURL       string
	APIKey        string
	MaxRetries    int
	Timeout       time.Duration
	StopSequences []string
}

// AgentConfig holds the run budgets and the enabled tools.
type AgentConfig struct {
	MaxLLMCalls int
	MaxRuntime  time.Duration
	// TokenLimit caps the prompt size in tokens. Zero disables the check.
	TokenLimit int
	TokenModel string
	ToolNames  []string
}

// Default tool names.
const (
	ToolSearch  = "search"
	ToolVisit   = "visit"
	ToolScholar = "google_scholar"
)

// DefaultConfig returns the stock configuration for the Tongyi DeepResearch
// model on OpenRouter.
func DefaultConfig() Config {
	return Config{
		Generate: GenerateConfig{
			Temperature:     0.6,
			TopP:            0.95,
			PresencePenalty: 1.1,
			MaxTokens:       10000,
			Logprobs:        true,
		},
		LLM: LLMConfig{
			Model:         "alibaba/tongyi-deepresearch-30b-a3b",
			BaseURL:       "https://openrouter.ai/api/v1",
			MaxRetries:    10,
			Timeout:       600 * time.Second,
			StopSequences: []string{"\n" + ToolResponseStart, ToolResponseStart},
		},
		Agent: AgentConfig{
			MaxLLMCalls: 100,
			MaxRuntime:  150 * time.Minute,
			TokenLimit:  108 * 1024,
			TokenModel:  "gpt-4o",
			ToolNames:   []string{ToolSearch, ToolVisit, ToolScholar},
		},
	}
}

// params builds the per-request generation parameters.
func (c Config) params() *GenerationParams {
	g := c.Generate
	return &GenerationParams{
		Temperature:     &g.Temperature,
		TopP:            &g.TopP,
		PresencePenalty: &g.PresencePenalty,
		MaxTokens:       &g.MaxTokens,
		Stop:            c.LLM.StopSequences,
		Logprobs:        g.Logprobs,
	}
}
