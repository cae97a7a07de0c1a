package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/nevindra/deepresearch"
)

// DefaultPath is read when Load is given an empty path.
const DefaultPath = "deepresearch.toml"

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Generate   GenerateConfig   `toml:"generate"`
	Agent      AgentConfig      `toml:"agent"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	Search     SearchConfig     `toml:"search"`
	Visit      VisitConfig      `toml:"visit"`
	Database   DatabaseConfig   `toml:"database"`
	Observer   ObserverConfig   `toml:"observer"`
	RateLimit  RateLimitConfig  `toml:"ratelimit"`
}

type LLMConfig struct {
	Model          string   `toml:"model"`
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	MaxRetries     int      `toml:"max_retries"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	Stop           []string `toml:"stop"`
}

type GenerateConfig struct {
	Temperature     float64 `toml:"temperature"`
	TopP            float64 `toml:"top_p"`
	PresencePenalty float64 `toml:"presence_penalty"`
	MaxTokens       int     `toml:"max_tokens"`
	Logprobs        bool    `toml:"logprobs"`
}

type AgentConfig struct {
	MaxLLMCalls       int      `toml:"max_llm_calls"`
	MaxRuntimeMinutes int      `toml:"max_runtime_minutes"`
	TokenLimit        int      `toml:"token_limit"`
	TokenModel        string   `toml:"token_model"`
	Tools             []string `toml:"tools"`
	SystemPrompt      string   `toml:"system_prompt"`
	SystemPromptFile  string   `toml:"system_prompt_file"`
}

// SummarizerConfig is the model the visit tool uses for extraction. It is
// disabled unless base URL, key and model are all set.
type SummarizerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type SearchConfig struct {
	SerperKey string `toml:"serper_key"`
	BaseURL   string `toml:"base_url"`
}

type VisitConfig struct {
	JinaKeys           string `toml:"jina_keys"`
	RenderURL          string `toml:"render_url"`
	MaxTokens          int    `toml:"max_tokens"`
	BatchBudgetMinutes int    `toml:"batch_budget_minutes"`
}

// DatabaseConfig selects the run store: "sqlite" (Path) or "postgres" (URL).
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	URL    string `toml:"url"`
}

type ObserverConfig struct {
	Enabled bool                       `toml:"enabled"`
	Pricing map[string]ObserverPricing `toml:"pricing"`
}

type ObserverPricing struct {
	Input  float64 `toml:"input"`
	Output float64 `toml:"output"`
}

type RateLimitConfig struct {
	RPM int `toml:"rpm"`
	TPM int `toml:"tpm"`
}

// Enabled reports whether the summarizer is fully configured.
func (s SummarizerConfig) Enabled() bool {
	return s.BaseURL != "" && s.APIKey != "" && s.Model != ""
}

// Default returns a Config with all defaults applied.
func Default() Config {
	d := deepresearch.DefaultConfig()
	return Config{
		LLM: LLMConfig{
			Model:          d.LLM.Model,
			BaseURL:        d.LLM.BaseURL,
			MaxRetries:     d.LLM.MaxRetries,
			TimeoutSeconds: int(d.LLM.Timeout / time.Second),
			Stop:           d.LLM.StopSequences,
		},
		Generate: GenerateConfig{
			Temperature:     d.Generate.Temperature,
			TopP:            d.Generate.TopP,
			PresencePenalty: d.Generate.PresencePenalty,
			MaxTokens:       d.Generate.MaxTokens,
			Logprobs:        d.Generate.Logprobs,
		},
		Agent: AgentConfig{
			MaxLLMCalls:       d.Agent.MaxLLMCalls,
			MaxRuntimeMinutes: int(d.Agent.MaxRuntime / time.Minute),
			TokenLimit:        d.Agent.TokenLimit,
			TokenModel:        d.Agent.TokenModel,
			Tools:             d.Agent.ToolNames,
		},
		Visit:    VisitConfig{MaxTokens: 95000, BatchBudgetMinutes: 15},
		Database: DatabaseConfig{Driver: "sqlite", Path: "deepresearch.db"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins). A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	applyEnv(&cfg)

	if cfg.Agent.SystemPromptFile != "" {
		b, err := os.ReadFile(cfg.Agent.SystemPromptFile)
		if err != nil {
			return cfg, fmt.Errorf("config: system prompt: %w", err)
		}
		cfg.Agent.SystemPrompt = string(b)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_BASE"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("MAX_LLM_CALL_PER_RUN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxLLMCalls = n
		}
	}
	if v := os.Getenv("SERPER_KEY_ID"); v != "" {
		cfg.Search.SerperKey = v
	}
	if v := os.Getenv("JINA_API_KEYS"); v != "" {
		cfg.Visit.JinaKeys = v
	}
	if v := os.Getenv("RENDER_URL"); v != "" {
		cfg.Visit.RenderURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Summarizer.APIKey = v
	}
	if v := os.Getenv("API_BASE"); v != "" {
		cfg.Summarizer.BaseURL = v
	}
	if v := os.Getenv("SUMMARY_MODEL_NAME"); v != "" {
		cfg.Summarizer.Model = v
	}
	if v := os.Getenv("DEEPRESEARCH_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Database.Driver = "postgres"
		}
	}
	if v := os.Getenv("DEEPRESEARCH_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}
}

// ToAgentConfig maps the file config onto the agent's runtime config.
func (c Config) ToAgentConfig() deepresearch.Config {
	out := deepresearch.DefaultConfig()
	out.SystemPrompt = c.Agent.SystemPrompt
	out.Generate = deepresearch.GenerateConfig{
		Temperature:     c.Generate.Temperature,
		TopP:            c.Generate.TopP,
		PresencePenalty: c.Generate.PresencePenalty,
		MaxTokens:       c.Generate.MaxTokens,
		Logprobs:        c.Generate.Logprobs,
	}
	out.LLM = deepresearch.LLMConfig{
		Model:         c.LLM.Model,
		BaseURL:       c.LLM.BaseURL,
		APIKey:        c.LLM.APIKey,
		MaxRetries:    c.LLM.MaxRetries,
		Timeout:       time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		StopSequences: c.LLM.Stop,
	}
	out.Agent = deepresearch.AgentConfig{
		MaxLLMCalls: c.Agent.MaxLLMCalls,
		MaxRuntime:  time.Duration(c.Agent.MaxRuntimeMinutes) * time.Minute,
		TokenLimit:  c.Agent.TokenLimit,
		TokenModel:  c.Agent.TokenModel,
		ToolNames:   c.Agent.Tools,
	}
	return out
}
