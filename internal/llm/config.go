package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is one of the Provider* names. Empty disables LLM features.
	Provider string

	Anthropic  ProviderConfig
	OpenAI     ProviderConfig
	Gemini     ProviderConfig
	OpenRouter ProviderConfig
	Retry      RetryConfig

	// Timeout bounds one call including retries.
	Timeout time.Duration
}

// ProviderConfig holds the credentials and model of one provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string // OpenAI-compatible providers only
}

// RetryConfig controls backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns the defaults with no provider selected.
func DefaultConfig() Config {
	return Config{
		Anthropic:  ProviderConfig{Model: "claude-haiku"},
		OpenAI:     ProviderConfig{Model: "gpt-4o-mini"},
		Gemini:     ProviderConfig{Model: "gemini-flash"},
		OpenRouter: ProviderConfig{Model: "google/gemini-2.0-flash-exp", BaseURL: defaultOpenRouterBaseURL},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 30 * time.Second,
	}
}

// EnvPrefix prefixes every environment key read by ConfigFromEnv.
const EnvPrefix = "STEPWISE_"

// ConfigFromEnv overlays STEPWISE_* environment variables on the defaults:
// STEPWISE_LLM_PROVIDER, STEPWISE_LLM_TIMEOUT and, per provider,
// STEPWISE_<PROVIDER>_API_KEY, _MODEL and _BASE_URL.
func ConfigFromEnv() Config {
	return ConfigFromLookup(os.LookupEnv)
}

// ConfigFromLookup is ConfigFromEnv reading keys through lookup.
func ConfigFromLookup(lookup func(string) (string, bool)) Config {
	cfg := DefaultConfig()
	set := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	set("LLM_PROVIDER", &cfg.Provider)
	if v, ok := lookup(EnvPrefix + "LLM_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}

	for name, pc := range map[string]*ProviderConfig{
		"ANTHROPIC":  &cfg.Anthropic,
		"OPENAI":     &cfg.OpenAI,
		"GEMINI":     &cfg.Gemini,
		"OPENROUTER": &cfg.OpenRouter,
	} {
		set(name+"_API_KEY", &pc.APIKey)
		set(name+"_MODEL", &pc.Model)
		set(name+"_BASE_URL", &pc.BaseURL)
	}
	return cfg
}

// Enabled reports whether a provider is selected.
func (c Config) Enabled() bool {
	return c.Provider != ""
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	var pc ProviderConfig
	switch c.Provider {
	case ProviderAnthropic:
		pc = c.Anthropic
	case ProviderOpenAI:
		pc = c.OpenAI
	case ProviderGemini:
		pc = c.Gemini
	case ProviderOpenRouter:
		pc = c.OpenRouter
	case ProviderMock, "":
		return nil
	default:
		return fmt.Errorf("unknown llm provider %q", c.Provider)
	}
	if pc.APIKey == "" {
		return fmt.Errorf("%s%s_API_KEY is required for the %s provider", EnvPrefix, envName(c.Provider), c.Provider)
	}
	return nil
}

func envName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI"
	case ProviderGemini:
		return "GEMINI"
	case ProviderOpenRouter:
		return "OPENROUTER"
	}
	return "ANTHROPIC"
}
