// Package config loads the engine's YAML configuration file and resolves
// provider credentials from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rudi77/taskreactor/llmcap"
)

// ProviderName identifies which concrete LLM provider backs a model alias.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
)

// ModelConfig maps one role alias onto a provider and vendor model ID.
type ModelConfig struct {
	Alias    llmcap.Alias `yaml:"alias"`
	Provider ProviderName `yaml:"provider"`
	Model    string       `yaml:"model"`
}

// RetryConfig mirrors llmcap.RetryPolicy in YAML-friendly form.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// RateLimitConfig bounds outbound LLM call throughput.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Config is the top-level engine configuration decoded from YAML.
type Config struct {
	Models    []ModelConfig   `yaml:"models"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	BasePath  string          `yaml:"base_path"`
	TrustMode bool            `yaml:"trust_mode"`
}

// Load reads and decodes a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// AliasTable builds an llmcap.AliasTable from the configured models for the
// given provider, so each provider adapter only sees the aliases it backs.
func (c *Config) AliasTable(provider ProviderName) llmcap.AliasTable {
	table := llmcap.AliasTable{}
	for _, m := range c.Models {
		if m.Provider == provider {
			table[m.Alias] = m.Model
		}
	}
	return table
}

// RetryPolicy converts RetryConfig into an llmcap.RetryPolicy, falling back
// to llmcap.DefaultRetryPolicy for zero-valued fields.
func (c *Config) RetryPolicy() llmcap.RetryPolicy {
	p := llmcap.DefaultRetryPolicy
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay > 0 {
		p.BaseDelay = c.Retry.BaseDelay
	}
	if c.Retry.MaxDelay > 0 {
		p.MaxDelay = c.Retry.MaxDelay
	}
	return p
}

// Credentials holds API keys read from the environment. Missing keys are
// left blank; callers decide whether that is fatal for the providers they
// actually intend to use.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// LoadCredentials reads provider API keys from the environment, warning
// (not failing) through warn for any that are unset, since a deployment may
// legitimately only use one provider. warn may be nil to suppress warnings.
func LoadCredentials(warn func(msg string, keyvals ...any)) Credentials {
	creds := Credentials{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
	}
	if warn == nil {
		return creds
	}
	if creds.AnthropicAPIKey == "" {
		warn("anthropic provider unavailable", "reason", "ANTHROPIC_API_KEY not set")
	}
	if creds.OpenAIAPIKey == "" {
		warn("openai provider unavailable", "reason", "OPENAI_API_KEY not set")
	}
	return creds
}
