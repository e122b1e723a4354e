// Package config handles wren configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full settings file.
type Config struct {
	Provider  ProviderConfig  `toml:"provider"`
	Search    SearchConfig    `toml:"search"`
	Agent     AgentConfig     `toml:"agent"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ProviderConfig selects the chat-completion endpoint.
type ProviderConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// SearchConfig selects the web-search provider.
type SearchConfig struct {
	Provider    string `toml:"provider"` // tavily, duckduckgo, mcp
	APIKey      string `toml:"api_key"`
	MCPEndpoint string `toml:"mcp_endpoint"`
	MCPCommand  string `toml:"mcp_command"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	MaxRounds    int    `toml:"max_rounds"`
	SystemPrompt string `toml:"system_prompt"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Disable bool `toml:"disable"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "deepseek/deepseek-chat",
			Temperature: 0.7,
		},
		Search: SearchConfig{
			Provider: "duckduckgo",
		},
		Agent: AgentConfig{
			MaxRounds:    5,
			SystemPrompt: "You are a helpful assistant. Use the web_search tool when the user asks about current events or facts you are unsure about.",
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "wren", "config.toml")
}

// Load reads the configuration from the given path, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults plus environment are enough to run.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WREN_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("WREN_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("WREN_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("WREN_SEARCH_API_KEY"); v != "" {
		c.Search.APIKey = v
	}
	if v := os.Getenv("WREN_SEARCH_PROVIDER"); v != "" {
		c.Search.Provider = v
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("provider.base_url", c.Provider.BaseURL)
	v.RequireNonEmpty("provider.model", c.Provider.Model)
	v.ValidateFloatRange("provider.temperature", c.Provider.Temperature, 0, 2)
	v.RequirePositive("agent.max_rounds", c.Agent.MaxRounds)
	v.ValidateOneOf("search.provider", c.Search.Provider, "tavily", "duckduckgo", "mcp")
	if c.Provider.MaxTokens < 0 {
		v.addError("provider.max_tokens", "value cannot be negative")
	}
	return v.Error()
}
