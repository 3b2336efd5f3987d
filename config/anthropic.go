package config

import (
	"os"

	llmanthropic "github.com/agentry-ai/agentry/llm/anthropic"
	"github.com/rs/zerolog"
)

// LoadAnthropicConfig loads Anthropic configuration.
// It returns the API key to use for creating an Anthropic client.
func LoadAnthropicConfig(cfg *Config) (apiKey string) {
	if cfg != nil {
		apiKey = cfg.Anthropic.APIKey
	}
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	return apiKey
}

// NewAnthropicClient creates a new Anthropic LLM client from the configuration.
func NewAnthropicClient(cfg *Config, logger zerolog.Logger) (*llmanthropic.AnthropicClient, error) {
	apiKey := LoadAnthropicConfig(cfg)
	return llmanthropic.NewAnthropicClient(apiKey, logger)
}
