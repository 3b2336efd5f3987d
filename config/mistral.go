package config

import (
	"os"

	"github.com/agentry-ai/agentry/llm"
	llmmistral "github.com/agentry-ai/agentry/llm/mistral"
)

// LoadMistralConfig loads Mistral configuration.
func LoadMistralConfig(cfg *Config) (apiKey, model string) {
	if cfg != nil {
		apiKey = cfg.Mistral.APIKey
		model = cfg.Mistral.Model
	}
	if envKey := os.Getenv("MISTRAL_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if envModel := os.Getenv("MISTRAL_MODEL"); envModel != "" {
		model = envModel
	}
	return apiKey, model
}

// NewMistralClient creates a new Mistral LLM client from the configuration.
func NewMistralClient(cfg *Config) (llm.Client, error) {
	apiKey, model := LoadMistralConfig(cfg)
	return llmmistral.NewMistralClient(apiKey, model)
}
