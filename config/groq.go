package config

import (
	"os"

	"github.com/agentry-ai/agentry/llm"
	llmgroq "github.com/agentry-ai/agentry/llm/groq"
)

// LoadGroqConfig loads Groq configuration.
func LoadGroqConfig(cfg *Config) (apiKey, model string) {
	if cfg != nil {
		apiKey = cfg.Groq.APIKey
		model = cfg.Groq.Model
	}
	if envKey := os.Getenv("GROQ_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if envModel := os.Getenv("GROQ_MODEL"); envModel != "" {
		model = envModel
	}
	return apiKey, model
}

// NewGroqClient creates a new Groq LLM client from the configuration.
func NewGroqClient(cfg *Config) (llm.Client, error) {
	apiKey, model := LoadGroqConfig(cfg)
	return llmgroq.NewGroqClient(apiKey, model)
}
