package config

import (
	"os"

	llmgemini "github.com/agentry-ai/agentry/llm/gemini"
	"github.com/rs/zerolog"
)

// LoadGeminiConfig loads Gemini configuration.
// It returns the API key and model to use for creating a Gemini client.
func LoadGeminiConfig(cfg *Config) (apiKey, model string) {
	if cfg != nil {
		apiKey = cfg.Gemini.APIKey
		model = cfg.Gemini.Model
	}
	if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
		apiKey = envKey
	} else if envKey := os.Getenv("GOOGLE_API_KEY"); apiKey == "" && envKey != "" {
		apiKey = envKey
	}
	if envModel := os.Getenv("GEMINI_MODEL"); envModel != "" {
		model = envModel
	}
	return apiKey, model
}

// NewGeminiClient creates a new Gemini LLM client from the configuration.
func NewGeminiClient(cfg *Config, logger zerolog.Logger) (*llmgemini.GeminiClient, error) {
	apiKey, model := LoadGeminiConfig(cfg)
	return llmgemini.NewGeminiClient(apiKey, model, logger)
}
