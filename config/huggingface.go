package config

import (
	"os"

	"github.com/agentry-ai/agentry/llm"
	llmhuggingface "github.com/agentry-ai/agentry/llm/huggingface"
)

// LoadHuggingFaceConfig loads Hugging Face configuration.
func LoadHuggingFaceConfig(cfg *Config) (apiKey, model string) {
	if cfg != nil {
		apiKey = cfg.HuggingFace.APIKey
		model = cfg.HuggingFace.Model
	}
	if envKey := os.Getenv("HF_TOKEN"); envKey != "" {
		apiKey = envKey
	}
	if envModel := os.Getenv("HF_MODEL"); envModel != "" {
		model = envModel
	}
	return apiKey, model
}

// NewHuggingFaceClient creates a new Hugging Face LLM client from the configuration.
func NewHuggingFaceClient(cfg *Config) (llm.Client, error) {
	apiKey, model := LoadHuggingFaceConfig(cfg)
	return llmhuggingface.NewHuggingFaceClient(apiKey, model)
}
