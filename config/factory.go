package config

import (
	"context"
	"fmt"

	"github.com/agentry-ai/agentry/llm"
	llmanthropic "github.com/agentry-ai/agentry/llm/anthropic"
	llmbedrock "github.com/agentry-ai/agentry/llm/bedrock"
	llmgemini "github.com/agentry-ai/agentry/llm/gemini"
	llmgroq "github.com/agentry-ai/agentry/llm/groq"
	llmhuggingface "github.com/agentry-ai/agentry/llm/huggingface"
	llmmistral "github.com/agentry-ai/agentry/llm/mistral"
	llmollama "github.com/agentry-ai/agentry/llm/ollama"
	llmopenai "github.com/agentry-ai/agentry/llm/openai"
	"github.com/rs/zerolog"
)

// ProviderRegistryConfig converts the application config into the
// provider registry's configuration format.
func ProviderRegistryConfig(cfg *Config) *llm.ProviderConfig {
	if cfg == nil {
		return &llm.ProviderConfig{}
	}
	return &llm.ProviderConfig{
		AnthropicAPIKey: cfg.Anthropic.APIKey,
		AnthropicModel:  cfg.Anthropic.Model,

		OpenAIAPIKey:  cfg.OpenAI.APIKey,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		OpenAIModel:   cfg.OpenAI.Model,
		OpenAIOrg:     cfg.OpenAI.Organization,

		GeminiAPIKey: cfg.Gemini.APIKey,
		GeminiModel:  cfg.Gemini.Model,

		GroqAPIKey: cfg.Groq.APIKey,
		GroqModel:  cfg.Groq.Model,

		MistralAPIKey: cfg.Mistral.APIKey,
		MistralModel:  cfg.Mistral.Model,

		HuggingFaceAPIKey: cfg.HuggingFace.APIKey,
		HuggingFaceModel:  cfg.HuggingFace.Model,

		OllamaHost:  cfg.Ollama.Host,
		OllamaModel: cfg.Ollama.Model,

		BedrockRegion:  cfg.Bedrock.Region,
		BedrockProfile: cfg.Bedrock.Profile,
		BedrockModel:   cfg.Bedrock.Model,
	}
}

// NewClientForKey creates an LLM client for a resolved ClientKey.
// The application config supplies credentials that are not carried on the
// key itself (Bedrock static credentials). Callers are expected to cache
// the returned client keyed on the ClientKey string.
func NewClientForKey(ctx context.Context, cfg *Config, key *llm.ClientKey, logger zerolog.Logger) (llm.Client, error) {
	switch key.Provider {
	case llm.ProviderAnthropic:
		if key.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return llmanthropic.NewAnthropicClient(key.APIKey, logger)

	case llm.ProviderOpenAI:
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		return llmopenai.NewOpenAIClient(key.APIKey, key.BaseURL, key.Model, key.Organization)

	case llm.ProviderGemini:
		if key.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		return llmgemini.NewGeminiClient(key.APIKey, key.Model, logger)

	case llm.ProviderGroq:
		if key.APIKey == "" {
			return nil, fmt.Errorf("groq API key is required")
		}
		return llmgroq.NewGroqClient(key.APIKey, key.Model)

	case llm.ProviderMistral:
		if key.APIKey == "" {
			return nil, fmt.Errorf("mistral API key is required")
		}
		return llmmistral.NewMistralClient(key.APIKey, key.Model)

	case llm.ProviderHuggingFace:
		if key.APIKey == "" {
			return nil, fmt.Errorf("huggingface API token is required")
		}
		return llmhuggingface.NewHuggingFaceClient(key.APIKey, key.Model)

	case llm.ProviderOllama:
		return llmollama.NewOllamaClient(key.Host, key.Model)

	case llm.ProviderBedrock:
		bc := LoadBedrockConfig(cfg)
		bc.Model = key.Model
		if key.Region != "" {
			bc.Region = key.Region
		}
		if key.Profile != "" {
			bc.Profile = key.Profile
		}
		return llmbedrock.NewBedrockClient(ctx, bc, logger)

	default:
		return nil, fmt.Errorf("unknown provider: %s", key.Provider)
	}
}
