// Package mistral implements the llm.Client interface for Mistral's
// La Plateforme chat completions API.
package mistral

import (
	"fmt"

	"github.com/agentry-ai/agentry/llm"
	"github.com/agentry-ai/agentry/llm/openai"
)

// DefaultBaseURL is Mistral's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.mistral.ai/v1"

// NewMistralClient creates an llm.Client backed by Mistral.
// The wire protocol is OpenAI-compatible, so the client delegates
// entirely to the openai driver with Mistral's endpoint.
func NewMistralClient(apiKey, model string) (llm.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return openai.NewOpenAIClient(apiKey, DefaultBaseURL, model, "")
}
