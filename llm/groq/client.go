// Package groq implements the llm.Client interface for Groq's
// OpenAI-compatible chat completions API.
package groq

import (
	"fmt"

	"github.com/agentry-ai/agentry/llm"
	"github.com/agentry-ai/agentry/llm/openai"
)

// DefaultBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// NewGroqClient creates an llm.Client backed by Groq.
// The wire protocol is OpenAI-compatible, so the client delegates
// entirely to the openai driver with Groq's endpoint.
func NewGroqClient(apiKey, model string) (llm.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	return openai.NewOpenAIClient(apiKey, DefaultBaseURL, model, "")
}
