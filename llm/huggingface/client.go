// Package huggingface implements the llm.Client interface for the
// Hugging Face inference router.
package huggingface

import (
	"fmt"

	"github.com/agentry-ai/agentry/llm"
	"github.com/agentry-ai/agentry/llm/openai"
)

// DefaultBaseURL is the Hugging Face OpenAI-compatible router endpoint.
const DefaultBaseURL = "https://router.huggingface.co/v1"

// NewHuggingFaceClient creates an llm.Client backed by the Hugging Face
// inference router. The router speaks the OpenAI chat completions
// protocol, so the client delegates entirely to the openai driver.
func NewHuggingFaceClient(apiKey, model string) (llm.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api token is required")
	}
	return openai.NewOpenAIClient(apiKey, DefaultBaseURL, model, "")
}
