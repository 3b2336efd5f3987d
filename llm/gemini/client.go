// Package gemini implements the llm.Client interface for Google's
// Gemini generateContent API over plain HTTP.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/agentry-ai/agentry/llm"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements the llm.Client interface for Gemini.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string // Default model to use if not specified in request
	logger     zerolog.Logger
}

// NewGeminiClient creates a new GeminiClient.
// If apiKey is empty, it will return an error.
func NewGeminiClient(apiKey, model string, logger zerolog.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		logger:     logger.With().Str("component", "geminiClient").Logger(),
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *GeminiClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model, err := c.resolveModel(req)
	if err != nil {
		return nil, err
	}

	genReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpResp, err := c.post(ctx, url, genReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.NewNetworkError("failed to read Gemini response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, convertGeminiError(httpResp.StatusCode, httpResp.Header, body)
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, llm.NewProviderError("failed to decode Gemini response", err)
	}

	if len(genResp.Candidates) == 0 {
		return nil, llm.NewProviderError("Gemini response contained no candidates", nil)
	}

	cand := genResp.Candidates[0]
	blocks := fromGeminiCandidate(cand)

	hasToolCall := false
	for _, b := range blocks {
		if b.Type == llm.ContentBlockTypeToolUse {
			hasToolCall = true
			break
		}
	}

	return &llm.Response{
		Content:    blocks,
		Usage:      fromGeminiUsage(genResp.UsageMetadata),
		StopReason: mapFinishReason(cand.FinishReason, hasToolCall),
	}, nil
}

// Stream implements llm.Client.Stream.
func (c *GeminiClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model, err := c.resolveModel(req)
	if err != nil {
		return nil, err
	}

	genReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, model, c.apiKey)
	httpResp, err := c.post(ctx, url, genReq)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close() //nolint:errcheck
		if readErr != nil {
			return nil, llm.NewNetworkError("failed to read Gemini error response", readErr)
		}
		return nil, convertGeminiError(httpResp.StatusCode, httpResp.Header, body)
	}

	return newGeminiStream(ctx, httpResp.Body, c.logger), nil
}

func (c *GeminiClient) resolveModel(req *llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", fmt.Errorf("model is required")
	}
	return model, nil
}

func (c *GeminiClient) buildRequest(req *llm.Request) (*generateContentRequest, error) {
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	genReq := &generateContentRequest{
		Contents: contents,
		Tools:    toGeminiTools(req.Tools),
	}

	if req.System != "" {
		genReq.SystemInstruction = &content{
			Parts: []part{{Text: req.System}},
		}
	}

	if req.MaxTokens > 0 || req.Temperature != nil {
		genReq.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}

	return genReq, nil
}

func (c *GeminiClient) post(ctx context.Context, url string, genReq *generateContentRequest) (*http.Response, error) {
	payload, err := json.Marshal(genReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.NewNetworkError("Gemini request failed", err)
	}
	return httpResp, nil
}

// convertGeminiError converts HTTP error responses to llm.Error types.
func convertGeminiError(statusCode int, header http.Header, body []byte) error {
	message := string(body)
	var genResp generateContentResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Error != nil {
		message = genResp.Error.Message
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		retryAfter := 60 * time.Second
		if v := header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return llm.NewRateLimitError(
			fmt.Sprintf("Gemini rate limit: %s", message),
			&retryAfter,
			nil,
		)
	case http.StatusRequestEntityTooLarge:
		return llm.NewRequestTooLargeError(
			fmt.Sprintf("Gemini request too large: %s", message),
			nil,
		)
	case http.StatusBadRequest:
		return &llm.Error{
			Type:       llm.ErrorTypeInvalidRequest,
			Message:    fmt.Sprintf("Gemini invalid request: %s", message),
			Retryable:  false,
			StatusCode: statusCode,
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &llm.Error{
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("Gemini server error: %s", message),
			Retryable:  true,
			StatusCode: statusCode,
		}
	default:
		return &llm.Error{
			Type:       llm.ErrorTypeProvider,
			Message:    fmt.Sprintf("Gemini API error: %s", message),
			Retryable:  false,
			StatusCode: statusCode,
		}
	}
}

// Ensure GeminiClient implements llm.Client
var _ llm.Client = (*GeminiClient)(nil)
