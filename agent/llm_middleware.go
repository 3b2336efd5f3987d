package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentry-ai/agentry/config"
	"github.com/agentry-ai/agentry/llm"
	"github.com/rs/zerolog"
)

// RateLimitMiddleware handles rate limit errors and retries.
type RateLimitMiddleware struct {
	logger           zerolog.Logger
	rateLimitHandler *RateLimitHandler
	agentID          string
	agentConfig      *config.AgentConfig
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware.
func NewRateLimitMiddleware(logger zerolog.Logger, rateLimitHandler *RateLimitHandler, agentID string, agentConfig *config.AgentConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		logger:           logger.With().Str("component", "rateLimitMiddleware").Logger(),
		rateLimitHandler: rateLimitHandler,
		agentID:          agentID,
		agentConfig:      agentConfig,
	}
}

// BeforeRequest implements llm.Middleware.BeforeRequest.
func (m *RateLimitMiddleware) BeforeRequest(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	return req, nil
}

// AfterResponse implements llm.Middleware.AfterResponse.
func (m *RateLimitMiddleware) AfterResponse(ctx context.Context, req *llm.Request, resp *llm.Response) (*llm.Response, error) {
	return resp, nil
}

// OnError implements llm.Middleware.OnError.
func (m *RateLimitMiddleware) OnError(ctx context.Context, req *llm.Request, err error) error {
	if err == nil {
		return nil
	}

	if !isRateLimitError(err) {
		return err
	}

	if m.rateLimitHandler == nil {
		return err
	}

	// Extract retry-after from error
	retryAfter := extractRetryAfterFromError(err)

	// Handle rate limit
	delay, shouldRetry, handlerErr := m.rateLimitHandler.HandleRateLimit(ctx, m.agentID, err, 0, nil)
	if handlerErr != nil {
		return fmt.Errorf("rate limit handler error: %w", handlerErr)
	}

	if !shouldRetry {
		// Max retries exceeded - schedule retry using next_wake for scheduled agents
		if m.agentConfig != nil && m.agentConfig.Schedule != "" {
			if retryAfter == 0 {
				retryAfter = delay
			}
			if retryAfter == 0 {
				retryAfter = 60 // Default 60 seconds
			}
			if scheduleErr := m.rateLimitHandler.ScheduleRetryWithNextWake(m.agentID, retryAfter); scheduleErr != nil {
				m.logger.Warn().Err(scheduleErr).Msg("Failed to schedule retry via next_wake")
			} else {
				m.logger.Info().Str("agentID", m.agentID).Int64("retryAfter", retryAfter.Milliseconds()).Msg("Rate limit exceeded for agent. Scheduled retry via next_wake")
				return fmt.Errorf("rate limit exceeded: agent will retry at scheduled time: %w", err)
			}
		}
		return fmt.Errorf("rate limit: max retries exceeded: %w", err)
	}

	// Wait for retry delay
	if waitErr := m.rateLimitHandler.WaitForRetry(ctx, delay); waitErr != nil {
		return fmt.Errorf("context cancelled while waiting for rate limit retry: %w", waitErr)
	}

	// Return error to trigger retry
	return fmt.Errorf("rate limit: %w", err)
}

// BeforeStream implements llm.StreamMiddleware.BeforeStream.
func (m *RateLimitMiddleware) BeforeStream(ctx context.Context, req *llm.Request) (*llm.Request, error) {
	return req, nil
}

// OnStreamEvent implements llm.StreamMiddleware.OnStreamEvent.
func (m *RateLimitMiddleware) OnStreamEvent(ctx context.Context, req *llm.Request, event *llm.StreamEvent) (*llm.StreamEvent, error) {
	return event, nil
}

// OnStreamError implements llm.StreamMiddleware.OnStreamError.
func (m *RateLimitMiddleware) OnStreamError(ctx context.Context, req *llm.Request, err error) error {
	return m.OnError(ctx, req, err)
}

// isRateLimitError checks if an error is a rate limit error from any provider.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if llm.IsRateLimitError(err) {
		return true
	}

	errStr := err.Error()
	// Fall back to common 429 error indicators for errors that did not come
	// through the typed llm.Error path
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Too Many Requests") ||
		strings.Contains(errStr, "Rate limit exceeded")
}

// extractRetryAfterFromError extracts retry-after duration from an error.
func extractRetryAfterFromError(err error) time.Duration {
	if retryAfter := llm.ExtractRetryAfter(err); retryAfter != nil {
		return *retryAfter
	}

	// Default retry after duration if not specified
	return 60 * time.Second
}
