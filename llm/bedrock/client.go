// Package bedrock implements the llm.Client interface for AWS Bedrock
// using the Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentry-ai/agentry/llm"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Throttling retries use exponential backoff up to this limit.
const maxRetryElapsed = 2 * time.Minute

// Config holds AWS connection settings for the Bedrock client.
// When AccessKeyID and SecretAccessKey are empty, the default AWS
// credential chain is used (environment, shared config, IMDS).
type Config struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Model           string
}

// BedrockClient implements the llm.Client interface for AWS Bedrock.
type BedrockClient struct {
	client *bedrockruntime.Client
	model  string // Default model to use if not specified in request
	logger zerolog.Logger

	// toolNameMap maps sanitized tool names (required by Bedrock) back to
	// the names the tool registry knows.
	mu          sync.Mutex
	toolNameMap map[string]string
}

// NewBedrockClient creates a new BedrockClient.
func NewBedrockClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*BedrockClient, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	case cfg.Profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClient{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		model:       cfg.Model,
		logger:      logger.With().Str("component", "bedrockClient").Logger(),
		toolNameMap: make(map[string]string),
	}, nil
}

// Synchronous implements llm.Client.Synchronous.
func (c *BedrockClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	input, nameMap, err := c.buildConverseInput(req)
	if err != nil {
		return nil, err
	}

	// Bedrock throttles aggressively; retry throttled calls with
	// exponential backoff before surfacing a rate limit error.
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = maxRetryElapsed

	output, err := backoff.RetryWithData(func() (*bedrockruntime.ConverseOutput, error) {
		out, converseErr := c.client.Converse(ctx, input)
		if converseErr != nil {
			var throttle *bedrocktypes.ThrottlingException
			if errors.As(converseErr, &throttle) {
				c.logger.Warn().Str("model", *input.ModelId).Msg("Bedrock throttled request, backing off")
				return nil, converseErr
			}
			return nil, backoff.Permanent(converseErr)
		}
		return out, nil
	}, backoff.WithContext(expo, ctx))
	if err != nil {
		return nil, convertBedrockError(err)
	}

	c.mu.Lock()
	c.toolNameMap = nameMap
	c.mu.Unlock()

	return fromConverseOutput(output, nameMap)
}

// Stream implements llm.Client.Stream.
//
// ConverseStream does not reliably deliver tool input fragments for all
// hosted models, so streaming executes a full Converse call and replays
// the response as stream events.
func (c *BedrockClient) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	resp, err := c.Synchronous(ctx, req)
	if err != nil {
		return nil, err
	}
	return newBedrockStream(resp), nil
}

func (c *BedrockClient) buildConverseInput(req *llm.Request) (*bedrockruntime.ConverseInput, map[string]string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, nil, fmt.Errorf("model is required")
	}

	nameMap := make(map[string]string)
	systemBlocks, messages, err := toConverseMessages(req.Messages, nameMap)
	if err != nil {
		return nil, nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &model,
		Messages: messages,
	}

	if req.System != "" {
		systemBlocks = append([]bedrocktypes.SystemContentBlock{
			&bedrocktypes.SystemContentBlockMemberText{Value: req.System},
		}, systemBlocks...)
	}
	if len(systemBlocks) > 0 {
		input.System = systemBlocks
	}

	if len(req.Tools) > 0 {
		input.ToolConfig = toConverseTools(req.Tools, nameMap)
	}

	inference := &bedrocktypes.InferenceConfiguration{}
	configured := false
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		inference.MaxTokens = &maxTokens
		configured = true
	}
	if req.Temperature != nil {
		temperature := float32(*req.Temperature)
		inference.Temperature = &temperature
		configured = true
	}
	if configured {
		input.InferenceConfig = inference
	}

	return input, nameMap, nil
}

// convertBedrockError converts AWS SDK errors to llm.Error types.
func convertBedrockError(err error) error {
	if err == nil {
		return nil
	}

	var throttle *bedrocktypes.ThrottlingException
	if errors.As(err, &throttle) {
		retryAfter := 60 * time.Second
		return llm.NewRateLimitError("Bedrock throttled request", &retryAfter, err)
	}

	var validation *bedrocktypes.ValidationException
	if errors.As(err, &validation) {
		return llm.NewInvalidRequestError("Bedrock validation error", err)
	}

	var timeout *bedrocktypes.ModelTimeoutException
	if errors.As(err, &timeout) {
		return llm.NewTimeoutError("Bedrock model timed out", err)
	}

	var notReady *bedrocktypes.ModelNotReadyException
	if errors.As(err, &notReady) {
		return &llm.Error{
			Type:        llm.ErrorTypeProvider,
			Message:     "Bedrock model not ready",
			Retryable:   true,
			ProviderErr: err,
		}
	}

	return llm.NewProviderError("Bedrock API error", err)
}

// Ensure BedrockClient implements llm.Client
var _ llm.Client = (*BedrockClient)(nil)
