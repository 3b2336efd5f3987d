package config

import (
	"context"
	"os"

	llmbedrock "github.com/agentry-ai/agentry/llm/bedrock"
	"github.com/rs/zerolog"
)

// LoadBedrockConfig loads AWS Bedrock configuration.
// Static credentials take precedence over a shared config profile; when
// neither is set the default AWS credential chain applies.
func LoadBedrockConfig(cfg *Config) llmbedrock.Config {
	var bc llmbedrock.Config
	if cfg != nil {
		bc = llmbedrock.Config{
			Region:          cfg.Bedrock.Region,
			Profile:         cfg.Bedrock.Profile,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			Model:           cfg.Bedrock.Model,
		}
	}

	if envRegion := os.Getenv("AWS_REGION"); envRegion != "" {
		bc.Region = envRegion
	}
	if envProfile := os.Getenv("AWS_PROFILE"); bc.Profile == "" && envProfile != "" {
		bc.Profile = envProfile
	}
	if bc.Region == "" {
		bc.Region = "us-east-1"
	}

	return bc
}

// NewBedrockClient creates a new AWS Bedrock LLM client from the configuration.
func NewBedrockClient(ctx context.Context, cfg *Config, logger zerolog.Logger) (*llmbedrock.BedrockClient, error) {
	return llmbedrock.NewBedrockClient(ctx, LoadBedrockConfig(cfg), logger)
}
