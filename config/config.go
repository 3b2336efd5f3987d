package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for the Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Anthropic API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// OpenAIConfig represents configuration for the OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// GeminiConfig represents configuration for the Google Gemini LLM provider.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Gemini API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// GroqConfig represents configuration for the Groq LLM provider.
type GroqConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Groq API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// MistralConfig represents configuration for the Mistral LLM provider.
type MistralConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Mistral API key
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// HuggingFaceConfig represents configuration for the Hugging Face inference router.
type HuggingFaceConfig struct {
	APIKey string `yaml:"api_key,omitempty"` // Hugging Face API token
	Model  string `yaml:"model,omitempty"`   // Default model name
}

// OllamaConfig represents configuration for the Ollama LLM provider.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`    // Ollama host (default: "http://localhost:11434")
	Model   string `yaml:"model,omitempty"`   // Default model name
	Timeout int    `yaml:"timeout,omitempty"` // Request timeout in seconds
}

// BedrockConfig represents configuration for the AWS Bedrock LLM provider.
type BedrockConfig struct {
	Region          string `yaml:"region,omitempty"`            // AWS region (default: us-east-1)
	Profile         string `yaml:"profile,omitempty"`           // AWS shared config profile
	AccessKeyID     string `yaml:"access_key_id,omitempty"`     // Static credentials (optional)
	SecretAccessKey string `yaml:"secret_access_key,omitempty"` // Static credentials (optional)
	Model           string `yaml:"model,omitempty"`             // Default model ID
}

// StorageConfig represents configuration for conversation storage.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite", "postgres", or "json"
	DSN    string `yaml:"dsn,omitempty"`    // Database path (sqlite) or connection URL (postgres)
	Path   string `yaml:"path,omitempty"`   // Directory for the JSON file store
}

// WorkspaceSettings represents configuration for workspace management.
type WorkspaceSettings struct {
	File        string `yaml:"file,omitempty"`         // Path to the workspace definition file
	AutoConfirm bool   `yaml:"auto_confirm,omitempty"` // Skip confirmation prompts
}

// LLMPreference represents a single LLM provider/model preference for an agent.
// Agents can specify multiple preferences in order, and the system will use
// the first available provider from the preference list.
type LLMPreference struct {
	Provider    string   `yaml:"provider" json:"provider"`                           // e.g. "anthropic", "gemini", "bedrock"
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`             // Optional: uses provider default if omitted
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"` // Optional temperature override
	APIKeyRef   string   `yaml:"api_key_ref,omitempty" json:"api_key_ref,omitempty"` // Future: reference to credential store
}

// AgentConfig represents the configuration for a single agent.
type AgentConfig struct {
	ID           string          `yaml:"id" json:"id"`
	Name         string          `yaml:"name" json:"name"`
	System       string          `yaml:"system_prompt" json:"system"`
	MaxTokens    int64           `yaml:"max_tokens" json:"max_tokens"`
	Tools        []string        `yaml:"tools" json:"tools"`
	Schedule     string          `yaml:"schedule" json:"schedule"`           // e.g., "15m", "2h", "0 */15 * * * *" (cron)
	Disabled     bool            `yaml:"disabled" json:"disabled"`           // default: false (agent is enabled by default)
	StartupDelay string          `yaml:"startup_delay" json:"startup_delay"` // e.g., "5m", "30s", "1h" - one-time delay after app launch
	LLM          []LLMPreference `yaml:"llm,omitempty" json:"llm,omitempty"` // Ordered list of provider/model preferences
}

// Config represents the full application configuration.
type Config struct {
	// LLM provider configurations
	Anthropic   AnthropicConfig   `yaml:"anthropic,omitempty"`
	OpenAI      OpenAIConfig      `yaml:"openai,omitempty"`
	Gemini      GeminiConfig      `yaml:"gemini,omitempty"`
	Groq        GroqConfig        `yaml:"groq,omitempty"`
	Mistral     MistralConfig     `yaml:"mistral,omitempty"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface,omitempty"`
	Ollama      OllamaConfig      `yaml:"ollama,omitempty"`
	Bedrock     BedrockConfig     `yaml:"bedrock,omitempty"`

	// Agent configuration
	LLMProviders []string                `yaml:"llm_providers,omitempty"`
	Agents       map[string]*AgentConfig `yaml:"agents,omitempty"`

	// Storage and workspace
	Storage   StorageConfig     `yaml:"storage,omitempty"`
	Workspace WorkspaceSettings `yaml:"workspace,omitempty"`

	ChatTimeout int `yaml:"chat_timeout,omitempty"`
}

// GetConfigPath returns the default config file path.
// Can be overridden via AGENTRY_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("AGENTRY_CONFIG_PATH"); envPath != "" {
		return ExpandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.agentry/config.yaml"
	}
	return filepath.Join(homeDir, ".agentry", "config.yaml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(cfg *Config, path string) error {
	expandedPath := ExpandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write file
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads the application configuration.
// Configuration is layered: built-in defaults, then the agents file
// (agents.yaml or AGENTRY_AGENTS_CONFIG), then the user config file.
func LoadConfig(path string) (*Config, error) {
	// Step 1: Set defaults
	defaults := Config{
		LLMProviders: []string{"anthropic"},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Timeout: 60,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Bedrock: BedrockConfig{
			Region: "us-east-1",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "~/.agentry/conversations.db",
			Path:   "~/.agentry/conversations",
		},
		Workspace: WorkspaceSettings{
			File: "workspace.yaml",
		},
		ChatTimeout: 60,
		Agents:      make(map[string]*AgentConfig),
	}

	// Step 2: Load and merge the agents file (if it exists)
	agentsConfigPath := "agents.yaml"
	if envPath := os.Getenv("AGENTRY_AGENTS_CONFIG"); envPath != "" {
		agentsConfigPath = envPath
	}

	if _, err := os.Stat(agentsConfigPath); err == nil {
		agentsYAML, err := os.ReadFile(agentsConfigPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read agents config from %q: %w", agentsConfigPath, err)
		}

		var agentsConfig Config
		if err := yaml.Unmarshal(agentsYAML, &agentsConfig); err != nil {
			return nil, fmt.Errorf("failed to parse agents config: %w", err)
		}

		if err := mergo.Merge(&defaults, agentsConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge agents config: %w", err)
		}
	}

	// Step 3: Merge user config file onto the result (if it exists)
	expandedPath := ExpandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		userConfigYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read user config file %q: %w", expandedPath, err)
		}

		var userConfig Config
		if err := yaml.Unmarshal(userConfigYAML, &userConfig); err != nil {
			return nil, fmt.Errorf("failed to parse user config: %w", err)
		}

		if err := mergo.Merge(&defaults, userConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge user config: %w", err)
		}
	}

	// Initialize maps if they're nil
	if defaults.Agents == nil {
		defaults.Agents = make(map[string]*AgentConfig)
	}

	// Apply smart defaults to agents
	for id, agentCfg := range defaults.Agents {
		if agentCfg.ID == "" {
			agentCfg.ID = id
		}
		if agentCfg.Name == "" {
			agentCfg.Name = agentCfg.ID
		}
		if agentCfg.MaxTokens == 0 {
			agentCfg.MaxTokens = 2048
		}
	}

	return &defaults, nil
}
