package llm

import (
	"fmt"
	"os"
	"sync"
)

const (
	ProviderAnthropic   = "anthropic"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
	ProviderGroq        = "groq"
	ProviderMistral     = "mistral"
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderBedrock     = "bedrock"
)

// AgentLLMConfig represents the LLM configuration portion of an agent config.
// This is used to avoid import cycles.
type AgentLLMConfig struct {
	LLMPreferences []LLMPreference
}

// LLMPreference represents a single provider/model preference.
type LLMPreference struct {
	Provider    string
	Model       string
	Temperature *float64
	APIKeyRef   string
}

// ClientKey uniquely identifies an LLM client configuration.
// Temperature rides along from the matched preference; it is a per-request
// knob and is not part of the client cache identity.
type ClientKey struct {
	Provider     string
	Model        string
	Temperature  *float64
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI-compatible providers
	Organization string // For OpenAI
	Region       string // For Bedrock
	Profile      string // For Bedrock (AWS shared config profile)
}

// ProviderConfig holds the configuration needed for provider registry.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIOrg     string

	GeminiAPIKey string
	GeminiModel  string

	GroqAPIKey string
	GroqModel  string

	MistralAPIKey string
	MistralModel  string

	HuggingFaceAPIKey string
	HuggingFaceModel  string

	OllamaHost  string
	OllamaModel string

	BedrockRegion  string
	BedrockProfile string
	BedrockModel   string
}

// ProviderRegistry manages LLM provider selection and configuration resolution.
// Client creation and caching is handled by the caller to avoid import cycles.
type ProviderRegistry struct {
	enabledProviders map[string]bool // Set of enabled providers
	mu               sync.RWMutex
	config           *ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry with the given config and enabled providers.
func NewProviderRegistry(providerConfig *ProviderConfig, enabledProviders []string) *ProviderRegistry {
	enabledMap := make(map[string]bool)
	for _, p := range enabledProviders {
		enabledMap[p] = true
	}

	return &ProviderRegistry{
		enabledProviders: enabledMap,
		config:           providerConfig,
	}
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledProviders[provider]
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isProviderConfiguredUnlocked(provider)
}

// ResolveAgentLLMConfig resolves an agent's LLM configuration using preference-based selection.
// It returns a ClientKey for the first available provider from the agent's preference list.
func (r *ProviderRegistry) ResolveAgentLLMConfig(agentID string, agentCfg AgentLLMConfig) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// If agent has LLM preferences, iterate through them
	if len(agentCfg.LLMPreferences) > 0 {
		var attemptedProviders []string
		for _, pref := range agentCfg.LLMPreferences {
			attemptedProviders = append(attemptedProviders, pref.Provider)

			// Check if provider is enabled
			if !r.enabledProviders[pref.Provider] {
				continue
			}

			// Check if provider is configured
			if !r.isProviderConfiguredUnlocked(pref.Provider) {
				continue
			}

			// Resolve provider-specific config
			key, err := r.resolveProviderConfig(pref.Provider, pref.Model)
			if err != nil {
				continue
			}
			key.Temperature = pref.Temperature

			return key, nil
		}

		return nil, fmt.Errorf("agent %s: no available provider from preferences %v (enabled: %v)", agentID, attemptedProviders, r.getEnabledProvidersList())
	}

	// Agent has no LLM preferences - use first enabled provider
	// Don't use agent's model field as it may be provider-specific (e.g., "claude-haiku-4-5" won't work with Ollama)
	if len(r.enabledProviders) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	// Get first enabled provider
	var firstProvider string
	for p := range r.enabledProviders {
		firstProvider = p
		break
	}

	if !r.isProviderConfiguredUnlocked(firstProvider) {
		return nil, fmt.Errorf("agent %s: first enabled provider %s is not configured", agentID, firstProvider)
	}

	// Don't use agent's model field - it may be provider-specific
	// Use provider's default model instead
	key, err := r.resolveProviderConfig(firstProvider, "")
	if err != nil {
		return nil, fmt.Errorf("agent %s: failed to resolve config for provider %s: %w", agentID, firstProvider, err)
	}

	return key, nil
}

// isProviderConfiguredUnlocked is the unlocked version of IsProviderConfigured.
// Must be called with r.mu already locked.
func (r *ProviderRegistry) isProviderConfiguredUnlocked(provider string) bool {
	switch provider {
	case ProviderAnthropic:
		// Check config only
		return r.config.AnthropicAPIKey != ""
	case ProviderOpenAI:
		return firstNonEmpty(r.config.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY")) != ""
	case ProviderGemini:
		return firstNonEmpty(r.config.GeminiAPIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")) != ""
	case ProviderGroq:
		return firstNonEmpty(r.config.GroqAPIKey, os.Getenv("GROQ_API_KEY")) != ""
	case ProviderMistral:
		return firstNonEmpty(r.config.MistralAPIKey, os.Getenv("MISTRAL_API_KEY")) != ""
	case ProviderHuggingFace:
		return firstNonEmpty(r.config.HuggingFaceAPIKey, os.Getenv("HF_TOKEN")) != ""
	case ProviderOllama:
		// Ollama doesn't require API key, just needs host (which has a default)
		return true
	case ProviderBedrock:
		// AWS credentials come from the default chain (env, shared config, IMDS),
		// so the provider counts as configured whenever it is enabled.
		return true
	default:
		return false
	}
}

// resolveProviderConfig resolves provider-specific configuration and returns a ClientKey.
func (r *ProviderRegistry) resolveProviderConfig(provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		if r.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = r.config.AnthropicAPIKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.AnthropicModel, "claude-haiku-4-5")
		}

	case ProviderOpenAI:
		apiKey := firstNonEmpty(r.config.OpenAIAPIKey, os.Getenv("OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.APIKey = apiKey
		key.BaseURL = firstNonEmpty(r.config.OpenAIBaseURL, os.Getenv("OPENAI_BASE_URL"))
		key.Organization = firstNonEmpty(r.config.OpenAIOrg, os.Getenv("OPENAI_ORG_ID"))
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OpenAIModel, os.Getenv("OPENAI_MODEL"), "gpt-4o")
		}

	case ProviderGemini:
		apiKey := firstNonEmpty(r.config.GeminiAPIKey, os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.GeminiModel, "gemini-2.0-flash")
		}

	case ProviderGroq:
		apiKey := firstNonEmpty(r.config.GroqAPIKey, os.Getenv("GROQ_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("groq API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.GroqModel, "llama-3.3-70b-versatile")
		}

	case ProviderMistral:
		apiKey := firstNonEmpty(r.config.MistralAPIKey, os.Getenv("MISTRAL_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("mistral API key not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.MistralModel, "mistral-large-latest")
		}

	case ProviderHuggingFace:
		apiKey := firstNonEmpty(r.config.HuggingFaceAPIKey, os.Getenv("HF_TOKEN"))
		if apiKey == "" {
			return nil, fmt.Errorf("huggingface API token not configured")
		}
		key.APIKey = apiKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.HuggingFaceModel, "meta-llama/Meta-Llama-3-8B-Instruct")
		}

	case ProviderOllama:
		key.Host = firstNonEmpty(r.config.OllamaHost, os.Getenv("OLLAMA_HOST"), "http://localhost:11434")
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OllamaModel, os.Getenv("OLLAMA_MODEL"))
		}
		// Ensure we have a model - if still empty, this is an error
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderBedrock:
		key.Region = firstNonEmpty(r.config.BedrockRegion, os.Getenv("AWS_REGION"), "us-east-1")
		key.Profile = r.config.BedrockProfile
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.BedrockModel, "anthropic.claude-3-5-sonnet-20241022-v2:0")
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

// getEnabledProvidersList returns a list of enabled providers (for error messages).
func (r *ProviderRegistry) getEnabledProvidersList() []string {
	var providers []string
	for p := range r.enabledProviders {
		providers = append(providers, p)
	}
	return providers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
