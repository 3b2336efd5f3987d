package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AGENTRY_AGENTS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing-config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("unexpected ollama default host: %q", cfg.Ollama.Host)
	}
	if cfg.Bedrock.Region != "us-east-1" {
		t.Errorf("unexpected bedrock default region: %q", cfg.Bedrock.Region)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("unexpected storage default driver: %q", cfg.Storage.Driver)
	}
	if cfg.Workspace.File != "workspace.yaml" {
		t.Errorf("unexpected workspace file default: %q", cfg.Workspace.File)
	}
}

func TestLoadConfigLayering(t *testing.T) {
	dir := t.TempDir()

	agentsPath := writeConfigFile(t, dir, "agents.yaml", `
agents:
  researcher:
    name: Researcher
    system_prompt: "You research things."
    tools:
      - read_file
    schedule: "30m"
`)
	t.Setenv("AGENTRY_AGENTS_CONFIG", agentsPath)

	userPath := writeConfigFile(t, dir, "config.yaml", `
anthropic:
  api_key: test-key
storage:
  driver: json
  path: /tmp/conversations
`)

	cfg, err := LoadConfig(userPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("user config not merged: %q", cfg.Anthropic.APIKey)
	}
	if cfg.Storage.Driver != "json" || cfg.Storage.Path != "/tmp/conversations" {
		t.Errorf("storage override not applied: %+v", cfg.Storage)
	}
	// Defaults survive where the user config is silent
	if cfg.Ollama.Host != "http://localhost:11434" {
		t.Errorf("default lost after merge: %q", cfg.Ollama.Host)
	}

	researcher, ok := cfg.Agents["researcher"]
	if !ok {
		t.Fatal("agents file not loaded")
	}
	if researcher.ID != "researcher" {
		t.Errorf("agent ID not defaulted from map key: %q", researcher.ID)
	}
	if researcher.MaxTokens != 2048 {
		t.Errorf("agent max_tokens not defaulted: %d", researcher.MaxTokens)
	}
	if researcher.Schedule != "30m" {
		t.Errorf("agent schedule not parsed: %q", researcher.Schedule)
	}
}

func TestLoadProviderConfigEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic")
	t.Setenv("GROQ_API_KEY", "env-groq")
	t.Setenv("OLLAMA_HOST", "http://ollama.internal:11434")

	cfg := &Config{
		Anthropic: AnthropicConfig{APIKey: "file-anthropic"},
		Ollama:    OllamaConfig{Host: "http://localhost:11434"},
	}

	if got := LoadAnthropicConfig(cfg); got != "env-anthropic" {
		t.Errorf("env should override file value, got %q", got)
	}
	if got, _ := LoadGroqConfig(cfg); got != "env-groq" {
		t.Errorf("groq env not applied, got %q", got)
	}
	host, _ := LoadOllamaConfig(cfg)
	if host != "http://ollama.internal:11434" {
		t.Errorf("ollama host env not applied, got %q", host)
	}
}
