// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the engine configuration.
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	LLM       LLMConfig       `toml:"llm"` // Default LLM settings
	Roster    RosterConfig    `toml:"roster"`
	Storage   StorageConfig   `toml:"storage"`
	Speech    SpeechConfig    `toml:"speech"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// EngineConfig contains engine identification settings.
type EngineConfig struct {
	ID       string `toml:"id"`
	FeedSize int    `toml:"feed_size"` // Activity feed window (default 50)
}

// LLMConfig contains LLM provider settings. Personas without an
// explicit model fall back to these.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// RosterConfig locates the persona roster.
type RosterConfig struct {
	Path  string `toml:"path"`  // YAML roster file
	Watch bool   `toml:"watch"` // Reload on file change
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path          string `toml:"path"`           // Base directory for all persistent data
	PersistMemory bool   `toml:"persist_memory"` // true = indexed memory survives across runs, false = in-memory only
}

// SpeechConfig contains voice synthesis settings.
type SpeechConfig struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`    // Override the ElevenLabs endpoint
	APIKeyEnv string `toml:"api_key_env"` // Env var holding the API key (default ELEVENLABS_API_KEY)
}

// BridgeConfig contains NATS event bridge settings.
type BridgeConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"` // Broker URL (default nats://127.0.0.1:4222)
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string            `toml:"protocol"` // grpc (default) or http
	Insecure bool              `toml:"insecure"` // Disable TLS (default false)
	Headers  map[string]string `toml:"headers"`  // Auth headers (e.g., DD-API-KEY, x-honeycomb-team)
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Engine: EngineConfig{
			FeedSize: 50,
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Roster: RosterConfig{
			Path: "roster.yaml",
		},
		Storage: StorageConfig{
			Path:          "~/.local/deepfish",
			PersistMemory: true,
		},
		Speech: SpeechConfig{
			APIKeyEnv: "ELEVENLABS_API_KEY",
		},
		Bridge: BridgeConfig{
			URL: "nats://127.0.0.1:4222",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from deepfish.toml in the current
// directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "deepfish.toml"))
}

// StoragePath expands the storage base directory, resolving a leading
// "~" against the user's home.
func (c *Config) StoragePath() (string, error) {
	path := c.Storage.Path
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// GetSpeechKey returns the voice synthesis API key, or empty when
// speech is unconfigured.
func (c *Config) GetSpeechKey() string {
	if c.Speech.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Speech.APIKeyEnv)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
