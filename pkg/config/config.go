package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/logger"
	"github.com/zen-systems/pulseboard/pkg/store"
	"github.com/zen-systems/pulseboard/pkg/usage"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DefaultRequestTimeout = 60 * time.Second
)

// Config holds the application configuration.
type Config struct {
	ClaudeAPIKey string
	GroqAPIKey   string
	GeminiAPIKey string
	OllamaURL    string

	// Models maps each backend to the model it uses by default.
	Models map[adapter.Provider]string

	Environment    string
	UsageLimit     int
	RequestTimeout time.Duration
	Store          store.Kind
	DataDir        string
	ConfigDir      string
}

// FileConfig represents the structure of ~/.pulseboard/config.yaml.
// API keys are deliberately absent; they come from the environment only.
type FileConfig struct {
	Environment    string       `yaml:"environment"`
	UsageLimit     *int         `yaml:"usage_limit"`
	RequestTimeout string       `yaml:"request_timeout"`
	Store          string       `yaml:"store"`
	DataDir        string       `yaml:"data_dir"`
	OllamaURL      string       `yaml:"ollama_url"`
	Models         ModelsConfig `yaml:"models"`
}

// ModelsConfig overrides default models per backend.
type ModelsConfig struct {
	Ollama string `yaml:"ollama"`
	Claude string `yaml:"claude"`
	Groq   string `yaml:"groq"`
	Gemini string `yaml:"gemini"`
}

// Load reads configuration from the environment, an optional .env file in the
// working directory, and ~/.pulseboard/config.yaml. Environment variables take
// precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Log.WithError(err).Warn("ignoring unreadable .env file")
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return build(configDir, loadFileConfig(filepath.Join(configDir, "config.yaml")))
}

func build(configDir string, file *FileConfig) (*Config, error) {
	cfg := &Config{
		ClaudeAPIKey: getEnvOrDefault("CLAUDE_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
		GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OllamaURL:    getEnvOrDefault("OLLAMA_URL", orDefault(file.OllamaURL, adapter.DefaultOllamaURL)),
		Models: map[adapter.Provider]string{
			adapter.ProviderOllama: getEnvOrDefault("OLLAMA_MODEL", orDefault(file.Models.Ollama, adapter.DefaultModels[adapter.ProviderOllama])),
			adapter.ProviderClaude: getEnvOrDefault("CLAUDE_MODEL", orDefault(file.Models.Claude, adapter.DefaultModels[adapter.ProviderClaude])),
			adapter.ProviderGroq:   getEnvOrDefault("GROQ_MODEL", orDefault(file.Models.Groq, adapter.DefaultModels[adapter.ProviderGroq])),
			adapter.ProviderGemini: getEnvOrDefault("GEMINI_MODEL", orDefault(file.Models.Gemini, adapter.DefaultModels[adapter.ProviderGemini])),
		},
		Environment: strings.ToLower(getEnvOrDefault("PULSEBOARD_ENV", orDefault(file.Environment, EnvDevelopment))),
		UsageLimit:  usage.DefaultLimit,
		Store:       store.Kind(strings.ToLower(getEnvOrDefault("PULSEBOARD_STORE", orDefault(file.Store, string(store.KindFile))))),
		ConfigDir:   configDir,
	}

	if file.UsageLimit != nil {
		cfg.UsageLimit = *file.UsageLimit
	}
	if v := os.Getenv("PULSEBOARD_USAGE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid PULSEBOARD_USAGE_LIMIT %q", v)
		}
		cfg.UsageLimit = n
	}

	timeout := getEnvOrDefault("PULSEBOARD_REQUEST_TIMEOUT", file.RequestTimeout)
	cfg.RequestTimeout = DefaultRequestTimeout
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid request timeout %q: %w", timeout, err)
		}
		cfg.RequestTimeout = d
	}

	switch cfg.Store {
	case store.KindFile, store.KindSQLite, store.KindMemory:
	default:
		return nil, fmt.Errorf("unknown store %q (want file, sqlite or memory)", cfg.Store)
	}

	cfg.DataDir = getEnvOrDefault("PULSEBOARD_DATA_DIR", file.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(configDir, "data")
	}
	return cfg, nil
}

// Production reports whether usage metering is enabled.
func (c *Config) Production() bool {
	return c.Environment == EnvProduction
}

// HasProvider returns true if the given backend can be used.
func (c *Config) HasProvider(p adapter.Provider) bool {
	return adapter.Available(p, c.Credentials())
}

// DefaultProvider picks the first backend with a key, in adapter.Providers
// order. Ollama is the fallback since it needs none.
func (c *Config) DefaultProvider() adapter.Provider {
	creds := c.Credentials()
	for _, p := range adapter.Providers {
		if p.RequiresKey() && creds.APIKey(p) != "" {
			return p
		}
	}
	return adapter.ProviderOllama
}

// Model returns the configured model for a backend.
func (c *Config) Model(p adapter.Provider) string {
	if m := c.Models[p]; m != "" {
		return m
	}
	return adapter.DefaultModels[p]
}

// Credentials projects the configuration for the adapter factory.
func (c *Config) Credentials() adapter.Credentials {
	return adapter.Credentials{
		ClaudeAPIKey:   c.ClaudeAPIKey,
		GroqAPIKey:     c.GroqAPIKey,
		GeminiAPIKey:   c.GeminiAPIKey,
		OllamaURL:      c.OllamaURL,
		RequestTimeout: c.RequestTimeout,
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Log.WithError(err).WithField("path", path).Warn("ignoring malformed config file")
		return &FileConfig{}
	}
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".pulseboard")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
