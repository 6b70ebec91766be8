package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/store"
)

var envVars = []string{
	"CLAUDE_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY",
	"OLLAMA_URL", "OLLAMA_MODEL", "CLAUDE_MODEL", "GROQ_MODEL", "GEMINI_MODEL",
	"PULSEBOARD_ENV", "PULSEBOARD_USAGE_LIMIT", "PULSEBOARD_REQUEST_TIMEOUT",
	"PULSEBOARD_STORE", "PULSEBOARD_DATA_DIR",
}

// isolate points HOME and the working directory at empty temp dirs and
// clears every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	setHomeEnv(t, home)
	t.Chdir(t.TempDir())
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	return home
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".pulseboard")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600))
}

func TestDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, adapter.DefaultOllamaURL, cfg.OllamaURL)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.False(t, cfg.Production())
	assert.Equal(t, 5, cfg.UsageLimit)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, store.KindFile, cfg.Store)
	assert.Equal(t, filepath.Join(home, ".pulseboard", "data"), cfg.DataDir)
	assert.Equal(t, adapter.ProviderOllama, cfg.DefaultProvider())
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model(adapter.ProviderGroq))
}

func TestProviderPrecedence(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want adapter.Provider
	}{
		{name: "groq wins", env: map[string]string{"GROQ_API_KEY": "g", "GEMINI_API_KEY": "m", "CLAUDE_API_KEY": "c"}, want: adapter.ProviderGroq},
		{name: "gemini before claude", env: map[string]string{"GEMINI_API_KEY": "m", "CLAUDE_API_KEY": "c"}, want: adapter.ProviderGemini},
		{name: "claude", env: map[string]string{"CLAUDE_API_KEY": "c"}, want: adapter.ProviderClaude},
		{name: "anthropic fallback", env: map[string]string{"ANTHROPIC_API_KEY": "a"}, want: adapter.ProviderClaude},
		{name: "nothing", want: adapter.ProviderOllama},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.DefaultProvider())
			assert.True(t, cfg.HasProvider(tt.want))
		})
	}
}

func TestConfigIgnoresFileAPIKeys(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "api_keys:\n  groq: file-groq\ngroq_api_key: file-groq\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.GroqAPIKey)
	assert.False(t, cfg.HasProvider(adapter.ProviderGroq))
}

func TestFileConfigAndEnvPrecedence(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, `
environment: production
usage_limit: 3
request_timeout: 15s
store: sqlite
ollama_url: http://gpu-box:11434
models:
  groq: mixtral-8x7b
  ollama: qwen2
`)
	t.Setenv("OLLAMA_MODEL", "phi3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
	assert.Equal(t, 3, cfg.UsageLimit)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, store.KindSQLite, cfg.Store)
	assert.Equal(t, "http://gpu-box:11434", cfg.OllamaURL)
	assert.Equal(t, "mixtral-8x7b", cfg.Model(adapter.ProviderGroq))
	assert.Equal(t, "phi3", cfg.Model(adapter.ProviderOllama))

	t.Setenv("PULSEBOARD_USAGE_LIMIT", "10")
	t.Setenv("PULSEBOARD_ENV", "Development")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.UsageLimit)
	assert.False(t, cfg.Production())
}

func TestMalformedFileIsIgnored(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, "usage_limit: [oops\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.UsageLimit)
}

func TestInvalidEnvValues(t *testing.T) {
	for k, v := range map[string]string{
		"PULSEBOARD_USAGE_LIMIT":     "lots",
		"PULSEBOARD_REQUEST_TIMEOUT": "soon",
		"PULSEBOARD_STORE":           "redis",
	} {
		t.Run(k, func(t *testing.T) {
			isolate(t)
			t.Setenv(k, v)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDotEnvFile(t *testing.T) {
	isolate(t)
	// godotenv never overrides a variable that is present, even when empty.
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	require.NoError(t, os.WriteFile(".env", []byte("GEMINI_API_KEY=from-dotenv\nGROQ_API_KEY=from-dotenv\n"), 0600))
	t.Setenv("GROQ_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GroqAPIKey, "existing env wins over .env")
	assert.Equal(t, "from-dotenv", cfg.GeminiAPIKey)
}

func TestCredentials(t *testing.T) {
	isolate(t)
	t.Setenv("CLAUDE_API_KEY", "c")
	t.Setenv("PULSEBOARD_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	creds := cfg.Credentials()
	assert.Equal(t, "c", creds.ClaudeAPIKey)
	assert.Equal(t, 5*time.Second, creds.RequestTimeout)
	assert.Equal(t, adapter.DefaultOllamaURL, creds.OllamaURL)
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}
