package adapter

import "fmt"

// New builds the adapter for a backend. An empty model selects the backend's
// default. Backends that need a key fail with a ConfigurationError when it
// is missing.
func New(provider Provider, model string, creds Credentials) (Adapter, error) {
	if model == "" {
		model = DefaultModels[provider]
	}
	switch provider {
	case ProviderOllama:
		return NewOllamaAdapter(model, creds), nil
	case ProviderClaude:
		return NewClaudeAdapter(model, creds)
	case ProviderGroq:
		return NewGroqAdapter(model, creds)
	case ProviderGemini:
		return NewGeminiAdapter(model, creds)
	default:
		return nil, &ConfigurationError{
			Provider: provider,
			Message:  fmt.Sprintf("unknown provider %q", provider),
		}
	}
}

// Available reports whether a backend has what it needs to be built.
func Available(provider Provider, creds Credentials) bool {
	return !provider.RequiresKey() || creds.APIKey(provider) != ""
}
