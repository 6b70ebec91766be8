package adapter

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Chat sends the conversation to the backend and returns the full reply.
	Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error)

	// Provider returns the backend this adapter talks to.
	Provider() Provider

	// Model returns the model the adapter was built for.
	Model() string
}

// Streamer is implemented by adapters that can deliver incremental text.
//
// The returned sequence is lazy: the request is sent when iteration starts and
// the next frame is read only after the consumer asks for the next fragment.
// A non-nil error is always the last element. Sequences are single-use.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, systemPrompt string) iter.Seq2[string, error]
}

// Provider identifies an AI backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderClaude Provider = "claude"
	ProviderGroq   Provider = "groq"
	ProviderGemini Provider = "gemini"
)

// Providers lists every supported backend in default-selection precedence,
// with the local backend last.
var Providers = []Provider{ProviderGroq, ProviderGemini, ProviderClaude, ProviderOllama}

// DefaultModels maps each backend to the model used when no override is set.
var DefaultModels = map[Provider]string{
	ProviderOllama: "llama3.2",
	ProviderClaude: "claude-3-haiku-20240307",
	ProviderGroq:   "llama-3.1-8b-instant",
	ProviderGemini: "gemini-1.5-flash",
}

var displayNames = map[Provider]string{
	ProviderOllama: "Ollama (Local)",
	ProviderClaude: "Claude",
	ProviderGroq:   "Groq",
	ProviderGemini: "Gemini",
}

// DisplayName returns the human readable backend name.
func (p Provider) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return string(p)
}

// RequiresKey reports whether the backend needs an API key.
func (p Provider) RequiresKey() bool {
	return p != ProviderOllama
}

// ParseProvider converts a user supplied name into a Provider.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := DefaultModels[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}
