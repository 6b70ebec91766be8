package adapter

import (
	"net/http"
	"time"
)

// maxTokens caps every completion the adapters request.
const maxTokens = 1024

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Response is the normalized result of one completed chat request.
type Response struct {
	Content    string   `json:"content"`
	Provider   Provider `json:"provider"`
	Model      string   `json:"model"`
	TokensUsed *int     `json:"tokens_used,omitempty"`
}

func newResponse(content string, provider Provider, model string, tokens int) *Response {
	resp := &Response{Content: content, Provider: provider, Model: model}
	if tokens > 0 {
		resp.TokensUsed = &tokens
	}
	return resp
}

// Endpoints overrides backend base URLs. Empty fields use the public defaults.
type Endpoints struct {
	Claude string
	Groq   string
	Gemini string
}

// Credentials carries everything the factory needs to build an adapter.
type Credentials struct {
	ClaudeAPIKey string
	GroqAPIKey   string
	GeminiAPIKey string
	OllamaURL    string

	// RequestTimeout bounds the wait for response headers. Zero disables it.
	RequestTimeout time.Duration

	// HTTPClient replaces the client built from RequestTimeout.
	HTTPClient *http.Client

	Endpoints Endpoints
}

// APIKey returns the key configured for a backend.
func (c Credentials) APIKey(p Provider) string {
	switch p {
	case ProviderClaude:
		return c.ClaudeAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// httpClient returns the shared client for adapter transports. The timeout
// applies to response headers only so long streams are not cut off.
func (c Credentials) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.RequestTimeout > 0 {
		transport.ResponseHeaderTimeout = c.RequestTimeout
	}
	return &http.Client{Transport: transport}
}
