package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultOllamaURL is where a local Ollama daemon listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaAdapter talks to a local Ollama daemon. It needs no API key.
type OllamaAdapter struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  struct {
		NumPredict int `json:"num_predict"`
	} `json:"options"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done      bool `json:"done"`
	EvalCount int  `json:"eval_count"`
}

// NewOllamaAdapter creates an adapter for the daemon at baseURL.
func NewOllamaAdapter(model string, creds Credentials) *OllamaAdapter {
	baseURL := strings.TrimSuffix(creds.OllamaURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultModels[ProviderOllama]
	}
	return &OllamaAdapter{
		baseURL:    baseURL,
		model:      model,
		httpClient: creds.httpClient(),
	}
}

func (a *OllamaAdapter) Provider() Provider { return ProviderOllama }

func (a *OllamaAdapter) Model() string { return a.model }

// Chat sends the conversation and waits for the complete reply.
func (a *OllamaAdapter) Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error) {
	body, err := a.requestBody(messages, systemPrompt, false)
	if err != nil {
		return nil, err
	}

	resp, err := postJSON(ctx, a.httpClient, ProviderOllama, a.chatURL(), nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out ollamaResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return newResponse(out.Message.Content, ProviderOllama, a.model, out.EvalCount), nil
}

// Stream yields message.content from each NDJSON line.
func (a *OllamaAdapter) Stream(ctx context.Context, messages []Message, systemPrompt string) iter.Seq2[string, error] {
	body, err := a.requestBody(messages, systemPrompt, true)
	if err != nil {
		return failed(err)
	}
	req := streamRequest{
		provider: ProviderOllama,
		url:      a.chatURL(),
		body:     body,
		format:   framesNDJSON,
		extract: func(frame []byte) string {
			return gjson.GetBytes(frame, "message.content").String()
		},
	}
	return req.seq(ctx, a.httpClient)
}

func (a *OllamaAdapter) chatURL() string {
	return a.baseURL + "/api/chat"
}

func (a *OllamaAdapter) requestBody(messages []Message, systemPrompt string, stream bool) ([]byte, error) {
	req := ollamaRequest{Model: a.model, Stream: stream}
	req.Options.NumPredict = maxTokens
	req.Messages = make([]Message, 0, len(messages)+1)
	if systemPrompt != "" {
		req.Messages = append(req.Messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	req.Messages = append(req.Messages, messages...)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// failed returns a sequence whose only element is err.
func failed(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
