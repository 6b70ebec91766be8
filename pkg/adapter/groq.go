package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// Groq serves an OpenAI-compatible API.
const groqBaseURL = "https://api.groq.com/openai/v1/"

// GroqAdapter implements the Adapter interface for models hosted on Groq.
type GroqAdapter struct {
	client     openai.Client
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGroqAdapter creates a new Groq adapter.
func NewGroqAdapter(model string, creds Credentials) (*GroqAdapter, error) {
	if creds.GroqAPIKey == "" {
		return nil, missingKey(ProviderGroq)
	}
	if model == "" {
		model = DefaultModels[ProviderGroq]
	}
	baseURL := creds.Endpoints.Groq
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/") + "/"
	httpClient := creds.httpClient()

	client := openai.NewClient(
		option.WithAPIKey(creds.GroqAPIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &GroqAdapter{
		client:     client,
		apiKey:     creds.GroqAPIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

func (a *GroqAdapter) Provider() Provider { return ProviderGroq }

func (a *GroqAdapter) Model() string { return a.model }

// Chat sends the conversation to Groq and returns the first choice.
func (a *GroqAdapter) Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error) {
	resp, err := a.client.Chat.Completions.New(ctx, a.params(messages, systemPrompt))
	if err != nil {
		return nil, a.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderGroq, Status: http.StatusOK, Message: "no choices returned"}
	}
	return newResponse(resp.Choices[0].Message.Content, ProviderGroq, a.model, int(resp.Usage.TotalTokens)), nil
}

// Stream yields choices[0].delta.content from each event.
func (a *GroqAdapter) Stream(ctx context.Context, messages []Message, systemPrompt string) iter.Seq2[string, error] {
	body, err := json.Marshal(a.params(messages, systemPrompt))
	if err != nil {
		return failed(fmt.Errorf("failed to marshal request: %w", err))
	}
	if body, err = withStreamFlag(body); err != nil {
		return failed(err)
	}
	req := streamRequest{
		provider: ProviderGroq,
		url:      a.baseURL + "chat/completions",
		headers:  map[string]string{"Authorization": "Bearer " + a.apiKey},
		body:     body,
		format:   framesSSE,
		extract: func(frame []byte) string {
			return gjson.GetBytes(frame, "choices.0.delta.content").String()
		},
	}
	return req.seq(ctx, a.httpClient)
}

// params prepends the system prompt as a system message.
func (a *GroqAdapter) params(messages []Message, systemPrompt string) openai.ChatCompletionNewParams {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(a.model),
		Messages:  out,
		MaxTokens: openai.Int(maxTokens),
	}
}

func (a *GroqAdapter) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &ProviderError{Provider: ProviderGroq, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return classifyTransport(ProviderGroq, a.baseURL, err)
}
