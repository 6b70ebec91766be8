package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
)

const (
	claudeBaseURL    = "https://api.anthropic.com/"
	claudeAPIVersion = "2023-06-01"
)

// ClaudeAdapter implements the Adapter interface for Claude models.
type ClaudeAdapter struct {
	client     anthropic.Client
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClaudeAdapter creates a new Claude adapter.
func NewClaudeAdapter(model string, creds Credentials) (*ClaudeAdapter, error) {
	if creds.ClaudeAPIKey == "" {
		return nil, missingKey(ProviderClaude)
	}
	if model == "" {
		model = DefaultModels[ProviderClaude]
	}
	baseURL := creds.Endpoints.Claude
	if baseURL == "" {
		baseURL = claudeBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/") + "/"
	httpClient := creds.httpClient()

	client := anthropic.NewClient(
		option.WithAPIKey(creds.ClaudeAPIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)
	return &ClaudeAdapter{
		client:     client,
		apiKey:     creds.ClaudeAPIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

func (a *ClaudeAdapter) Provider() Provider { return ProviderClaude }

func (a *ClaudeAdapter) Model() string { return a.model }

// Chat sends the conversation to Claude and returns the concatenated text blocks.
func (a *ClaudeAdapter) Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error) {
	resp, err := a.client.Messages.New(ctx, a.params(messages, systemPrompt))
	if err != nil {
		return nil, a.wrapError(err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return newResponse(content.String(), ProviderClaude, a.model, tokens), nil
}

// Stream yields delta.text from content_block_delta events.
func (a *ClaudeAdapter) Stream(ctx context.Context, messages []Message, systemPrompt string) iter.Seq2[string, error] {
	body, err := json.Marshal(a.params(messages, systemPrompt))
	if err != nil {
		return failed(fmt.Errorf("failed to marshal request: %w", err))
	}
	if body, err = withStreamFlag(body); err != nil {
		return failed(err)
	}
	req := streamRequest{
		provider: ProviderClaude,
		url:      a.baseURL + "v1/messages",
		headers: map[string]string{
			"x-api-key":         a.apiKey,
			"anthropic-version": claudeAPIVersion,
		},
		body:   body,
		format: framesSSE,
		extract: func(frame []byte) string {
			if gjson.GetBytes(frame, "type").String() != "content_block_delta" {
				return ""
			}
			return gjson.GetBytes(frame, "delta.text").String()
		},
	}
	return req.seq(ctx, a.httpClient)
}

// params maps the conversation onto the Messages API. Claude only accepts
// user and assistant turns, so stray system turns are sent as user turns.
func (a *ClaudeAdapter) params(messages []Message, systemPrompt string) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
	}
	return params
}

func (a *ClaudeAdapter) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		msg := gjson.Get(apiErr.RawJSON(), "error.message").String()
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &ProviderError{Provider: ProviderClaude, Status: apiErr.StatusCode, Message: msg, Err: err}
	}
	return classifyTransport(ProviderClaude, a.baseURL, err)
}
