package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

const (
	geminiBaseURL    = "https://generativelanguage.googleapis.com/"
	geminiAPIVersion = "v1beta"
)

// GeminiAdapter implements the Adapter interface for Google Gemini models.
type GeminiAdapter struct {
	client     *genai.Client
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

type geminiStreamRequest struct {
	Contents         []*genai.Content `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int32 `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

// NewGeminiAdapter creates a new Gemini adapter.
func NewGeminiAdapter(model string, creds Credentials) (*GeminiAdapter, error) {
	if creds.GeminiAPIKey == "" {
		return nil, missingKey(ProviderGemini)
	}
	if model == "" {
		model = DefaultModels[ProviderGemini]
	}
	baseURL := creds.Endpoints.Gemini
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/") + "/"
	httpClient := creds.httpClient()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     creds.GeminiAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    baseURL,
			APIVersion: geminiAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAdapter{
		client:     client,
		apiKey:     creds.GeminiAPIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

func (a *GeminiAdapter) Provider() Provider { return ProviderGemini }

func (a *GeminiAdapter) Model() string { return a.model }

// Chat sends the conversation to Gemini and joins the first candidate's parts.
func (a *GeminiAdapter) Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error) {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, geminiContents(messages, systemPrompt), &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
	})
	if err != nil {
		return nil, a.wrapError(err)
	}

	var content strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				content.WriteString(part.Text)
			}
		}
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return newResponse(content.String(), ProviderGemini, a.model, tokens), nil
}

// Stream yields candidates[0].content.parts[0].text from each event.
func (a *GeminiAdapter) Stream(ctx context.Context, messages []Message, systemPrompt string) iter.Seq2[string, error] {
	payload := geminiStreamRequest{Contents: geminiContents(messages, systemPrompt)}
	payload.GenerationConfig.MaxOutputTokens = maxTokens
	body, err := json.Marshal(payload)
	if err != nil {
		return failed(fmt.Errorf("failed to marshal request: %w", err))
	}
	req := streamRequest{
		provider: ProviderGemini,
		url: fmt.Sprintf("%s%s/models/%s:streamGenerateContent?alt=sse&key=%s",
			a.baseURL, geminiAPIVersion, url.PathEscape(a.model), url.QueryEscape(a.apiKey)),
		body:   body,
		format: framesSSE,
		extract: func(frame []byte) string {
			return gjson.GetBytes(frame, "candidates.0.content.parts.0.text").String()
		},
	}
	return req.seq(ctx, a.httpClient)
}

// geminiContents maps roles onto Gemini's user/model pair. Gemini has no
// system role here, so the system prompt is folded into the first turn.
func geminiContents(messages []Message, systemPrompt string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for i, m := range messages {
		text := m.Content
		if i == 0 && systemPrompt != "" {
			text = systemPrompt + "\n\n" + text
		}
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents
}

func (a *GeminiAdapter) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return &ProviderError{Provider: ProviderGemini, Status: apiErr.Code, Message: msg, Err: err}
	}
	return classifyTransport(ProviderGemini, a.baseURL, err)
}
