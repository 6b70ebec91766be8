package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// capture records the last request a test server received.
type capture struct {
	path   string
	query  string
	header http.Header
	body   []byte
}

func newServer(t *testing.T, status int, reply string, got *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got != nil {
			got.path = r.URL.Path
			got.query = r.URL.RawQuery
			got.header = r.Header.Clone()
			got.body = body
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for text, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, text)
	}
	return out, nil
}

func sse(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "data: %s\n\n", f)
	}
	return b.String()
}

func TestGroqChatRequestBody(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, `{
		"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"llama-3.1-8b-instant",
		"choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}
	}`, &got)

	a, err := NewGroqAdapter("", Credentials{GroqAPIKey: "gsk-test", Endpoints: Endpoints{Groq: srv.URL}})
	require.NoError(t, err)

	resp, err := a.Chat(context.Background(), []Message{UserMessage("hi")}, "be terse")
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", got.path)
	assert.Equal(t, "Bearer gsk-test", got.header.Get("Authorization"))

	var body struct {
		Model     string    `json:"model"`
		Messages  []Message `json:"messages"`
		MaxTokens int       `json:"max_tokens"`
	}
	require.NoError(t, json.Unmarshal(got.body, &body))
	assert.Equal(t, "llama-3.1-8b-instant", body.Model)
	assert.Equal(t, 1024, body.MaxTokens)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hi"},
	}, body.Messages)

	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, ProviderGroq, resp.Provider)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 5, *resp.TokensUsed)
}

func TestGroqStreamSkipsMalformedFrames(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, sse(
		`{"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":`,
		`{"choices":[{"delta":{}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`[DONE]`,
	), &got)

	a, err := NewGroqAdapter("", Credentials{GroqAPIKey: "gsk-test", Endpoints: Endpoints{Groq: srv.URL}})
	require.NoError(t, err)

	parts, err := collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, parts)
	assert.True(t, gjson.GetBytes(got.body, "stream").Bool())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "messages.0.role").String())
}

func TestGroqErrorCarriesBackendMessage(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"tokens"}}`, nil)

	a, err := NewGroqAdapter("", Credentials{GroqAPIKey: "gsk-test", Endpoints: Endpoints{Groq: srv.URL}})
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), []Message{UserMessage("hi")}, "")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.Status)
	assert.Equal(t, "Rate limit reached", provErr.Message)
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestOllamaChat(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, `{"message":{"role":"assistant","content":"local reply"},"done":true,"eval_count":7}`, &got)

	a := NewOllamaAdapter("", Credentials{OllamaURL: srv.URL + "/"})
	resp, err := a.Chat(context.Background(), []Message{UserMessage("hi"), AssistantMessage("hello"), UserMessage("more")}, "sys")
	require.NoError(t, err)

	assert.Equal(t, "/api/chat", got.path)
	assert.False(t, gjson.GetBytes(got.body, "stream").Bool())
	assert.Equal(t, "llama3.2", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "system", gjson.GetBytes(got.body, "messages.0.role").String())
	assert.Equal(t, "sys", gjson.GetBytes(got.body, "messages.0.content").String())
	assert.Equal(t, int64(4), gjson.GetBytes(got.body, "messages.#").Int())

	assert.Equal(t, "local reply", resp.Content)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 7, *resp.TokensUsed)
}

func TestOllamaStreamNDJSON(t *testing.T) {
	srv := newServer(t, http.StatusOK, strings.Join([]string{
		`{"message":{"content":"one "},"done":false}`,
		`garbage`,
		``,
		`{"message":{"content":"two"},"done":false}`,
		`{"message":{"content":""},"done":true}`,
	}, "\n"), nil)

	a := NewOllamaAdapter("", Credentials{OllamaURL: srv.URL})
	parts, err := collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two"}, parts)
}

func TestOllamaUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	a := NewOllamaAdapter("", Credentials{OllamaURL: addr})
	_, err := a.Chat(context.Background(), []Message{UserMessage("hi")}, "")
	require.Error(t, err)
	assert.True(t, IsConnectivity(err))
	assert.Contains(t, err.Error(), "Cannot connect to Ollama. Make sure Ollama is running on "+strings.TrimPrefix(addr, "http://"))

	_, err = collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	assert.True(t, IsConnectivity(err))
}

func TestOllamaCanceledContextIsNotConnectivity(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{}`, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewOllamaAdapter("", Credentials{OllamaURL: srv.URL})
	_, err := a.Chat(ctx, []Message{UserMessage("hi")}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsConnectivity(err))
}

func TestClaudeChat(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, `{
		"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
		"content":[{"type":"text","text":"hey "},{"type":"text","text":"there"}],
		"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}
	}`, &got)

	a, err := NewClaudeAdapter("", Credentials{ClaudeAPIKey: "sk-ant", Endpoints: Endpoints{Claude: srv.URL}})
	require.NoError(t, err)

	resp, err := a.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "stray"},
		UserMessage("hi"),
	}, "sys prompt")
	require.NoError(t, err)

	assert.Equal(t, "/v1/messages", got.path)
	assert.Equal(t, "sk-ant", got.header.Get("x-api-key"))
	assert.Equal(t, "sys prompt", gjson.GetBytes(got.body, "system.0.text").String())
	assert.Equal(t, int64(1024), gjson.GetBytes(got.body, "max_tokens").Int())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "messages.0.role").String())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "messages.1.role").String())

	assert.Equal(t, "hey there", resp.Content)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 7, *resp.TokensUsed)
}

func TestClaudeErrorMessage(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, nil)

	a, err := NewClaudeAdapter("", Credentials{ClaudeAPIKey: "bad", Endpoints: Endpoints{Claude: srv.URL}})
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), []Message{UserMessage("hi")}, "")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusUnauthorized, provErr.Status)
	assert.Equal(t, "invalid x-api-key", provErr.Message)
}

func TestClaudeStream(t *testing.T) {
	var got capture
	body := "event: message_start\n" + sse(`{"type":"message_start","message":{"id":"msg_1"}}`) +
		"event: content_block_delta\n" + sse(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`) +
		sse(`{"type":"content_block_delta",`) +
		"event: content_block_delta\n" + sse(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" you"}}`) +
		"event: message_stop\n" + sse(`{"type":"message_stop"}`)
	srv := newServer(t, http.StatusOK, body, &got)

	a, err := NewClaudeAdapter("", Credentials{ClaudeAPIKey: "sk-ant", Endpoints: Endpoints{Claude: srv.URL}})
	require.NoError(t, err)

	parts, err := collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " you"}, parts)
	assert.Equal(t, "2023-06-01", got.header.Get("anthropic-version"))
	assert.True(t, gjson.GetBytes(got.body, "stream").Bool())
}

func TestStreamStatusErrorIsOnlyElement(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"type":"error","error":{"message":"bad model"}}`, nil)

	a, err := NewClaudeAdapter("nope", Credentials{ClaudeAPIKey: "sk-ant", Endpoints: Endpoints{Claude: srv.URL}})
	require.NoError(t, err)

	parts, err := collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	assert.Empty(t, parts)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "bad model", provErr.Message)
}

func TestGeminiChat(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, `{
		"candidates":[{"content":{"role":"model","parts":[{"text":"gem"},{"text":"ini"}]}}],
		"usageMetadata":{"totalTokenCount":9}
	}`, &got)

	a, err := NewGeminiAdapter("", Credentials{GeminiAPIKey: "g-key", Endpoints: Endpoints{Gemini: srv.URL}})
	require.NoError(t, err)

	resp, err := a.Chat(context.Background(), []Message{UserMessage("hi"), AssistantMessage("yo"), UserMessage("again")}, "sys")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(got.path, "/models/gemini-1.5-flash:generateContent"), got.path)
	assert.Equal(t, "sys\n\nhi", gjson.GetBytes(got.body, "contents.0.parts.0.text").String())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "contents.0.role").String())
	assert.Equal(t, "model", gjson.GetBytes(got.body, "contents.1.role").String())
	assert.Equal(t, "again", gjson.GetBytes(got.body, "contents.2.parts.0.text").String())

	assert.Equal(t, "gemini", resp.Content)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 9, *resp.TokensUsed)
}

func TestGeminiStream(t *testing.T) {
	var got capture
	srv := newServer(t, http.StatusOK, sse(
		`{"candidates":[{"content":{"parts":[{"text":"a"}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":`,
		`{"candidates":[{"content":{"parts":[{"text":"b"}]}}]}`,
	), &got)

	a, err := NewGeminiAdapter("gemini-pro", Credentials{GeminiAPIKey: "g-key", Endpoints: Endpoints{Gemini: srv.URL}})
	require.NoError(t, err)

	parts, err := collect(a.Stream(context.Background(), []Message{UserMessage("hi")}, ""))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, parts)
	assert.Equal(t, "/v1beta/models/gemini-pro:streamGenerateContent", got.path)
	assert.Contains(t, got.query, "alt=sse")
	assert.Contains(t, got.query, "key=g-key")
	assert.Equal(t, int64(1024), gjson.GetBytes(got.body, "generationConfig.maxOutputTokens").Int())
}

func TestGeminiError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest,
		`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`, nil)

	a, err := NewGeminiAdapter("", Credentials{GeminiAPIKey: "g-key", Endpoints: Endpoints{Gemini: srv.URL}})
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), []Message{UserMessage("hi")}, "")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.Status)
	assert.Equal(t, "API key not valid", provErr.Message)
}

func TestStreamStopsWhenConsumerBreaks(t *testing.T) {
	srv := newServer(t, http.StatusOK, strings.Join([]string{
		`{"message":{"content":"1"}}`,
		`{"message":{"content":"2"}}`,
		`{"message":{"content":"3"}}`,
	}, "\n"), nil)

	a := NewOllamaAdapter("", Credentials{OllamaURL: srv.URL})
	var seen []string
	for text, err := range a.Stream(context.Background(), []Message{UserMessage("hi")}, "") {
		require.NoError(t, err)
		seen = append(seen, text)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestNewFactory(t *testing.T) {
	creds := Credentials{GroqAPIKey: "gsk"}

	tests := []struct {
		name     string
		provider Provider
		model    string
		wantCfg  bool
		wantMod  string
	}{
		{name: "ollama needs no key", provider: ProviderOllama, wantMod: "llama3.2"},
		{name: "groq default model", provider: ProviderGroq, wantMod: "llama-3.1-8b-instant"},
		{name: "groq explicit model", provider: ProviderGroq, model: "mixtral", wantMod: "mixtral"},
		{name: "claude missing key", provider: ProviderClaude, wantCfg: true},
		{name: "gemini missing key", provider: ProviderGemini, wantCfg: true},
		{name: "unknown provider", provider: Provider("openrouter"), wantCfg: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.provider, tt.model, creds)
			if tt.wantCfg {
				require.Error(t, err)
				assert.True(t, IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, a.Provider())
			assert.Equal(t, tt.wantMod, a.Model())
		})
	}
}

func TestMissingKeyMessage(t *testing.T) {
	_, err := New(ProviderClaude, "", Credentials{})
	require.Error(t, err)
	assert.Equal(t, "Claude API key required", err.Error())
	assert.False(t, Available(ProviderClaude, Credentials{}))
	assert.True(t, Available(ProviderOllama, Credentials{}))
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Groq ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, p)

	_, err = ParseProvider("deepseek")
	assert.Error(t, err)
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapter(ProviderGroq, "mock-1", "default").Respond("ping", "pong")

	resp, err := m.Chat(context.Background(), []Message{UserMessage("ping")}, "sys")
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)
	assert.Nil(t, resp.TokensUsed)

	m.Fail(errors.New("boom"))
	_, err = m.Chat(context.Background(), []Message{UserMessage("x")}, "")
	assert.EqualError(t, err, "boom")

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "sys", calls[0].SystemPrompt)
}
