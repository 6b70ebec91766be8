// Package dashboard connects the AI gateway to live simulator data: it keeps
// the conversation history and rebuilds the system prompt for every request.
package dashboard

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/zen-systems/pulseboard/pkg/adapter"
)

// Assistant is the part of the gateway a conversation needs.
type Assistant interface {
	Chat(ctx context.Context, messages []adapter.Message, systemPrompt string) (*adapter.Response, error)
	Stream(ctx context.Context, messages []adapter.Message, systemPrompt string) iter.Seq2[string, error]
}

// Conversation is a multi-turn chat about the dashboard. History holds only
// user and assistant turns; the system prompt is regenerated per request from
// the latest snapshot.
type Conversation struct {
	assistant Assistant
	snapshot  func() Snapshot

	mu      sync.Mutex
	history []adapter.Message
}

// NewConversation starts an empty conversation.
func NewConversation(assistant Assistant, snapshot func() Snapshot) *Conversation {
	return &Conversation{assistant: assistant, snapshot: snapshot}
}

// Send asks a question and waits for the full reply. The exchange is added
// to the history only on success.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	messages := c.next(text)
	resp, err := c.assistant.Chat(ctx, messages, SystemPrompt(c.snapshot()))
	if err != nil {
		return "", err
	}
	c.commit(messages, resp.Content)
	return resp.Content, nil
}

// SendStream asks a question and passes each fragment to onChunk as it
// arrives. It returns the assembled reply.
func (c *Conversation) SendStream(ctx context.Context, text string, onChunk func(string)) (string, error) {
	messages := c.next(text)
	var reply strings.Builder
	for chunk, err := range c.assistant.Stream(ctx, messages, SystemPrompt(c.snapshot())) {
		if err != nil {
			return "", err
		}
		reply.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	c.commit(messages, reply.String())
	return reply.String(), nil
}

// Summarize requests an executive summary of the current data.
func (c *Conversation) Summarize(ctx context.Context) (string, error) {
	return c.Send(ctx, SummaryPrompt)
}

// History returns a copy of the recorded turns.
func (c *Conversation) History() []adapter.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]adapter.Message(nil), c.history...)
}

// Clear forgets all turns.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

func (c *Conversation) next(text string) []adapter.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]adapter.Message, 0, len(c.history)+1)
	messages = append(messages, c.history...)
	return append(messages, adapter.UserMessage(text))
}

func (c *Conversation) commit(messages []adapter.Message, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(messages, adapter.AssistantMessage(reply))
}
