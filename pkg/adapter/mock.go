package adapter

import (
	"context"
	"sync"
)

// MockAdapter returns deterministic replies for offline runs and tests.
// It does not implement Streamer.
type MockAdapter struct {
	mu        sync.Mutex
	provider  Provider
	model     string
	responses map[string]string
	reply     string
	err       error
	calls     []MockCall
}

// MockCall records one Chat invocation.
type MockCall struct {
	Messages     []Message
	SystemPrompt string
}

// NewMockAdapter creates a mock that answers every prompt with reply.
func NewMockAdapter(provider Provider, model, reply string) *MockAdapter {
	return &MockAdapter{
		provider:  provider,
		model:     model,
		reply:     reply,
		responses: make(map[string]string),
	}
}

// Respond registers a reply for an exact last-user-message match.
func (a *MockAdapter) Respond(prompt, reply string) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses[prompt] = reply
	return a
}

// Fail makes every following call return err. A nil err clears it.
func (a *MockAdapter) Fail(err error) *MockAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	return a
}

// Calls returns a copy of the recorded invocations.
func (a *MockAdapter) Calls() []MockCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]MockCall(nil), a.calls...)
}

func (a *MockAdapter) Provider() Provider { return a.provider }

func (a *MockAdapter) Model() string { return a.model }

// Chat records the call and returns the configured reply or error.
func (a *MockAdapter) Chat(ctx context.Context, messages []Message, systemPrompt string) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, MockCall{
		Messages:     append([]Message(nil), messages...),
		SystemPrompt: systemPrompt,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.err != nil {
		return nil, a.err
	}
	reply := a.reply
	if n := len(messages); n > 0 {
		if r, ok := a.responses[messages[n-1].Content]; ok {
			reply = r
		}
	}
	return newResponse(reply, a.provider, a.model, 0), nil
}
