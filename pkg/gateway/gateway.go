// Package gateway routes chat requests to the active AI backend and meters
// them against the usage limiter.
package gateway

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/logger"
	"github.com/zen-systems/pulseboard/pkg/usage"
)

// Factory builds an adapter. adapter.New is the default.
type Factory func(provider adapter.Provider, model string, creds adapter.Credentials) (adapter.Adapter, error)

// Config is the default backend selection.
type Config struct {
	Provider    adapter.Provider
	Model       string
	Credentials adapter.Credentials
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithFactory replaces adapter.New.
func WithFactory(f Factory) Option {
	return func(g *Gateway) {
		g.factory = f
	}
}

// Gateway is the single entry point for AI calls.
type Gateway struct {
	cfg     Config
	limiter *usage.Limiter
	factory Factory

	mu     sync.RWMutex
	active adapter.Adapter
}

// New builds the gateway and its default adapter.
func New(cfg Config, limiter *usage.Limiter, opts ...Option) (*Gateway, error) {
	g := &Gateway{cfg: cfg, limiter: limiter, factory: adapter.New}
	for _, opt := range opts {
		opt(g)
	}
	a, err := g.factory(cfg.Provider, cfg.Model, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	g.active = a
	return g, nil
}

// SetOverride switches backend or model. Empty values keep the current one.
// If the new adapter cannot be built the current one stays active.
func (g *Gateway) SetOverride(provider adapter.Provider, model string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	curProvider, curModel := g.active.Provider(), g.active.Model()
	if provider == "" {
		provider = curProvider
	}
	if model == "" {
		if provider == curProvider {
			model = curModel
		} else {
			model = adapter.DefaultModels[provider]
		}
	}
	if provider == curProvider && model == curModel {
		return nil
	}
	return g.swapLocked(provider, model)
}

// ClearOverride returns to the configured default backend.
func (g *Gateway) ClearOverride() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	model := g.cfg.Model
	if model == "" {
		model = adapter.DefaultModels[g.cfg.Provider]
	}
	if g.active.Provider() == g.cfg.Provider && g.active.Model() == model {
		return nil
	}
	return g.swapLocked(g.cfg.Provider, model)
}

func (g *Gateway) swapLocked(provider adapter.Provider, model string) error {
	a, err := g.factory(provider, model, g.cfg.Credentials)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"provider": provider,
			"model":    model,
		}).WithError(err).Warn("keeping current adapter")
		return err
	}
	logger.Log.WithFields(logrus.Fields{
		"from":     g.active.Provider(),
		"provider": a.Provider(),
		"model":    a.Model(),
	}).Info("switched AI provider")
	g.active = a
	return nil
}

func (g *Gateway) current() adapter.Adapter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.active
}

// Provider returns the active backend.
func (g *Gateway) Provider() adapter.Provider {
	return g.current().Provider()
}

// Model returns the active model.
func (g *Gateway) Model() string {
	return g.current().Model()
}

// ProviderName returns the active backend's display name.
func (g *Gateway) ProviderName() string {
	return g.current().Provider().DisplayName()
}

// Chat sends one request. A spent budget returns a *usage.LimitError without
// contacting the backend. Only successful calls are counted.
func (g *Gateway) Chat(ctx context.Context, messages []adapter.Message, systemPrompt string) (*adapter.Response, error) {
	a := g.current()
	log := requestLog(a, "chat")
	if !g.limiter.CanUse() {
		log.Info("request blocked by usage limit")
		return nil, g.limiter.Blocked()
	}

	start := time.Now()
	resp, err := a.Chat(ctx, messages, systemPrompt)
	if err != nil {
		log.WithError(err).Warn("chat failed")
		return nil, err
	}
	g.limiter.IncrementUsage()
	fields := logrus.Fields{"duration_ms": time.Since(start).Milliseconds()}
	if resp.TokensUsed != nil {
		fields["tokens"] = *resp.TokensUsed
	}
	log.WithFields(fields).Info("chat completed")
	return resp, nil
}

// Stream yields reply fragments. The request counts against the budget once
// if at least one fragment was delivered, even if the stream later fails or
// the caller stops early. Backends that cannot stream deliver one fragment.
func (g *Gateway) Stream(ctx context.Context, messages []adapter.Message, systemPrompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		a := g.current()
		log := requestLog(a, "stream")
		if !g.limiter.CanUse() {
			log.Info("request blocked by usage limit")
			yield("", g.limiter.Blocked())
			return
		}

		streamer, ok := a.(adapter.Streamer)
		if !ok {
			log.Debug("adapter cannot stream, falling back to chat")
			resp, err := g.Chat(ctx, messages, systemPrompt)
			if err != nil {
				yield("", err)
				return
			}
			yield(resp.Content, nil)
			return
		}

		fragments := 0
		defer func() {
			if fragments > 0 {
				g.limiter.IncrementUsage()
			}
			log.WithField("fragments", fragments).Info("stream finished")
		}()
		for text, err := range streamer.Stream(ctx, messages, systemPrompt) {
			if err != nil {
				log.WithError(err).Warn("stream failed")
				yield("", err)
				return
			}
			fragments++
			if !yield(text, nil) {
				return
			}
		}
	}
}

// RemainingUses reports the limiter's remaining budget.
func (g *Gateway) RemainingUses() (int, bool) {
	return g.limiter.RemainingUses()
}

func (g *Gateway) IsLimitReached() bool {
	return g.limiter.IsLimitReached()
}

func (g *Gateway) BlockedMessage() string {
	return g.limiter.BlockedMessage()
}

func requestLog(a adapter.Adapter, op string) *logrus.Entry {
	return logger.Log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"op":         op,
		"provider":   a.Provider(),
		"model":      a.Model(),
	})
}
