package main

import (
	"fmt"
	"io"
	"time"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/config"
	"github.com/zen-systems/pulseboard/pkg/dashboard"
	"github.com/zen-systems/pulseboard/pkg/gateway"
	"github.com/zen-systems/pulseboard/pkg/realtime"
	"github.com/zen-systems/pulseboard/pkg/settings"
	"github.com/zen-systems/pulseboard/pkg/store"
	"github.com/zen-systems/pulseboard/pkg/usage"
)

// app is everything one command invocation needs.
type app struct {
	cfg      *config.Config
	kv       store.Store
	limiter  *usage.Limiter
	settings settings.Settings
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	kv, err := store.Open(cfg.Store, cfg.DataDir, profileFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	limiter := usage.New(kv,
		usage.WithLimit(cfg.UsageLimit),
		usage.WithProduction(cfg.Production()),
	)
	return &app{
		cfg:      cfg,
		kv:       kv,
		limiter:  limiter,
		settings: settings.Load(kv, cfg.DefaultProvider()),
	}, nil
}

func (a *app) Close() error {
	if c, ok := a.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// gateway builds the AI gateway. Explicit flags beat saved settings, which
// beat the configured default.
func (a *app) gateway(providerName, model string) (*gateway.Gateway, error) {
	provider := a.settings.AI.Provider
	if providerName != "" {
		p, err := adapter.ParseProvider(providerName)
		if err != nil {
			return nil, err
		}
		provider = p
	}
	if provider == "" {
		provider = a.cfg.DefaultProvider()
	}

	if model == "" && provider == a.settings.AI.Provider {
		model = a.settings.AI.Model
	}
	if model == "" {
		model = a.cfg.Model(provider)
	}

	var opts []gateway.Option
	if offlineFlag {
		opts = append(opts, gateway.WithFactory(offlineFactory))
	}
	return gateway.New(gateway.Config{
		Provider:    provider,
		Model:       model,
		Credentials: a.cfg.Credentials(),
	}, a.limiter, opts...)
}

// offlineFactory answers every prompt with a canned reply so the CLI can be
// exercised without a backend.
func offlineFactory(provider adapter.Provider, model string, _ adapter.Credentials) (adapter.Adapter, error) {
	if model == "" {
		model = adapter.DefaultModels[provider]
	}
	reply := fmt.Sprintf("[offline %s/%s] No backend was called.", provider, model)
	return adapter.NewMockAdapter(provider, model, reply).
		Respond(dashboard.SummaryPrompt, "[offline] Revenue and orders are tracking above last period."), nil
}

// conversation wires a gateway to the dashboard as it looks before any
// simulated events arrive.
func conversation(gw *gateway.Gateway) *dashboard.Conversation {
	sim := realtime.NewSimulator()
	feed := dashboard.NewFeed(sim, time.Now)
	return dashboard.NewConversation(gw, feed.Snapshot)
}
