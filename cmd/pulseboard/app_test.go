package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/dashboard"
)

func testApp(t *testing.T) *app {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	for _, v := range []string{"CLAUDE_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY", "GEMINI_API_KEY", "GROQ_MODEL", "GEMINI_MODEL", "OLLAMA_MODEL", "CLAUDE_MODEL", "PULSEBOARD_ENV"} {
		t.Setenv(v, "")
	}
	t.Setenv("PULSEBOARD_STORE", "memory")

	offlineFlag = true
	t.Cleanup(func() { offlineFlag = false })

	a, err := loadApp()
	require.NoError(t, err)
	return a
}

func TestGatewaySelection(t *testing.T) {
	a := testApp(t)

	gw, err := a.gateway("", "")
	require.NoError(t, err)
	assert.Equal(t, adapter.ProviderOllama, gw.Provider())
	assert.Equal(t, adapter.DefaultModels[adapter.ProviderOllama], gw.Model())

	gw, err = a.gateway("groq", "")
	require.NoError(t, err)
	assert.Equal(t, adapter.ProviderGroq, gw.Provider())
	assert.Equal(t, "llama-3.1-8b-instant", gw.Model())

	_, err = a.gateway("mistral", "")
	assert.Error(t, err)
}

func TestGatewayUsesSavedSettings(t *testing.T) {
	a := testApp(t)
	a.settings.AI.Provider = adapter.ProviderClaude
	a.settings.AI.Model = "claude-custom"

	gw, err := a.gateway("", "")
	require.NoError(t, err)
	assert.Equal(t, adapter.ProviderClaude, gw.Provider())
	assert.Equal(t, "claude-custom", gw.Model())

	gw, err = a.gateway("gemini", "")
	require.NoError(t, err)
	assert.Equal(t, adapter.DefaultModels[adapter.ProviderGemini], gw.Model(), "saved model belongs to another provider")

	gw, err = a.gateway("", "claude-flag")
	require.NoError(t, err)
	assert.Equal(t, "claude-flag", gw.Model())
}

func TestOfflineSummary(t *testing.T) {
	a := testApp(t)
	gw, err := a.gateway("", "")
	require.NoError(t, err)

	conv := conversation(gw)
	reply, err := conv.Summarize(context.Background())
	require.NoError(t, err)
	assert.Contains(t, reply, "[offline]")
	assert.Len(t, conv.History(), 2)
	assert.Equal(t, dashboard.SummaryPrompt, conv.History()[0].Content)
}
