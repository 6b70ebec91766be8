package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/pulseboard/pkg/adapter"
	"github.com/zen-systems/pulseboard/pkg/gateway"
	"github.com/zen-systems/pulseboard/pkg/realtime"
	"github.com/zen-systems/pulseboard/pkg/store"
	"github.com/zen-systems/pulseboard/pkg/usage"
)

var today = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }

func newGateway(t *testing.T, a adapter.Adapter) *gateway.Gateway {
	t.Helper()
	gw, err := gateway.New(gateway.Config{Provider: a.Provider()}, usage.New(store.NewMemoryStore()),
		gateway.WithFactory(func(adapter.Provider, string, adapter.Credentials) (adapter.Adapter, error) { return a, nil }))
	require.NoError(t, err)
	return gw
}

func TestFeedSeedsOrders(t *testing.T) {
	sim := realtime.NewSimulator()
	snap := NewFeed(sim, today).Snapshot()

	require.Len(t, snap.RecentOrders, RecentOrderLimit)
	assert.Equal(t, "ORD-7891", snap.RecentOrders[0].ID)
	assert.Equal(t, "2025-03-14", snap.RecentOrders[0].Date)
	assert.Equal(t, "2025-03-12", snap.RecentOrders[7].Date)
	assert.Equal(t, realtime.SeedMetrics, snap.Metrics)
	assert.Equal(t, 0, snap.TotalEvents)
	assert.Equal(t, realtime.DefaultCap, snap.EventCap)
}

func TestFeedTracksSimulator(t *testing.T) {
	sim := realtime.NewSimulator(realtime.WithClock(today))
	feed := NewFeed(sim, today)
	feed.Attach(sim)

	for range 3 {
		require.True(t, sim.TriggerNewOrder())
	}
	sim.TriggerInsight()
	sim.TriggerWarning()

	snap := feed.Snapshot()
	require.Len(t, snap.RecentOrders, RecentOrderLimit)
	assert.Equal(t, "ORD-7894", snap.RecentOrders[0].ID)
	assert.Equal(t, "ORD-7893", snap.RecentOrders[1].ID)
	assert.Equal(t, sim.Metrics(), snap.Metrics)
	assert.Equal(t, 5, snap.TotalEvents)
	assert.Equal(t, 3, snap.EventCounts[realtime.KindNewOrder])
	assert.Equal(t, 1, snap.EventCounts[realtime.KindWarning])
	require.Len(t, snap.Timeline, 5)
	assert.True(t, strings.HasPrefix(snap.Timeline[0].Summary, "Order ORD-7892 - $"))

	feed.Detach(sim)
	sim.TriggerNewOrder()
	assert.Equal(t, 5, feed.Snapshot().TotalEvents)
}

func TestFeedTimelineIsBounded(t *testing.T) {
	sim := realtime.NewSimulator()
	feed := NewFeed(sim, today)
	feed.Attach(sim)
	for range 15 {
		sim.TriggerInsight()
	}
	snap := feed.Snapshot()
	assert.Len(t, snap.Timeline, 10)
	assert.Equal(t, 15, snap.TotalEvents)
}

func TestSummary(t *testing.T) {
	sim := realtime.NewSimulator()
	text := Summary(NewFeed(sim, today).Snapshot())

	assert.Contains(t, text, "- Total Revenue: $284,750 (+13.4% vs last period)")
	assert.Contains(t, text, "- Total Orders: 1,847 (+11.7% vs last period)")
	assert.Contains(t, text, "- Conversion Rate: 3.24%")
	assert.Contains(t, text, "- Average Order Value: $154")
	assert.Contains(t, text, "1. Order ID: ORD-7891, Date: 2025-03-14, Customer: Sarah Mitchell")
	assert.Contains(t, text, "Amount: $199.99, Status: completed")
	assert.Contains(t, text, "- North America: $128,137 (45%)")
	assert.Contains(t, text, "System Status: Active (0/100 events)")
	assert.Contains(t, text, "No events yet")
}

func TestSummaryCapReached(t *testing.T) {
	text := Summary(Snapshot{TotalEvents: 100, EventCap: 100})
	assert.Contains(t, text, "CAP REACHED (100/100")
}

func TestConversationKeepsHistory(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.ProviderOllama, "llama3.2", "noted").Respond("second", "again")
	sim := realtime.NewSimulator()
	feed := NewFeed(sim, today)
	feed.Attach(sim)
	conv := NewConversation(newGateway(t, mock), feed.Snapshot)

	reply, err := conv.Send(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "noted", reply)

	sim.TriggerNewOrder()
	reply, err = conv.Send(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, "again", reply)

	assert.Equal(t, []adapter.Message{
		adapter.UserMessage("first"),
		adapter.AssistantMessage("noted"),
		adapter.UserMessage("second"),
		adapter.AssistantMessage("again"),
	}, conv.History())

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Len(t, calls[1].Messages, 3)
	assert.NotContains(t, calls[0].SystemPrompt, "ORD-7892")
	assert.Contains(t, calls[1].SystemPrompt, "ORD-7892", "system prompt rebuilt from live data")
	for _, m := range calls[1].Messages {
		assert.NotEqual(t, adapter.RoleSystem, m.Role)
	}
}

func TestConversationFailureLeavesHistory(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.ProviderOllama, "llama3.2", "ok").Fail(errors.New("offline"))
	conv := NewConversation(newGateway(t, mock), func() Snapshot { return Snapshot{} })

	_, err := conv.Send(context.Background(), "hello")
	assert.EqualError(t, err, "offline")
	assert.Empty(t, conv.History())
}

func TestConversationStream(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.ProviderGroq, "m", "whole reply")
	conv := NewConversation(newGateway(t, mock), func() Snapshot { return Snapshot{} })

	var chunks []string
	reply, err := conv.SendStream(context.Background(), "hi", func(s string) { chunks = append(chunks, s) })
	require.NoError(t, err)
	assert.Equal(t, "whole reply", reply)
	assert.Equal(t, []string{"whole reply"}, chunks)
	assert.Len(t, conv.History(), 2)

	conv.Clear()
	assert.Empty(t, conv.History())
}

func TestSummarize(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.ProviderGroq, "m", "all good")
	conv := NewConversation(newGateway(t, mock), func() Snapshot { return Snapshot{} })

	_, err := conv.Summarize(context.Background())
	require.NoError(t, err)
	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, SummaryPrompt, calls[0].Messages[0].Content)
}

func TestCurrency(t *testing.T) {
	for in, want := range map[float64]string{
		0:       "$0",
		154.17:  "$154",
		284750:  "$284,750",
		1234567: "$1,234,567",
		999.5:   "$1,000",
	} {
		assert.Equal(t, want, currency(in), fmt.Sprint(in))
	}
}
