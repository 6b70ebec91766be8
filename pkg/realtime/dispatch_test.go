package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryOrder(t *testing.T) {
	var d Dispatcher
	var order []string
	d.Subscribe(KindWarning, func(Event) { order = append(order, "a") })
	d.Subscribe(KindWarning, func(Event) { order = append(order, "b") })
	d.Subscribe(KindInsight, func(Event) { order = append(order, "other") })

	d.deliver(WarningEvent{Message: "x"}, nil)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	var d Dispatcher
	var got []Event
	d.Subscribe(KindInsight, func(Event) { panic("listener bug") })
	d.Subscribe(KindInsight, func(ev Event) { got = append(got, ev) })

	assert.NotPanics(t, func() { d.deliver(InsightEvent{Message: "m"}, nil) })
	assert.Equal(t, []Event{InsightEvent{Message: "m"}}, got)
}

func TestOffRemovesOneRegistration(t *testing.T) {
	var d Dispatcher
	calls := 0
	l := NewListener(func(Event) { calls++ })
	d.On(KindMilestone, l)
	d.On(KindMilestone, l)
	assert.Equal(t, 2, d.ListenerCount(KindMilestone))

	d.Off(KindMilestone, l)
	d.deliver(MilestoneEvent{}, nil)
	assert.Equal(t, 1, calls)

	d.Off(KindMilestone, l)
	d.Off(KindMilestone, l)
	d.Off(KindWarning, NewListener(func(Event) {}))
	d.deliver(MilestoneEvent{}, nil)
	assert.Equal(t, 1, calls)
}

func TestRegistryChangesApplyToNextDelivery(t *testing.T) {
	var d Dispatcher
	late := 0
	var self *Listener
	self = d.Subscribe(KindNewOrder, func(Event) {
		d.Off(KindNewOrder, self)
		d.Subscribe(KindNewOrder, func(Event) { late++ })
	})
	other := 0
	d.Subscribe(KindNewOrder, func(Event) { other++ })

	d.deliver(NewOrderEvent{}, nil)
	assert.Equal(t, 1, other)
	assert.Equal(t, 0, late)

	d.deliver(NewOrderEvent{}, nil)
	assert.Equal(t, 2, other)
	assert.Equal(t, 1, late)
}

func TestLiveCheckStopsDelivery(t *testing.T) {
	var d Dispatcher
	calls := 0
	for range 3 {
		d.Subscribe(KindWarning, func(Event) { calls++ })
	}
	d.deliver(WarningEvent{}, func() bool { return calls < 2 })
	assert.Equal(t, 2, calls)
}
