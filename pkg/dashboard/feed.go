package dashboard

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zen-systems/pulseboard/pkg/realtime"
)

const (
	// RecentOrderLimit is how many orders the assistant can see.
	RecentOrderLimit = 8
	timelineLimit    = 10
)

// TimelineEntry is one simulator event as the assistant sees it.
type TimelineEntry struct {
	At      time.Time
	Kind    realtime.Kind
	Summary string
}

// Snapshot is the live dashboard state at one moment.
type Snapshot struct {
	Metrics      realtime.Metrics
	RecentOrders []realtime.Order
	EventCounts  map[realtime.Kind]int
	TotalEvents  int
	EventCap     int
	Timeline     []TimelineEntry
}

// Feed follows a simulator and keeps what the assistant needs to know.
type Feed struct {
	mu        sync.Mutex
	now       func() time.Time
	cap       int
	metrics   realtime.Metrics
	orders    []realtime.Order
	counts    map[realtime.Kind]int
	timeline  []TimelineEntry
	listeners []*realtime.Listener
}

// NewFeed seeds a feed with the pre-simulation orders and the simulator's
// current totals.
func NewFeed(sim *realtime.Simulator, now func() time.Time) *Feed {
	if now == nil {
		now = time.Now
	}
	f := &Feed{
		now:     now,
		cap:     sim.Cap(),
		metrics: sim.Metrics(),
		counts:  make(map[realtime.Kind]int),
	}
	today := now().UTC()
	for _, s := range seedOrders {
		o := s.order
		o.Date = today.AddDate(0, 0, -s.daysAgo).Format(time.DateOnly)
		f.orders = append(f.orders, o)
	}
	return f
}

var feedKinds = []realtime.Kind{realtime.KindNewOrder, realtime.KindInsight, realtime.KindMilestone, realtime.KindWarning}

// Attach subscribes the feed to every regular event kind.
func (f *Feed) Attach(sim *realtime.Simulator) {
	for _, kind := range feedKinds {
		f.listeners = append(f.listeners, sim.Subscribe(kind, f.record))
	}
}

// Detach removes the subscriptions made by Attach.
func (f *Feed) Detach(sim *realtime.Simulator) {
	for i, l := range f.listeners {
		sim.Off(feedKinds[i%len(feedKinds)], l)
	}
	f.listeners = nil
}

func (f *Feed) record(ev realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry := TimelineEntry{At: f.now(), Kind: ev.Kind()}
	switch e := ev.(type) {
	case realtime.NewOrderEvent:
		f.metrics = realtime.Metrics{
			Revenue:        e.Revenue,
			Orders:         e.Orders,
			ConversionRate: e.ConversionRate,
			AvgOrderValue:  e.AvgOrderValue,
		}
		f.orders = append([]realtime.Order{e.Order}, f.orders...)
		if len(f.orders) > RecentOrderLimit {
			f.orders = f.orders[:RecentOrderLimit]
		}
		entry.Summary = "Order " + e.OrderID + " - " + e.Amount
	case realtime.InsightEvent:
		entry.Summary = e.Message
	case realtime.MilestoneEvent:
		entry.Summary = "Reached " + e.Milestone
	case realtime.WarningEvent:
		entry.Summary = e.Message
	default:
		return
	}
	f.counts[ev.Kind()]++
	f.timeline = append(f.timeline, entry)
	if len(f.timeline) > timelineLimit {
		f.timeline = f.timeline[len(f.timeline)-timelineLimit:]
	}
}

// Snapshot returns a copy of the current state. Orders are newest first.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	orders := slices.Clone(f.orders)
	slices.SortStableFunc(orders, func(a, b realtime.Order) int {
		if c := strings.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(orderNumber(b.ID), orderNumber(a.ID))
	})
	counts := make(map[realtime.Kind]int, len(f.counts))
	total := 0
	for k, v := range f.counts {
		counts[k] = v
		total += v
	}
	return Snapshot{
		Metrics:      f.metrics,
		RecentOrders: orders,
		EventCounts:  counts,
		TotalEvents:  total,
		EventCap:     f.cap,
		Timeline:     slices.Clone(f.timeline),
	}
}

func orderNumber(id string) int {
	_, num, _ := strings.Cut(id, "-")
	n, _ := strconv.Atoi(num)
	return n
}
