package realtime

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/pulseboard/pkg/logger"
)

// DefaultCap is the number of regular events a run may emit.
const DefaultCap = 100

// milestoneWindow is how far past a threshold revenue may be and still count
// as a fresh crossing. It matches the largest order amount, so widening the
// amount range without widening this can make crossings go unreported.
const milestoneWindow = 500

const (
	minOrderAmount   = 50
	orderAmountRange = 450
)

// Source supplies the randomness behind event content. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// Span is a half-open range [Min, Max) a timer period is drawn from.
type Span struct {
	Min, Max time.Duration
}

func (s Span) draw() time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rand.N(s.Max-s.Min)
}

// Intervals sets how often each generator runs.
type Intervals struct {
	Order     Span
	Insight   Span
	Warning   Span
	Milestone time.Duration

	// WarningChance is the probability a warning tick emits.
	WarningChance float64
}

// DefaultIntervals are the production cadences.
var DefaultIntervals = Intervals{
	Order:         Span{Min: 10 * time.Second, Max: 15 * time.Second},
	Insight:       Span{Min: 25 * time.Second, Max: 35 * time.Second},
	Warning:       Span{Min: 45 * time.Second, Max: 60 * time.Second},
	Milestone:     20 * time.Second,
	WarningChance: 0.3,
}

// Scaled divides every period by speed. Speeds at or below 1 return i unchanged.
func (i Intervals) Scaled(speed float64) Intervals {
	if speed <= 1 {
		return i
	}
	div := func(d time.Duration) time.Duration {
		return max(time.Duration(float64(d)/speed), time.Millisecond)
	}
	i.Order = Span{Min: div(i.Order.Min), Max: div(i.Order.Max)}
	i.Insight = Span{Min: div(i.Insight.Min), Max: div(i.Insight.Max)}
	i.Warning = Span{Min: div(i.Warning.Min), Max: div(i.Warning.Max)}
	i.Milestone = div(i.Milestone)
	return i
}

// Simulator generates events on timers and hands them to its listeners.
//
// A run stops by itself after Cap regular events and then delivers a single
// CapReachedEvent. Only Reset makes a capped simulator usable again.
type Simulator struct {
	Dispatcher

	mu        sync.Mutex
	rng       Source
	intervals Intervals
	now       func() time.Time
	cap       int
	seed      Metrics

	running bool
	// epoch changes on every Start and Stop so timer callbacks from an
	// earlier run can tell they are stale.
	epoch         uint64
	quit          chan struct{}
	eventCount    int
	orderCounter  int
	metrics       Metrics
	lastMilestone float64
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand sets the source for event content.
func WithRand(src Source) Option {
	return func(s *Simulator) {
		s.rng = src
	}
}

// WithIntervals replaces DefaultIntervals.
func WithIntervals(i Intervals) Option {
	return func(s *Simulator) {
		s.intervals = i
	}
}

// WithClock replaces time.Now for order dates.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// WithCap sets the number of regular events per run.
func WithCap(n int) Option {
	return func(s *Simulator) {
		s.cap = max(n, 0)
	}
}

// WithMetrics sets the totals the simulator starts from and resets to.
func WithMetrics(m Metrics) Option {
	return func(s *Simulator) {
		s.seed = m
	}
}

// NewSimulator creates a stopped simulator.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		intervals: DefaultIntervals,
		now:       time.Now,
		cap:       DefaultCap,
		seed:      SeedMetrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.orderCounter = SeedOrderCounter
	s.metrics = s.seed
	return s
}

// Start begins emitting on timers. It does nothing if already running or capped.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.eventCount >= s.cap {
		return
	}
	s.running = true
	s.epoch++
	s.quit = make(chan struct{})
	go s.schedule(s.epoch, s.quit, s.intervals)
	logger.Log.WithFields(logrus.Fields{"cap": s.cap, "emitted": s.eventCount}).Debug("simulator started")
}

// Stop cancels all timers. Once it returns no further timer-driven listener
// calls begin. It does not wait for a listener already running.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Simulator) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	s.epoch++
	close(s.quit)
	s.quit = nil
}

// Reset stops the simulator and restores the counter and seed totals.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.eventCount = 0
	s.orderCounter = SeedOrderCounter
	s.metrics = s.seed
	s.lastMilestone = 0
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCount
}

func (s *Simulator) HasReachedCap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventCount >= s.cap
}

func (s *Simulator) RemainingEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(0, s.cap-s.eventCount)
}

// Cap returns the per-run event limit.
func (s *Simulator) Cap() int {
	return s.cap
}

// Metrics returns the current running totals.
func (s *Simulator) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// TriggerNewOrder books one order now. It returns false when capped.
func (s *Simulator) TriggerNewOrder() bool {
	return s.produce(s.newOrder, false, 0)
}

// TriggerInsight emits one insight now. It returns false when capped.
func (s *Simulator) TriggerInsight() bool {
	return s.produce(s.insight, false, 0)
}

// CheckMilestone emits a milestone if revenue has just crossed a threshold.
func (s *Simulator) CheckMilestone() bool {
	return s.produce(s.milestone, false, 0)
}

// TriggerWarning emits one warning now, bypassing the warning probability.
func (s *Simulator) TriggerWarning() bool {
	return s.produce(s.warning, false, 0)
}

// schedule owns the timers for one run.
func (s *Simulator) schedule(epoch uint64, quit <-chan struct{}, iv Intervals) {
	order := time.NewTimer(iv.Order.draw())
	insight := time.NewTimer(iv.Insight.draw())
	warning := time.NewTimer(iv.Warning.draw())
	check := time.NewTicker(max(iv.Milestone, time.Millisecond))
	defer func() {
		order.Stop()
		insight.Stop()
		warning.Stop()
		check.Stop()
	}()

	for {
		select {
		case <-quit:
			return
		case <-order.C:
			s.produce(s.newOrder, true, epoch)
			order.Reset(iv.Order.draw())
		case <-insight.C:
			s.produce(s.insight, true, epoch)
			insight.Reset(iv.Insight.draw())
		case <-warning.C:
			s.produce(s.maybeWarning(iv.WarningChance), true, epoch)
			warning.Reset(iv.Warning.draw())
		case <-check.C:
			s.produce(s.milestone, true, epoch)
		}
	}
}

// produce builds, counts and delivers one regular event. gen runs under the
// lock and may return nil to emit nothing. Timed calls are dropped when their
// run has ended, and stop delivering if the run ends mid-delivery.
func (s *Simulator) produce(gen func() Event, timed bool, epoch uint64) bool {
	s.mu.Lock()
	if s.eventCount >= s.cap || (timed && s.epoch != epoch) {
		s.mu.Unlock()
		return false
	}
	ev := gen()
	if ev == nil {
		s.mu.Unlock()
		return false
	}
	s.eventCount++
	total := s.eventCount
	capped := total == s.cap
	if capped {
		s.stopLocked()
	}
	current := s.epoch
	s.mu.Unlock()

	var live func() bool
	if timed {
		live = func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.epoch == current
		}
	}
	s.deliver(ev, live)

	if capped {
		logger.Log.WithField("total_events", total).Info("event cap reached")
		s.deliver(CapReachedEvent{TotalEvents: total}, nil)
	}
	return true
}

func (s *Simulator) newOrder() Event {
	amount := float64(minOrderAmount + s.rng.IntN(orderAmountRange))
	s.orderCounter++
	s.metrics.Revenue += amount
	s.metrics.Orders++
	s.metrics.AvgOrderValue = s.metrics.Revenue / float64(s.metrics.Orders)

	drift := (s.rng.Float64() - 0.5) * 0.05
	s.metrics.ConversionRate = min(3.5, max(3.0, s.metrics.ConversionRate+drift))

	status := orderStatuses[s.rng.IntN(len(orderStatuses))]
	customer := customers[s.rng.IntN(len(customers))]
	product := products[s.rng.IntN(len(products))]

	id := fmt.Sprintf("ORD-%d", s.orderCounter)
	return NewOrderEvent{
		OrderID:        id,
		Amount:         fmt.Sprintf("$%.2f", amount),
		Revenue:        s.metrics.Revenue,
		Orders:         s.metrics.Orders,
		ConversionRate: s.metrics.ConversionRate,
		AvgOrderValue:  s.metrics.AvgOrderValue,
		Order: Order{
			ID:       id,
			Customer: customer,
			Product:  product,
			Amount:   amount,
			Status:   status,
			Date:     s.now().UTC().Format(time.DateOnly),
		},
	}
}

func (s *Simulator) insight() Event {
	return InsightEvent{
		Message: insights[s.rng.IntN(len(insights))],
		Type:    "behavioral",
	}
}

// milestone reports the first threshold revenue has crossed within the last
// milestoneWindow dollars. A threshold already reported is not reported again
// while revenue stays in its window.
func (s *Simulator) milestone() Event {
	revenue := s.metrics.Revenue
	for _, m := range milestones {
		if m.threshold <= revenue && revenue-milestoneWindow < m.threshold {
			if m.threshold == s.lastMilestone {
				return nil
			}
			s.lastMilestone = m.threshold
			return MilestoneEvent{Milestone: m.label, Value: revenue}
		}
	}
	return nil
}

func (s *Simulator) warning() Event {
	return WarningEvent{
		Message:  warnings[s.rng.IntN(len(warnings))],
		Severity: SeverityMedium,
	}
}

func (s *Simulator) maybeWarning(chance float64) func() Event {
	return func() Event {
		if s.rng.Float64() >= chance {
			return nil
		}
		return s.warning()
	}
}
