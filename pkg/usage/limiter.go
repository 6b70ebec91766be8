// Package usage meters AI prompts against a fixed per-installation budget.
package usage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/pulseboard/pkg/logger"
	"github.com/zen-systems/pulseboard/pkg/store"
)

const (
	// StorageKey is where the usage record lives.
	StorageKey = "ai_dashboard_usage"
	// DefaultLimit is the number of prompts allowed in production.
	DefaultLimit = 5
)

// LimitError is returned instead of calling a backend once the budget is spent.
type LimitError struct {
	Message string
}

func (e *LimitError) Error() string {
	return e.Message
}

// IsLimit reports whether err is a LimitError.
func IsLimit(err error) bool {
	var limitErr *LimitError
	return errors.As(err, &limitErr)
}

// Record is the persisted usage state.
type Record struct {
	Count       int
	FirstUsedAt time.Time
}

type recordJSON struct {
	Count       int   `json:"count"`
	FirstUsedAt int64 `json:"firstUsedAt"`
}

// MarshalJSON stores FirstUsedAt as epoch milliseconds.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{Count: r.Count, FirstUsedAt: r.FirstUsedAt.UnixMilli()})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Count = raw.Count
	r.FirstUsedAt = time.UnixMilli(raw.FirstUsedAt)
	return nil
}

// Limiter gates AI calls. Outside production it allows everything and
// records nothing.
//
// The read-modify-write of the record is serialised within this process only.
// Two processes sharing a store can both pass CanUse before either increments.
type Limiter struct {
	mu         sync.Mutex
	kv         store.Store
	limit      int
	production bool
	now        func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLimit sets the prompt budget. Values below zero are treated as zero.
func WithLimit(n int) Option {
	return func(l *Limiter) {
		l.limit = max(n, 0)
	}
}

// WithProduction enables metering.
func WithProduction(production bool) Option {
	return func(l *Limiter) {
		l.production = production
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter over kv.
func New(kv store.Store, opts ...Option) *Limiter {
	l := &Limiter{
		kv:    kv,
		limit: DefaultLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanUse reports whether another prompt is allowed.
func (l *Limiter) CanUse() bool {
	if !l.production {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load().Count < l.limit
}

// IncrementUsage records one successful prompt.
func (l *Limiter) IncrementUsage() {
	if !l.production {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.load()
	rec.Count++
	l.save(rec)
}

// RemainingUses returns how many prompts are left. unbounded is true outside
// production, where n is math.MaxInt.
func (l *Limiter) RemainingUses() (n int, unbounded bool) {
	if !l.production {
		return math.MaxInt, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return max(0, l.limit-l.load().Count), false
}

// Limit returns the configured budget.
func (l *Limiter) Limit() int {
	return l.limit
}

// Production reports whether metering is enabled.
func (l *Limiter) Production() bool {
	return l.production
}

// UsageCount returns the recorded prompt count, always 0 outside production.
func (l *Limiter) UsageCount() int {
	if !l.production {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load().Count
}

// IsLimitReached reports whether the budget is spent.
func (l *Limiter) IsLimitReached() bool {
	return !l.CanUse()
}

// BlockedMessage is the user-facing text shown once the budget is spent.
func (l *Limiter) BlockedMessage() string {
	return fmt.Sprintf("Demo Limit Reached\n\n"+
		"This is a demo deployment with limited AI capabilities.\n\n"+
		"You've used all %d free AI prompts available.\n\n"+
		"Thank you for exploring the dashboard!", l.limit)
}

// Blocked returns the LimitError for the current budget.
func (l *Limiter) Blocked() *LimitError {
	return &LimitError{Message: l.BlockedMessage()}
}

// Reset removes the stored record.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.kv.Delete(StorageKey); err != nil {
		logger.Log.WithError(err).Warn("failed to reset usage record")
	}
}

// Record returns the current persisted state.
func (l *Limiter) Record() Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// load returns a fresh record when nothing is stored or the blob is unreadable.
func (l *Limiter) load() Record {
	fresh := Record{FirstUsedAt: l.now()}
	data, err := l.kv.Get(StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return fresh
	}
	if err != nil {
		logger.Log.WithError(err).Warn("failed to read usage record")
		return fresh
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logger.Log.WithFields(logrus.Fields{"key": StorageKey}).WithError(err).Warn("discarding corrupt usage record")
		return fresh
	}
	return rec
}

func (l *Limiter) save(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to encode usage record")
		return
	}
	if err := l.kv.Set(StorageKey, data); err != nil {
		logger.Log.WithError(err).Warn("failed to write usage record")
	}
}
