package realtime

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zen-systems/pulseboard/pkg/logger"
)

// Listener is a registration handle. The same handle may be registered more
// than once and is removed one registration at a time.
type Listener struct {
	fn func(Event)
}

// NewListener wraps fn in a handle usable with On and Off.
func NewListener(fn func(Event)) *Listener {
	return &Listener{fn: fn}
}

// Dispatcher delivers events to listeners synchronously, in registration order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[Kind][]*Listener
}

// On registers l for kind.
func (d *Dispatcher) On(kind Kind, l *Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listeners == nil {
		d.listeners = make(map[Kind][]*Listener)
	}
	d.listeners[kind] = append(d.listeners[kind], l)
}

// Off removes the first registration of l for kind. Unknown handles are ignored.
func (d *Dispatcher) Off(kind Kind, l *Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.listeners[kind]
	if i := slices.Index(list, l); i >= 0 {
		d.listeners[kind] = slices.Delete(slices.Clone(list), i, i+1)
	}
}

// Subscribe registers fn for kind and returns its handle.
func (d *Dispatcher) Subscribe(kind Kind, fn func(Event)) *Listener {
	l := NewListener(fn)
	d.On(kind, l)
	return l
}

// ListenerCount returns the number of registrations for kind.
func (d *Dispatcher) ListenerCount(kind Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind])
}

// deliver sends ev to a snapshot of the listeners for its kind. Changes to the
// registry made by a listener apply from the next delivery. When live is not
// nil it is checked before each listener and delivery stops once it fails.
func (d *Dispatcher) deliver(ev Event, live func() bool) {
	d.mu.RLock()
	snapshot := d.listeners[ev.Kind()]
	d.mu.RUnlock()

	for _, l := range snapshot {
		if live != nil && !live() {
			return
		}
		d.call(l, ev)
	}
}

// call runs one listener; a panic is logged and does not reach the others.
func (d *Dispatcher) call(l *Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.WithFields(logrus.Fields{
				"kind":  ev.Kind(),
				"panic": fmt.Sprint(r),
			}).Error("event listener panicked")
		}
	}()
	l.fn(ev)
}
