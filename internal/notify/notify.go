// Package notify keeps the observers of the empty-cache signal.
//
// The signal is at-least-once: it fires on every observed transition to an empty cache and
// may also fire when nothing changed (Clear, cleaner sweeps). Observers run synchronously on
// the goroutine that raised the signal, in subscription order, so they must be quick and must
// not call back into a blocking cache operation that raises the signal again.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type observer struct {
	id uuid.UUID
	fn func()
}

type Registry struct {
	mu        sync.RWMutex
	observers []observer
	logger    zerolog.Logger
	raised    atomic.Int64
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger.With().Str("component", "notify").Logger()}
}

// Subscribe registers fn and returns the handle to unsubscribe it with.
func (r *Registry) Subscribe(fn func()) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	r.observers = append(r.observers, observer{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

// Unsubscribe reports whether id was registered.
func (r *Registry) Unsubscribe(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.observers {
		if o.id == id {
			r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// Raised is the number of times the signal was raised.
func (r *Registry) Raised() int64 { return r.raised.Load() }

// Notify calls every observer. A panicking observer is logged and does not stop the others.
func (r *Registry) Notify() {
	r.raised.Add(1)

	r.mu.RLock()
	observers := make([]observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, o := range observers {
		r.call(o)
	}
}

func (r *Registry) call(o observer) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("observer", o.id.String()).Interface("panic", rec).Msg("empty-cache observer panicked")
		}
	}()
	o.fn()
}
