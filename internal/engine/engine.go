// Package engine moves entries between the active and the dormant tier.
//
// It is the only component that touches both tiers: placement decisions go through
// Reconcile (LFU with incumbent-wins ties), expiry events arrive through OnTTL, and every
// path that can leave both tiers empty raises the empty signal.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Borislavv/go-crow-cache/internal/active"
	"github.com/Borislavv/go-crow-cache/internal/dormant"
	"github.com/Borislavv/go-crow-cache/internal/lifetimer"
	"github.com/Borislavv/go-crow-cache/model"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type Option func(o *options)

type options struct {
	clock   clock.Clock
	onEmpty func()
}

func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithOnEmpty sets the callback raised when both tiers are (or may be) empty.
func WithOnEmpty(fn func()) Option { return func(o *options) { o.onEmpty = fn } }

type Engine[V any] struct {
	active   *active.Tier[V]
	dormant  *dormant.Tier[V]
	clock    clock.Clock
	logger   zerolog.Logger
	onEmpty  func()
	counters *counters
}

func New[V any](act *active.Tier[V], dor *dormant.Tier[V], logger zerolog.Logger, opts ...Option) *Engine[V] {
	o := options{clock: clock.New(), onEmpty: func() {}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine[V]{
		active:   act,
		dormant:  dor,
		clock:    o.clock,
		logger:   logger.With().Str("component", "engine").Logger(),
		onEmpty:  o.onEmpty,
		counters: newCounters(),
	}
}

// Add places a new entry. A key already resident in the active tier is left untouched and
// the call counts as accepted. Without force a full active tier makes Add give up without
// side effects. It reports whether the key ended up in either tier.
func (e *Engine[V]) Add(ctx context.Context, key string, value V, frequency int64, onExpire model.Refresher[V], force bool) bool {
	if IsBlank(key) {
		e.counters.rejected.Add(1)
		return false
	}
	if e.active.Contains(key) {
		return true
	}

	cand := model.NewEntry(value, frequency, e.clock.Now(), onExpire)
	if e.active.Free() > 0 {
		switch e.active.Insert(key, cand) {
		case active.Inserted:
			e.dropDormantCopy(ctx, key)
			return true
		case active.Exists:
			return true
		}
	}
	if !force {
		return false
	}
	// resident keys must not be spilled as a second copy
	if e.active.Contains(key) {
		return true
	}

	if out := e.Reconcile(ctx, key, cand); out.CandidatePlaced {
		return true
	}
	return e.spill(ctx, key, cand)
}

// Touch is an active-only lookup: it bumps the frequency and re-arms the timer.
func (e *Engine[V]) Touch(key string) (*model.Entry[V], bool) {
	if entry, ok := e.active.Touch(key); ok {
		e.counters.hits.Add(1)
		return entry, true
	}
	return nil, false
}

// Lookup probes the active tier and falls back to a deep lookup.
func (e *Engine[V]) Lookup(ctx context.Context, key string) (*model.Entry[V], bool) {
	if entry, ok := e.Touch(key); ok {
		return entry, true
	}
	return e.DeepLookup(ctx, key)
}

// DeepLookup finds key in the dormant tier, persists its bumped frequency and then lets
// Reconcile decide whether the entry now belongs in the active tier.
func (e *Engine[V]) DeepLookup(ctx context.Context, key string) (*model.Entry[V], bool) {
	var found *model.Entry[V]
	err := e.dormant.Mutate(ctx, func(m model.Mapping[V]) bool {
		de, ok := m[key]
		if !ok {
			return false
		}
		de.Frequency++
		found = de.Clone()
		return true
	})
	if err != nil || found == nil {
		e.counters.misses.Add(1)
		return nil, false
	}
	e.counters.deepHits.Add(1)

	if out := e.Reconcile(ctx, key, found.Clone()); out.CandidatePlaced {
		e.counters.promotions.Add(1)
	}
	return found, true
}

// Update replaces the value of an existing entry in whichever tier holds it.
// Frequency, CreatedAt and the timer are left alone.
func (e *Engine[V]) Update(ctx context.Context, key string, value V) bool {
	now := e.clock.Now()
	if e.active.Update(key, value, now) {
		return true
	}

	updated := false
	_ = e.dormant.Mutate(ctx, func(m model.Mapping[V]) bool {
		de, ok := m[key]
		if !ok {
			return false
		}
		de.Data = value
		de.ModifiedAt = now
		updated = true
		return true
	})
	return updated
}

// ActiveRemove removes key from the active tier only.
func (e *Engine[V]) ActiveRemove(key string) (*model.Entry[V], bool) {
	removed, ok := e.active.Remove(key)
	if ok {
		e.notifyIfEmpty()
	}
	return removed, ok
}

// Remove removes key from the active tier, or from the dormant tier when it was not active.
func (e *Engine[V]) Remove(ctx context.Context, key string) (*model.Entry[V], bool) {
	if removed, ok := e.ActiveRemove(key); ok {
		return removed, true
	}
	removed, ok := e.dormant.Remove(ctx, key)
	if ok {
		e.notifyIfEmpty()
	}
	return removed, ok
}

// OnTTL handles a fired active timer: refreshable entries get a new value and a new timer,
// the rest are dropped and their slot is offered to the hottest dormant entry.
func (e *Engine[V]) OnTTL(ctx context.Context, key string, gen uint64) (lifetimer.Result, error) {
	if refresh, ok := e.active.RefresherOf(key, gen); ok {
		value, err := refresh(ctx)
		if err != nil {
			e.active.Rearm(key, gen)
			return lifetimer.Refreshed, fmt.Errorf("refresh %q: %w", key, err)
		}
		if e.active.Refresh(key, gen, value, e.clock.Now()) {
			return lifetimer.Refreshed, nil
		}
		return lifetimer.Stale, nil
	}

	if _, ok := e.active.Expire(key, gen); !ok {
		return lifetimer.Stale, nil
	}
	e.backfill(ctx)
	e.notifyIfEmpty()
	return lifetimer.Expired, nil
}

// Warmup moves dormant entries into the active tier, hottest first, until it is full.
// It returns the number of promoted entries.
func (e *Engine[V]) Warmup(ctx context.Context) int {
	var moved []string
	err := e.dormant.Mutate(ctx, func(m model.Mapping[V]) (changed bool) {
		for _, k := range m.Hottest("") {
			if e.active.Free() <= 0 {
				break
			}
			switch e.active.Insert(k, m[k]) {
			case active.Inserted:
				moved = append(moved, k)
			case active.Full:
				return changed
			}
			delete(m, k)
			changed = true
		}
		return changed
	})
	if err != nil {
		for _, k := range moved {
			e.active.Remove(k)
		}
		e.logger.Warn().Err(err).Msg("warmup skipped, dormant tier unavailable")
		return 0
	}
	e.counters.promotions.Add(int64(len(moved)))
	return len(moved)
}

// Flush merges the active tier into the dormant one, active entries winning on collision,
// and empties the active tier once the merge is persisted.
func (e *Engine[V]) Flush(ctx context.Context) (flushed int, err error) {
	snapshot := e.active.Snapshot()
	if len(snapshot) == 0 {
		return 0, nil
	}

	err = e.dormant.Mutate(ctx, func(m model.Mapping[V]) bool {
		for k, entry := range snapshot {
			m[k] = entry
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("flush active tier: %w", err)
	}
	e.active.Clear()
	e.counters.demotions.Add(int64(len(snapshot)))
	return len(snapshot), nil
}

// Clear empties both tiers and raises the empty signal unconditionally.
func (e *Engine[V]) Clear(ctx context.Context) error {
	e.active.Clear()
	err := e.dormant.Clear(ctx)
	e.onEmpty()
	return err
}

// Sweep rewrites the dormant tier without expired entries and raises the empty signal when
// both tiers look empty afterwards, whether or not anything changed.
func (e *Engine[V]) Sweep(ctx context.Context) (dropped int, err error) {
	dropped, err = e.dormant.Sweep(ctx)
	e.notifyIfEmpty()
	return dropped, err
}

func (e *Engine[V]) ActiveCount() int { return e.active.Len() }

// Count reads the dormant tier.
func (e *Engine[V]) Count(ctx context.Context) int {
	return e.active.Len() + e.dormant.Count(ctx)
}

// PreviousCount uses the last-known dormant count and does no I/O.
func (e *Engine[V]) PreviousCount() int {
	n, _ := e.dormant.LastCount()
	return e.active.Len() + n
}

func (e *Engine[V]) EngineMetrics() Metrics { return e.counters.snapshot() }

// backfill offers the freed active slot to the hottest dormant entry.
func (e *Engine[V]) backfill(ctx context.Context) {
	if n, known := e.dormant.LastCount(); known && n == 0 {
		return
	}
	m := e.dormant.ReadAll(ctx)
	hottest := m.Hottest("")
	if len(hottest) == 0 {
		return
	}
	key := hottest[0]
	if out := e.Reconcile(ctx, key, m[key]); !out.CandidatePlaced {
		// still in dormant, untouched
		return
	}
	e.counters.promotions.Add(1)
}

func (e *Engine[V]) spill(ctx context.Context, key string, cand *model.Entry[V]) bool {
	if err := e.dormant.UpsertOne(ctx, key, cand); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("candidate dropped, dormant tier unavailable")
		return false
	}
	e.counters.spilled.Add(1)
	return true
}

func (e *Engine[V]) dropDormantCopy(ctx context.Context, key string) {
	if n, known := e.dormant.LastCount(); known && n == 0 {
		return
	}
	e.dormant.Remove(ctx, key)
}

func (e *Engine[V]) notifyIfEmpty() {
	if e.active.Len() > 0 {
		return
	}
	if n, _ := e.dormant.LastCount(); n > 0 {
		return
	}
	e.onEmpty()
}

// IsBlank reports whether key is empty or whitespace only.
func IsBlank(key string) bool { return strings.TrimSpace(key) == "" }
