// Package dormant wraps a persistence.Backend into the slow, best-effort tier of the cache.
//
// Every read drops entries older than the dormant TTL. Read-modify-write cycles go through
// Mutate, which holds an exclusive lock for the whole cycle; acquiring it is bounded by the
// lock timeout, and every backend call by the op timeout. Pure reads are shared between
// concurrent callers and never fail: an unavailable store reads as empty.
package dormant

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/Borislavv/go-crow-cache/model"
	"github.com/Borislavv/go-crow-cache/persistence"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

var ErrLockTimeout = errors.New("dormant lock timeout")

const unknownCount = -1

type Option func(t *tierOptions)

type tierOptions struct {
	clock clock.Clock
}

func WithClock(c clock.Clock) Option { return func(o *tierOptions) { o.clock = c } }

type Tier[V any] struct {
	backend   persistence.Backend[V]
	cfg       config.DormantCfg
	clock     clock.Clock
	logger    zerolog.Logger
	lock      *semaphore.Weighted
	reads     singleflight.Group
	lastCount atomic.Int64
	counters  *dormantCounters
}

func New[V any](backend persistence.Backend[V], cfg config.DormantCfg, logger zerolog.Logger, opts ...Option) *Tier[V] {
	o := tierOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	t := &Tier[V]{
		backend:  backend,
		cfg:      cfg,
		clock:    o.clock,
		logger:   logger.With().Str("component", "dormant").Logger(),
		lock:     semaphore.NewWeighted(1),
		counters: &dormantCounters{},
	}
	t.lastCount.Store(unknownCount)
	return t
}

// ReadAll returns the live dormant mapping. Failures are logged and read as empty.
// The result belongs to the caller.
func (t *Tier[V]) ReadAll(ctx context.Context) model.Mapping[V] {
	v, err, _ := t.reads.Do("all", func() (any, error) {
		return t.read(context.WithoutCancel(ctx))
	})
	if err != nil {
		return make(model.Mapping[V])
	}
	return v.(model.Mapping[V]).Clone()
}

// Get returns a copy of a live dormant entry.
func (t *Tier[V]) Get(ctx context.Context, key string) (*model.Entry[V], bool) {
	e, ok := t.ReadAll(ctx)[key]
	return e, ok
}

// Count reads the store and returns the number of live entries.
func (t *Tier[V]) Count(ctx context.Context) int {
	return len(t.ReadAll(ctx))
}

// LastCount is the number of live entries seen by the latest read or write, without I/O.
// known is false until the store was read or written once.
func (t *Tier[V]) LastCount() (n int, known bool) {
	c := t.lastCount.Load()
	if c == unknownCount {
		return 0, false
	}
	return int(c), true
}

// Mutate runs fn over the live mapping under the dormant lock and writes the mapping back
// when fn reports a change. A store that cannot be read for any reason other than corruption
// is left untouched: fn is not called and the error is returned.
func (t *Tier[V]) Mutate(ctx context.Context, fn func(m model.Mapping[V]) (changed bool)) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	m, err := t.read(ctx)
	if err != nil {
		if !errors.Is(err, persistence.ErrCorrupted) {
			return err
		}
		m = make(model.Mapping[V])
	}
	if !fn(m) {
		return nil
	}
	return t.write(ctx, m)
}

// WriteAll replaces the store with m.
func (t *Tier[V]) WriteAll(ctx context.Context, m model.Mapping[V]) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return t.write(ctx, m)
}

// UpsertOne stores e under key, replacing any previous entry.
func (t *Tier[V]) UpsertOne(ctx context.Context, key string, e *model.Entry[V]) error {
	return t.Mutate(ctx, func(m model.Mapping[V]) bool {
		m[key] = e.Clone()
		return true
	})
}

// Remove drops key and persists the reduced mapping.
func (t *Tier[V]) Remove(ctx context.Context, key string) (removed *model.Entry[V], ok bool) {
	err := t.Mutate(ctx, func(m model.Mapping[V]) bool {
		removed, ok = m[key]
		delete(m, key)
		return ok
	})
	if err != nil {
		return nil, false
	}
	return removed, ok
}

// Sweep rewrites the store without its expired entries, even when nothing expired.
// A corrupted store is replaced by an empty one.
func (t *Tier[V]) Sweep(ctx context.Context) (dropped int, err error) {
	release, err := t.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	opCtx, cancel := t.opContext(ctx)
	raw, err := t.backend.ReadAll(opCtx)
	cancel()
	t.counters.reads.Add(1)
	if err != nil {
		t.counters.errors.Add(1)
		if !errors.Is(err, persistence.ErrCorrupted) {
			return 0, fmt.Errorf("sweep read: %w", err)
		}
		t.logger.Warn().Err(err).Msg("dormant store is corrupted, resetting it")
		raw = make(model.Mapping[V])
	}

	dropped = raw.Live(t.clock.Now(), t.cfg.TTL)
	return dropped, t.write(ctx, raw)
}

// Clear drops the store.
func (t *Tier[V]) Clear(ctx context.Context) error {
	release, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	opCtx, cancel := t.opContext(ctx)
	defer cancel()
	if err = t.backend.Clear(opCtx); err != nil {
		t.counters.errors.Add(1)
		return fmt.Errorf("clear dormant store: %w", err)
	}
	t.counters.writes.Add(1)
	t.lastCount.Store(0)
	return nil
}

func (t *Tier[V]) EnsureExists(ctx context.Context) error {
	opCtx, cancel := t.opContext(ctx)
	defer cancel()
	return t.backend.EnsureExists(opCtx)
}

// Healthy reports whether the backend is reachable right now. An empty dormant tier may
// have no store at all, so a missing store is checked with EnsureExists.
func (t *Tier[V]) Healthy(ctx context.Context) bool {
	opCtx, cancel := t.opContext(ctx)
	defer cancel()
	if t.backend.Exists(opCtx) {
		return t.backend.IsAccessible(opCtx)
	}
	return t.backend.EnsureExists(opCtx) == nil
}

func (t *Tier[V]) DormantMetrics() (reads, writes, errors, lockTimeouts int64) {
	return t.counters.snapshot()
}

func (t *Tier[V]) acquire(ctx context.Context) (release func(), err error) {
	lockCtx, cancel := t.deadline(ctx, t.cfg.LockTimeout)
	defer cancel()

	if err = t.lock.Acquire(lockCtx, 1); err != nil {
		t.counters.lockTimeouts.Add(1)
		return nil, fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	return func() { t.lock.Release(1) }, nil
}

// read fetches the store and filters it by TTL. Errors are logged here and returned.
func (t *Tier[V]) read(ctx context.Context) (model.Mapping[V], error) {
	opCtx, cancel := t.opContext(ctx)
	defer cancel()

	t.counters.reads.Add(1)
	m, err := t.backend.ReadAll(opCtx)
	if err != nil {
		t.counters.errors.Add(1)
		t.logger.Warn().Err(err).Msg("dormant read failed")
		return nil, mapTimeout(err)
	}
	if m == nil {
		m = make(model.Mapping[V])
	}
	m.Live(t.clock.Now(), t.cfg.TTL)
	t.lastCount.Store(int64(len(m)))
	return m, nil
}

func (t *Tier[V]) write(ctx context.Context, m model.Mapping[V]) error {
	opCtx, cancel := t.opContext(ctx)
	defer cancel()

	t.counters.writes.Add(1)
	if err := t.backend.WriteAll(opCtx, m); err != nil {
		t.counters.errors.Add(1)
		t.logger.Warn().Err(err).Int("entries", len(m)).Msg("dormant write failed")
		return fmt.Errorf("write dormant store: %w", mapTimeout(err))
	}
	t.lastCount.Store(int64(len(m)))
	return nil
}

func (t *Tier[V]) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return t.deadline(ctx, t.cfg.OpTimeout)
}

func (t *Tier[V]) deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func mapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, persistence.ErrTimeout) {
		return fmt.Errorf("%w: %w", persistence.ErrTimeout, err)
	}
	return err
}
