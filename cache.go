// Package crowcache is an embeddable two-tier cache.
//
// Hot entries live in a bounded in-memory active tier where every entry has its own expiry
// timer; colder ones live in a persisted dormant tier that is filtered by age on every read.
// Placement between the tiers follows one LFU policy in which frequency survives moves and
// ties keep the entry already resident.
//
// The dormant tier is best-effort: when the backend is slow or unavailable the cache keeps
// working on the active tier alone and no persistence error reaches the caller.
package crowcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/Borislavv/go-crow-cache/internal/active"
	"github.com/Borislavv/go-crow-cache/internal/cleaner"
	"github.com/Borislavv/go-crow-cache/internal/dormant"
	"github.com/Borislavv/go-crow-cache/internal/engine"
	"github.com/Borislavv/go-crow-cache/internal/lifetimer"
	"github.com/Borislavv/go-crow-cache/internal/notify"
	"github.com/Borislavv/go-crow-cache/internal/telemetry"
	"github.com/Borislavv/go-crow-cache/model"
	"github.com/Borislavv/go-crow-cache/persistence"
	"github.com/Borislavv/go-crow-cache/persistence/memory"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("cache is closed")

// ErrCleanerBusy is returned by Sweep when the cleaner did not pick the request up in time.
var ErrCleanerBusy = cleaner.ErrCleanerNotResponded

// Metrics is a cumulative snapshot of the cache counters and gauges.
type Metrics = telemetry.Snapshot

type Cache[V any] struct {
	cfg    *config.Cache
	logger zerolog.Logger
	cancel context.CancelFunc

	engine    *engine.Engine[V]
	active    *active.Tier[V]
	dormant   *dormant.Tier[V]
	lifetimer lifetimer.Lifetimer
	cleaner   cleaner.Cleaner
	observers *notify.Registry
	telemetry telemetry.Logger
	collector *telemetry.Collector

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a cache and warms its active tier from the dormant one. A nil cfg means
// config.Default(), a nil backend means an in-memory one. Only configuration errors are
// returned: an unreachable backend is logged and the cache starts active-only.
func New[V any](ctx context.Context, cfg *config.Cache, backend persistence.Backend[V], logger zerolog.Logger) (*Cache[V], error) {
	if cfg == nil {
		cfg = config.Default()
	} else {
		cfg.AdjustConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = memory.New[V]()
	}

	ctx, cancel := context.WithCancel(ctx)

	c := &Cache[V]{
		cfg:       cfg,
		logger:    logger.With().Str("component", "cache").Logger(),
		cancel:    cancel,
		observers: notify.New(logger),
		lifetimer: lifetimer.New(ctx, cfg.Lifetime, logger),
	}
	c.active = active.New[V](cfg.Capacity, c.lifetimer)
	c.dormant = dormant.New[V](backend, cfg.Dormant, logger)
	c.engine = engine.New[V](c.active, c.dormant, logger, engine.WithOnEmpty(c.observers.Notify))

	if err := c.dormant.EnsureExists(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("dormant backend unavailable, starting active-only")
	}
	promoted := c.engine.Warmup(ctx)

	c.lifetimer.Serve(c.engine)
	c.cleaner = cleaner.New(ctx, cfg.Cleaner, logger, c.engine)
	c.telemetry = telemetry.New(ctx, cfg.Telemetry, logger, c.snapshot)
	c.collector = telemetry.NewCollector(c.snapshot, nil)

	c.logger.Info().
		Int("capacity", cfg.Capacity).
		Int("warmed_up", promoted).
		Bool("expiry", cfg.Lifetime.Enabled()).
		Bool("cleaner", cfg.Cleaner.Enabled()).
		Msg("cache is ready")

	return c, nil
}

// Reload moves dormant entries into free active slots, hottest first.
func (c *Cache[V]) Reload(ctx context.Context) (promoted int, err error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.engine.Warmup(ctx), nil
}

// Add stores value under key. Blank keys and nil values are ignored, and so is a key that
// is already active (use Update to replace a value). Otherwise the entry lands in the active
// tier if it wins its place there, or in the dormant tier.
func (c *Cache[V]) Add(ctx context.Context, key string, value V, opts ...AddOption) {
	if c.closed.Load() {
		return
	}
	if isNil(value) {
		c.logger.Debug().Str("key", key).Msg("nil value ignored")
		return
	}
	frequency, refresh := applyAddOptions[V](opts)
	c.engine.Add(ctx, key, value, frequency, refresh, true)
}

// Update replaces the value of an existing entry in either tier and reports whether
// one was found. Frequency, creation time and the expiry timer are kept.
func (c *Cache[V]) Update(ctx context.Context, key string, value V) bool {
	if c.closed.Load() || engine.IsBlank(key) || isNil(value) {
		return false
	}
	return c.engine.Update(ctx, key, value)
}

// ActiveLookUp reports whether key is in the active tier, touching it if so.
func (c *Cache[V]) ActiveLookUp(key string) bool {
	_, ok := c.GetActiveValue(key)
	return ok
}

// LookUp reports whether key is in either tier. A dormant hit may promote the entry.
func (c *Cache[V]) LookUp(ctx context.Context, key string) bool {
	_, ok := c.GetValue(ctx, key)
	return ok
}

func (c *Cache[V]) GetValue(ctx context.Context, key string) (value V, ok bool) {
	if c.closed.Load() || engine.IsBlank(key) {
		return value, false
	}
	e, ok := c.engine.Lookup(ctx, key)
	if !ok {
		return value, false
	}
	return e.Data, true
}

func (c *Cache[V]) GetActiveValue(key string) (value V, ok bool) {
	if c.closed.Load() || engine.IsBlank(key) {
		return value, false
	}
	e, ok := c.engine.Touch(key)
	if !ok {
		return value, false
	}
	return e.Data, true
}

// ActiveRemove removes key from the active tier only and returns the removed entry.
func (c *Cache[V]) ActiveRemove(key string) (*model.Entry[V], bool) {
	if c.closed.Load() || engine.IsBlank(key) {
		return nil, false
	}
	return c.engine.ActiveRemove(key)
}

// Remove removes key from whichever tier holds it and returns the removed entry.
func (c *Cache[V]) Remove(ctx context.Context, key string) (*model.Entry[V], bool) {
	if c.closed.Load() || engine.IsBlank(key) {
		return nil, false
	}
	return c.engine.Remove(ctx, key)
}

// Clear empties both tiers, restarts the cleaner interval and always raises the empty signal.
func (c *Cache[V]) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.engine.Clear(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("dormant tier was not cleared")
	}
	c.cleaner.Restart()
	return nil
}

// Sweep drops expired dormant entries now instead of waiting for the cleaner interval.
// With a running cleaner the sweep is handed to it, waiting at most the dormant lock
// timeout; without one it runs on the calling goroutine.
func (c *Cache[V]) Sweep(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.cfg.Cleaner.Enabled() {
		return c.cleaner.ForceSweep(c.cfg.Dormant.LockTimeout)
	}
	if dropped, err := c.engine.Sweep(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("dormant sweep failed")
	} else if dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Msg("dormant sweep")
	}
	return nil
}

func (c *Cache[V]) ActiveCount() int { return c.engine.ActiveCount() }

// Count is the number of active plus live dormant entries. It reads the dormant tier.
func (c *Cache[V]) Count(ctx context.Context) int {
	if c.closed.Load() {
		return 0
	}
	return c.engine.Count(ctx)
}

// PreviousCount is like Count but uses the last-known dormant count and does no I/O.
func (c *Cache[V]) PreviousCount() int { return c.engine.PreviousCount() }

// OnEmpty registers fn for the empty-cache signal. The signal is at-least-once and may
// also fire when the cache was already empty. fn runs on the goroutine that raised it.
func (c *Cache[V]) OnEmpty(fn func()) uuid.UUID { return c.observers.Subscribe(fn) }

// Unsubscribe removes an OnEmpty observer and reports whether it was registered.
func (c *Cache[V]) Unsubscribe(id uuid.UUID) bool { return c.observers.Unsubscribe(id) }

// Healthy reports whether the dormant backend is reachable. An existing store must also be
// accessible; a missing one is healthy when it can be created.
func (c *Cache[V]) Healthy(ctx context.Context) bool { return c.dormant.Healthy(ctx) }

func (c *Cache[V]) Metrics() Metrics { return c.snapshot() }

// Collector exposes Metrics for a prometheus.Registerer.
func (c *Cache[V]) Collector() prometheus.Collector { return c.collector }

// Close stops every timer and the cleaner, then merges the active tier into the dormant
// one (active entries win on collision). Subsequent calls return the first result.
func (c *Cache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		_ = c.lifetimer.Close()
		_ = c.cleaner.Close()

		flushed, err := c.engine.Flush(context.Background())
		if err != nil {
			c.logger.Error().Err(err).Msg("active tier was not flushed")
			c.closeErr = err
		}

		_ = c.telemetry.Close()
		c.cancel()
		c.logger.Info().Int("flushed", flushed).Msg("cache is closed")
	})
	return c.closeErr
}

func (c *Cache[V]) snapshot() telemetry.Snapshot {
	em := c.engine.EngineMetrics()
	fired, refreshed, expired, stale, expiryErrors := c.lifetimer.LifetimerMetrics()
	sweeps, dropped, sweepErrors := c.cleaner.CleanerMetrics()
	reads, writes, dormantErrors, lockTimeouts := c.dormant.DormantMetrics()
	dormantEntries, _ := c.dormant.LastCount()

	return telemetry.Snapshot{
		ActiveEntries:  int64(c.active.Len()),
		Capacity:       int64(c.active.Capacity()),
		DormantEntries: int64(dormantEntries),
		ArmedTimers:    int64(c.lifetimer.Len()),
		Observers:      int64(c.observers.Len()),

		Hits:       em.Hits,
		DeepHits:   em.DeepHits,
		Misses:     em.Misses,
		Promotions: em.Promotions,
		Demotions:  em.Demotions,
		Spilled:    em.Spilled,
		Rejected:   em.Rejected,
		Lost:       em.Lost,

		ExpiryFired:     fired,
		ExpiryRefreshed: refreshed,
		ExpiryExpired:   expired,
		ExpiryStale:     stale,
		ExpiryErrors:    expiryErrors,

		Sweeps:        sweeps,
		SweepDropped:  dropped,
		SweepErrors:   sweepErrors,
		DormantReads:  reads,
		DormantWrites: writes,
		DormantErrors: dormantErrors,
		LockTimeouts:  lockTimeouts,

		EmptySignals: c.observers.Raised(),
	}
}
