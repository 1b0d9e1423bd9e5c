// Package lifetimer owns the per-key expiry timers of the active tier.
//
// All timers live in one min-heap keyed by deadline and drained by a single provider
// goroutine, so the number of goroutines does not grow with the number of keys. Every
// (re)arming bumps the key's generation; an event carries the generation it was fired
// for and the handler must ignore it unless IsCurrent still holds.
package lifetimer

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/Borislavv/go-crow-cache/internal/shared/rate"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const defaultInvokeCap = 1024

// Result tells the lifetimer what the handler did with an expiry event.
type Result int

const (
	Stale Result = iota
	Expired
	Refreshed
)

// Expiry is one fired timer.
type Expiry struct {
	Key string
	Gen uint64
}

type Handler interface {
	OnTTL(ctx context.Context, key string, gen uint64) (Result, error)
}

type Lifetimer interface {
	Schedule(key string)
	Cancel(key string)
	IsCurrent(key string, gen uint64) bool
	Len() int
	Serve(h Handler)
	LifetimerMetrics() (fired, refreshed, expired, stale, errors int64)
	Close() error
}

type Option func(w *LifetimeWorker)

func WithClock(c clock.Clock) Option { return func(w *LifetimeWorker) { w.clock = c } }

type LifetimeWorker struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      *config.LifetimeCfg
	clock    clock.Clock
	logger   zerolog.Logger
	jitter   *rate.Jitter
	counters *lifetimerCounters

	mu     sync.Mutex
	heap   timerHeap
	timers map[string]*timer
	seq    uint64

	wakeCh   chan struct{}
	invokeCh chan Expiry
	serve    sync.Once
	wg       sync.WaitGroup
}

// New returns a NoOpLifetimer when cfg is disabled. Timers may be scheduled right away,
// events are delivered once Serve is called.
func New(ctx context.Context, cfg *config.LifetimeCfg, logger zerolog.Logger, opts ...Option) Lifetimer {
	if !cfg.Enabled() {
		return NoOpLifetimer{}
	}

	ctx, cancel := context.WithCancel(ctx)

	invokeCap := cfg.RefreshRate
	if invokeCap <= 0 || invokeCap > defaultInvokeCap {
		invokeCap = defaultInvokeCap
	}

	w := &LifetimeWorker{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		clock:    clock.New(),
		logger:   logger.With().Str("component", "lifetimer").Logger(),
		jitter:   rate.NewJitter(ctx, cfg.RefreshRate),
		counters: newLifetimerCounters(),
		timers:   make(map[string]*timer),
		wakeCh:   make(chan struct{}, 1),
		invokeCh: make(chan Expiry, invokeCap),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Schedule arms key to fire one TTL from now, replacing any earlier arming.
func (w *LifetimeWorker) Schedule(key string) {
	deadline := w.clock.Now().Add(w.cfg.TTL)

	w.mu.Lock()
	w.seq++
	t, ok := w.timers[key]
	if !ok {
		t = &timer{key: key, index: -1}
		w.timers[key] = t
	}
	t.deadline = deadline
	t.gen = w.seq
	if t.index >= 0 {
		heap.Fix(&w.heap, t.index)
	} else {
		heap.Push(&w.heap, t)
	}
	isRoot := t.index == 0
	w.mu.Unlock()

	if isRoot {
		w.wake()
	}
}

func (w *LifetimeWorker) Cancel(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[key]; ok {
		if t.index >= 0 {
			heap.Remove(&w.heap, t.index)
		}
		delete(w.timers, key)
	}
}

func (w *LifetimeWorker) IsCurrent(key string, gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.timers[key]
	return ok && t.gen == gen
}

// Len is the number of armed (not yet fired) timers.
func (w *LifetimeWorker) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heap.Len()
}

// Serve starts delivering events to h. Only the first call has an effect.
func (w *LifetimeWorker) Serve(h Handler) {
	w.serve.Do(func() { w.run(h) })
}

func (w *LifetimeWorker) LifetimerMetrics() (fired, refreshed, expired, stale, errors int64) {
	return w.counters.snapshot()
}

func (w *LifetimeWorker) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *LifetimeWorker) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

func (w *LifetimeWorker) run(h Handler) {
	workers := w.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	w.logger.Info().Dur("ttl", w.cfg.TTL).Int("rate", w.jitter.Limit()).Int("workers", workers).Msg("lifetimer is running")

	for i := 0; i < workers; i++ {
		w.wg.Go(func() { w.consumer(h) })
	}
	w.wg.Go(w.provider)
	w.wg.Go(func() {
		<-w.ctx.Done()
		w.logger.Info().Msg("lifetimer is stopped")
	})
}

// due pops every timer whose deadline has passed and returns the wait until the next one.
func (w *LifetimeWorker) due(now time.Time) (fired []Expiry, wait time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for w.heap.Len() > 0 {
		root := w.heap[0]
		if root.deadline.After(now) {
			return fired, root.deadline.Sub(now)
		}
		heap.Pop(&w.heap)
		fired = append(fired, Expiry{Key: root.key, Gen: root.gen})
	}
	return fired, -1
}

func (w *LifetimeWorker) provider() {
	for {
		fired, wait := w.due(w.clock.Now())
		for _, e := range fired {
			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- e:
			}
		}
		if len(fired) > 0 {
			continue
		}

		var timerC <-chan time.Time
		var t *clock.Timer
		if wait >= 0 {
			t = w.clock.Timer(wait)
			timerC = t.C
		}

		select {
		case <-w.ctx.Done():
			if t != nil {
				t.Stop()
			}
			return
		case <-w.wakeCh:
		case <-timerC:
		}
		if t != nil {
			t.Stop()
		}
	}
}

func (w *LifetimeWorker) consumer(h Handler) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case e := <-w.invokeCh:
			if !w.jitter.Wait(w.ctx) {
				return
			}
			w.handle(h, e)
		}
	}
}

func (w *LifetimeWorker) handle(h Handler, e Expiry) {
	w.counters.fired.Add(1)

	res, err := h.OnTTL(w.ctx, e.Key, e.Gen)
	if err != nil {
		w.counters.errors.Add(1)
		w.logger.Warn().Err(err).Str("key", e.Key).Msg("expiry handler failed")
	}

	switch res {
	case Refreshed:
		w.counters.refreshed.Add(1)
	case Expired:
		w.counters.expired.Add(1)
	default:
		w.counters.stale.Add(1)
	}
}
