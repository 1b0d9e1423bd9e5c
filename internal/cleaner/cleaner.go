// Package cleaner periodically rewrites the dormant tier without its expired entries.
package cleaner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

var ErrCleanerNotResponded = errors.New("cleaner not responded")

// Sweeper drops expired entries from the store it owns and reports how many went away.
type Sweeper interface {
	Sweep(ctx context.Context) (dropped int, err error)
}

type Cleaner interface {
	ForceSweep(timeout time.Duration) error
	Restart()
	CleanerMetrics() (sweeps, dropped, errors int64)
	Close() error
}

type Option func(w *CleanWorker)

func WithClock(c clock.Clock) Option { return func(w *CleanWorker) { w.clock = c } }

type CleanWorker struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *config.CleanerCfg
	clock     clock.Clock
	logger    zerolog.Logger
	sweeper   Sweeper
	counters  *cleanerCounters
	invokeCh  chan struct{}
	restartCh chan struct{}
	wg        sync.WaitGroup
}

func New(
	ctx context.Context,
	cfg *config.CleanerCfg,
	logger zerolog.Logger,
	sweeper Sweeper,
	opts ...Option,
) Cleaner {
	if !cfg.Enabled() {
		return NoOpCleaner{}
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &CleanWorker{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		clock:     clock.New(),
		logger:    logger.With().Str("component", "cleaner").Logger(),
		sweeper:   sweeper,
		counters:  newCleanerCounters(),
		invokeCh:  make(chan struct{}),
		restartCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w.run()
}

// ForceSweep asks for an immediate sweep and waits until a worker takes it.
func (w *CleanWorker) ForceSweep(timeout time.Duration) error {
	after := time.NewTimer(timeout)
	defer after.Stop()

	select {
	case <-w.ctx.Done():
	case w.invokeCh <- struct{}{}:
	case <-after.C:
		return ErrCleanerNotResponded
	}
	return nil
}

// Restart starts a fresh interval from now.
func (w *CleanWorker) Restart() {
	select {
	case w.restartCh <- struct{}{}:
	default:
	}
}

func (w *CleanWorker) CleanerMetrics() (sweeps, dropped, errors int64) {
	return w.counters.snapshot()
}

func (w *CleanWorker) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

func (w *CleanWorker) run() *CleanWorker {
	w.logger.Info().Dur("interval", w.cfg.Interval).Msg("cleaner is running")

	w.wg.Go(w.provider)
	w.wg.Go(w.consumer)
	w.wg.Go(func() {
		<-w.ctx.Done()
		w.logger.Info().Msg("cleaner is stopped")
	})

	return w
}

func (w *CleanWorker) provider() {
	tick := w.clock.Ticker(w.cfg.Interval)
	defer func() { tick.Stop() }()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.restartCh:
			tick.Stop()
			tick = w.clock.Ticker(w.cfg.Interval)
		case <-tick.C:
			select {
			case <-w.ctx.Done():
				return
			case w.invokeCh <- struct{}{}:
			}
		}
	}
}

func (w *CleanWorker) consumer() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.invokeCh:
			w.sweep()
		}
	}
}

func (w *CleanWorker) sweep() {
	w.counters.sweeps.Add(1)

	dropped, err := w.sweeper.Sweep(w.ctx)
	if err != nil {
		w.counters.errors.Add(1)
		w.logger.Warn().Err(err).Msg("dormant sweep failed")
		return
	}
	if dropped > 0 {
		w.counters.dropped.Add(int64(dropped))
		w.logger.Debug().Int("dropped", dropped).Msg("dormant sweep")
	}
}
