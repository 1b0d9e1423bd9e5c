// Package telemetry reports cache counters as periodic zerolog lines and as Prometheus metrics.
package telemetry

import (
	"context"
	"time"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/rs/zerolog"
)

type Logger interface {
	Interval() time.Duration
	Close() error
}

type Logs struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   zerolog.Logger
	source   Source
	interval time.Duration
	done     chan struct{}
}

// New starts the stat logs loop, or returns a stopped Logs when cfg disables it.
func New(ctx context.Context, cfg *config.TelemetryCfg, logger zerolog.Logger, source Source) *Logs {
	ctx, cancel := context.WithCancel(ctx)
	l := &Logs{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "telemetry").Logger(),
		source: source,
		done:   make(chan struct{}),
	}
	if !cfg.Enabled() || cfg.LogsInterval <= 0 {
		close(l.done)
		return l
	}
	l.interval = cfg.LogsInterval
	go l.loop()
	return l
}

func (l *Logs) Interval() time.Duration {
	return l.interval
}

func (l *Logs) Close() error {
	l.cancel()
	<-l.done
	return nil
}

func (l *Logs) loop() {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	prev := l.source()
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			cur := l.source()
			l.log(deltaSnapshot(prev, cur))
			prev = cur
		}
	}
}

func (l *Logs) log(d Snapshot) {
	interval := l.interval.String()

	l.logger.Info().
		Str("interval", interval).
		Int64("hits", d.Hits).
		Int64("deep_hits", d.DeepHits).
		Int64("misses", d.Misses).
		Int64("promotions", d.Promotions).
		Int64("demotions", d.Demotions).
		Int64("spilled", d.Spilled).
		Int64("rejected", d.Rejected).
		Msg("eviction_engine")

	if d.ExpiryFired > 0 || d.ExpiryErrors > 0 {
		l.logger.Info().
			Str("interval", interval).
			Int64("fired", d.ExpiryFired).
			Int64("refreshed", d.ExpiryRefreshed).
			Int64("expired", d.ExpiryExpired).
			Int64("stale", d.ExpiryStale).
			Int64("errors", d.ExpiryErrors).
			Msg("lifetime_manager")
	}

	if d.Sweeps > 0 {
		l.logger.Info().
			Str("interval", interval).
			Int64("sweeps", d.Sweeps).
			Int64("dropped", d.SweepDropped).
			Int64("errors", d.SweepErrors).
			Msg("cleaner")
	}

	if d.Lost > 0 || d.LockTimeouts > 0 || d.DormantErrors > 0 {
		l.logger.Warn().
			Str("interval", interval).
			Int64("lost", d.Lost).
			Int64("lock_timeouts", d.LockTimeouts).
			Int64("backend_errors", d.DormantErrors).
			Msg("dormant_degraded")
	}

	l.logger.Info().
		Str("interval", interval).
		Int64("active", d.ActiveEntries).
		Int64("capacity", d.Capacity).
		Int64("dormant", d.DormantEntries).
		Int64("timers", d.ArmedTimers).
		Int64("reads", d.DormantReads).
		Int64("writes", d.DormantWrites).
		Int64("observers", d.Observers).
		Int64("empty_signals", d.EmptySignals).
		Msg("storage")
}
