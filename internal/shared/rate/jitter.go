// Package rate turns a go.uber.org/ratelimit limiter into a token channel that can be
// selected on together with a context.
package rate

import (
	"context"

	"go.uber.org/ratelimit"
)

type Jitter struct {
	ch    chan struct{}
	l     ratelimit.Limiter
	limit int
}

// NewJitter emits up to limit tokens per second until ctx is done, then closes the channel.
// A non-positive limit means unlimited: tokens are available as fast as they are consumed.
func NewJitter(ctx context.Context, limit int) *Jitter {
	var (
		l    ratelimit.Limiter
		brst = int(float64(limit) * 0.1)
	)
	if limit > 0 {
		l = ratelimit.New(limit)
	} else {
		l = ratelimit.NewUnlimited()
	}
	if brst < 1 {
		brst = 1
	}

	jitter := &Jitter{
		limit: limit,
		ch:    make(chan struct{}, brst),
		l:     l,
	}
	go jitter.provider(ctx)
	return jitter
}

func (l *Jitter) provider(ctx context.Context) {
	defer close(l.ch)
	for {
		l.l.Take()
		select {
		case <-ctx.Done():
			return
		case l.ch <- struct{}{}:
		}
	}
}

// Wait blocks for a token. It returns false once ctx is done or the jitter stopped.
func (l *Jitter) Wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case _, ok := <-l.ch:
		return ok
	}
}

// Limit is the configured tokens per second, 0 or less meaning unlimited.
func (l *Jitter) Limit() int { return l.limit }
