package engine

import "sync/atomic"

// Metrics is a point-in-time copy of the engine counters.
type Metrics struct {
	Hits       int64 // active hits
	DeepHits   int64 // dormant hits
	Misses     int64
	Promotions int64 // dormant -> active moves
	Demotions  int64 // active -> dormant moves
	Spilled    int64 // candidates written straight to dormant
	Rejected   int64 // blank keys
	Lost       int64 // entries dropped by failed bookkeeping
}

type counters struct {
	hits       atomic.Int64
	deepHits   atomic.Int64
	misses     atomic.Int64
	promotions atomic.Int64
	demotions  atomic.Int64
	spilled    atomic.Int64
	rejected   atomic.Int64
	lost       atomic.Int64
}

func newCounters() *counters {
	return &counters{}
}

func (c *counters) snapshot() Metrics {
	return Metrics{
		Hits:       c.hits.Load(),
		DeepHits:   c.deepHits.Load(),
		Misses:     c.misses.Load(),
		Promotions: c.promotions.Load(),
		Demotions:  c.demotions.Load(),
		Spilled:    c.spilled.Load(),
		Rejected:   c.rejected.Load(),
		Lost:       c.lost.Load(),
	}
}
