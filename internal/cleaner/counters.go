package cleaner

import "sync/atomic"

type cleanerCounters struct {
	sweeps  atomic.Int64
	dropped atomic.Int64 // expired dormant entries removed
	errors  atomic.Int64
}

func (c *cleanerCounters) snapshot() (sweeps, dropped, errors int64) {
	return c.sweeps.Load(), c.dropped.Load(), c.errors.Load()
}

func newCleanerCounters() *cleanerCounters {
	return &cleanerCounters{}
}
