package dormant

import "sync/atomic"

type dormantCounters struct {
	reads        atomic.Int64 // backend reads (shared reads count once)
	writes       atomic.Int64 // backend writes
	errors       atomic.Int64 // failed backend calls, corruption included
	lockTimeouts atomic.Int64
}

func (c *dormantCounters) snapshot() (reads, writes, errors, lockTimeouts int64) {
	return c.reads.Load(), c.writes.Load(), c.errors.Load(), c.lockTimeouts.Load()
}
