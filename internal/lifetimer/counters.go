package lifetimer

import "sync/atomic"

type lifetimerCounters struct {
	fired     atomic.Int64 // expiry events handed to the handler
	refreshed atomic.Int64 // entries kept alive by their refresh callback
	expired   atomic.Int64 // entries removed from the active tier
	stale     atomic.Int64 // events superseded by a later touch or removal
	errors    atomic.Int64 // failed handler calls (refresh errors included)
}

func newLifetimerCounters() *lifetimerCounters {
	return &lifetimerCounters{}
}

func (c *lifetimerCounters) snapshot() (fired, refreshed, expired, stale, errors int64) {
	fired = c.fired.Load()
	refreshed = c.refreshed.Load()
	expired = c.expired.Load()
	stale = c.stale.Load()
	errors = c.errors.Load()
	return
}
