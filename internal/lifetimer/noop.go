package lifetimer

// NoOpLifetimer is used when the active TTL is disabled: nothing is ever armed,
// so active entries leave only by removal or demotion.
type NoOpLifetimer struct{}

func (NoOpLifetimer) Schedule(string) {}

func (NoOpLifetimer) Cancel(string) {}

func (NoOpLifetimer) IsCurrent(string, uint64) bool { return false }

func (NoOpLifetimer) Len() int { return 0 }

func (NoOpLifetimer) Serve(Handler) {}

func (NoOpLifetimer) LifetimerMetrics() (fired, refreshed, expired, stale, errors int64) {
	return 0, 0, 0, 0, 0
}

func (NoOpLifetimer) Close() error { return nil }
