package cleaner

import "time"

// NoOpCleaner is used when the cleaner interval is disabled. Expired dormant entries are
// still filtered out on every read, they are just never rewritten proactively.
type NoOpCleaner struct{}

func (NoOpCleaner) ForceSweep(time.Duration) error { return nil }

func (NoOpCleaner) Restart() {}

func (NoOpCleaner) CleanerMetrics() (sweeps, dropped, errors int64) {
	return 0, 0, 0
}

func (NoOpCleaner) Close() error { return nil }
