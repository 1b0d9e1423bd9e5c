package telemetry

// Snapshot is a cumulative view of every counter the cache keeps, plus a few gauges.
type Snapshot struct {
	// gauges
	ActiveEntries  int64
	Capacity       int64
	DormantEntries int64 // last-known, no I/O
	ArmedTimers    int64
	Observers      int64

	// engine
	Hits       int64
	DeepHits   int64
	Misses     int64
	Promotions int64
	Demotions  int64
	Spilled    int64
	Rejected   int64
	Lost       int64

	// lifetimer
	ExpiryFired     int64
	ExpiryRefreshed int64
	ExpiryExpired   int64
	ExpiryStale     int64
	ExpiryErrors    int64

	// cleaner and dormant backend
	Sweeps        int64
	SweepDropped  int64
	SweepErrors   int64
	DormantReads  int64
	DormantWrites int64
	DormantErrors int64
	LockTimeouts  int64

	EmptySignals int64
}

// Source produces the current snapshot.
type Source func() Snapshot

// deltaSnapshot converts cumulative counters to per-interval deltas and keeps gauges as is.
// If a counter went backwards (cur < prev) it treats cur as the delta.
func deltaSnapshot(prev, cur Snapshot) Snapshot {
	return Snapshot{
		ActiveEntries:  cur.ActiveEntries,
		Capacity:       cur.Capacity,
		DormantEntries: cur.DormantEntries,
		ArmedTimers:    cur.ArmedTimers,
		Observers:      cur.Observers,

		Hits:       delta(prev.Hits, cur.Hits),
		DeepHits:   delta(prev.DeepHits, cur.DeepHits),
		Misses:     delta(prev.Misses, cur.Misses),
		Promotions: delta(prev.Promotions, cur.Promotions),
		Demotions:  delta(prev.Demotions, cur.Demotions),
		Spilled:    delta(prev.Spilled, cur.Spilled),
		Rejected:   delta(prev.Rejected, cur.Rejected),
		Lost:       delta(prev.Lost, cur.Lost),

		ExpiryFired:     delta(prev.ExpiryFired, cur.ExpiryFired),
		ExpiryRefreshed: delta(prev.ExpiryRefreshed, cur.ExpiryRefreshed),
		ExpiryExpired:   delta(prev.ExpiryExpired, cur.ExpiryExpired),
		ExpiryStale:     delta(prev.ExpiryStale, cur.ExpiryStale),
		ExpiryErrors:    delta(prev.ExpiryErrors, cur.ExpiryErrors),

		Sweeps:        delta(prev.Sweeps, cur.Sweeps),
		SweepDropped:  delta(prev.SweepDropped, cur.SweepDropped),
		SweepErrors:   delta(prev.SweepErrors, cur.SweepErrors),
		DormantReads:  delta(prev.DormantReads, cur.DormantReads),
		DormantWrites: delta(prev.DormantWrites, cur.DormantWrites),
		DormantErrors: delta(prev.DormantErrors, cur.DormantErrors),
		LockTimeouts:  delta(prev.LockTimeouts, cur.LockTimeouts),

		EmptySignals: delta(prev.EmptySignals, cur.EmptySignals),
	}
}

func delta(prev, cur int64) int64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}
