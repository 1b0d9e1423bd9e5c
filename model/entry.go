package model

import (
	"context"
	"time"
)

// Refresher produces a fresh value for an active entry whose TTL elapsed.
type Refresher[V any] func(ctx context.Context) (V, error)

// Entry is the value envelope stored in both tiers.
//
// Frequency starts at 1, grows by one on every lookup or promotion touch and is carried
// unchanged when the entry moves between tiers. CreatedAt is set once and drives the
// dormant TTL; ModifiedAt moves on value replacement.
//
// Entries held by the active tier are owned by it and mutated only under its shard locks,
// callers always receive clones.
type Entry[V any] struct {
	Data       V         `json:"data"`
	Frequency  int64     `json:"frequency"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// OnExpire is process-local and never persisted (gob and json skip func fields).
	OnExpire Refresher[V] `json:"-"`
}

// NewEntry builds an entry created at now. Frequencies below 1 are raised to 1.
func NewEntry[V any](data V, frequency int64, now time.Time, onExpire Refresher[V]) *Entry[V] {
	if frequency < 1 {
		frequency = 1
	}
	return &Entry[V]{
		Data:       data,
		Frequency:  frequency,
		CreatedAt:  now,
		ModifiedAt: now,
		OnExpire:   onExpire,
	}
}

// Clone returns a shallow copy (Data itself is not deep-copied).
func (e *Entry[V]) Clone() *Entry[V] {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// IsExpired reports whether the entry outlived ttl at now. A non-positive ttl never expires.
func (e *Entry[V]) IsExpired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) >= ttl
}

// Refreshable reports whether the entry carries a refresh callback.
func (e *Entry[V]) Refreshable() bool { return e.OnExpire != nil }

// Hotter reports whether e should rank before other in a descending-frequency order.
// Ties are broken by key so that orderings are reproducible.
func Hotter[V any](aKey string, a *Entry[V], bKey string, b *Entry[V]) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency > b.Frequency
	}
	return aKey < bKey
}

// Colder reports whether a is a better demotion victim than b:
// lower frequency first, then older CreatedAt, then key.
func Colder[V any](aKey string, a *Entry[V], bKey string, b *Entry[V]) bool {
	if a.Frequency != b.Frequency {
		return a.Frequency < b.Frequency
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return aKey < bKey
}
