// Package active implements the bounded in-memory tier.
//
// The tier is a sharded map whose size never exceeds its capacity: inserts reserve a slot
// with a CAS on the global counter before touching a shard. Every resident key owns exactly
// one expiry timer, armed on insert and touch and cancelled on removal while the shard lock
// is held, so the timer set and the entry set change together.
package active

import (
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-crow-cache/model"
)

// Timers is the per-key expiry clock the tier drives.
type Timers interface {
	// Schedule arms (or re-arms) the key's timer with the configured TTL.
	Schedule(key string)
	// Cancel stops and forgets the key's timer.
	Cancel(key string)
	// IsCurrent reports whether gen is the latest arming of key.
	IsCurrent(key string, gen uint64) bool
}

type InsertResult int

const (
	Inserted InsertResult = iota
	Exists
	Full
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Exists:
		return "exists"
	default:
		return "full"
	}
}

type Tier[V any] struct {
	capacity int64
	len      atomic.Int64
	timers   Timers
	shards   [NumOfShards]*Shard[V]
}

func New[V any](capacity int, timers Timers) *Tier[V] {
	t := &Tier[V]{capacity: int64(capacity), timers: timers}
	for id := uint64(0); id < NumOfShards; id++ {
		t.shards[id] = NewShard[V]()
	}
	return t
}

func (t *Tier[V]) Shard(key string) *Shard[V] { return t.shards[shardOf(key)] }
func (t *Tier[V]) Len() int                   { return int(t.len.Load()) }
func (t *Tier[V]) Capacity() int              { return int(t.capacity) }
func (t *Tier[V]) Free() int                  { return int(t.capacity - t.len.Load()) }

// Insert stores e under key and arms its timer. It fails with Exists when the key is
// resident and with Full when no slot can be reserved. The tier takes ownership of e.
func (t *Tier[V]) Insert(key string, e *model.Entry[V]) InsertResult {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	if _, found := sh.items[key]; found {
		return Exists
	}
	if !t.reserve() {
		return Full
	}
	sh.items[key] = e
	t.timers.Schedule(key)
	return Inserted
}

// Touch increments the key's frequency, re-arms its timer and returns a copy of the entry.
func (t *Tier[V]) Touch(key string) (*model.Entry[V], bool) {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	e, found := sh.items[key]
	if !found {
		return nil, false
	}
	e.Frequency++
	t.timers.Schedule(key)
	return e.Clone(), true
}

// Contains reports whether key is resident without touching it.
func (t *Tier[V]) Contains(key string) bool {
	sh := t.Shard(key)
	sh.RLock()
	defer sh.RUnlock()
	_, found := sh.items[key]
	return found
}

// Peek returns a copy of the entry without touching it.
func (t *Tier[V]) Peek(key string) (*model.Entry[V], bool) {
	sh := t.Shard(key)
	sh.RLock()
	defer sh.RUnlock()

	e, found := sh.items[key]
	if !found {
		return nil, false
	}
	return e.Clone(), true
}

// Update replaces the value in place. Frequency and timer are left alone.
func (t *Tier[V]) Update(key string, value V, now time.Time) bool {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	e, found := sh.items[key]
	if !found {
		return false
	}
	e.Data = value
	e.ModifiedAt = now
	return true
}

// Remove cancels the key's timer and then drops the entry.
func (t *Tier[V]) Remove(key string) (*model.Entry[V], bool) {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()
	return t.removeUnlocked(sh, key)
}

// Expire removes the key only if gen is still its current timer arming; a touch that
// happened after the timer fired wins over the stale expiry.
func (t *Tier[V]) Expire(key string, gen uint64) (*model.Entry[V], bool) {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	if !t.timers.IsCurrent(key, gen) {
		return nil, false
	}
	return t.removeUnlocked(sh, key)
}

// RefresherOf returns the refresh callback of key if gen is still current.
func (t *Tier[V]) RefresherOf(key string, gen uint64) (model.Refresher[V], bool) {
	sh := t.Shard(key)
	sh.RLock()
	defer sh.RUnlock()

	e, found := sh.items[key]
	if !found || !e.Refreshable() || !t.timers.IsCurrent(key, gen) {
		return nil, false
	}
	return e.OnExpire, true
}

// Refresh stores a value produced by the key's refresh callback and re-arms the timer.
// It is a no-op when the key was removed or touched since the timer fired.
func (t *Tier[V]) Refresh(key string, gen uint64, value V, now time.Time) bool {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	e, found := sh.items[key]
	if !found || !t.timers.IsCurrent(key, gen) {
		return false
	}
	e.Data = value
	e.ModifiedAt = now
	t.timers.Schedule(key)
	return true
}

// Rearm restarts the timer of key if gen is still current (used when a refresh failed).
func (t *Tier[V]) Rearm(key string, gen uint64) bool {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	if _, found := sh.items[key]; !found || !t.timers.IsCurrent(key, gen) {
		return false
	}
	t.timers.Schedule(key)
	return true
}

// Snapshot copies every resident entry.
func (t *Tier[V]) Snapshot() model.Mapping[V] {
	out := make(model.Mapping[V], t.Len())
	for _, sh := range t.shards {
		sh.WalkR(func(key string, e *model.Entry[V]) bool {
			out[key] = e.Clone()
			return true
		})
	}
	return out
}

// Clear cancels every timer and drops every entry. Returns the number of dropped entries.
func (t *Tier[V]) Clear() (items int) {
	for _, sh := range t.shards {
		sh.Lock()
		for key := range sh.items {
			t.timers.Cancel(key)
			items++
		}
		t.len.Add(-int64(len(sh.items)))
		sh.items = make(map[string]*model.Entry[V])
		sh.Unlock()
	}
	return items
}

func (t *Tier[V]) removeUnlocked(sh *Shard[V], key string) (*model.Entry[V], bool) {
	e, found := sh.items[key]
	if !found {
		return nil, false
	}
	t.timers.Cancel(key)
	delete(sh.items, key)
	t.len.Add(-1)
	return e, true
}

func (t *Tier[V]) reserve() bool {
	for {
		cur := t.len.Load()
		if cur >= t.capacity {
			return false
		}
		if t.len.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}
