package model

import (
	"sort"
	"time"
)

// Mapping is a full key->entry image of the dormant tier, as read from or written to a backend.
type Mapping[V any] map[string]*Entry[V]

// Clone copies the mapping and every entry in it.
func (m Mapping[V]) Clone() Mapping[V] {
	out := make(Mapping[V], len(m))
	for k, e := range m {
		out[k] = e.Clone()
	}
	return out
}

// Live drops entries expired at now and returns how many were dropped.
func (m Mapping[V]) Live(now time.Time, ttl time.Duration) (dropped int) {
	for k, e := range m {
		if e == nil || e.IsExpired(now, ttl) {
			delete(m, k)
			dropped++
		}
	}
	return dropped
}

// Hottest returns keys ordered by descending frequency (ties by key), skipping exclude.
func (m Mapping[V]) Hottest(exclude string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != exclude {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return Hotter(keys[i], m[keys[i]], keys[j], m[keys[j]])
	})
	return keys
}
