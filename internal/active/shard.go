package active

import (
	"sync"

	"github.com/Borislavv/go-crow-cache/model"
)

// Shard is an independent segment of the active tier. Entries are owned by the shard and
// mutated only under its write lock; everything handed out is a clone.
type Shard[V any] struct {
	sync.RWMutex
	items map[string]*model.Entry[V]
}

func NewShard[V any]() *Shard[V] {
	return &Shard[V]{items: make(map[string]*model.Entry[V])}
}

// WalkR iterates entries under a shared lock. The callback must be lightweight and must not
// retain the entry pointer.
func (sh *Shard[V]) WalkR(fn func(key string, e *model.Entry[V]) bool) {
	sh.RLock()
	defer sh.RUnlock()
	for k, v := range sh.items {
		if !fn(k, v) {
			return
		}
	}
}
