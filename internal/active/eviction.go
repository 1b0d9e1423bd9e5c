package active

import "github.com/Borislavv/go-crow-cache/model"

// Coldest returns a copy of the best demotion victim: minimum frequency, then oldest
// CreatedAt, then smallest key. The scan is O(capacity) and takes shard read locks one by one,
// so under concurrent writes the result is a consistent choice among entries seen, not a
// global snapshot.
func (t *Tier[V]) Coldest() (key string, entry *model.Entry[V], found bool) {
	for _, sh := range t.shards {
		sh.WalkR(func(k string, e *model.Entry[V]) bool {
			if !found || model.Colder(k, e, key, entry) {
				key, entry, found = k, e.Clone(), true
			}
			return true
		})
	}
	return key, entry, found
}

// Demote removes key only while its frequency is still below freq. A victim that was touched
// after Coldest picked it may have become hotter than the candidate and must stay.
func (t *Tier[V]) Demote(key string, freq int64) (*model.Entry[V], bool) {
	sh := t.Shard(key)
	sh.Lock()
	defer sh.Unlock()

	if e, found := sh.items[key]; !found || e.Frequency >= freq {
		return nil, false
	}
	return t.removeUnlocked(sh, key)
}
