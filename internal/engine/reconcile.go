package engine

import (
	"context"

	"github.com/Borislavv/go-crow-cache/internal/active"
	"github.com/Borislavv/go-crow-cache/model"
)

// Outcome reports what a Reconcile call did.
type Outcome struct {
	// ActiveMutated is set when any entry entered or left the active tier.
	ActiveMutated bool
	// CandidatePlaced is set when the candidate is resident in the active tier. When it is
	// false the caller still owns the candidate and is expected to write it to dormant.
	CandidatePlaced bool
}

// Reconcile finds the candidate a place in the active tier if it deserves one.
//
// With free slots, dormant entries strictly hotter than the candidate are promoted first,
// hottest first, and the candidate takes whatever room is left. With a full tier the coldest
// active entry is demoted only when it is strictly colder than the candidate; on a tie the
// incumbent stays. The loop is bounded by capacity+1 rounds, each round either places the
// candidate, gives up, or observes a tier that changed under it.
func (e *Engine[V]) Reconcile(ctx context.Context, key string, cand *model.Entry[V]) (out Outcome) {
	rounds := e.active.Capacity() + 1
	for i := 0; i < rounds; i++ {
		if free := e.active.Free(); free > 0 {
			if done := e.fill(ctx, key, cand, free, &out); done {
				return out
			}
			continue
		}

		victimKey, victim, found := e.active.Coldest()
		if !found {
			continue
		}
		if victim.Frequency >= cand.Frequency {
			return out
		}
		if done := e.replace(ctx, key, cand, victimKey, &out); done {
			return out
		}
	}

	e.logger.Warn().Str("key", key).Int("rounds", rounds).Msg("reconcile gave up on a busy active tier")
	return out
}

// fill promotes hotter dormant entries into free slots and then tries the candidate.
// It reports true once nothing more can be done in this Reconcile call.
func (e *Engine[V]) fill(ctx context.Context, key string, cand *model.Entry[V], free int, out *Outcome) bool {
	var moved []string
	err := e.dormant.Mutate(ctx, func(m model.Mapping[V]) (changed bool) {
		for _, k := range m.Hottest(key) {
			if len(moved) >= free {
				break
			}
			de := m[k]
			if de.Frequency <= cand.Frequency {
				break
			}
			switch e.active.Insert(k, de) {
			case active.Inserted:
				moved = append(moved, k)
			case active.Full:
				return changed
			}
			// resident or promoted, either way the dormant copy must go
			delete(m, k)
			changed = true
		}
		if len(moved) >= free {
			return changed
		}

		switch e.active.Insert(key, cand) {
		case active.Inserted:
			moved = append(moved, key)
			out.CandidatePlaced = true
		case active.Exists:
			out.CandidatePlaced = true
		case active.Full:
			return changed
		}
		if _, ok := m[key]; ok {
			delete(m, key)
			changed = true
		}
		return changed
	})
	if err != nil {
		// The dormant copies of moved entries were not removed: undo the moves rather than
		// keep them in both tiers.
		for _, k := range moved {
			e.active.Remove(k)
		}
		out.CandidatePlaced = false
		e.logger.Warn().Err(err).Str("key", key).Int("undone", len(moved)).Msg("reconcile aborted, dormant tier unavailable")
		return true
	}

	if len(moved) > 0 {
		out.ActiveMutated = true
		promoted := len(moved)
		if out.CandidatePlaced && moved[len(moved)-1] == key {
			promoted--
		}
		e.counters.promotions.Add(int64(promoted))
	}
	return out.CandidatePlaced
}

// replace demotes victimKey and admits the candidate into the freed slot.
func (e *Engine[V]) replace(ctx context.Context, key string, cand *model.Entry[V], victimKey string, out *Outcome) bool {
	victim, ok := e.active.Demote(victimKey, cand.Frequency)
	if !ok {
		// touched or removed since Coldest looked at it
		return false
	}
	out.ActiveMutated = true

	err := e.dormant.Mutate(ctx, func(m model.Mapping[V]) bool {
		m[victimKey] = victim
		delete(m, key)
		return true
	})
	if err != nil {
		e.logger.Error().Err(err).Str("victim", victimKey).Str("key", key).Msg("demotion aborted")
		if res := e.active.Insert(victimKey, victim); res != active.Inserted {
			e.counters.lost.Add(1)
			e.logger.Error().Str("key", victimKey).Stringer("insert", res).Msg("demoted entry lost")
		}
		return true
	}
	e.counters.demotions.Add(1)

	switch e.active.Insert(key, cand) {
	case active.Inserted, active.Exists:
		out.CandidatePlaced = true
		return true
	}
	return false
}
