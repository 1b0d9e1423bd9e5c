package active

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Borislavv/go-crow-cache/model"
	"github.com/stretchr/testify/require"
)

// fakeTimers records armings per key; every Schedule bumps the key's generation.
type fakeTimers struct {
	mu   sync.Mutex
	gens map[string]uint64
	arms map[string]int
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{gens: make(map[string]uint64), arms: make(map[string]int)}
}

func (f *fakeTimers) Schedule(key string) {
	f.mu.Lock()
	f.gens[key]++
	f.arms[key]++
	f.mu.Unlock()
}

func (f *fakeTimers) Cancel(key string) {
	f.mu.Lock()
	delete(f.gens, key)
	f.mu.Unlock()
}

func (f *fakeTimers) IsCurrent(key string, gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.gens[key]
	return ok && cur == gen
}

func (f *fakeTimers) gen(key string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gens[key]
}

func (f *fakeTimers) armed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gens)
}

func entry(freq int64) *model.Entry[string] {
	return model.NewEntry("v", freq, time.Now(), nil)
}

// TestTier_InsertCapacity verifies Exists/Full results and that one timer is armed per resident key.
func TestTier_InsertCapacity(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](2, timers)

	require.Equal(t, Inserted, tier.Insert("a", entry(1)))
	require.Equal(t, Exists, tier.Insert("a", entry(1)))
	require.Equal(t, Inserted, tier.Insert("b", entry(1)))
	require.Equal(t, Full, tier.Insert("c", entry(1)))

	require.Equal(t, 2, tier.Len())
	require.Equal(t, 0, tier.Free())
	require.Equal(t, 2, timers.armed())
}

// TestTier_CapacityUnderContention verifies that concurrent inserts never overshoot capacity.
func TestTier_CapacityUnderContention(t *testing.T) {
	const capacity = 50
	tier := New[string](capacity, newFakeTimers())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tier.Insert(fmt.Sprintf("k-%d-%d", g, i), entry(1))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, capacity, tier.Len())
	require.Len(t, tier.Snapshot(), capacity)
}

// TestTier_TouchIncrementsAndRearms verifies that a touch bumps frequency and restarts the timer.
func TestTier_TouchIncrementsAndRearms(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	tier.Insert("a", entry(1))

	e, ok := tier.Touch("a")
	require.True(t, ok)
	require.Equal(t, int64(2), e.Frequency)
	require.Equal(t, 2, timers.arms["a"])

	_, ok = tier.Touch("missing")
	require.False(t, ok)

	// returned copies do not alias the resident entry
	e.Frequency = 100
	peek, _ := tier.Peek("a")
	require.Equal(t, int64(2), peek.Frequency)
}

// TestTier_RemoveCancelsTimer verifies that removal tears the timer down.
func TestTier_RemoveCancelsTimer(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	tier.Insert("a", entry(3))

	e, ok := tier.Remove("a")
	require.True(t, ok)
	require.Equal(t, int64(3), e.Frequency)
	require.Equal(t, 0, timers.armed())
	require.Equal(t, 0, tier.Len())

	_, ok = tier.Remove("a")
	require.False(t, ok)
}

// TestTier_ExpireIgnoresStaleGeneration verifies that an expiry raced by a touch is dropped.
func TestTier_ExpireIgnoresStaleGeneration(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	tier.Insert("a", entry(1))

	fired := timers.gen("a")
	tier.Touch("a")

	_, ok := tier.Expire("a", fired)
	require.False(t, ok, "stale expiry must not remove a touched entry")
	require.Equal(t, 1, tier.Len())

	_, ok = tier.Expire("a", timers.gen("a"))
	require.True(t, ok)
	require.Equal(t, 0, tier.Len())
}

// TestTier_Refresh verifies that a refresh replaces the value, keeps frequency and re-arms.
func TestTier_Refresh(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	refresher := func(context.Context) (string, error) { return "fresh", nil }
	tier.Insert("refreshable", model.NewEntry("old", 4, time.Now(), refresher))
	tier.Insert("plain", entry(1))

	_, ok := tier.RefresherOf("plain", timers.gen("plain"))
	require.False(t, ok, "entries without callback are not refreshable")

	gen := timers.gen("refreshable")
	fn, ok := tier.RefresherOf("refreshable", gen)
	require.True(t, ok)
	value, err := fn(t.Context())
	require.NoError(t, err)

	require.True(t, tier.Refresh("refreshable", gen, value, time.Now()))
	peek, _ := tier.Peek("refreshable")
	require.Equal(t, "fresh", peek.Data)
	require.Equal(t, int64(4), peek.Frequency)
	require.Equal(t, 2, timers.arms["refreshable"])
	require.False(t, tier.Refresh("refreshable", gen, "stale", time.Now()), "generation moved on after refresh")
}

// TestTier_UpdateKeepsFrequency verifies that Update changes only data and ModifiedAt.
func TestTier_UpdateKeepsFrequency(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	tier.Insert("a", entry(5))
	later := time.Now().Add(time.Minute)

	require.True(t, tier.Update("a", "updated", later))
	require.False(t, tier.Update("missing", "x", later))

	peek, _ := tier.Peek("a")
	require.Equal(t, "updated", peek.Data)
	require.Equal(t, int64(5), peek.Frequency)
	require.Equal(t, later, peek.ModifiedAt)
	require.Equal(t, 1, timers.arms["a"], "update must not re-arm")
}

// TestTier_Coldest verifies the victim order: lowest frequency, then oldest.
func TestTier_Coldest(t *testing.T) {
	tier := New[string](8, newFakeTimers())
	_, _, found := tier.Coldest()
	require.False(t, found)

	now := time.Now()
	tier.Insert("f2-young", model.NewEntry("v", 2, now, nil))
	tier.Insert("f2-old", model.NewEntry("v", 2, now.Add(-time.Minute), nil))
	tier.Insert("f3", model.NewEntry("v", 3, now.Add(-time.Hour), nil))
	tier.Insert("f5", model.NewEntry("v", 5, now, nil))

	key, e, found := tier.Coldest()
	require.True(t, found)
	require.Equal(t, "f2-old", key)
	require.Equal(t, int64(2), e.Frequency)
}

// TestTier_Clear verifies that Clear drops every entry and timer.
func TestTier_Clear(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](8, timers)
	for i := 0; i < 5; i++ {
		tier.Insert(fmt.Sprintf("k%d", i), entry(1))
	}

	require.Equal(t, 5, tier.Clear())
	require.Equal(t, 0, tier.Len())
	require.Equal(t, 0, timers.armed())
	require.Equal(t, Inserted, tier.Insert("again", entry(1)))
}

// TestTier_DemoteRespectsFrequency verifies that a victim touched past the candidate is kept.
func TestTier_DemoteRespectsFrequency(t *testing.T) {
	timers := newFakeTimers()
	tier := New[string](4, timers)
	require.Equal(t, Inserted, tier.Insert("victim", entry(2)))

	_, ok := tier.Demote("victim", 2)
	require.False(t, ok, "equal frequency keeps the incumbent")

	e, ok := tier.Demote("victim", 3)
	require.True(t, ok)
	require.Equal(t, int64(2), e.Frequency)
	require.Equal(t, 0, tier.Len())
	require.Equal(t, 0, timers.armed())

	_, ok = tier.Demote("missing", 10)
	require.False(t, ok)
}

// TestTier_ShardDistribution verifies that keys land on stable shards and that shard sizes add up.
func TestTier_ShardDistribution(t *testing.T) {
	tier := New[string](1024, newFakeTimers())
	for i := 0; i < 512; i++ {
		require.Equal(t, Inserted, tier.Insert(fmt.Sprintf("key-%d", i), entry(1)))
	}

	total, used := 0, 0
	for _, sh := range tier.shards {
		total += len(sh.items)
		if len(sh.items) > 0 {
			used++
		}
	}
	require.Equal(t, 512, total)
	require.Greater(t, used, NumOfShards/2, "keys should spread across shards")
	require.Same(t, tier.Shard("key-7"), tier.Shard("key-7"))
}

// TestTier_InsertResults verifies each insert outcome and its log name.
func TestTier_InsertResults(t *testing.T) {
	tier := New[string](1, newFakeTimers())

	res := tier.Insert("a", entry(1))
	require.Equal(t, Inserted, res)
	require.Equal(t, "inserted", res.String())

	res = tier.Insert("a", entry(1))
	require.Equal(t, Exists, res)
	require.Equal(t, "exists", res.String())
	require.True(t, tier.Contains("a"))

	res = tier.Insert("b", entry(1))
	require.Equal(t, Full, res)
	require.Equal(t, "full", res.String())
	require.False(t, tier.Contains("b"))
}
