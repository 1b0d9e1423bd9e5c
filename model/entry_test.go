package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewEntry_FrequencyFloor verifies that a new entry never starts below frequency 1.
func TestNewEntry_FrequencyFloor(t *testing.T) {
	now := time.Now()

	e := NewEntry("v", 0, now, nil)
	require.Equal(t, int64(1), e.Frequency)
	require.Equal(t, now, e.CreatedAt)
	require.Equal(t, now, e.ModifiedAt)
	require.False(t, e.Refreshable())

	e = NewEntry("v", 7, now, nil)
	require.Equal(t, int64(7), e.Frequency)
}

// TestEntry_IsExpired verifies the dormant TTL boundary (age >= ttl is expired).
func TestEntry_IsExpired(t *testing.T) {
	now := time.Now()
	e := NewEntry(1, 1, now, nil)

	require.False(t, e.IsExpired(now.Add(99*time.Millisecond), 100*time.Millisecond))
	require.True(t, e.IsExpired(now.Add(100*time.Millisecond), 100*time.Millisecond))
	require.False(t, e.IsExpired(now.Add(time.Hour), 0), "non-positive ttl never expires")
}

// TestEntry_Clone verifies that clones are independent records.
func TestEntry_Clone(t *testing.T) {
	e := NewEntry("a", 3, time.Now(), nil)
	c := e.Clone()
	c.Frequency++
	c.Data = "b"

	require.Equal(t, int64(3), e.Frequency)
	require.Equal(t, "a", e.Data)

	var nilEntry *Entry[string]
	require.Nil(t, nilEntry.Clone())
}

// TestColder_TieBreaks verifies the demotion order: frequency, then age, then key.
func TestColder_TieBreaks(t *testing.T) {
	now := time.Now()
	old := NewEntry("x", 2, now.Add(-time.Minute), nil)
	young := NewEntry("y", 2, now, nil)
	hot := NewEntry("z", 5, now.Add(-time.Hour), nil)

	require.True(t, Colder("b", old, "a", young), "older wins on equal frequency")
	require.True(t, Colder("z", young, "a", hot), "lower frequency wins regardless of age")
	require.True(t, Colder("a", young, "b", young.Clone()), "key breaks full ties")
}

// TestMapping_HottestAndLive verifies ordering and TTL filtering of a dormant image.
func TestMapping_HottestAndLive(t *testing.T) {
	now := time.Now()
	m := Mapping[int]{
		"a": NewEntry(1, 2, now, nil),
		"b": NewEntry(2, 9, now, nil),
		"c": NewEntry(3, 2, now.Add(-time.Hour), nil),
		"d": NewEntry(4, 4, now, nil),
	}

	require.Equal(t, []string{"b", "d", "a", "c"}, m.Hottest(""))
	require.Equal(t, []string{"d", "a", "c"}, m.Hottest("b"))

	clone := m.Clone()
	require.Equal(t, 1, clone.Live(now, time.Minute))
	require.NotContains(t, clone, "c")
	require.Contains(t, m, "c", "clone must not alias the source")
}
