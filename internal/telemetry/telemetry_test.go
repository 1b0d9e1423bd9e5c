package telemetry

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer shared with the logs goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestDeltaSnapshot verifies that counters become deltas while gauges pass through.
func TestDeltaSnapshot(t *testing.T) {
	prev := Snapshot{Hits: 10, Sweeps: 3, ActiveEntries: 4}
	cur := Snapshot{Hits: 25, Sweeps: 1, ActiveEntries: 7}

	d := deltaSnapshot(prev, cur)
	require.Equal(t, int64(15), d.Hits)
	require.Equal(t, int64(1), d.Sweeps, "a counter reset is taken as the delta")
	require.Equal(t, int64(7), d.ActiveEntries)
}

// TestLogs_Disabled verifies that a disabled config starts nothing and closes cleanly.
func TestLogs_Disabled(t *testing.T) {
	l := New(t.Context(), nil, zerolog.Nop(), func() Snapshot { return Snapshot{} })
	require.Zero(t, l.Interval())
	require.NoError(t, l.Close())
}

// TestLogs_WritesStatLines verifies that the loop logs per-interval deltas.
func TestLogs_WritesStatLines(t *testing.T) {
	var hits atomic.Int64
	out := &syncBuffer{}
	logger := zerolog.New(out)

	l := New(context.Background(), &config.TelemetryCfg{IsLogsEnabled: true, LogsInterval: 10 * time.Millisecond},
		logger, func() Snapshot {
			return Snapshot{Hits: hits.Add(2), Capacity: 8, Observers: 1, EmptySignals: 3 * hits.Load()}
		})
	defer l.Close()
	require.Equal(t, 10*time.Millisecond, l.Interval())

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, `"message":"eviction_engine"`) && strings.Contains(s, `"message":"storage"`)
	}, time.Second, 5*time.Millisecond)
	require.Contains(t, out.String(), `"hits":2`)
	require.Contains(t, out.String(), `"empty_signals":6`)
	require.Contains(t, out.String(), `"observers":1`)
	require.Contains(t, out.String(), `"component":"telemetry"`)
}

// TestCollector_Gather verifies that every snapshot field is exported with the right type.
func TestCollector_Gather(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(func() Snapshot {
		return Snapshot{ActiveEntries: 3, Capacity: 10, Hits: 42, ExpiryExpired: 5}
	}, prometheus.Labels{"cache": "test"})
	reg.MustRegister(c)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		require.Equal(t, "test", m.GetLabel()[0].GetValue())
		if m.GetCounter() != nil {
			byName[mf.GetName()] = m.GetCounter().GetValue()
		} else {
			byName[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	require.Equal(t, 3.0, byName["crowcache_active_entries"])
	require.Equal(t, 10.0, byName["crowcache_capacity"])
	require.Equal(t, 42.0, byName["crowcache_hits_total"])
	require.Equal(t, 5.0, byName["crowcache_expiry_expired_total"])
	require.Len(t, byName, len(c.metrics))
}
