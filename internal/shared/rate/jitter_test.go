package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestJitter_EmitsTokens verifies that a limited jitter hands out tokens.
func TestJitter_EmitsTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	jitter := NewJitter(ctx, 10)
	require.Equal(t, 10, jitter.Limit())

	waitCtx, waitCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer waitCancel()
	require.True(t, jitter.Wait(waitCtx), "jitter should emit tokens")
}

// TestJitter_UnlimitedIsFast verifies that a non-positive limit does not throttle.
func TestJitter_UnlimitedIsFast(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	jitter := NewJitter(ctx, 0)
	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.True(t, jitter.Wait(ctx))
	}
	require.Less(t, time.Since(start), time.Second)
}

// TestJitter_WaitStopsOnCancel verifies that Wait reports false once ctx is done.
func TestJitter_WaitStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	jitter := NewJitter(ctx, 1)
	cancel()

	// drain whatever was buffered before the cancel, then the channel must close
	require.Eventually(t, func() bool {
		return !jitter.Wait(context.Background())
	}, 3*time.Second, 5*time.Millisecond)
}
