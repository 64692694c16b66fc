package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second call for the same host waits ~100ms.
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://cdn.example.com/a.jpg"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://cdn.example.com/b.jpg"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// Other hosts have their own bucket.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://images.example.org/c.jpg"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://cdn.example.com/a.jpg"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://cdn.example.com/b.jpg"))
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.001, Burst: 2})
	require.True(t, l.Allow("WhatsApp"))
	require.True(t, l.Allow("WhatsApp"))
	require.False(t, l.Allow("WhatsApp"))
	require.True(t, l.Allow("Twitterbot"))
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow(""))
	}
}
