package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket_TakeDrainsBurst(t *testing.T) {
	b := newBucket(3, 1.0/60)

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := b.take()
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 2-i, remaining)
	}

	allowed, remaining, reset := b.take()
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.True(t, reset.After(time.Now()))
}

func TestBucket_Refills(t *testing.T) {
	b := newBucket(2, 20)

	b.take()
	b.take()
	allowed, _, _ := b.take()
	require.False(t, allowed)

	time.Sleep(120 * time.Millisecond)

	allowed, _, _ = b.take()
	assert.True(t, allowed, "a token refilled in the interval")
}

func TestLimiter_DefaultTier(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  5,
		DefaultWindow: time.Minute,
	})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/anything", "GET")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 5, info.Limit)
		assert.Equal(t, 4-i, info.Remaining)
	}

	allowed, info := l.Allow("10.0.0.1", "/anything", "GET")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
}

func TestLimiter_GenerateTierFromDefaults(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: DefaultEndpointConfigs(),
	})
	defer l.Stop()

	// The generate tier bursts at 5.
	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/generate", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 60, info.Limit)
	}
	allowed, _ := l.Allow("10.0.0.1", "/generate", "POST")
	assert.False(t, allowed)

	// Other paths fall back to the default tier.
	allowed, info := l.Allow("10.0.0.1", "/admin/cache/stats", "GET")
	assert.True(t, allowed)
	assert.Equal(t, 1000, info.Limit)

	// Health stays unlimited regardless of how hard it is polled.
	for i := 0; i < 50; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/health", "GET")
		require.True(t, allowed)
	}
}

func TestLimiter_BucketsAreIsolated(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
	})
	defer l.Stop()

	allowed, _ := l.Allow("10.0.0.1", "/a", "GET")
	require.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/a", "GET")
	require.False(t, allowed)

	// A different client and a different path each get a fresh bucket.
	allowed, _ = l.Allow("10.0.0.2", "/a", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/b", "GET")
	assert.True(t, allowed)
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{"10.0.0.9": true},
		Blacklist:     map[string]bool{"10.0.0.66": true},
	})
	defer l.Stop()

	for i := 0; i < 20; i++ {
		allowed, info := l.Allow("10.0.0.9", "/generate", "POST")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	allowed, _ := l.Allow("10.0.0.66", "/health", "GET")
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 20; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/generate", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_ConcurrentExactCount(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Hour,
	})
	defer l.Stop()

	var wg sync.WaitGroup
	var allowedCount atomic.Int32
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.Allow("10.0.0.1", "/generate", "POST"); allowed {
				allowedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), allowedCount.Load())
}

func TestLimiter_SweepKeepsActiveBuckets(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:         true,
		DefaultLimit:    10,
		DefaultWindow:   time.Minute,
		CleanupInterval: 50 * time.Millisecond,
	})
	defer l.Stop()

	for i := 0; i < 4; i++ {
		client := fmt.Sprintf("10.0.0.%d", i+1)
		allowed, _ := l.Allow(client, "/generate", "POST")
		require.True(t, allowed)
	}

	time.Sleep(120 * time.Millisecond)

	// Buckets touched within the idle TTL survive the sweep with their
	// state intact.
	_, info := l.Allow("10.0.0.1", "/generate", "POST")
	assert.Equal(t, 8, info.Remaining)
}

func TestNewLimiter_NilConfigLoadsEnvironment(t *testing.T) {
	t.Setenv("RATE_LIMIT_DEFAULT_LIMIT", "7")
	l := NewLimiter(nil)
	defer l.Stop()

	allowed, info := l.Allow("10.0.0.1", "/unmatched", "GET")
	require.True(t, allowed)
	assert.Equal(t, 7, info.Limit)
}
