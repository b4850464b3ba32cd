package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLimiter(t *testing.T, cfg *Config) (*Limiter, *manualClock) {
	t.Helper()
	clock := &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.CleanupInterval = 0
	l := newLimiter(cfg, clock.Now)
	t.Cleanup(l.Stop)
	return l, clock
}

func TestTokenBucket_TakeAndRefill(t *testing.T) {
	start := time.Now()
	bucket := newTokenBucket(3, 1.0, start)

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.take(start), "request %d", i+1)
	}
	assert.False(t, bucket.take(start))
	assert.Equal(t, time.Second, bucket.untilNext())

	assert.True(t, bucket.take(start.Add(1100*time.Millisecond)))
	assert.False(t, bucket.take(start.Add(1100*time.Millisecond)))
}

func TestLimiter_GenerationBurstThenDenied(t *testing.T) {
	l, clock := testLimiter(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("10.0.0.1", "/generate-cover-letter", "POST")
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 20, info.Limit)
	}

	allowed, info := l.Allow("10.0.0.1", "/generate-cover-letter", "POST")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, float64(3*time.Second), float64(info.RetryAfter), float64(time.Millisecond))

	// Other clients and endpoints have their own buckets.
	allowed, _ = l.Allow("10.0.0.2", "/generate-cover-letter", "POST")
	assert.True(t, allowed)
	allowed, _ = l.Allow("10.0.0.1", "/generate-cover-letter-with-context", "POST")
	assert.True(t, allowed)

	clock.Advance(4 * time.Second)
	allowed, _ = l.Allow("10.0.0.1", "/generate-cover-letter", "POST")
	assert.True(t, allowed)
}

func TestLimiter_PrefixEndpointsShareBucket(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EndpointConfigs = []EndpointConfig{{Path: "/context-by-role/", Method: "GET", Limit: 2, Window: time.Minute}}
	l, _ := testLimiter(t, cfg)

	allowed, _ := l.Allow("c", "/context-by-role/Backend", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/context-by-role/Data", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/context-by-role/Design", "GET")
	assert.False(t, allowed)
}

func TestLimiter_HealthUnlimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultLimit = 1
	l, _ := testLimiter(t, cfg)

	for i := 0; i < 50; i++ {
		allowed, info := l.Allow("c", "/health", "GET")
		require.True(t, allowed)
		assert.Zero(t, info.Limit)
	}

	allowed, _ := l.Allow("c", "/roles", "GET")
	assert.True(t, allowed)
	allowed, _ = l.Allow("c", "/roles", "GET")
	assert.False(t, allowed)
}

func TestLimiter_WhitelistBlacklistDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultLimit = 1
	cfg.Whitelist = map[string]bool{"trusted": true}
	cfg.Blacklist = map[string]bool{"banned": true}
	l, _ := testLimiter(t, cfg)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("trusted", "/roles", "GET")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("banned", "/health", "GET")
	assert.False(t, allowed)

	disabled, _ := testLimiter(t, &Config{Enabled: false})
	for i := 0; i < 3; i++ {
		allowed, _ := disabled.Allow("anyone", "/generate-cover-letter", "POST")
		assert.True(t, allowed)
	}
}

func TestLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	l, clock := testLimiter(t, DefaultConfig())

	l.Allow("a", "/roles", "GET")
	clock.Advance(30 * time.Minute)
	l.Allow("b", "/roles", "GET")
	clock.Advance(45 * time.Minute)

	assert.Equal(t, 1, l.cleanup())
	assert.Len(t, l.buckets, 1)
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	l := NewLimiter(nil)
	l.Stop()
	l.Stop()
}

func TestLoadConfigFrom(t *testing.T) {
	env := map[string]string{
		"RATE_LIMIT_DEFAULT_LIMIT":       "50",
		"RATE_LIMIT_DEFAULT_WINDOW":      "30s",
		"RATE_LIMIT_WHITELIST":           "127.0.0.1, 10.0.0.1",
		"RATE_LIMIT_GENERATE_PER_MINUTE": "7",
		"RATE_LIMIT_CLEANUP_INTERVAL":    "not-a-duration",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := LoadConfigFrom(lookup)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 50, cfg.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.DefaultWindow)
	assert.Equal(t, 5*time.Minute, cfg.CleanupInterval)
	assert.True(t, cfg.Whitelist["10.0.0.1"])
	assert.Len(t, cfg.Whitelist, 2)

	gen := MatchEndpoint("/generate-cover-letter", "POST", cfg.EndpointConfigs)
	require.NotNil(t, gen)
	assert.Equal(t, 7, gen.Limit)
	rebuild := MatchEndpoint("/admin/index/rebuild", "POST", cfg.EndpointConfigs)
	require.NotNil(t, rebuild)
	assert.Equal(t, 5, rebuild.Limit)

	env["RATE_LIMIT_ENABLED"] = "false"
	assert.False(t, LoadConfigFrom(lookup).Enabled)
}

func TestMatchEndpoint(t *testing.T) {
	configs := DefaultEndpointConfigs()

	assert.Equal(t, "/generate-cover-letter-with-context",
		MatchEndpoint("/generate-cover-letter-with-context", "POST", configs).Path)
	assert.Equal(t, "/context-by-role/", MatchEndpoint("/context-by-role/Backend%20Engineer", "GET", configs).Path)
	assert.Nil(t, MatchEndpoint("/generate-cover-letter", "GET", configs))
	assert.Nil(t, MatchEndpoint("/roles", "GET", configs))
	assert.Zero(t, MatchEndpoint("/health", "GET", configs).Limit)
}
