// Package ratelimit provides per-client, per-endpoint rate limiting with token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket holds up to capacity tokens and refills at refillRate tokens per second.
type tokenBucket struct {
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		tokens:     float64(capacity),
		lastRefill: now,
		lastUsed:   now,
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	}
	tb.lastRefill = now
}

// take consumes a token if one is available.
func (tb *tokenBucket) take(now time.Time) bool {
	tb.refill(now)
	tb.lastUsed = now
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// untilFull is how long the bucket needs to refill completely.
func (tb *tokenBucket) untilFull() time.Duration {
	missing := tb.capacity - tb.tokens
	if missing <= 0 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration(missing / tb.refillRate * float64(time.Second))
}

// untilNext is how long until one token is available.
func (tb *tokenBucket) untilNext() time.Duration {
	if tb.tokens >= 1 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages token buckets keyed by client, endpoint, and method.
type Limiter struct {
	config  *Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter creates a limiter. A nil config selects DefaultConfig.
// When cleanup is enabled a background goroutine runs until Stop.
func NewLimiter(config *Config) *Limiter {
	return newLimiter(config, time.Now)
}

func newLimiter(config *Config, now func() time.Time) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		config:  config,
		now:     now,
		buckets: make(map[string]*tokenBucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop(config.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID to the endpoint may proceed.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	if !l.config.Enabled || l.config.Whitelist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.config.Blacklist[clientID] {
		return false, Info{Allowed: false}
	}

	cfg := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	if cfg == nil {
		cfg = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return true, Info{Allowed: true}
	}

	// Prefix-matched endpoints share one bucket per client.
	key := clientID + " " + method + " " + endpoint
	if cfg.Path != "" {
		key = clientID + " " + method + " " + cfg.Path
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[key]
	if !ok {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Limit
		}
		bucket = newTokenBucket(burst, float64(cfg.Limit)/cfg.Window.Seconds(), now)
		l.buckets[key] = bucket
	}

	allowed := bucket.take(now)
	info := Info{
		Allowed:   allowed,
		Limit:     cfg.Limit,
		Remaining: int(bucket.tokens),
		ResetTime: now.Add(bucket.untilFull()),
	}
	if !allowed {
		info.RetryAfter = bucket.untilNext()
	}
	return allowed, info
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets idle for longer than IdleTTL.
func (l *Limiter) cleanup() int {
	ttl := l.config.IdleTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cutoff := l.now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, bucket := range l.buckets {
		if bucket.lastUsed.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
