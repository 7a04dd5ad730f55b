// Package ratelimit provides a keyed rate limiter using token bucket algorithm.
// It supports non-blocking (Allow) and blocking (Wait) operations plus
// server-imposed cooldowns.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key (a remote host) gets its own independent token bucket.
type KeyedRateLimiter struct {
	mu        sync.RWMutex
	limiters  map[string]*rate.Limiter
	cooldowns map[string]time.Time
	limit     rate.Limit
	burst     int
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed per key.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		cooldowns: make(map[string]time.Time),
		limit:     rate.Limit(rps),
		burst:     burst,
	}
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking. A key under cooldown is never allowed.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	if krl.cooldownRemaining(key) > 0 {
		return false
	}
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or the context
// is canceled. An active cooldown is served first, then the token bucket.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	if remaining := krl.cooldownRemaining(key); remaining > 0 {
		timer := time.NewTimer(remaining)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return krl.getLimiter(key).Wait(ctx)
}

// Cooldown suspends a key for the given duration. Used when the remote
// signals throttling and a fixed penalty must pass before retrying.
func (krl *KeyedRateLimiter) Cooldown(key string, d time.Duration) {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(krl.cooldowns[key]) {
		krl.cooldowns[key] = until
	}
}

// cooldownRemaining returns how long the key's cooldown has left, clearing
// expired entries so the map does not grow.
func (krl *KeyedRateLimiter) cooldownRemaining(key string) time.Duration {
	krl.mu.RLock()
	until, exists := krl.cooldowns[key]
	krl.mu.RUnlock()

	if !exists {
		return 0
	}

	remaining := time.Until(until)
	if remaining <= 0 {
		krl.mu.Lock()
		delete(krl.cooldowns, key)
		krl.mu.Unlock()
		return 0
	}
	return remaining
}

// getLimiter returns the limiter for a key, creating one if needed.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	// Fast path: read lock
	krl.mu.RLock()
	limiter, exists := krl.limiters[key]
	krl.mu.RUnlock()

	if exists {
		return limiter
	}

	// Slow path: write lock to create
	krl.mu.Lock()
	defer krl.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = krl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(krl.limit, krl.burst)
	krl.limiters[key] = limiter
	return limiter
}
