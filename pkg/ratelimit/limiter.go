package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int       // Maximum number of tokens
	tokens     float64   // Current number of tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter.
// capacity: maximum number of requests allowed in a burst
// refillRate: number of requests allowed per second
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Tokens returns the current number of available tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = time.Now()
}

// KeyedLimiter maintains one token bucket per key, e.g. one per login for
// passcode verification attempts.
type KeyedLimiter struct {
	capacity   int
	refillRate float64
	buckets    map[string]*TokenBucket
	mu         sync.Mutex
}

// NewKeyedLimiter creates a limiter group where each key gets its own bucket
// with the given capacity and refill rate.
func NewKeyedLimiter(capacity int, refillRate float64) *KeyedLimiter {
	return &KeyedLimiter{
		capacity:   capacity,
		refillRate: refillRate,
		buckets:    make(map[string]*TokenBucket),
	}
}

// Allow checks whether a request for the given key should be allowed.
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	bucket, ok := kl.buckets[key]
	if !ok {
		bucket = NewTokenBucket(kl.capacity, kl.refillRate)
		kl.buckets[key] = bucket
	}
	kl.mu.Unlock()

	return bucket.Allow()
}

// Reset drops the bucket for a key, restoring full capacity on next use.
func (kl *KeyedLimiter) Reset(key string) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	delete(kl.buckets, key)
}
