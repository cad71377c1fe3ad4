// Package ratelimit provides per-principal token-bucket admission control.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket implements token bucket rate limiting for a single principal.
// Refill rate = quotaQPM/60 tokens/sec; capacity = quotaQPM.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewBucket creates a token bucket sized for the given quota in queries
// per minute. A new bucket starts full (the principal's full burst is
// immediately available).
func NewBucket(quotaQPM int) *Bucket {
	if quotaQPM <= 0 {
		quotaQPM = 60
	}
	return &Bucket{
		tokens:     float64(quotaQPM),
		maxTokens:  float64(quotaQPM),
		refillRate: float64(quotaQPM) / 60.0,
		lastRefill: time.Now(),
	}
}

// Allow atomically refills then tries to consume one token.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time (must be called with lock held).
func (b *Bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
}

// Tokens returns the current number of available tokens.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// WaitTime returns how long to wait before a request would be allowed.
func (b *Bucket) WaitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()

	if b.tokens >= 1 {
		return 0
	}

	needed := 1 - b.tokens
	seconds := needed / b.refillRate
	return time.Duration(seconds * float64(time.Second))
}

// Limiter manages one token bucket per principal key. Existing keys are
// looked up under a shared read lock; bucket creation takes the write lock.
// Each bucket then serializes its own refill and consume under its mutex.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
	maxKeys int
}

// NewLimiter creates a new per-principal rate limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		buckets: make(map[string]*Bucket),
		maxKeys: 10000,
	}
}

// Admit checks whether key (typically a principal's user id) may proceed
// under quotaQPM, creating its bucket on first use. Exceeding the quota
// does not consume a token.
func (l *Limiter) Admit(key string, quotaQPM int) bool {
	bucket := l.getBucket(key, quotaQPM)
	return bucket.Allow()
}

// getBucket returns or creates the bucket for key, sized by quotaQPM the
// first time it is seen.
func (l *Limiter) getBucket(key string, quotaQPM int) *Bucket {
	l.mu.RLock()
	bucket, exists := l.buckets[key]
	l.mu.RUnlock()

	if exists {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock.
	if bucket, exists = l.buckets[key]; exists {
		return bucket
	}

	if len(l.buckets) >= l.maxKeys {
		l.prune()
	}

	bucket = NewBucket(quotaQPM)
	l.buckets[key] = bucket
	return bucket
}

// prune removes buckets that are nearly full (likely inactive keys).
func (l *Limiter) prune() {
	for key, bucket := range l.buckets {
		if bucket.Tokens() >= bucket.maxTokens*0.9 {
			delete(l.buckets, key)
		}
	}
}

// WaitTime returns how long key must wait before its next request would be
// admitted.
func (l *Limiter) WaitTime(key string, quotaQPM int) time.Duration {
	bucket := l.getBucket(key, quotaQPM)
	return bucket.WaitTime()
}

// Reset clears the bucket for key, e.g. for tests.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Status reports the current admission state for a key.
type Status struct {
	Key             string        `json:"key"`
	AllowedNow      bool          `json:"allowed_now"`
	TokensRemaining float64       `json:"tokens_remaining"`
	WaitTime        time.Duration `json:"wait_time"`
}

// GetStatus returns the rate limit status for a key without consuming a
// token.
func (l *Limiter) GetStatus(key string, quotaQPM int) Status {
	bucket := l.getBucket(key, quotaQPM)
	tokens := bucket.Tokens()

	return Status{
		Key:             key,
		AllowedNow:      tokens >= 1,
		TokensRemaining: tokens,
		WaitTime:        bucket.WaitTime(),
	}
}
