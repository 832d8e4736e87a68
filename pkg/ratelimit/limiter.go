// Package ratelimit provides a per-key token bucket, used to throttle
// console login attempts by client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a simple token bucket rate limiter
type Limiter struct {
	buckets  map[string]*bucket
	mu       sync.Mutex
	rate     int // tokens per interval
	interval time.Duration
	now      func() time.Time
}

// bucket represents a token bucket for a specific key
type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewLimiter creates a limiter allowing rate requests per interval for each key.
func NewLimiter(rate int, interval time.Duration) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		now:      time.Now,
	}
}

// Allow consumes a token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return false
	}

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{
			tokens:     l.rate - 1,
			lastRefill: now,
		}
		return true
	}

	l.refill(b, now)
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// RetryAfter returns how long until key gets its next refill.
// Zero means a request would be allowed now.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists {
		return 0
	}
	now := l.now()
	l.refill(b, now)
	if b.tokens > 0 {
		return 0
	}
	return b.lastRefill.Add(l.interval).Sub(now)
}

// refill restores a full bucket once per elapsed interval. Caller holds mu.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed >= l.interval {
		intervalsElapsed := int(elapsed / l.interval)
		b.tokens = l.rate
		b.lastRefill = b.lastRefill.Add(time.Duration(intervalsElapsed) * l.interval)
	}
}

// Reset clears the rate limit for a specific key
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup removes buckets that have not been refilled within maxAge
func (l *Limiter) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > maxAge {
			delete(l.buckets, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(maxAge)
		}
	}
}
