package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate int, interval time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLimiter(rate, interval)
	l.now = clock.now
	return l, clock
}

func TestLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("203.0.113.7"), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow("203.0.113.7"), "4th request should be blocked")
}

func TestLimiter_Refill(t *testing.T) {
	limiter, clock := newTestLimiter(2, time.Minute)
	key := "203.0.113.7"

	limiter.Allow(key)
	limiter.Allow(key)
	assert.False(t, limiter.Allow(key))

	clock.advance(59 * time.Second)
	assert.False(t, limiter.Allow(key), "still inside the interval")

	clock.advance(time.Second)
	assert.True(t, limiter.Allow(key))
	assert.True(t, limiter.Allow(key))
	assert.False(t, limiter.Allow(key))
}

func TestLimiter_RetryAfter(t *testing.T) {
	limiter, clock := newTestLimiter(1, time.Minute)
	key := "198.51.100.1"

	assert.Zero(t, limiter.RetryAfter(key), "unknown key")
	assert.True(t, limiter.Allow(key))
	clock.advance(20 * time.Second)
	assert.Equal(t, 40*time.Second, limiter.RetryAfter(key))

	clock.advance(40 * time.Second)
	assert.Zero(t, limiter.RetryAfter(key))
}

func TestLimiter_MultipleKeys(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.2"))
}

func TestLimiter_Reset(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	limiter.Allow("10.0.0.1")
	assert.False(t, limiter.Allow("10.0.0.1"))

	limiter.Reset("10.0.0.1")
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(5, time.Minute)

	limiter.Allow("old")
	clock.advance(10 * time.Minute)
	limiter.Allow("new")
	assert.Equal(t, 2, limiter.Len())

	limiter.Cleanup(5 * time.Minute)
	assert.Equal(t, 1, limiter.Len())
	assert.Equal(t, 4, limiter.buckets["new"].tokens)
}

func TestLimiter_RunCleanupStops(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		limiter.RunCleanup(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestLimiter_ZeroRate(t *testing.T) {
	limiter := NewLimiter(0, time.Minute)
	assert.False(t, limiter.Allow("any"))
}
