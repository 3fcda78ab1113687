package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Bucket names understood by RateLimiter.
const (
	BucketAuth = "auth"
)

// RateLimitConfig holds configurable rate limits.
type RateLimitConfig struct {
	// AuthPerMinute caps gateway authentication attempts. Zero uses the default.
	AuthPerMinute int `yaml:"auth_per_minute"`
}

const defaultAuthPerMinute = 60

// RateLimiter implements sliding window rate limiting.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.AuthPerMinute <= 0 {
		cfg.AuthPerMinute = defaultAuthPerMinute
	}
	return &RateLimiter{
		now: time.Now,
		buckets: map[string]*bucket{
			BucketAuth: {window: time.Minute, limit: cfg.AuthPerMinute},
		},
	}
}

// Allow records one event of the given kind. It returns ErrRateLimited
// when the bucket is full. Unknown kinds are never limited.
func (rl *RateLimiter) Allow(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}

	b.events = append(b.events, now)
	return nil
}

// Remaining returns how many events of kind are still allowed in the
// current window, or -1 for an unlimited kind.
func (rl *RateLimiter) Remaining(kind string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return -1
	}
	b.evict(rl.now())
	return b.limit - len(b.events)
}

// evict drops events outside the sliding window. Events are chronological.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
