package ratelimiter

import (
	"sync"
	"time"
)

// Limiter provides simple time-based rate limiting.
// It allows one action per interval and is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	now         func() time.Time
}

// New creates a new rate limiter with the specified interval.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow checks if an action is allowed at this time.
// Returns true if allowed (and records this as the last allowed time),
// or false with the remaining wait duration if rate-limited.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	timeSinceLast := now.Sub(l.lastAllowed)

	if l.lastAllowed.IsZero() || timeSinceLast >= l.interval {
		l.lastAllowed = now
		return true, 0
	}

	return false, l.interval - timeSinceLast
}

// Reset clears the limiter state, allowing the next action immediately.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.lastAllowed = time.Time{}
	l.mu.Unlock()
}

// Interval returns the configured rate limit interval.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Keyed keeps one Limiter per key, e.g. per entity type
type Keyed struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*Limiter
	now      func() time.Time
}

// NewKeyed creates a keyed limiter. A zero interval never limits.
func NewKeyed(interval time.Duration) *Keyed {
	return &Keyed{
		interval: interval,
		limiters: make(map[string]*Limiter),
		now:      time.Now,
	}
}

// Allow checks the limiter for key
func (k *Keyed) Allow(key string) (bool, time.Duration) {
	if k.interval <= 0 {
		return true, 0
	}

	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.interval)
		l.now = k.now
		k.limiters[key] = l
	}
	k.mu.Unlock()

	return l.Allow()
}

// Reset clears the limiter for key
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	l, ok := k.limiters[key]
	k.mu.Unlock()
	if ok {
		l.Reset()
	}
}
