// Package ratelimit enforces in-process token-bucket limits per caller.
//
// Each (rule, key) pair gets an independent bucket holding Limit tokens,
// refilled continuously over Window. A background goroutine evicts idle
// buckets to bound memory.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Rule names one limit: a caller identified by key may make Limit requests
// per Window, with bursts up to Limit.
type Rule struct {
	Prefix string // namespaces the buckets, e.g. "auth" vs "query"
	Limit  int
	Window time.Duration
}

// Result reports the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the next request would succeed after a denial, or when
	// the bucket is full again after an allowed request.
	ResetAt time.Time
}

// FormatHeaders returns the standard X-RateLimit-* response headers.
func (r Result) FormatHeaders() map[string]string {
	return map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(r.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(r.Remaining),
		"X-RateLimit-Reset":     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// bucket is a single token bucket for one rate-limit key.
type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// Limiter is an in-memory token bucket limiter, safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// New creates a Limiter. Call Close to stop its cleanup goroutine.
func New() *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow consumes one token from the bucket for key under rule.
func (l *Limiter) Allow(_ context.Context, rule Rule, key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	burst := float64(rule.Limit)
	rate := burst / rule.Window.Seconds()

	id := rule.Prefix + ":" + key
	b, ok := l.buckets[id]
	if !ok {
		b = &bucket{tokens: burst, lastAccess: now}
		l.buckets[id] = b
	} else {
		// Refill tokens based on elapsed time.
		elapsed := now.Sub(b.lastAccess).Seconds()
		b.tokens += elapsed * rate
		if b.tokens > burst {
			b.tokens = burst
		}
		b.lastAccess = now
	}

	res := Result{Limit: rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		res.Allowed = true
	}
	res.Remaining = int(b.tokens)

	missing := burst - b.tokens
	if !res.Allowed {
		missing = 1 - b.tokens
	}
	res.ResetAt = now.Add(time.Duration(missing / rate * float64(time.Second)))
	return res
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (l *Limiter) Close() error {
	l.stopOnce.Do(func() { close(l.done) })
	return nil
}

const staleThreshold = 10 * time.Minute

// cleanup periodically evicts buckets that haven't been accessed recently.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale()
		}
	}
}

func (l *Limiter) evictStale() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-staleThreshold)
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
