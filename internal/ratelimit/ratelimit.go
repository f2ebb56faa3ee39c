package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TMDBKey is the limiter key shared by every TMDB caller in the process
const TMDBKey = "tmdb"

// Keyed hands out request slots per key. Each key is an independent token
// bucket of capacity `concurrent` refilled over `duration`; waiters on the
// same key are served in request order, waiters on different keys do not
// interfere.
type Keyed struct {
	mu      sync.RWMutex
	buckets map[string]*rate.Limiter
}

// New creates an empty keyed limiter
func New() *Keyed {
	return &Keyed{
		buckets: make(map[string]*rate.Limiter),
	}
}

// Register configures the bucket for a key: at most concurrent requests per
// duration. Re-registering a key replaces its bucket.
func (k *Keyed) Register(key string, concurrent int, duration time.Duration) {
	if concurrent < 1 {
		concurrent = 1
	}
	if duration <= 0 {
		duration = time.Second
	}

	interval := duration / time.Duration(concurrent)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.buckets[key] = rate.NewLimiter(rate.Every(interval), concurrent)
}

// Acquire blocks until a slot for the key is available or the context is
// cancelled. Cancellation while waiting does not consume a token. Keys that
// were never registered are not limited.
func (k *Keyed) Acquire(ctx context.Context, key string) error {
	k.mu.RLock()
	limiter, ok := k.buckets[key]
	k.mu.RUnlock()

	if !ok {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// Registered reports whether a bucket exists for the key
func (k *Keyed) Registered(key string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.buckets[key]
	return ok
}
