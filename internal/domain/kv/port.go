package kv

import (
	"context"
	"time"
)

// Store is the counting/caching backend port: a key-value store with TTLs,
// an atomic increment, and non-blocking pattern iteration. Both the cache
// layer and the budget guard sit on top of it. Implementations surface
// backend failures as errors; the guard fails closed on them, the cache
// layer degrades to a miss.
type Store interface {
	// Get returns the value and whether the key exists and is unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// IncrBy atomically adds delta to the integer value at key and returns
	// the new value. When the key is created by this call its expiry is set
	// to ttl; an existing key keeps its expiry. The increment and the
	// conditional expiry are a single atomic operation.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Scan invokes fn for each live key matching pattern ("*" wildcards).
	// Iteration must not hold the store locked while fn runs.
	Scan(ctx context.Context, pattern string, fn func(key string) error) error
}
