package kv

import (
	"context"
	"time"
)

// Store defines the key-value operations the kit depends on.
// A ttl of zero means the key does not expire.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound when the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL, overwriting any
	// existing value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value under key only if the key does not already exist.
	// Returns true when the value was stored, false when the key was taken.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Incr atomically increments the integer stored under key by one,
	// initializing it to zero first when absent.
	Incr(ctx context.Context, key string) (int64, error)

	// IncrByFloat atomically adds delta to the float stored under key,
	// initializing it to zero first when absent.
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)

	// Expire resets the TTL on an existing key. Missing keys are a no-op.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns all keys matching a glob-style pattern.
	// Intended for maintenance paths (privacy erasure), not hot paths.
	Keys(ctx context.Context, pattern string) ([]string, error)
}
