package cache

import (
	"context"
	"time"
)

// Cache is the short-lived key/value state shared by request handlers:
// idempotency results, revoked session ids and OAuth state values.
// MemoryCache serves a single process; RedisCache shares it across replicas.
type Cache interface {
	// Get returns ErrCacheMiss for an absent or expired key.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// GetDel returns the value and removes the key atomically, so only one
	// caller can consume it.
	GetDel(ctx context.Context, key string) ([]byte, error)

	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheError is a sentinel error of this package.
type CacheError string

func (e CacheError) Error() string { return string(e) }

// ErrCacheMiss indicates the key was not found.
const ErrCacheMiss CacheError = "cache miss"
