package cache

import (
	"context"
	"time"
)

// Store is the cache endpoint the warmer writes snapshots to.
type Store interface {
	// Set writes value under key, overwriting any existing entry, expiring after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}
