package ports

import (
	"context"
	"time"
)

// Cache is a key-value store with per-key expirations, implemented by the
// Redis-backed cache and by the in-memory fallback.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
