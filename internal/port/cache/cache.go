package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: not found")

// Cache is a byte-oriented TTL cache. Get returns ErrNotFound on a miss or an
// expired entry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
