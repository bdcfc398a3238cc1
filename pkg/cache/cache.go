// Package cache stores fetched mapping tables and registry responses.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per key under the user cache directory
//     (~/.cache/condapip/), used by the CLI
//   - [RedisCache]: a shared Redis instance, used when several machines or
//     the translation server should share fetched mapping data
//   - [NullCache]: stores nothing, used by --no-cache and tests
//
// Keys are opaque strings; callers namespace them with [Key].
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
//
// Get reports a miss with (nil, false, nil). Expired entries are misses.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
