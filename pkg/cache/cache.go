// Package cache provides the response cache used by the fetch coordinator.
//
// The package has two layers:
//
//   - [Cache] is a byte-level key/value backend. Implementations live in
//     this package: [MemoryCache], [FileCache], [RedisCache], [MongoCache]
//     and [NullCache].
//   - [Store] and [Bucket] sit on top of a backend and speak in terms of
//     namespaced response entries that carry a write-time header.
//
// Stores are shared across coordinators and keyed globally by locator, so two
// coordinators pointing at the same URL see each other's writes. Concurrent
// writers to the same key race with last-write-wins semantics.
//
// Nothing in this package evicts entries based on age. Freshness is decided by
// the reader through [Entry.Fresh].
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("cache closed")

// Cache is a byte-level key/value backend.
type Cache interface {
	// Get returns the stored value for key. A missing or expired key reports
	// ok=false with a nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A ttl of zero means no backend expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
