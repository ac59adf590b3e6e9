// Package keyvalue defines the shared-cache collaborator contract consumed by
// restsource and ships three backends: an in-process TTL map, a SQLite table,
// and Redis. The store is externally owned and may be hit concurrently by many
// processes; entries are idempotent snapshots, so last-writer-wins is fine and
// no backend takes cross-process locks.
package keyvalue

import "context"

// Cache is an async string key/value store with per-entry TTLs. TTLs cross
// this boundary in whole seconds. Implementations must be safe for concurrent
// use. Errors from any method are absorbed by the caller (treated as a miss or
// a dropped write), so backends should return them rather than retry.
type Cache interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key for ttlSeconds. A non-positive TTL means
	// the entry never expires.
	Set(ctx context.Context, key, value string, ttlSeconds int64) error
	// Delete removes key, reporting whether an entry existed.
	Delete(ctx context.Context, key string) (bool, error)
}
