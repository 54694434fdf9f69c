package types

/*
Store is where entries physically live.

The cache does not care how a store keeps its data. It only needs
single-key access plus the two bulk operations used by invalidation and the sweep.
Implementations must be safe for concurrent use.
*/
type Store interface {

	// Get returns the entry for key, if present.
	Get(key string) (*CacheEntry, bool)

	// Put inserts or replaces the entry for key.
	Put(key string, ent *CacheEntry)

	// Delete removes key and reports whether it was present.
	Delete(key string) bool

	// DeleteFunc removes every entry for which fn returns true and returns how many were removed.
	DeleteFunc(fn func(*CacheEntry) bool) int

	// Clear removes everything and returns how many entries were dropped.
	Clear() int

	// Len returns the number of stored entries, stale ones included.
	Len() int
}
