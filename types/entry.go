package types

import "time"

// CacheEntry is one stored fetch result.
// Entries are replaced on every write and never mutated after being stored.
type CacheEntry struct {
	Key      string
	Value    any
	StoredAt time.Time
	TTL      time.Duration // zero => not recorded, sweep falls back to its default
}

// Age returns how long ago the entry was written.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}
