// This file defines when a cache entry stops being servable and when the sweep may reclaim it.

package expiration

import (
	"time"

	"github.com/krisalay/request-cache/types"
)

// DefaultSweepTTL is how old an entry without a recorded TTL may get before the sweep evicts it.
const DefaultSweepTTL = 5 * time.Minute

/*
Strategy is the TTL policy of the cache.

There are two ways to treat TTL:
  - remember the TTL each entry was written with (PerEntry)
  - ignore it and assume one TTL for the sweep (Fixed)

Both answer the same three questions, so the cache only talks to this interface.
*/
type Strategy interface {

	// IsStale reports whether ent must be treated as absent for a read asking for ttl.
	IsStale(ent *types.CacheEntry, ttl time.Duration, now time.Time) bool

	// IsExpired reports whether the sweep may evict ent.
	IsExpired(ent *types.CacheEntry, now time.Time) bool

	// OnWrite is called right before an entry is stored.
	OnWrite(ent *types.CacheEntry, ttl time.Duration)
}

/*
PerEntry remembers the TTL each entry was written with.

Reads treat an entry as stale once it is older than either the TTL the
reader asks for or the TTL it was stored with, whichever is shorter.
The sweep evicts by the recorded TTL, or by Default when none was recorded.
*/
type PerEntry struct {
	Default time.Duration
}

func (p *PerEntry) IsStale(ent *types.CacheEntry, ttl time.Duration, now time.Time) bool {
	age := ent.Age(now)
	if ent.TTL > 0 && age >= ent.TTL {
		return true
	}
	return age >= ttl
}

func (p *PerEntry) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Age(now) > p.sweepTTL(ent)
}

func (p *PerEntry) OnWrite(ent *types.CacheEntry, ttl time.Duration) {
	ent.TTL = ttl
}

func (p *PerEntry) sweepTTL(ent *types.CacheEntry) time.Duration {
	if ent.TTL > 0 {
		return ent.TTL
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultSweepTTL
}

/*
Fixed does not remember TTLs at all.

Only the reader's TTL decides freshness, and the sweep evicts everything older than TTL.
*/
type Fixed struct {
	TTL time.Duration
}

func (f *Fixed) IsStale(ent *types.CacheEntry, ttl time.Duration, now time.Time) bool {
	return ent.Age(now) >= ttl
}

func (f *Fixed) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	ttl := f.TTL
	if ttl <= 0 {
		ttl = DefaultSweepTTL
	}
	return ent.Age(now) > ttl
}

// OnWrite drops whatever TTL the caller passed.
func (f *Fixed) OnWrite(ent *types.CacheEntry, _ time.Duration) {
	ent.TTL = 0
}
