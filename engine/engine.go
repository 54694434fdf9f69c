package engine

import (
	"time"

	"github.com/krisalay/request-cache/expiration"
	"github.com/krisalay/request-cache/types"
	"go.uber.org/zap"
)

// DefaultTTL is the read TTL used when a caller passes none.
const DefaultTTL = time.Minute

/*
CacheEngine is the policy layer of the cache.

It decides:
- Whether an entry can be served for a given read TTL
- Whether the sweep may evict an entry
- Which TTL a read uses when the caller gives none
- Where events go (metrics, logs)
- What "now" is

It does NOT:
- Store data
- Handle sharding or locking
- Call fetch functions
*/
type CacheEngine struct {

	// Expiration is the TTL policy. Defaults to expiration.PerEntry.
	Expiration expiration.Strategy

	// Metrics receives every cache event.
	Metrics types.Metrics

	// Logger gets debug-level traces of cache decisions.
	Logger *zap.Logger

	// DefaultTTL is used by reads that pass ttl <= 0.
	DefaultTTL time.Duration

	// Now is the clock. Tests replace it.
	Now func() time.Time
}

/*
NewCacheEngine creates a CacheEngine. Any nil argument gets a working default,
so the rest of the code never checks for nil.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	metrics types.Metrics,
	logger *zap.Logger,
) *CacheEngine {
	if exp == nil {
		exp = &expiration.PerEntry{Default: expiration.DefaultSweepTTL}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CacheEngine{
		Expiration: exp,
		Metrics:    metrics,
		Logger:     logger,
		DefaultTTL: DefaultTTL,
		Now:        time.Now,
	}
}

// ReadTTL resolves the TTL of one read.
func (e *CacheEngine) ReadTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return e.DefaultTTL
}

// IsFresh reports whether ent can be returned to a reader asking for ttl.
func (e *CacheEngine) IsFresh(ent *types.CacheEntry, ttl time.Duration) bool {
	return !e.Expiration.IsStale(ent, ttl, e.Now())
}

// IsExpired reports whether the sweep may evict ent at the given time.
func (e *CacheEngine) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return e.Expiration.IsExpired(ent, now)
}

/*
NewEntry builds the entry stored for a write.
A ttl of zero means the caller did not state one.
*/
func (e *CacheEngine) NewEntry(key string, value any, ttl time.Duration) *types.CacheEntry {
	ent := &types.CacheEntry{
		Key:      key,
		Value:    value,
		StoredAt: e.Now(),
	}
	e.Expiration.OnWrite(ent, ttl)
	return ent
}
