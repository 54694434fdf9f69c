package api

import (
	"context"
	"time"

	"github.com/krisalay/request-cache/match"
	"github.com/krisalay/request-cache/types"
)

/*
Cache defines the PUBLIC API of the request cache.
Anything that reads or writes a remote resource depends on this contract and
receives an implementation by injection. Storage, TTL policy, the sweep and
request coalescing are hidden behind it.
*/
type Cache interface {

	/*
		Get returns the value for key, fetching it on a miss.

		BEHAVIOR:
		-------------------
		1. An entry exists and is younger than ttl:
		   - Return it immediately (cache hit)
		   - fetch is NOT called

		2. No entry, or the entry is stale:
		   - Call fetch
		   - Store the result under key, replacing any old entry
		   - Return it (cache miss)

		3. fetch fails:
		   - Return its error unchanged
		   - Store nothing

		ttl <= 0 uses the cache's default read TTL.
		Keys follow "<resource>_<canonical params>" so that mutations can
		invalidate by resource prefix.
	*/
	Get(ctx context.Context, key string, fetch types.FetchFunc, ttl time.Duration) (any, error)

	/*
		Set stores value under key without a recorded TTL.
		Used to prime the cache with data the caller already has.
	*/
	Set(key string, value any) error

	// SetWithTTL stores value under key and records ttl for sweeping.
	SetWithTTL(key string, value any, ttl time.Duration) error

	/*
		Invalidate removes every entry selected by the matcher.

		MATCHERS:
		---------
		nil / match.All()    : clear everything
		match.Exact(key)     : one entry, absent is fine
		match.Prefix(p)      : all keys of a resource
		match.Regexp(re)     : keys matching an expression
		match.Func(fn)       : any predicate

		Afterwards no selected key can be served without a fresh fetch,
		including keys whose fetch was already running.
		Returns the number of entries removed.
	*/
	Invalidate(m match.Matcher) int

	// Sweep evicts expired entries now and returns how many were evicted.
	Sweep() int

	// Len returns the number of stored entries, stale ones included.
	Len() int

	/*
		TTL returns the remaining recorded time-to-live of a key.

		RETURN VALUES:
		--------------
		> 0 : time left
		-1  : entry exists without a recorded TTL
		-2  : no entry, or its TTL ran out
	*/
	TTL(key string) time.Duration

	// Close stops background work. The cache remains usable.
	Close()
}
