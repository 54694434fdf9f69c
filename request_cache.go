package cache

import (
	"context"
	"sync"
	"time"

	"github.com/krisalay/request-cache/api"
	"github.com/krisalay/request-cache/engine"
	"github.com/krisalay/request-cache/match"
	"github.com/krisalay/request-cache/shard"
	"github.com/krisalay/request-cache/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = time.Minute

var _ api.Cache = (*RequestCache)(nil)

/*
RequestCache memoizes asynchronous fetches by key.

It connects:
- a store (where entries live)
- an engine (TTL policy, metrics, logging, clock)
- singleflight (one fetch per key at a time)
- the in-flight generation table (so invalidation beats a slow fetch)
- the background sweep
*/
type RequestCache struct {
	store  types.Store
	engine *engine.CacheEngine
	shards int

	// sf collapses concurrent misses on the same key into one fetch.
	sf       singleflight.Group
	coalesce bool

	// mu serializes every write, invalidation and sweep.
	// Reads of the store on the hit path do not take it.
	mu       sync.Mutex
	inflight map[string]*flight

	sweepInterval time.Duration
	stop          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// flight tracks fetches running for one key.
// gen is bumped by every invalidation that matches the key while they run.
type flight struct {
	gen     uint64
	waiters int
}

/*
NewRequestCache creates a cache over a sharded in-memory store and starts the sweep.
A nil engine gets the defaults of engine.NewCacheEngine.
*/
func NewRequestCache(shards int, eng *engine.CacheEngine, opts ...Option) *RequestCache {
	if eng == nil {
		eng = engine.NewCacheEngine(nil, nil, nil)
	}

	c := &RequestCache{
		engine:        eng,
		shards:        shards,
		coalesce:      true,
		inflight:      make(map[string]*flight),
		sweepInterval: DefaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = shard.NewSharded(c.shards)
	}

	if c.sweepInterval > 0 {
		c.wg.Add(1)
		go c.janitor()
	}
	return c
}

/*
Get returns the value cached under key, or fetches, stores and returns it.

A hit (entry younger than ttl) never calls fetch. A miss or stale entry calls
fetch and overwrites the entry with the result. Errors from fetch are returned
as-is and nothing is stored. ttl <= 0 uses the engine's DefaultTTL.

Concurrent misses on one key share a single fetch. The shared fetch keeps the
values of the first caller's ctx but not its cancellation; each caller stops
waiting when its own ctx is done.
*/
func (c *RequestCache) Get(
	ctx context.Context,
	key string,
	fetch types.FetchFunc,
	ttl time.Duration,
) (any, error) {
	if key == "" {
		return nil, types.ErrInvalidKey
	}
	if fetch == nil {
		return nil, types.ErrNilFetch
	}
	ttl = c.engine.ReadTTL(ttl)

	if ent, ok := c.store.Get(key); ok {
		if c.engine.IsFresh(ent, ttl) {
			c.engine.Metrics.Hit()
			c.engine.Logger.Debug("cache hit", zap.String("key", key))
			return ent.Value, nil
		}
		c.engine.Metrics.Stale()
		c.engine.Logger.Debug("cache stale", zap.String("key", key), zap.Duration("age", ent.Age(c.engine.Now())))
	} else {
		c.engine.Metrics.Miss()
		c.engine.Logger.Debug("cache miss", zap.String("key", key))
	}

	if !c.coalesce {
		return c.load(ctx, key, fetch, ttl)
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), key, fetch, ttl)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.engine.Logger.Debug("joined in-flight fetch", zap.String("key", key))
		}
		return res.Val, res.Err
	case <-ctx.Done():
		c.engine.Logger.Debug("caller left in-flight fetch", zap.String("key", key), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	}
}

// load runs one fetch and stores its result unless the key was invalidated meanwhile.
func (c *RequestCache) load(
	ctx context.Context,
	key string,
	fetch types.FetchFunc,
	ttl time.Duration,
) (any, error) {
	f, gen := c.begin(key)
	defer c.end(key, f)

	start := time.Now()
	val, err := fetch(ctx)
	c.engine.Metrics.Fetch(time.Since(start), err)
	if err != nil {
		c.engine.Logger.Debug("fetch failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	if f.gen != gen {
		c.mu.Unlock()
		c.engine.Metrics.Discard()
		c.engine.Logger.Debug("discarding fetch for invalidated key", zap.String("key", key))
		return val, nil
	}
	c.store.Put(key, c.engine.NewEntry(key, val, ttl))
	c.mu.Unlock()

	return val, nil
}

func (c *RequestCache) begin(key string) (*flight, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.inflight[key]
	if !ok {
		f = &flight{}
		c.inflight[key] = f
	}
	f.waiters++
	return f, f.gen
}

func (c *RequestCache) end(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters == 0 && c.inflight[key] == f {
		delete(c.inflight, key)
	}
}

/*
Set stores value under key without a TTL of its own.
Use it to prime the cache with data the caller already has.
*/
func (c *RequestCache) Set(key string, value any) error {
	return c.SetWithTTL(key, value, 0)
}

// SetWithTTL stores value under key and records ttl for the expiration policy.
func (c *RequestCache) SetWithTTL(key string, value any, ttl time.Duration) error {
	if key == "" {
		return types.ErrInvalidKey
	}
	if ttl < 0 {
		ttl = 0
	}

	c.mu.Lock()
	c.store.Put(key, c.engine.NewEntry(key, value, ttl))
	c.mu.Unlock()
	return nil
}

/*
Invalidate removes every entry selected by m and returns how many were removed.
A nil matcher clears the whole cache.

Fetches already running for a selected key still return their value to their
callers, but the value is not stored.

m is evaluated under the cache's write lock and must not call back into the cache.
*/
func (c *RequestCache) Invalidate(m match.Matcher) int {
	removed := c.invalidate(m)

	c.engine.Metrics.Invalidate(removed)
	c.engine.Logger.Debug("cache invalidated", zap.Int("removed", removed))
	return removed
}

func (c *RequestCache) invalidate(m match.Matcher) int {
	all := match.IsAll(m)

	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int
	switch exact, isExact := m.(match.Exact); {
	case all:
		removed = c.store.Clear()
	case isExact:
		if c.store.Delete(string(exact)) {
			removed = 1
		}
	default:
		removed = c.store.DeleteFunc(func(ent *types.CacheEntry) bool {
			return m.Match(ent.Key)
		})
	}

	for key, f := range c.inflight {
		if all || m.Match(key) {
			f.gen++
			c.sf.Forget(key)
		}
	}
	return removed
}

/*
Sweep evicts every entry the expiration policy considers expired and returns the count.
The janitor calls it every sweep interval; reads never depend on it.
*/
func (c *RequestCache) Sweep() int {
	now := c.engine.Now()

	c.mu.Lock()
	evicted := c.store.DeleteFunc(func(ent *types.CacheEntry) bool {
		return c.engine.IsExpired(ent, now)
	})
	remaining := c.store.Len()
	c.mu.Unlock()

	c.engine.Metrics.Sweep(evicted, remaining)
	if evicted > 0 {
		c.engine.Logger.Debug("cache sweep", zap.Int("evicted", evicted), zap.Int("remaining", remaining))
	}
	return evicted
}

// Len returns the number of stored entries, including stale ones not yet swept.
func (c *RequestCache) Len() int {
	return c.store.Len()
}

/*
TTL returns how long the entry under key has left before its recorded TTL runs out.
  - -1: entry exists but has no recorded TTL
  - -2: no entry, or its TTL already ran out
*/
func (c *RequestCache) TTL(key string) time.Duration {
	ent, ok := c.store.Get(key)
	if !ok {
		return -2
	}
	if ent.TTL <= 0 {
		return -1
	}

	left := ent.TTL - ent.Age(c.engine.Now())
	if left <= 0 {
		return -2
	}
	return left
}

func (c *RequestCache) janitor() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stop:
			return
		}
	}
}

/*
Close stops the background sweep. The cache stays usable afterwards,
it just no longer reclaims expired entries on its own. Safe to call twice.
*/
func (c *RequestCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.engine.Logger.Info("request cache closed", zap.Int("entries", c.store.Len()))
	})
}
