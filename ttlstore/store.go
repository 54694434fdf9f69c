// Package ttlstore is a types.Store backed by github.com/jellydator/ttlcache.
//
// Items are stored with ttlcache.NoTTL. Staleness is decided by the cache's
// expiration policy, so an entry stays visible to DeleteFunc, Clear and Len
// until the sweep or an invalidation removes it, and removal counts are exact.
package ttlstore

import (
	"github.com/jellydator/ttlcache/v3"
	"github.com/krisalay/request-cache/types"
)

type Store struct {
	c *ttlcache.Cache[string, *types.CacheEntry]
}

func New() *Store {
	return &Store{
		c: ttlcache.New[string, *types.CacheEntry](
			ttlcache.WithTTL[string, *types.CacheEntry](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[string, *types.CacheEntry](),
		),
	}
}

func (s *Store) Get(key string) (*types.CacheEntry, bool) {
	item := s.c.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *Store) Put(key string, ent *types.CacheEntry) {
	s.c.Set(key, ent, ttlcache.NoTTL)
}

func (s *Store) Delete(key string) bool {
	_, ok := s.c.GetAndDelete(key)
	return ok
}

func (s *Store) DeleteFunc(fn func(*types.CacheEntry) bool) int {
	removed := 0
	for key, item := range s.c.Items() {
		if fn(item.Value()) {
			s.c.Delete(key)
			removed++
		}
	}
	return removed
}

func (s *Store) Clear() int {
	before := s.c.Metrics().Evictions
	s.c.DeleteAll()
	return int(s.c.Metrics().Evictions - before)
}

func (s *Store) Len() int {
	return s.c.Len()
}
