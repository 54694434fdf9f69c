package shard

import (
	"sync/atomic"

	"github.com/krisalay/request-cache/types"
)

/*
This file defines how entries are kept inside one shard.

Reads vastly outnumber writes for a request cache (every page render reads,
only fetches and mutations write), so we use "Copy-On-Write" (COW):
  - Readers load an immutable map snapshot, no lock
  - Writers build a NEW map and swap it in atomically
  - Writers are serialized by the owning Shard's mutex
*/

type cowStore struct {

	// data holds map[string]*types.CacheEntry. Never mutated after Store.
	data atomic.Value

	// size mirrors len(map) so Len does not need to load the snapshot.
	size atomic.Int64
}

func newCOWStore() *cowStore {
	s := &cowStore{}
	s.data.Store(make(map[string]*types.CacheEntry))
	return s
}

func (s *cowStore) snapshot() map[string]*types.CacheEntry {
	return s.data.Load().(map[string]*types.CacheEntry)
}

func (s *cowStore) swap(n map[string]*types.CacheEntry) {
	s.data.Store(n)
	s.size.Store(int64(len(n)))
}

func (s *cowStore) get(key string) (*types.CacheEntry, bool) {
	ent, ok := s.snapshot()[key]
	return ent, ok
}

// put copies the current map, adds or replaces key, and swaps the copy in.
func (s *cowStore) put(key string, ent *types.CacheEntry) {
	old := s.snapshot()

	n := make(map[string]*types.CacheEntry, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent

	s.swap(n)
}

func (s *cowStore) delete(key string) bool {
	old := s.snapshot()
	if _, ok := old[key]; !ok {
		// nothing to do, keep the snapshot
		return false
	}

	n := make(map[string]*types.CacheEntry, len(old))
	for k, v := range old {
		if k != key {
			n[k] = v
		}
	}

	s.swap(n)
	return true
}

// deleteFunc removes every matching entry with a single copy.
func (s *cowStore) deleteFunc(fn func(*types.CacheEntry) bool) int {
	old := s.snapshot()

	n := make(map[string]*types.CacheEntry, len(old))
	for k, v := range old {
		if !fn(v) {
			n[k] = v
		}
	}

	removed := len(old) - len(n)
	if removed > 0 {
		s.swap(n)
	}
	return removed
}

func (s *cowStore) clear() int {
	n := len(s.snapshot())
	s.swap(make(map[string]*types.CacheEntry))
	return n
}

func (s *cowStore) len() int {
	return int(s.size.Load())
}
