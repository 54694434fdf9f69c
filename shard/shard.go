package shard

import (
	"sync"

	"github.com/krisalay/request-cache/types"
)

/*
Shard is a small, independent piece of the store.

Instead of one big map behind one big lock, keys are spread over several
shards. Each shard:
  - Holds some portion of the entries
  - Has its own write lock
  - Serves reads from a lock-free snapshot
*/
type Shard struct {
	store *cowStore

	// mu serializes writers of this shard. Readers never take it.
	mu sync.Mutex
}

func NewShard() *Shard {
	return &Shard{store: newCOWStore()}
}

func (s *Shard) Get(key string) (*types.CacheEntry, bool) {
	return s.store.get(key)
}

func (s *Shard) Put(key string, ent *types.CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.put(key, ent)
}

func (s *Shard) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.delete(key)
}

// DeleteFunc checks and removes under the shard lock, so a concurrent Put is never lost.
func (s *Shard) DeleteFunc(fn func(*types.CacheEntry) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.deleteFunc(fn)
}

func (s *Shard) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.clear()
}

func (s *Shard) Len() int {
	return s.store.len()
}
