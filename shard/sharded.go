package shard

import "github.com/krisalay/request-cache/types"

// Sharded spreads entries over a fixed set of shards. It implements types.Store.
type Sharded struct {
	shards   []*Shard
	selector Selector
}

// NewSharded creates a store with n shards (at least one).
func NewSharded(n int) *Sharded {
	if n < 1 {
		n = 1
	}
	s := make([]*Shard, n)
	for i := range s {
		s[i] = NewShard()
	}
	return &Sharded{shards: s, selector: HashSelector{}}
}

func (s *Sharded) shard(key string) *Shard {
	return s.selector.Select(key, s.shards)
}

func (s *Sharded) Get(key string) (*types.CacheEntry, bool) {
	return s.shard(key).Get(key)
}

func (s *Sharded) Put(key string, ent *types.CacheEntry) {
	s.shard(key).Put(key, ent)
}

func (s *Sharded) Delete(key string) bool {
	return s.shard(key).Delete(key)
}

func (s *Sharded) DeleteFunc(fn func(*types.CacheEntry) bool) int {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.DeleteFunc(fn)
	}
	return removed
}

func (s *Sharded) Clear() int {
	removed := 0
	for _, sh := range s.shards {
		removed += sh.Clear()
	}
	return removed
}

func (s *Sharded) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.Len()
	}
	return n
}

// Shards returns the number of shards.
func (s *Sharded) Shards() int {
	return len(s.shards)
}
