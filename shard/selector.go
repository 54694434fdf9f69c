package shard

import "hash/fnv"

/*
Selector decides which shard owns a key.
If every key went to the same shard, that shard's write lock would become a bottleneck.
*/
type Selector interface {
	Select(string, []*Shard) *Shard
}

// HashSelector picks the shard by FNV-1a hash of the key.
type HashSelector struct{}

// hash converts a key into a number. FNV is fast and non-cryptographic.
func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	return shards[hash(key)%uint32(len(shards))]
}
