package cache

import (
	"time"

	"github.com/krisalay/request-cache/types"
)

// Option configures a RequestCache.
type Option func(*RequestCache)

// WithStore replaces the default sharded store. The shards argument of NewRequestCache is then ignored.
func WithStore(s types.Store) Option {
	return func(c *RequestCache) {
		c.store = s
	}
}

// WithSweepInterval sets how often expired entries are reclaimed. Zero or less disables the janitor.
func WithSweepInterval(d time.Duration) Option {
	return func(c *RequestCache) {
		c.sweepInterval = d
	}
}

// WithoutCoalescing lets every concurrent miss on a key run its own fetch.
// Writes are then last-writer-wins by completion order.
func WithoutCoalescing() Option {
	return func(c *RequestCache) {
		c.coalesce = false
	}
}
