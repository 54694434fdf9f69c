package types

import (
	"context"

	"github.com/pkg/errors"
)

/*
FetchFunc is the contract between the cache and whatever really produces the data.

It is called only when the cache misses or the stored entry is stale:
 1. Cache looks the key up → nothing fresh
 2. Cache calls FetchFunc(ctx)
 3. FetchFunc talks to the REST API / DB / mock
 4. Cache stores the result and returns it

Because the cache may decide NOT to call it, a FetchFunc must not have side effects
beyond the fetch itself.
*/
type FetchFunc func(ctx context.Context) (any, error)

var (
	// ErrInvalidKey is returned for an empty cache key.
	ErrInvalidKey = errors.New("cache: key must not be empty")

	// ErrNilFetch is returned when Get is called without a fetch function.
	ErrNilFetch = errors.New("cache: fetch function must not be nil")

	// ErrTypeMismatch is returned by typed reads when the stored value has another type.
	ErrTypeMismatch = errors.New("cache: unexpected value type")
)
