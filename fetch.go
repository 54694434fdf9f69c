package cache

import (
	"context"
	"time"

	"github.com/krisalay/request-cache/types"
	"github.com/pkg/errors"
)

// Getter is the read half of api.Cache.
type Getter interface {
	Get(ctx context.Context, key string, fetch types.FetchFunc, ttl time.Duration) (any, error)
}

/*
Fetch is Get with types.

	page, err := cache.Fetch(ctx, c, key, func(ctx context.Context) (*ProductPage, error) {
		return api.listProducts(ctx, q)
	}, 5*time.Minute)

A value stored under key by someone else with a different type is reported
as types.ErrTypeMismatch rather than silently refetched.
*/
func Fetch[T any](
	ctx context.Context,
	c Getter,
	key string,
	fetch func(context.Context) (T, error),
	ttl time.Duration,
) (T, error) {
	var zero T
	if fetch == nil {
		return zero, types.ErrNilFetch
	}

	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, ttl)
	if err != nil {
		return zero, err
	}

	t, ok := v.(T)
	if !ok {
		return zero, errors.Wrapf(types.ErrTypeMismatch, "key %q holds %T, want %T", key, v, zero)
	}
	return t, nil
}
