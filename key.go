package cache

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/krisalay/request-cache/match"
	"github.com/krisalay/request-cache/types"
	"github.com/pkg/errors"
)

// KeySeparator joins the resource name and the encoded params.
const KeySeparator = "_"

/*
Key builds the cache key for a read of resource with the given query params:

	products_{"category":"Bebidas","page":"2"}

Params are JSON encoded with map keys sorted, so the same query always yields
the same key and different queries never collide. Nil params encode as {}.
*/
func Key(resource string, params any) (string, error) {
	if resource == "" {
		return "", types.ErrInvalidKey
	}

	encoded := []byte("{}")
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return "", errors.Wrapf(err, "cache: encoding params for %q", resource)
		}
		if !bytes.Equal(b, []byte("null")) {
			encoded = b
		}
	}

	return resource + KeySeparator + string(encoded), nil
}

// ResourcePrefix selects every key built by Key for resource.
// Mutations of a resource invalidate with it.
func ResourcePrefix(resource string) match.Prefix {
	return match.Prefix(resource + KeySeparator)
}
