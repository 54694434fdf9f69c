package cache

import (
	"strings"

	"github.com/krisalay/request-cache/config"
	"github.com/krisalay/request-cache/engine"
	"github.com/krisalay/request-cache/expiration"
	"github.com/krisalay/request-cache/ttlstore"
	"github.com/krisalay/request-cache/types"
	"go.uber.org/zap"
)

/*
NewFromConfig wires a RequestCache from its YAML section:

	cache:
	  shards: 8
	  store: sharded        # or ttlcache
	  ttl_policy: per_entry # or fixed
	  default_ttl: 1m
	  sweep_interval: 1m
	  sweep_ttl: 5m
	  coalesce: true

metrics and logger may be nil.
*/
func NewFromConfig(cfg config.CacheConfig, metrics types.Metrics, logger *zap.Logger) *RequestCache {
	var exp expiration.Strategy
	switch strings.ToLower(cfg.TTLPolicy) {
	case config.PolicyFixed:
		exp = &expiration.Fixed{TTL: cfg.SweepTTL}
	default:
		exp = &expiration.PerEntry{Default: cfg.SweepTTL}
	}

	eng := engine.NewCacheEngine(exp, metrics, logger)
	if cfg.DefaultTTL > 0 {
		eng.DefaultTTL = cfg.DefaultTTL
	}

	opts := []Option{WithSweepInterval(cfg.SweepInterval)}
	if strings.ToLower(cfg.Store) == config.StoreTTLCache {
		opts = append(opts, WithStore(ttlstore.New()))
	}
	if cfg.Coalesce != nil && !*cfg.Coalesce {
		opts = append(opts, WithoutCoalescing())
	}

	eng.Logger.Info("request cache configured",
		zap.String("store", cfg.Store),
		zap.Int("shards", cfg.Shards),
		zap.String("ttl_policy", cfg.TTLPolicy),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("sweep_ttl", cfg.SweepTTL),
	)

	return NewRequestCache(cfg.Shards, eng, opts...)
}
