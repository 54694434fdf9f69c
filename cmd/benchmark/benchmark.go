package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	cache "github.com/krisalay/request-cache"
	"github.com/krisalay/request-cache/config"
	"github.com/krisalay/request-cache/match"
	"golang.org/x/sync/errgroup"
)

// ================= BENCHMARK =================

func main() {
	store := flag.String("store", config.StoreSharded, "backing store: sharded or ttlcache")
	coalesce := flag.Bool("coalesce", true, "share one fetch between concurrent misses")
	flag.Parse()

	ctx := context.Background()

	// ---------------- Cache Config ----------------
	const (
		shards      = 8
		resources   = 3
		queriesPerR = 1000
		goroutines  = 200
		opsPerG     = 5000
		invalidateN = 500 // one prefix invalidation every N ops per goroutine
	)

	fmt.Println("\n================ REQUEST CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Store        :", *store)
	fmt.Println("Shards       :", shards)
	fmt.Println("Coalescing   :", *coalesce)
	fmt.Println("Keys         :", resources*queriesPerR)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	cfg := config.Default().Cache
	cfg.Shards = shards
	cfg.Store = *store
	cfg.Coalesce = coalesce
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	c := cache.NewFromConfig(cfg, nil, nil)
	defer c.Close()

	// ---------------- Keys ----------------
	names := []string{"products", "scans", "certs"}
	keys := make([]string, 0, resources*queriesPerR)
	for _, r := range names {
		for i := 0; i < queriesPerR; i++ {
			key, err := cache.Key(r, map[string]string{"page": fmt.Sprint(i)})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			keys = append(keys, key)
		}
	}

	var fetches atomic.Int64
	fetch := func(context.Context) (any, error) {
		fetches.Add(1)
		time.Sleep(time.Millisecond)
		return struct{}{}, nil
	}

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < goroutines; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < opsPerG; j++ {
				if j > 0 && j%invalidateN == 0 {
					c.Invalidate(cache.ResourcePrefix(names[(i+j)%len(names)]))
					continue
				}
				if _, err := c.Get(gctx, keys[(i*31+j)%len(keys)], fetch, time.Minute); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Fetches          : %d\n", fetches.Load())
	fmt.Printf("Entries          : %d\n", c.Len())
	fmt.Printf("Cleared          : %d\n", c.Invalidate(match.All()))
	fmt.Println("=========================================")
}
