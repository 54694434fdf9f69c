package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	cache "github.com/krisalay/request-cache"
	"github.com/krisalay/request-cache/engine"
	"github.com/krisalay/request-cache/expiration"
	"github.com/krisalay/request-cache/match"
	"github.com/krisalay/request-cache/ttlstore"
	"github.com/krisalay/request-cache/types"
)

//
// ================= TEST HELPERS =================
//

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// counter builds fetch functions that count their invocations.
type counter struct {
	calls atomic.Int64
}

func (c *counter) returning(v any) types.FetchFunc {
	return func(ctx context.Context) (any, error) {
		c.calls.Add(1)
		return v, nil
	}
}

func (c *counter) failing(err error) types.FetchFunc {
	return func(ctx context.Context) (any, error) {
		c.calls.Add(1)
		return nil, err
	}
}

func (c *counter) n() int64 { return c.calls.Load() }

// newTestCache creates a cache on a fake clock with the janitor disabled.
func newTestCache(t *testing.T, opts ...cache.Option) (*cache.RequestCache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()

	eng := engine.NewCacheEngine(nil, nil, nil)
	eng.Now = clock.Now

	c := cache.NewRequestCache(4, eng, append([]cache.Option{cache.WithSweepInterval(0)}, opts...)...)
	t.Cleanup(c.Close)
	return c, clock
}

//
// ================= HIT / MISS =================
//

func TestGetHitDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	var first, second counter

	v, err := c.Get(ctx, "K", first.returning("v1"), 5*time.Minute)
	if err != nil || v != "v1" {
		t.Fatalf("first get: %v, %v", v, err)
	}

	clock.Advance(time.Second)

	v, err = c.Get(ctx, "K", second.returning("v2"), 5*time.Minute)
	if err != nil || v != "v1" {
		t.Fatalf("expected cached v1, got %v, %v", v, err)
	}
	if second.n() != 0 {
		t.Fatalf("fetch called on hit: %d", second.n())
	}
}

func TestGetExpiryForcesRefetch(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	var first, second counter

	c.Get(ctx, "K", first.returning("v1"), 5*time.Minute)
	ttlBefore := c.TTL("K")

	clock.Advance(300001 * time.Millisecond)

	v, err := c.Get(ctx, "K", second.returning("v2"), 5*time.Minute)
	if err != nil || v != "v2" {
		t.Fatalf("expected refetched v2, got %v, %v", v, err)
	}
	if second.n() != 1 {
		t.Fatalf("expected one refetch, got %d", second.n())
	}

	// storedAt moved to the new call time, so the full TTL is available again
	if got := c.TTL("K"); got != ttlBefore {
		t.Fatalf("TTL after refresh = %v, want %v", got, ttlBefore)
	}
}

func TestGetDefaultTTL(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	var fc counter

	c.Get(ctx, "K", fc.returning(1), 0)
	clock.Advance(engine.DefaultTTL - time.Millisecond)
	c.Get(ctx, "K", fc.returning(1), 0)
	if fc.n() != 1 {
		t.Fatalf("expected hit inside default TTL, fetches=%d", fc.n())
	}

	clock.Advance(time.Millisecond)
	c.Get(ctx, "K", fc.returning(1), 0)
	if fc.n() != 2 {
		t.Fatalf("expected refetch at default TTL, fetches=%d", fc.n())
	}
}

func TestGetRejectsInvalidArguments(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	var fc counter

	if _, err := c.Get(ctx, "", fc.returning(1), time.Minute); !errors.Is(err, types.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := c.Get(ctx, "K", nil, time.Minute); !errors.Is(err, types.ErrNilFetch) {
		t.Fatalf("expected ErrNilFetch, got %v", err)
	}
	if err := c.Set("", 1); !errors.Is(err, types.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey from Set, got %v", err)
	}
	if fc.n() != 0 || c.Len() != 0 {
		t.Fatal("invalid calls must not fetch or store")
	}
}

//
// ================= FAILURES =================
//

func TestFetchFailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	boom := errors.New("HTTP error! status: 500")
	var bad, good counter

	_, err := c.Get(ctx, "K", bad.failing(boom), time.Minute)
	if err != boom {
		t.Fatalf("expected the fetch error unchanged, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failure was stored: len=%d", c.Len())
	}

	v, err := c.Get(ctx, "K", good.returning("ok"), time.Minute)
	if err != nil || v != "ok" || good.n() != 1 {
		t.Fatalf("expected fresh fetch after failure, got %v, %v, calls=%d", v, err, good.n())
	}
}

func TestFetchFailureKeepsStaleEntryUnserved(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	var fc counter

	c.Get(ctx, "K", fc.returning("old"), time.Minute)
	clock.Advance(2 * time.Minute)

	if _, err := c.Get(ctx, "K", fc.failing(errors.New("down")), time.Minute); err == nil {
		t.Fatal("expected error")
	}

	// the stale value must still not be served
	v, _ := c.Get(ctx, "K", fc.returning("new"), time.Minute)
	if v != "new" {
		t.Fatalf("expected new, got %v", v)
	}
}

//
// ================= SET =================
//

func TestSetPrimesCache(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	var fc counter

	if err := c.Set("products_{}", "primed"); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Get(ctx, "products_{}", fc.returning("fetched"), time.Minute)
	if v != "primed" || fc.n() != 0 {
		t.Fatalf("expected primed value without fetch, got %v calls=%d", v, fc.n())
	}
	if c.TTL("products_{}") != -1 {
		t.Fatalf("Set should record no TTL, got %v", c.TTL("products_{}"))
	}

	c.Set("products_{}", "replaced")
	v, _ = c.Get(ctx, "products_{}", fc.returning("fetched"), time.Minute)
	if v != "replaced" || c.Len() != 1 {
		t.Fatalf("a write must replace: v=%v len=%d", v, c.Len())
	}
}

func TestSetWithTTLLimitsReads(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestCache(t)
	var fc counter

	c.SetWithTTL("K", "short", time.Second)
	clock.Advance(2 * time.Second)

	// the reader asks for a minute, but the entry itself only lived a second
	v, _ := c.Get(ctx, "K", fc.returning("fresh"), time.Minute)
	if v != "fresh" || fc.n() != 1 {
		t.Fatalf("expected refetch past recorded TTL, got %v calls=%d", v, fc.n())
	}
	if c.TTL("missing") != -2 {
		t.Fatal("missing key should report -2")
	}
}

//
// ================= INVALIDATION =================
//

func TestInvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	var fc counter

	c.Set("products_a", "V")
	c.Set("products_b", "V")
	c.Set("scans_a", "S")

	if n := c.Invalidate(match.Prefix("products_")); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}

	v, _ := c.Get(ctx, "products_a", fc.returning("refetched"), time.Hour)
	if v != "refetched" || fc.n() != 1 {
		t.Fatalf("expected miss after invalidation, got %v calls=%d", v, fc.n())
	}
	v, _ = c.Get(ctx, "scans_a", fc.returning("x"), time.Hour)
	if v != "S" {
		t.Fatalf("other resource touched: %v", v)
	}
}

func TestInvalidateExactLeavesSiblings(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	var fc counter

	c.Set("scans_1", "V1")
	c.Set("scans_2", "V2")

	if n := c.Invalidate(match.Exact("scans_1")); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
	if n := c.Invalidate(match.Exact("scans_1")); n != 0 {
		t.Fatalf("absent key removed %d", n)
	}

	v, err := c.Get(ctx, "scans_2", fc.failing(errors.New("must not be called")), time.Hour)
	if err != nil || v != "V2" || fc.n() != 0 {
		t.Fatalf("sibling lost: %v, %v, calls=%d", v, err, fc.n())
	}
}

func TestInvalidateRegexpFuncAndAll(t *testing.T) {
	c, _ := newTestCache(t)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("certs_%d", i), i)
		c.Set(fmt.Sprintf("products_%d", i), i)
	}

	if n := c.Invalidate(match.MustRegexp(`^certs_[0-2]$`)); n != 3 {
		t.Fatalf("regexp removed %d, want 3", n)
	}
	if n := c.Invalidate(match.Func(func(k string) bool { return k == "products_4" })); n != 1 {
		t.Fatalf("func removed %d, want 1", n)
	}
	if n := c.Invalidate(nil); n != 6 {
		t.Fatalf("clear removed %d, want 6", n)
	}
	if c.Len() != 0 {
		t.Fatalf("len after clear = %d", c.Len())
	}
}

func TestInvalidateNilFuncAndPanickingPredicate(t *testing.T) {
	c, _ := newTestCache(t)
	c.Set("products_1", 1)

	if n := c.Invalidate(match.Func(nil)); n != 0 {
		t.Fatalf("nil func removed %d, want 0", n)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the predicate's panic to reach the caller")
			}
		}()
		c.Invalidate(match.Func(func(string) bool { panic("bad predicate") }))
	}()

	// the write lock was released by the panicking call
	if err := c.Set("products_2", 2); err != nil {
		t.Fatal(err)
	}
	if n := c.Invalidate(match.Prefix("products_")); n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
}

func TestInvalidateDuringFetchDiscardsResult(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "stale-by-now", nil
	}

	done := make(chan any)
	go func() {
		v, _ := c.Get(ctx, "products_{}", slow, time.Hour)
		done <- v
	}()

	<-started
	c.Invalidate(cache.ResourcePrefix("products"))
	close(release)

	// the caller that started the fetch still gets its value
	if v := <-done; v != "stale-by-now" {
		t.Fatalf("caller got %v", v)
	}

	// but the value was never stored
	var fc counter
	v, _ := c.Get(ctx, "products_{}", fc.returning("fresh"), time.Hour)
	if v != "fresh" || fc.n() != 1 {
		t.Fatalf("invalidated fetch repopulated the cache: %v calls=%d", v, fc.n())
	}
}

//
// ================= SWEEP =================
//

func TestSweepEvictsExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t)

	c.SetWithTTL("short", 1, time.Second)
	c.Set("default", 2)

	clock.Advance(2 * time.Second)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}

	clock.Advance(expiration.DefaultSweepTTL)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1 (default TTL)", n)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestJanitorBoundsMemory(t *testing.T) {
	ctx := context.Background()
	c := cache.NewRequestCache(4, nil, cache.WithSweepInterval(20*time.Millisecond))
	defer c.Close()
	var fc counter

	for i := 0; i < 100; i++ {
		if _, err := c.Get(ctx, fmt.Sprintf("scans_%d", i), fc.returning(i), time.Millisecond); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor left %d entries", c.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFixedPolicySweepsByAssumedTTL(t *testing.T) {
	clock := newFakeClock()
	eng := engine.NewCacheEngine(&expiration.Fixed{TTL: 5 * time.Minute}, nil, nil)
	eng.Now = clock.Now
	c := cache.NewRequestCache(2, eng, cache.WithSweepInterval(0))
	defer c.Close()

	c.SetWithTTL("K", 1, time.Millisecond)
	clock.Advance(time.Minute)
	if n := c.Sweep(); n != 0 {
		t.Fatalf("Fixed policy honoured a per-entry TTL: swept %d", n)
	}

	clock.Advance(5 * time.Minute)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := cache.NewRequestCache(1, nil)
	c.Close()
	c.Close()

	if err := c.Set("K", 1); err != nil {
		t.Fatalf("cache unusable after Close: %v", err)
	}
}

//
// ================= CONCURRENCY =================
//

func TestConcurrentMissesCoalesce(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var calls atomic.Int64
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return "value", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(ctx, "products_{}", fetch, time.Minute)
			if err != nil || v != "value" {
				t.Errorf("expected value, got %v, %v", v, err)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected 1 coalesced fetch, got %d", calls.Load())
	}
}

func TestCanceledCallerDoesNotFailJoinedCallers(t *testing.T) {
	c, _ := newTestCache(t)

	var calls atomic.Int64
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	fetchCtxErr := make(chan error, 1)
	fetch := func(ctx context.Context) (any, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		fetchCtxErr <- ctx.Err()
		return "value", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Get(leaderCtx, "products_{}", fetch, time.Minute)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   any
		err error
	}
	joined := make(chan result, 1)
	go func() {
		v, err := c.Get(context.Background(), "products_{}", fetch, time.Minute)
		joined <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller got %v, want context.Canceled", err)
	}

	close(release)
	if r := <-joined; r.err != nil || r.v != "value" {
		t.Fatalf("joined caller got %v, %v", r.v, r.err)
	}
	if err := <-fetchCtxErr; err != nil {
		t.Fatalf("shared fetch saw the leader's cancellation: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 shared fetch, got %d", calls.Load())
	}

	var fc counter
	v, _ := c.Get(context.Background(), "products_{}", fc.returning("other"), time.Minute)
	if v != "value" || fc.n() != 0 {
		t.Fatalf("shared fetch result not cached: %v calls=%d", v, fc.n())
	}
}

func TestWithoutCoalescingEachMissFetches(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, cache.WithoutCoalescing())

	var calls atomic.Int64
	var ready sync.WaitGroup
	ready.Add(5)
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		ready.Done()
		<-release
		return n, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get(ctx, "K", fetch, time.Minute)
		}()
	}

	ready.Wait()
	close(release)
	wg.Wait()

	if calls.Load() != 5 {
		t.Fatalf("expected 5 independent fetches, got %d", calls.Load())
	}
	if c.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", c.Len())
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	ctx := context.Background()
	c := cache.NewRequestCache(8, nil, cache.WithSweepInterval(time.Millisecond))
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("products_%d", i%10)
				c.Get(ctx, key, func(ctx context.Context) (any, error) { return i, nil }, time.Millisecond)
				if i%25 == 0 {
					c.Invalidate(match.Prefix("products_"))
				}
				if i%40 == 0 {
					c.Set(key, g)
				}
			}
		}(g)
	}
	wg.Wait()
}

//
// ================= TYPED FETCH / STORES =================
//

type productPage struct {
	Total int
}

func TestFetchTyped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	page, err := cache.Fetch(ctx, c, "products_{}", func(ctx context.Context) (*productPage, error) {
		return &productPage{Total: 3}, nil
	}, time.Minute)
	if err != nil || page.Total != 3 {
		t.Fatalf("typed fetch: %+v, %v", page, err)
	}

	c.Set("scans_{}", "not a page")
	_, err = cache.Fetch(ctx, c, "scans_{}", func(ctx context.Context) (*productPage, error) {
		return &productPage{}, nil
	}, time.Minute)
	if !errors.Is(err, types.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestTTLStoreBackend(t *testing.T) {
	ctx := context.Background()
	c := cache.NewRequestCache(0, nil, cache.WithStore(ttlstore.New()), cache.WithSweepInterval(0))
	defer c.Close()
	var fc counter

	c.Get(ctx, "products_{}", fc.returning("a"), time.Minute)
	c.Get(ctx, "products_{}", fc.returning("b"), time.Minute)
	if fc.n() != 1 {
		t.Fatalf("expected hit on ttlcache-backed store, fetches=%d", fc.n())
	}

	if n := c.Invalidate(match.Prefix("products_")); n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}
}

func TestTTLStoreBackendCountsExpiredEntries(t *testing.T) {
	newExpired := func(t *testing.T) *cache.RequestCache {
		t.Helper()
		c := cache.NewRequestCache(0, nil, cache.WithStore(ttlstore.New()), cache.WithSweepInterval(0))
		t.Cleanup(c.Close)
		for i := 0; i < 100; i++ {
			if err := c.SetWithTTL(fmt.Sprintf("scans_%d", i), i, time.Millisecond); err != nil {
				t.Fatal(err)
			}
		}
		time.Sleep(20 * time.Millisecond)
		if c.Len() != 100 {
			t.Fatalf("expired entries not yet swept should be counted, len=%d", c.Len())
		}
		return c
	}

	t.Run("sweep", func(t *testing.T) {
		c := newExpired(t)
		if n := c.Sweep(); n != 100 {
			t.Fatalf("swept %d, want 100", n)
		}
		if c.Len() != 0 {
			t.Fatalf("sweep left %d entries", c.Len())
		}
	})

	t.Run("invalidate all", func(t *testing.T) {
		c := newExpired(t)
		if n := c.Invalidate(match.All()); n != 100 {
			t.Fatalf("removed %d, want 100", n)
		}
	})

	t.Run("invalidate prefix", func(t *testing.T) {
		c := newExpired(t)
		if n := c.Invalidate(cache.ResourcePrefix("scans")); n != 100 {
			t.Fatalf("removed %d, want 100", n)
		}
	})
}
