package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	cache "github.com/krisalay/request-cache"
	"github.com/krisalay/request-cache/client"
	"github.com/krisalay/request-cache/config"
	"github.com/krisalay/request-cache/match"
	"github.com/krisalay/request-cache/metrics"
	"github.com/krisalay/request-cache/mockapi"
	"github.com/krisalay/request-cache/model"
	"github.com/krisalay/request-cache/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ================= MAIN =================

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("STORE          :", cfg.Cache.Store)
	fmt.Println("SHARDS         :", cfg.Cache.Shards)
	fmt.Println("TTL POLICY     :", cfg.Cache.TTLPolicy)
	fmt.Println("SWEEP          :", cfg.Cache.SweepInterval, "/", cfg.Cache.SweepTTL)
	fmt.Println("COALESCING     :", cfg.CoalesceEnabled())
	fmt.Println("API            :", cfg.API.BaseURL, "(mock:", cfg.API.Mock, ")")

	// ---------------- Metrics ----------------
	reg := prometheus.NewRegistry()
	prom := metrics.NewMetrics(cfg.Metrics.Namespace, reg)
	st := &stats{}

	// ---------------- Cache ----------------
	c := cache.NewFromConfig(cfg.Cache, types.Multi{prom, st}, logger)
	defer c.Close()

	// ---------------- Backend ----------------
	opts := []client.Option{
		client.WithTimeout(cfg.API.Timeout),
		client.WithTTLs(client.TTLs{
			Products:       cfg.Resources.Products,
			Scans:          cfg.Resources.Scans,
			Certifications: cfg.Resources.Certifications,
		}),
		client.WithLogger(logger.Named("client")),
		client.WithToken(cfg.API.Token),
	}

	var backend *mockapi.Server
	if cfg.API.Mock {
		backend, opts = startMock(cfg, logger, opts)
	}
	api := client.New(cfg.API.BaseURL, c, opts...)

	backendRequests := func() int64 {
		if backend == nil {
			return -1
		}
		return backend.Requests()
	}

	// ====================================================
	fmt.Println("\n==================== 1) CACHE MISS ====================")
	page, err := api.GetProducts(ctx, client.Query{"page": "1"})
	check(logger, "list products", err)
	fmt.Printf("API    → GET /products = %d products (backend requests: %d)\n", page.Total, backendRequests())

	// ====================================================
	fmt.Println("\n==================== 2) CACHE HIT ====================")
	page, err = api.GetProducts(ctx, client.Query{"page": "1"})
	check(logger, "list products", err)
	fmt.Printf("CACHE  → GET /products = %d products (backend requests: %d)\n", page.Total, backendRequests())
	fmt.Println("CACHE  → TTL left:", c.TTL(mustKey(client.ResourceProducts, client.Query{"page": "1"})).Round(time.Second))

	// ====================================================
	fmt.Println("\n==================== 3) INVALIDATE ON CREATE ====================")
	p, err := api.CreateProduct(ctx, model.NewProduct{Name: "Glass bottle", Category: "Drinks"})
	check(logger, "create product", err)
	fmt.Println("API    → POST /products =", p.ID)

	page, err = api.GetProducts(ctx, client.Query{"page": "1"})
	check(logger, "list products", err)
	fmt.Printf("API    → GET /products after create = %d products\n", page.Total)

	scan, err := api.CreateScan(ctx, model.NewScan{ProductID: p.ID})
	check(logger, "create scan", err)
	fmt.Println("API    → POST /scans =", scan.ID, "(products and scans invalidated)")

	cert, err := api.CreateCertification(ctx, model.NewCertification{ProductID: p.ID, Type: model.EcoPremium})
	check(logger, "create certification", err)
	fmt.Printf("API    → POST /certifications = %s (%d requirements)\n", cert.ID, len(cert.Requirements))

	// ====================================================
	fmt.Println("\n==================== 4) COALESCED READS ====================")
	before := backendRequests()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := api.GetScans(gctx, nil)
			return err
		})
	}
	check(logger, "concurrent scans", g.Wait())
	fmt.Printf("CACHE  → 10 concurrent GET /scans = %d backend requests\n", backendRequests()-before)

	// ====================================================
	fmt.Println("\n==================== 5) TTL EXPIRY ====================")
	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return fmt.Sprintf("report-%d", calls), nil
	}
	v, err := c.Get(ctx, "reports_{}", fetch, 500*time.Millisecond)
	check(logger, "get report", err)
	fmt.Println("CACHE  → GET reports (TTL = 500ms) =", v)
	time.Sleep(600 * time.Millisecond)
	v, err = c.Get(ctx, "reports_{}", fetch, 500*time.Millisecond)
	check(logger, "get report after ttl", err)
	fmt.Println("CACHE  → GET reports after TTL =", v)

	// ====================================================
	fmt.Println("\n==================== 6) SWEEP ====================")
	for i := 0; i < 5; i++ {
		check(logger, "set temporary entry", c.SetWithTTL(fmt.Sprintf("tmp_%d", i), i, 100*time.Millisecond))
	}
	time.Sleep(150 * time.Millisecond)
	fmt.Println("CACHE  → entries before sweep =", c.Len())
	fmt.Println("CACHE  → swept =", c.Sweep())
	fmt.Println("CACHE  → entries after sweep =", c.Len())

	// ====================================================
	fmt.Println("\n==================== 7) CLEAR ====================")
	fmt.Println("CACHE  → invalidated =", c.Invalidate(match.All()))

	// ====================================================
	fmt.Println("\n==================== STATS ====================")
	st.Print(os.Stdout, backendRequests())

	if cfg.Metrics.Addr == "" {
		return
	}

	// ====================================================
	srv := metrics.NewServer(cfg.Metrics.Addr, reg)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()
	fmt.Printf("\nMetrics served on %s/metrics, Ctrl-C to stop\n", cfg.Metrics.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n==================== SHUTDOWN ====================")
	if err := srv.Stop(); err != nil {
		logger.Error("stopping metrics server", zap.Error(err))
	}
}

// startMock serves an in-memory backend under the path of the configured base URL.
func startMock(cfg *config.Config, logger *zap.Logger, opts []client.Option) (*mockapi.Server, []client.Option) {
	prefix := ""
	if u, err := url.Parse(cfg.API.BaseURL); err == nil {
		prefix = u.Path
	}

	mockOpts := []mockapi.Option{mockapi.WithPrefix(prefix), mockapi.WithLatency(50 * time.Millisecond)}
	if cfg.API.Token != "" {
		mockOpts = append(mockOpts, mockapi.WithToken(cfg.API.Token))
	}
	backend := mockapi.New(mockOpts...)

	ln := fasthttputil.NewInmemoryListener()
	go func() {
		if err := fasthttp.Serve(ln, backend.Handler); err != nil {
			logger.Error("mock backend stopped", zap.Error(err))
		}
	}()

	return backend, append(opts, client.WithDial(func(string) (net.Conn, error) {
		return ln.Dial()
	}))
}

func mustKey(resource string, q client.Query) string {
	key, err := cache.Key(resource, q)
	if err != nil {
		panic(err)
	}
	return key
}

func check(logger *zap.Logger, step string, err error) {
	if err != nil {
		logger.Fatal("demo step failed", zap.String("step", step), zap.Error(err))
	}
}
