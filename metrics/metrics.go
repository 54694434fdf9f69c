// Package metrics exports cache events to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/krisalay/request-cache/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ types.Metrics = (*Metrics)(nil)

// Metrics holds the Prometheus collectors of one cache. It implements types.Metrics.
type Metrics struct {
	// Read path
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	StaleReads prometheus.Counter

	// Fetches
	Fetches       *prometheus.CounterVec
	FetchLatency  prometheus.Histogram
	DiscardedLoad prometheus.Counter

	// Removal
	Invalidated prometheus.Counter
	Swept       prometheus.Counter
	Entries     prometheus.Gauge
}

// NewMetrics registers the cache collectors under namespace on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Hits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Reads served from a fresh cache entry",
		}),
		Misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Reads that found no entry",
		}),
		StaleReads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_total",
			Help:      "Reads that found an entry too old to serve",
		}),

		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch function calls by result",
		}, []string{"result"}),
		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Fetch function latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		DiscardedLoad: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_fetches_total",
			Help:      "Fetch results dropped because their key was invalidated meanwhile",
		}),

		Invalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_entries_total",
			Help:      "Entries removed by invalidation",
		}),
		Swept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_entries_total",
			Help:      "Entries evicted by the background sweep",
		}),
		Entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries stored after the last sweep",
		}),
	}
}

func (m *Metrics) Hit()   { m.Hits.Inc() }
func (m *Metrics) Miss()  { m.Misses.Inc() }
func (m *Metrics) Stale() { m.StaleReads.Inc() }

// Fetch records one fetch call.
func (m *Metrics) Fetch(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Fetches.WithLabelValues(result).Inc()
	m.FetchLatency.Observe(d.Seconds())
}

func (m *Metrics) Discard() { m.DiscardedLoad.Inc() }

func (m *Metrics) Invalidate(n int) { m.Invalidated.Add(float64(n)) }

// Sweep records one sweep pass.
func (m *Metrics) Sweep(evicted, remaining int) {
	m.Swept.Add(float64(evicted))
	m.Entries.Set(float64(remaining))
}

// Server runs an HTTP server exposing /metrics and /health.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server on addr serving the collectors of g.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the server is stopped.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop closes the listener and all connections.
func (s *Server) Stop() error {
	return s.server.Close()
}
