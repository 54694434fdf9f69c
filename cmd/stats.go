package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

// ================= STATS =================

// stats counts cache events for the summary table printed at exit.
type stats struct {
	hits        atomic.Int64
	misses      atomic.Int64
	stale       atomic.Int64
	fetches     atomic.Int64
	fetchErrors atomic.Int64
	fetchNanos  atomic.Int64
	discarded   atomic.Int64
	invalidated atomic.Int64
	swept       atomic.Int64
	entries     atomic.Int64
}

func (s *stats) Hit()   { s.hits.Add(1) }
func (s *stats) Miss()  { s.misses.Add(1) }
func (s *stats) Stale() { s.stale.Add(1) }

func (s *stats) Fetch(d time.Duration, err error) {
	s.fetches.Add(1)
	s.fetchNanos.Add(int64(d))
	if err != nil {
		s.fetchErrors.Add(1)
	}
}

func (s *stats) Discard()         { s.discarded.Add(1) }
func (s *stats) Invalidate(n int) { s.invalidated.Add(int64(n)) }

func (s *stats) Sweep(evicted, remaining int) {
	s.swept.Add(int64(evicted))
	s.entries.Store(int64(remaining))
}

func (s *stats) hitRatio() float64 {
	reads := s.hits.Load() + s.misses.Load() + s.stale.Load()
	if reads == 0 {
		return 0
	}
	return float64(s.hits.Load()) / float64(reads)
}

func (s *stats) avgFetch() time.Duration {
	n := s.fetches.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(s.fetchNanos.Load() / n).Round(time.Microsecond)
}

func (s *stats) Print(w io.Writer, backendRequests int64) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Metric", "Value")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	tbl.WithWriter(w)

	tbl.AddRow("hits", s.hits.Load())
	tbl.AddRow("misses", s.misses.Load())
	tbl.AddRow("stale reads", s.stale.Load())
	tbl.AddRow("hit ratio", fmt.Sprintf("%.1f%%", s.hitRatio()*100))
	tbl.AddRow("fetches", s.fetches.Load())
	tbl.AddRow("fetch errors", s.fetchErrors.Load())
	tbl.AddRow("avg fetch", s.avgFetch())
	tbl.AddRow("discarded fetches", s.discarded.Load())
	tbl.AddRow("invalidated", s.invalidated.Load())
	tbl.AddRow("swept", s.swept.Load())
	tbl.AddRow("entries at last sweep", s.entries.Load())
	if backendRequests >= 0 {
		tbl.AddRow("backend requests", backendRequests)
	}

	tbl.Print()
}
