package types

import "time"

// This file defines how the cache reports what it is doing.

/*
Metrics is the set of events the cache emits.
The cache calls these methods inline, so implementations must be cheap and non-blocking.
*/
type Metrics interface {

	// Hit is called when Get returns a fresh stored value.
	Hit()

	// Miss is called when Get finds nothing for the key.
	Miss()

	// Stale is called when Get finds an entry that is too old to serve.
	Stale()

	// Fetch is called after every fetch function returns, successful or not.
	Fetch(d time.Duration, err error)

	// Discard is called when a fetch result is not stored because its key was invalidated meanwhile.
	Discard()

	// Invalidate is called with the number of entries removed by one invalidation.
	Invalidate(n int)

	// Sweep is called after a sweep pass with the number of evicted and remaining entries.
	Sweep(evicted, remaining int)
}

/*
NoopMetrics ignores every event.

The engine substitutes it when no metrics are configured, so
the cache never needs "if metrics != nil" checks.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()                       {}
func (NoopMetrics) Miss()                      {}
func (NoopMetrics) Stale()                     {}
func (NoopMetrics) Fetch(time.Duration, error) {}
func (NoopMetrics) Discard()                   {}
func (NoopMetrics) Invalidate(int)             {}
func (NoopMetrics) Sweep(int, int)             {}

// Multi fans every event out to several sinks, in order.
type Multi []Metrics

func (m Multi) Hit() {
	for _, s := range m {
		s.Hit()
	}
}

func (m Multi) Miss() {
	for _, s := range m {
		s.Miss()
	}
}

func (m Multi) Stale() {
	for _, s := range m {
		s.Stale()
	}
}

func (m Multi) Fetch(d time.Duration, err error) {
	for _, s := range m {
		s.Fetch(d, err)
	}
}

func (m Multi) Discard() {
	for _, s := range m {
		s.Discard()
	}
}

func (m Multi) Invalidate(n int) {
	for _, s := range m {
		s.Invalidate(n)
	}
}

func (m Multi) Sweep(evicted, remaining int) {
	for _, s := range m {
		s.Sweep(evicted, remaining)
	}
}
