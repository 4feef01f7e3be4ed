package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats counts cache traffic for one Cacher.
type Stats struct {
	hits   *xsync.Counter
	misses *xsync.Counter
	sets   *xsync.Counter
	errors *xsync.Counter
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Hits   int64
	Misses int64
	Sets   int64
	Errors int64
}

func newStats() *Stats {
	return &Stats{
		hits:   xsync.NewCounter(),
		misses: xsync.NewCounter(),
		sets:   xsync.NewCounter(),
		errors: xsync.NewCounter(),
	}
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Hits:   s.hits.Value(),
		Misses: s.misses.Value(),
		Sets:   s.sets.Value(),
		Errors: s.errors.Value(),
	}
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	s.hits.Reset()
	s.misses.Reset()
	s.sets.Reset()
	s.errors.Reset()
}

// Collectors exposes the counters as Prometheus counters under
// <namespace>_cache_*. Register them once per Cacher.
func (s *Stats) Collectors(namespace string) []prometheus.Collector {
	counter := func(name, help string, c *xsync.Counter) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(c.Value()) })
	}
	return []prometheus.Collector{
		counter("hits_total", "Lookups answered from the cache.", s.hits),
		counter("misses_total", "Lookups that fell through to the wrapped call.", s.misses),
		counter("sets_total", "Results written to the cache.", s.sets),
		counter("errors_total", "Store or codec failures served in degraded mode.", s.errors),
	}
}
