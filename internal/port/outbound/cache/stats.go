package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_cache_lookups_total",
	Help: "Cache lookups by result.",
}, []string{"result"})

// Counters tracks cache lookups and hits with atomic increments so the
// hot path never blocks. Embedded by Cache implementations.
type Counters struct {
	total atomic.Uint64
	hits  atomic.Uint64
}

// Record accounts for one lookup.
func (c *Counters) Record(hit bool) {
	c.total.Add(1)
	if hit {
		c.hits.Add(1)
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// Stats snapshots the counters.
func (c *Counters) Stats() Stats {
	// Reads are independent; a snapshot taken mid-update may be off by
	// one lookup, which is acceptable for accounting.
	return Stats{Hits: c.hits.Load(), Total: c.total.Load()}
}

// Stats is a point-in-time view of cache hit accounting.
type Stats struct {
	Hits  uint64
	Total uint64
}

// HitRate returns hits/total, defined as 0 when total is 0.
func (s Stats) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}
