package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports cache statistics as Prometheus counters.
type Collector struct {
	cache *Cache
	label string

	accesses *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	evicts   *prometheus.Desc
	prefetch *prometheus.Desc
}

// NewCollector creates a collector for c. Every metric carries a "cache"
// label set to name.
func NewCollector(namespace, name string, c *Cache) *Collector {
	labels := []string{"cache"}
	return &Collector{
		cache: c,
		label: name,
		accesses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "accesses_total"),
			"Demand accesses by kind.", append(labels, "kind"), nil),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Demand hits.", labels, nil),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Demand misses.", labels, nil),
		evicts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"Evicted blocks.", labels, nil),
		prefetch: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "prefetches_total"),
			"Prefetch requests by outcome.", append(labels, "outcome"), nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accesses
	ch <- c.hits
	ch <- c.misses
	ch <- c.evicts
	ch <- c.prefetch
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v),
			append([]string{c.label}, labels...)...)
	}

	counter(c.accesses, s.Reads, "read")
	counter(c.accesses, s.Writes, "write")
	counter(c.hits, s.Hits)
	counter(c.misses, s.Misses)
	counter(c.evicts, s.Evictions)
	counter(c.prefetch, s.PrefetchIssued, "issued")
	counter(c.prefetch, s.PrefetchUseful, "useful")
	counter(c.prefetch, s.PrefetchUnused, "unused")
	counter(c.prefetch, s.PrefetchRedundant, "redundant")
	counter(c.prefetch, s.PrefetchDropped, "dropped")
}
