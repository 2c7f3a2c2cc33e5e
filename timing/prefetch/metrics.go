package prefetch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports a StatsSource as Prometheus counters.
type Collector struct {
	src  StatsSource
	desc map[string]*prometheus.Desc
}

var metricHelp = map[string]string{
	"accesses_total":      "Accesses observed by the GHB prefetcher.",
	"pc_patterns_total":   "Pattern walks served by the PC chain.",
	"page_patterns_total": "Pattern walks served by the page chain.",
	"no_pattern_total":    "Accesses with no usable correlation chain.",
	"table_matches_total": "Predictions served by the pattern table.",
	"fallbacks_total":     "Predictions served by the last-delta fallback.",
	"no_prediction_total": "Accesses with a pattern but no prediction.",
	"cross_page_total":    "Candidates dropped for crossing a page.",
	"candidates_total":    "Prefetch candidates handed to the issuer.",
}

// NewCollector creates a collector whose metrics are prefixed with
// namespace and "_ghb_".
func NewCollector(namespace string, src StatsSource) *Collector {
	c := &Collector{
		src:  src,
		desc: make(map[string]*prometheus.Desc, len(metricHelp)),
	}
	for name, help := range metricHelp {
		c.desc[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ghb", name), help, nil, nil)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.desc {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	values := map[string]uint64{
		"accesses_total":      s.Accesses,
		"pc_patterns_total":   s.PCPatterns,
		"page_patterns_total": s.PagePatterns,
		"no_pattern_total":    s.NoPattern,
		"table_matches_total": s.TableMatches,
		"fallbacks_total":     s.Fallbacks,
		"no_prediction_total": s.NoPrediction,
		"cross_page_total":    s.CrossPage,
		"candidates_total":    s.Candidates,
	}
	for name, v := range values {
		ch <- prometheus.MustNewConstMetric(c.desc[name], prometheus.CounterValue, float64(v))
	}
}

// StrideStatsSource supplies a stride statistics snapshot.
type StrideStatsSource interface {
	Stats() StrideStatistics
}

// StrideCollector exports a StrideStatsSource as Prometheus counters.
type StrideCollector struct {
	src  StrideStatsSource
	desc map[string]*prometheus.Desc
}

var strideMetricHelp = map[string]string{
	"accesses_total":    "Accesses observed by the stride prefetcher.",
	"allocations_total": "Stride table entries created.",
	"evictions_total":   "Stride table entries replaced.",
	"retrains_total":    "Stride changes that reset confidence.",
	"predictions_total": "Accesses with a trusted stride.",
	"cross_page_total":  "Predictions cut short at a page boundary.",
	"candidates_total":  "Prefetch candidates handed to the issuer.",
}

// NewStrideCollector creates a collector whose metrics are prefixed with
// namespace and "_stride_".
func NewStrideCollector(namespace string, src StrideStatsSource) *StrideCollector {
	c := &StrideCollector{
		src:  src,
		desc: make(map[string]*prometheus.Desc, len(strideMetricHelp)),
	}
	for name, help := range strideMetricHelp {
		c.desc[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "stride", name), help, nil, nil)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *StrideCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.desc {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *StrideCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	values := map[string]uint64{
		"accesses_total":    s.Accesses,
		"allocations_total": s.Allocations,
		"evictions_total":   s.Evictions,
		"retrains_total":    s.Retrains,
		"predictions_total": s.Predictions,
		"cross_page_total":  s.CrossPage,
		"candidates_total":  s.Candidates,
	}
	for name, v := range values {
		ch <- prometheus.MustNewConstMetric(c.desc[name], prometheus.CounterValue, float64(v))
	}
}
