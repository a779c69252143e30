package idcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "lanatus"
	subsystem = "idcache"
)

// Metrics counts cache activity for one named cache.
// A nil *Metrics records nothing.
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	fetchErrors   prometheus.Counter
	refreshes     prometheus.Counter
	invalidations prometheus.Counter
}

// NewMetrics creates counters labelled with the cache name.
func NewMetrics(name string) *Metrics {
	labels := prometheus.Labels{"cache": name}
	counter := func(metric, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &Metrics{
		hits:          counter("hits_total", "Lookups answered from the cache."),
		misses:        counter("misses_total", "Lookups that required a fetch."),
		fetchErrors:   counter("fetch_errors_total", "Fetches that failed and were not cached."),
		refreshes:     counter("refreshes_total", "Explicit refreshes."),
		invalidations: counter("invalidations_total", "Invalidations of one entry or the whole cache."),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.hits.Collect(ch)
	m.misses.Collect(ch)
	m.fetchErrors.Collect(ch)
	m.refreshes.Collect(ch)
	m.invalidations.Collect(ch)
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) fetchError() {
	if m != nil {
		m.fetchErrors.Inc()
	}
}

func (m *Metrics) refresh() {
	if m != nil {
		m.refreshes.Inc()
	}
}

func (m *Metrics) invalidation() {
	if m != nil {
		m.invalidations.Inc()
	}
}

var _ prometheus.Collector = (*Metrics)(nil)
