package store

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "lanatus"
	subsystem = "db"
)

// metricsCollector exposes connection pool statistics.
type metricsCollector struct {
	driver string
	stats  func() sql.DBStats
}

// newMetricsCollector creates a new metricsCollector.
func newMetricsCollector(driver string, stats func() sql.DBStats) *metricsCollector {
	return &metricsCollector{
		driver: driver,
		stats:  stats,
	}
}

// Describe implements prometheus.Collector.
func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements prometheus.Collector.
func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	labels := prometheus.Labels{"driver": c.driver}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, labels)
	}

	ch <- prometheus.MustNewConstMetric(
		desc("open_connections", "The number of established connections both in use and idle."),
		prometheus.GaugeValue,
		float64(stats.OpenConnections),
	)
	ch <- prometheus.MustNewConstMetric(
		desc("in_use", "The number of connections currently in use."),
		prometheus.GaugeValue,
		float64(stats.InUse),
	)
	ch <- prometheus.MustNewConstMetric(
		desc("idle", "The number of idle connections."),
		prometheus.GaugeValue,
		float64(stats.Idle),
	)
	ch <- prometheus.MustNewConstMetric(
		desc("wait_count_total", "The total number of connections waited for."),
		prometheus.CounterValue,
		float64(stats.WaitCount),
	)
	ch <- prometheus.MustNewConstMetric(
		desc("wait_duration_seconds_total", "The total time blocked waiting for a new connection."),
		prometheus.CounterValue,
		stats.WaitDuration.Seconds(),
	)
}

// check interfaces
var _ prometheus.Collector = (*metricsCollector)(nil)
