package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "lanatus"
	subsystem = "engine"
)

// Metrics counts session lifecycle events.
// A nil *Metrics records nothing.
type Metrics struct {
	opened          prometheus.Counter
	disposed        prometheus.Counter
	commits         prometheus.Counter
	rollbacks       prometheus.Counter
	forcedRollbacks prometheus.Counter
	conflicts       prometheus.Counter
}

// NewMetrics creates the engine counters.
func NewMetrics() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		opened:          counter("sessions_opened_total", "Sessions acquired from the provider."),
		disposed:        counter("sessions_disposed_total", "Sessions released back to the provider."),
		commits:         counter("commits_total", "Transactions committed."),
		rollbacks:       counter("rollbacks_total", "Transactions rolled back after an error."),
		forcedRollbacks: counter("forced_rollbacks_total", "Transactions rolled back because the last reference was released."),
		conflicts:       counter("conflicts_total", "Updates whose predicate matched no row."),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.opened.Collect(ch)
	m.disposed.Collect(ch)
	m.commits.Collect(ch)
	m.rollbacks.Collect(ch)
	m.forcedRollbacks.Collect(ch)
	m.conflicts.Collect(ch)
}

func (m *Metrics) open() {
	if m != nil {
		m.opened.Inc()
	}
}

func (m *Metrics) dispose() {
	if m != nil {
		m.disposed.Inc()
	}
}

func (m *Metrics) commit() {
	if m != nil {
		m.commits.Inc()
	}
}

func (m *Metrics) rollback() {
	if m != nil {
		m.rollbacks.Inc()
	}
}

func (m *Metrics) forcedRollback() {
	if m != nil {
		m.forcedRollbacks.Inc()
	}
}

func (m *Metrics) conflict() {
	if m != nil {
		m.conflicts.Inc()
	}
}

var _ prometheus.Collector = (*Metrics)(nil)
