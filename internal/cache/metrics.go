package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics mirrors the bucket counters as prometheus collectors. The
// collectors always exist; they are exported only when a registerer is set.
type metrics struct {
	registerer prometheus.Registerer

	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	stores        *prometheus.CounterVec
	invalidations prometheus.Counter
	entries       *prometheus.GaugeVec
}

// WithRegisterer exports cache metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Manager) { m.metrics.registerer = reg }
}

func newMetrics() *metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "owlreasoner",
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, []string{"bucket"})
	}
	return &metrics{
		hits:   counter("hits_total", "Cache lookups that found a live entry"),
		misses: counter("misses_total", "Cache lookups that found nothing or an expired entry"),
		stores: counter("stores_total", "Results stored in the cache"),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "owlreasoner",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Full invalidations caused by ontology mutations",
		}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "owlreasoner",
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held per bucket",
		}, []string{"bucket"}),
	}
}

func (m *metrics) register() error {
	for _, c := range []prometheus.Collector{m.hits, m.misses, m.stores, m.invalidations, m.entries} {
		if err := m.registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}
