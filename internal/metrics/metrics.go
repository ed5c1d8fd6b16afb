// Package metrics exposes Prometheus collectors for the pollers.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridmon",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Poll cycles by poller and result (published, empty, aborted, cancelled)",
	}, []string{"poller", "result"})

	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gridmon",
		Subsystem: "poller",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time of one poll cycle",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"poller"})

	NodeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridmon",
		Name:      "node_failures_total",
		Help:      "Nodes that could not be queried in a cycle, by poller and reason",
	}, []string{"poller", "reason"})

	Nodes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridmon",
		Name:      "nodes",
		Help:      "Member nodes seen by the last entry-count cycle, by reachability",
	}, []string{"state"})

	Caches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridmon",
		Name:      "caches",
		Help:      "Distinct cache names in the last published set",
	})

	Entries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridmon",
		Name:      "cache_entries",
		Help:      "Local entry count per node and cache from the last snapshot",
	}, []string{"node", "cache"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Cycles)
		prometheus.MustRegister(CycleDuration)
		prometheus.MustRegister(NodeFailures)
		prometheus.MustRegister(Nodes)
		prometheus.MustRegister(Caches)
		prometheus.MustRegister(Entries)
	})
}
