package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConflictMetricsCollector handles all conflict resolution metrics
type ConflictMetricsCollector struct {
	conflictsTotal *prometheus.CounterVec
	reroutesTotal  *prometheus.CounterVec
	deadlocksTotal prometheus.Counter
}

// NewConflictMetricsCollector creates a new conflict metrics collector
func NewConflictMetricsCollector() *ConflictMetricsCollector {
	return &ConflictMetricsCollector{
		// Conflict resolutions by outcome (yield, reroute, backtrack_parking,
		// backtrack_wait, wait, emergency)
		conflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "conflicts_total",
				Help:      "Total number of resolved vehicle conflicts by resolution",
			},
			[]string{"resolution"},
		),

		// Accepted reroutes by validation tier
		reroutesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reroutes_total",
				Help:      "Total number of accepted reroutes by validation tier",
			},
			[]string{"tier"},
		),

		// Broken circular waits
		deadlocksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "deadlocks_resolved_total",
				Help:      "Total number of circular waits broken by the detector",
			},
		),
	}
}

// Register registers all conflict metrics with the Prometheus registry
func (c *ConflictMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.conflictsTotal,
		c.reroutesTotal,
		c.deadlocksTotal,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordConflictResolution records how one conflict was resolved
func (c *ConflictMetricsCollector) RecordConflictResolution(resolution string) {
	c.conflictsTotal.WithLabelValues(resolution).Inc()
}

// RecordReroute records a reroute acceptance by tier
func (c *ConflictMetricsCollector) RecordReroute(tier string) {
	c.reroutesTotal.WithLabelValues(tier).Inc()
}

// RecordDeadlockResolved records a broken wait cycle
func (c *ConflictMetricsCollector) RecordDeadlockResolved() {
	c.deadlocksTotal.Inc()
}
