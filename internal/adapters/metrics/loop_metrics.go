package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LoopMetricsCollector handles the daemon's periodic loop metrics
type LoopMetricsCollector struct {
	loopRuns     *prometheus.CounterVec
	loopDuration *prometheus.HistogramVec
}

// NewLoopMetricsCollector creates a new loop metrics collector
func NewLoopMetricsCollector() *LoopMetricsCollector {
	return &LoopMetricsCollector{
		loopRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loop_runs_total",
				Help:      "Total periodic loop executions by loop name and result",
			},
			[]string{"loop", "result"},
		),

		// Loop pass duration. Sweeps finish in microseconds; the tail
		// covers staging passes that touch the floor graph.
		loopDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "loop_duration_seconds",
				Help:      "Periodic loop pass duration distribution",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"loop"},
		),
	}
}

// Register registers all loop metrics with the Prometheus registry
func (c *LoopMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.loopRuns,
		c.loopDuration,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordLoopRun records one loop pass
func (c *LoopMetricsCollector) RecordLoopRun(loop, result string, seconds float64) {
	c.loopRuns.WithLabelValues(loop, result).Inc()
	c.loopDuration.WithLabelValues(loop).Observe(seconds)
}
