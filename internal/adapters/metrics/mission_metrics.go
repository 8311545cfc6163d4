package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MissionMetricsCollector handles all mission and queue metrics
type MissionMetricsCollector struct {
	// Mission lifecycle metrics
	missionsTotal *prometheus.CounterVec
	planDuration  *prometheus.HistogramVec

	// Queue depth gauges
	queueDepth *prometheus.GaugeVec
}

// NewMissionMetricsCollector creates a new mission metrics collector
func NewMissionMetricsCollector() *MissionMetricsCollector {
	return &MissionMetricsCollector{
		// Mission lifecycle counter
		missionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "missions_total",
				Help:      "Total number of mission lifecycle events by vehicle and status",
			},
			[]string{"vehicle", "status"},
		),

		// Segment planning duration histogram
		planDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "plan_duration_seconds",
				Help:      "Mission segment planning duration distribution",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"outcome"},
		),

		// Queue depth gauge (staging, pending, processing)
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "queue_depth",
				Help:      "Current depth of the task queues by queue name",
			},
			[]string{"queue"},
		),
	}
}

// Register registers all mission metrics with the Prometheus registry
func (c *MissionMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.missionsTotal,
		c.planDuration,
		c.queueDepth,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordMissionDispatch records a mission lifecycle event
func (c *MissionMetricsCollector) RecordMissionDispatch(vehicleID string, status string) {
	c.missionsTotal.WithLabelValues(vehicleID, status).Inc()
}

// RecordPlanDuration records one planning call
func (c *MissionMetricsCollector) RecordPlanDuration(outcome string, seconds float64) {
	c.planDuration.WithLabelValues(outcome).Observe(seconds)
}

// SetQueueDepth records the current depth of a named queue
func (c *MissionMetricsCollector) SetQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
