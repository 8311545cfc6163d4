package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LifterMetricsCollector handles all lifter trip metrics
type LifterMetricsCollector struct {
	tripsTotal   *prometheus.CounterVec
	tripDuration *prometheus.HistogramVec
	queueDepth   prometheus.Gauge
}

// NewLifterMetricsCollector creates a new lifter metrics collector
func NewLifterMetricsCollector() *LifterMetricsCollector {
	return &LifterMetricsCollector{
		tripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lifter_trips_total",
				Help:      "Total number of lifter trips by status",
			},
			[]string{"status"},
		),

		tripDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lifter_trip_duration_seconds",
				Help:      "Lifter trip duration distribution",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"status"},
		),

		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "lifter_queue_depth",
				Help:      "Current number of pending lifter trip requests",
			},
		),
	}
}

// Register registers all lifter metrics with the Prometheus registry
func (c *LifterMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.tripsTotal,
		c.tripDuration,
		c.queueDepth,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordLifterTrip records a completed or failed trip
func (c *LifterMetricsCollector) RecordLifterTrip(status string, seconds float64) {
	c.tripsTotal.WithLabelValues(status).Inc()
	c.tripDuration.WithLabelValues(status).Observe(seconds)
}

// SetLifterQueueDepth records the pending trip count
func (c *LifterMetricsCollector) SetLifterQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
