package config

// MetricsConfig holds metrics collection and exposure configuration
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. When on,
	// the Prometheus endpoint is served on the daemon address at /metrics.
	Enabled bool `mapstructure:"enabled"`
}
