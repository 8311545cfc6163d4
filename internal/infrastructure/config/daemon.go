package config

import "time"

// DaemonConfig holds daemon service configuration
type DaemonConfig struct {
	// HTTP listen address for the REST surface and vehicle sockets (host:port)
	Address string `mapstructure:"address" validate:"required"`

	// PID file location
	PIDFile string `mapstructure:"pid_file"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required"`

	// Run database auto-migration on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`

	// Layout file imported into an empty catalog on first start.
	// Empty means the catalog must already be populated.
	SeedLayout string `mapstructure:"seed_layout"`
}
