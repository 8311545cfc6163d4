package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "wcs"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "wcs"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Daemon defaults
	if cfg.Daemon.Address == "" {
		cfg.Daemon.Address = "localhost:8080"
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = "/tmp/wcs-daemon.pid"
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = 30 * time.Second
	}

	// AMR defaults
	if cfg.AMR.MaxRetries == 0 {
		cfg.AMR.MaxRetries = 5
	}
	if cfg.AMR.BackoffBase == 0 {
		cfg.AMR.BackoffBase = 1 * time.Second
	}
	if cfg.AMR.StepDelay == 0 {
		cfg.AMR.StepDelay = 3 * time.Second
	}

	// Lifter defaults
	if len(cfg.Lifter.Floors) == 0 {
		cfg.Lifter.Floors = []int{1, 2}
	}
	if cfg.Lifter.HomeFloor == 0 {
		cfg.Lifter.HomeFloor = cfg.Lifter.Floors[0]
	}
	if cfg.Lifter.SimTravelTime == 0 {
		cfg.Lifter.SimTravelTime = 3 * time.Second
	}

	// Scheduler defaults
	if cfg.Scheduler.StagingInterval == 0 {
		cfg.Scheduler.StagingInterval = 5 * time.Second
	}
	if cfg.Scheduler.DeadlockScanInterval == 0 {
		cfg.Scheduler.DeadlockScanInterval = 30 * time.Second
	}
	if cfg.Scheduler.RowLockSweepInterval == 0 {
		cfg.Scheduler.RowLockSweepInterval = 5 * time.Minute
	}
	if cfg.Scheduler.RowLockTTL == 0 {
		cfg.Scheduler.RowLockTTL = 1 * time.Hour
	}
	if cfg.Scheduler.StatePurgeInterval == 0 {
		cfg.Scheduler.StatePurgeInterval = 1 * time.Minute
	}
	if cfg.Scheduler.EventRetention == 0 {
		cfg.Scheduler.EventRetention = 14 * 24 * time.Hour
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
