package config

import "time"

// SchedulerConfig holds the periodic loop cadences of the controller.
// The per-pass behavior lives in the application layer; these only set
// how often each loop fires.
type SchedulerConfig struct {
	// How often the staging scheduler commits the next staged order
	StagingInterval time.Duration `mapstructure:"staging_interval" validate:"required"`

	// How often the wait-for graph is rebuilt and scanned for cycles
	DeadlockScanInterval time.Duration `mapstructure:"deadlock_scan_interval" validate:"required"`

	// How often stale row-direction locks are swept
	RowLockSweepInterval time.Duration `mapstructure:"row_lock_sweep_interval"`

	// Row-direction locks older than this are swept even if the holder
	// set never emptied (crashed vehicles)
	RowLockTTL time.Duration `mapstructure:"row_lock_ttl"`

	// How often the expired-entry purge runs over the state store
	StatePurgeInterval time.Duration `mapstructure:"state_purge_interval"`

	// How long completed task events are kept before pruning
	EventRetention time.Duration `mapstructure:"event_retention"`
}
