package config

import "time"

// AMRConfig holds the free-roaming fleet integration configuration
type AMRConfig struct {
	// Enabled controls whether the AMR surface and pollers start at all.
	// Shuttle-only sites run with this off.
	Enabled bool `mapstructure:"enabled"`

	// Vendor controller base URL. Empty selects the built-in mock, which
	// simulates obedient units for development setups.
	VendorBaseURL string `mapstructure:"vendor_base_url"`

	// Units polled at startup. Units discovered later attach
	// automatically when they appear in a move request.
	Units []string `mapstructure:"units"`

	// Retry budget against the vendor API
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// Simulated travel time per path step when the mock client runs
	StepDelay time.Duration `mapstructure:"step_delay"`
}
