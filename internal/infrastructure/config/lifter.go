package config

import "time"

// LifterConfig holds the lifter tower configuration
type LifterConfig struct {
	// Floors the tower serves, lowest first
	Floors []int `mapstructure:"floors" validate:"required,min=2"`

	// Floor the cage parks at after a cold start with no sensor reading
	HomeFloor int `mapstructure:"home_floor"`

	// EntryCells maps floor id to the handover cell where vehicles board.
	// Floors missing here fall back to the catalog's lifter cells.
	EntryCells map[int]string `mapstructure:"entry_cells" validate:"omitempty,dive,cell_qr"`

	// PLC gateway address. Empty selects the built-in simulator.
	PLCAddress string `mapstructure:"plc_address"`

	// Simulated cage travel time when the simulator runs
	SimTravelTime time.Duration `mapstructure:"sim_travel_time"`
}
