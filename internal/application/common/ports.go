package common

import (
	"context"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/traffic"
)

// MissionPublisher defines the egress side of the vehicle transport
// Following hexagonal architecture: the gateway adapter implements this,
// application code never touches the socket layer directly
type MissionPublisher interface {
	// PublishMission delivers a mission envelope on the vehicle's mission channel
	PublishMission(ctx context.Context, vehicleID string, env *mission.Envelope) error

	// PublishCommand delivers a control command (reroute, backtrack, yield)
	PublishCommand(ctx context.Context, vehicleID string, cmd *VehicleCommand) error

	// SetRunPermission flips the vehicle's run-permission channel (0/1)
	SetRunPermission(ctx context.Context, vehicleID string, allowed bool) error

	// IsConnected reports whether the vehicle currently holds a session
	IsConnected(vehicleID string) bool
}

// LifterControl exposes the tower coordinator to mission planning and
// dispatch without importing the coordinator package
type LifterControl interface {
	// Status returns the drift-corrected tower state
	Status(ctx context.Context) (*lifter.Lifter, error)

	// RequestLifter appends a trip request to the FIFO queue
	RequestLifter(ctx context.Context, entry *lifter.QueueEntry) error

	// QueueLen reports pending trips
	QueueLen(ctx context.Context) (int, error)

	// HasPending reports whether the vehicle already has a queued trip
	HasPending(ctx context.Context, vehicleID string) (bool, error)

	// CompleteTrip acknowledges a trip from outside the processor and
	// returns the next waiting request, if any
	CompleteTrip(ctx context.Context, taskID string) (*lifter.QueueEntry, bool, error)
}

// TrafficSource provides directional traffic snapshots for path planning
type TrafficSource interface {
	// Snapshot aggregates all active paths except the excluded vehicle's own
	Snapshot(ctx context.Context, excludeVehicleID string) (traffic.Snapshot, error)
}

// FloorPlanProvider defines operations for floor plan management with caching
type FloorPlanProvider interface {
	// GetPlan retrieves the floor graph catalog (checks cache first, loads
	// from the persistence catalog if needed)
	GetPlan(ctx context.Context, forceRefresh bool) (*PlanLoadResult, error)
}

// PlanLoadResult represents the result of loading the floor plan
type PlanLoadResult struct {
	Plan    *floorplan.Plan
	Source  string // "cache" or "database"
	Message string
}

// AMRClient defines operations for interacting with the AMR vendor API
type AMRClient interface {
	// Pollers
	FetchLocation(ctx context.Context, amrID string) (*AMRLocation, error)
	FetchBattery(ctx context.Context, amrID string) (*AMRBattery, error)
	FetchCargo(ctx context.Context, amrID string) (*AMRCargo, error)
	FetchStatus(ctx context.Context, amrID string) (*AMRStatus, error)
	FetchSensors(ctx context.Context, amrID string) (*AMRSensors, error)

	// SendMoveTask pushes a move task list to the AMR controller
	SendMoveTask(ctx context.Context, amrID string, task *AMRMoveTask) error
}

// VehicleCommand is the payload of the vehicle command channel
type VehicleCommand struct {
	Action    CommandAction `json:"action"`
	Path      []string      `json:"path,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	OnArrival string        `json:"onArrival,omitempty"`
}

// CommandAction enumerates control commands sent to vehicles
type CommandAction string

const (
	CommandReroute   CommandAction = "REROUTE"
	CommandBacktrack CommandAction = "BACKTRACK"
	CommandYield     CommandAction = "YIELD"
)

// DTOs for AMR API operations

type AMRLocation struct {
	X       float64
	Y       float64
	NodeQR  string
	FloorID int
	Heading float64
}

type AMRBattery struct {
	Percent  float64
	Charging bool
}

type AMRCargo struct {
	Loaded bool
	RackID string
}

type AMRStatus struct {
	State     string
	ErrorCode int
	TaskID    string
}

type AMRSensors struct {
	ObstacleDetected bool
	EmergencyStop    bool
	LidarHealthy     bool
}

// AMRMoveTask is one fire-and-forget task pushed to an AMR
type AMRMoveTask struct {
	TaskID       string   `json:"taskId"`
	AMRID        string   `json:"amrId"`
	MoveTaskList []string `json:"move_task_list"`
	StartQR      string   `json:"startQr"`
	EndQR        string   `json:"endQr"`
	FloorID      int      `json:"floorId"`
}
