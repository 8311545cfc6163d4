package vehicle

import (
	"fmt"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// Kind discriminates the three vehicle families the controller manages
type Kind string

const (
	KindShuttle Kind = "SHUTTLE"
	KindAMR     Kind = "AMR"
	KindLifter  Kind = "LIFTER"
)

// Status is the operational state a vehicle reports
type Status string

const (
	StatusIdle     Status = "IDLE"
	StatusMoving   Status = "MOVING"
	StatusWaiting  Status = "WAITING"
	StatusPicking  Status = "PICKING"
	StatusDropping Status = "DROPPING"
	StatusError    Status = "ERROR"
)

// Vehicle is the controller-side view of one physical unit. Position is
// tracked two ways: NodeQR for grid vehicles and X/Y for free-roaming
// ones; shuttles keep both in sync as they scan tags.
type Vehicle struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	FloorID   int       `json:"floorId"`
	NodeQR    string    `json:"nodeQr"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Status    Status    `json:"status"`
	Carrying  bool      `json:"carrying"`
	Battery   float64   `json:"battery"`
	TaskID    string    `json:"taskId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(id string, kind Kind, floorID int) (*Vehicle, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	switch kind {
	case KindShuttle, KindAMR, KindLifter:
	default:
		return nil, shared.NewValidationError("kind", "must be SHUTTLE, AMR or LIFTER")
	}
	return &Vehicle{ID: id, Kind: kind, FloorID: floorID, Status: StatusIdle}, nil
}

// IsAvailable reports whether the vehicle can accept a new task
func (v *Vehicle) IsAvailable() bool {
	return v.Status == StatusIdle && v.TaskID == "" && !v.Carrying
}

// IsOperational reports whether the vehicle is healthy enough to move
func (v *Vehicle) IsOperational() bool {
	return v.Status != StatusError
}

// MoveTo records an observed position update on the grid
func (v *Vehicle) MoveTo(floorID int, nodeQR string, at time.Time) {
	v.FloorID = floorID
	v.NodeQR = nodeQR
	v.UpdatedAt = at
}

// MoveToXY records an observed metric position update
func (v *Vehicle) MoveToXY(x, y float64, at time.Time) {
	v.X = x
	v.Y = y
	v.UpdatedAt = at
}

// Assign binds the vehicle to a task
func (v *Vehicle) Assign(taskID string) error {
	if v.TaskID != "" && v.TaskID != taskID {
		return shared.NewVehicleError(fmt.Sprintf("vehicle %s already assigned to task %s", v.ID, v.TaskID))
	}
	v.TaskID = taskID
	return nil
}

// Release clears the task binding and cargo state after completion
func (v *Vehicle) Release() {
	v.TaskID = ""
	v.Carrying = false
	v.Status = StatusIdle
}
