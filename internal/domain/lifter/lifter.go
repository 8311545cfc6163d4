package lifter

import (
	"context"
	"fmt"
	"time"
)

// Status is the operational state of a lifter tower
type Status string

const (
	StatusIdle   Status = "IDLE"
	StatusMoving Status = "MOVING"
	StatusBusy   Status = "BUSY"
	StatusError  Status = "ERROR"
)

// Lifter is the controller-side view of one vertical transport tower.
// CurrentFloor is the last confirmed position; during a move it keeps
// the origin floor until a position sensor confirms arrival.
type Lifter struct {
	ID           string    `json:"id"`
	CurrentFloor int       `json:"currentFloor"`
	TargetFloor  int       `json:"targetFloor"`
	Status       Status    `json:"status"`
	CarriedBy    string    `json:"carriedBy,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// QueueEntry is one pending lifter trip in arrival order. Boarded means
// the vehicle already sits in the cage, so the trip skips positioning
// and the boarding wait.
type QueueEntry struct {
	VehicleID  string    `json:"vehicleId"`
	TaskID     string    `json:"taskId"`
	FromFloor  int       `json:"fromFloor"`
	ToFloor    int       `json:"toFloor"`
	EntryQR    string    `json:"entryQr"`
	ExitQR     string    `json:"exitQr"`
	Boarded    bool      `json:"boarded"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// PLC tag addresses for the tower. Position tags are one per floor and
// read back true while the cage sits level with that floor; control
// tags command a move to the floor; the error tag latches faults.
const (
	TagPositionFloor1 = "LIFTER_1_POS_F1"
	TagPositionFloor2 = "LIFTER_1_POS_F2"
	TagControlFloor1  = "LIFTER_1_CTRL_F1"
	TagControlFloor2  = "LIFTER_1_CTRL_F2"
	TagError          = "LIFTER_1_ERROR"
)

// PositionTag returns the sensor tag for a floor
func PositionTag(floor int) string {
	return fmt.Sprintf("LIFTER_1_POS_F%d", floor)
}

// ControlTag returns the command tag for a floor
func ControlTag(floor int) string {
	return fmt.Sprintf("LIFTER_1_CTRL_F%d", floor)
}

// PLCClient reads and writes boolean tags on the tower PLC. Adapters
// talk S7 in production and an in-memory simulator in tests.
type PLCClient interface {
	ReadBool(ctx context.Context, tag string) (bool, error)
	WriteBool(ctx context.Context, tag string, value bool) error
	Close() error
}

// ObservedFloor resolves the cage position from the floor sensors. It
// returns 0 when no sensor reads true, meaning the cage is travelling
// between floors.
func ObservedFloor(ctx context.Context, plc PLCClient, floors []int) (int, error) {
	for _, f := range floors {
		on, err := plc.ReadBool(ctx, PositionTag(f))
		if err != nil {
			return 0, fmt.Errorf("reading position sensor for floor %d: %w", f, err)
		}
		if on {
			return f, nil
		}
	}
	return 0, nil
}
