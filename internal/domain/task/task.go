package task

import (
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// Status is the lifecycle state of a transport task
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusAssigned         Status = "ASSIGNED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusWaitingForLifter Status = "WAITING_FOR_LIFTER"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:          {StatusAssigned, StatusFailed},
	StatusAssigned:         {StatusInProgress, StatusWaitingForLifter, StatusPending, StatusFailed},
	StatusInProgress:       {StatusWaitingForLifter, StatusCompleted, StatusFailed},
	StatusWaitingForLifter: {StatusInProgress, StatusFailed},
	StatusCompleted:        {},
	StatusFailed:           {},
}

// CanTransition reports whether a status change is legal
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one transport order: move a load from a source cell to a
// destination cell, possibly across floors. Seq is the monotonic
// registration number used for age-based priority; lower means older.
type Task struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	VehicleID   string    `json:"vehicleId,omitempty"`
	SourceQR    string    `json:"sourceQr"`
	SourceFloor int       `json:"sourceFloor"`
	DestQR      string    `json:"destQr"`
	DestFloor   int       `json:"destFloor"`
	Row         int       `json:"row,omitempty"`
	BatchID     string    `json:"batchId,omitempty"`
	PalletType  string    `json:"palletType,omitempty"`
	ItemInfo    string    `json:"itemInfo,omitempty"`
	Status      Status    `json:"status"`
	RetryCount  int       `json:"retryCount"`
	FailReason  string    `json:"failReason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	AssignedAt  time.Time `json:"assignedAt"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

func New(id string, seq int64, sourceQR string, sourceFloor int, destQR string, destFloor int, createdAt time.Time) (*Task, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "must not be empty")
	}
	if sourceQR == "" || destQR == "" {
		return nil, shared.NewValidationError("route", "source and destination cells are required")
	}
	return &Task{
		ID:          id,
		Seq:         seq,
		SourceQR:    sourceQR,
		SourceFloor: sourceFloor,
		DestQR:      destQR,
		DestFloor:   destFloor,
		Status:      StatusPending,
		CreatedAt:   createdAt,
	}, nil
}

// CrossesFloors reports whether the task needs a lifter leg
func (t *Task) CrossesFloors() bool {
	return t.SourceFloor != t.DestFloor
}

// Transition moves the task to a new status, enforcing the lifecycle
func (t *Task) Transition(to Status, at time.Time) error {
	if !CanTransition(t.Status, to) {
		return shared.NewInvalidTaskTransitionError(t.ID, string(t.Status), string(to))
	}
	t.Status = to
	switch to {
	case StatusAssigned:
		t.AssignedAt = at
	case StatusInProgress:
		if t.StartedAt.IsZero() {
			t.StartedAt = at
		}
	case StatusCompleted, StatusFailed:
		t.CompletedAt = at
	case StatusPending:
		t.VehicleID = ""
		t.AssignedAt = time.Time{}
	}
	return nil
}

// AssignTo binds the task to a vehicle and marks it assigned
func (t *Task) AssignTo(vehicleID string, at time.Time) error {
	if vehicleID == "" {
		return shared.NewValidationError("vehicleId", "must not be empty")
	}
	if err := t.Transition(StatusAssigned, at); err != nil {
		return err
	}
	t.VehicleID = vehicleID
	return nil
}

// Fail marks the task failed with a reason
func (t *Task) Fail(reason string, at time.Time) error {
	if err := t.Transition(StatusFailed, at); err != nil {
		return err
	}
	t.FailReason = reason
	return nil
}
