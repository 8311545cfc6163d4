package shared

import (
	"errors"
	"fmt"
)

// DomainError is the base error type for all domain errors
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// Vehicle-related errors

type VehicleError struct {
	*DomainError
}

func NewVehicleError(message string) *VehicleError {
	return &VehicleError{DomainError: &DomainError{Message: message}}
}

type UnknownVehicleError struct {
	*VehicleError
	VehicleID string
}

func NewUnknownVehicleError(vehicleID string) *UnknownVehicleError {
	return &UnknownVehicleError{
		VehicleError: NewVehicleError(fmt.Sprintf("unknown vehicle %s", vehicleID)),
		VehicleID:    vehicleID,
	}
}

// Task-related errors

type TaskError struct {
	*DomainError
	TaskID string
}

func NewTaskError(taskID, message string) *TaskError {
	return &TaskError{
		DomainError: &DomainError{Message: message},
		TaskID:      taskID,
	}
}

type UnknownTaskError struct {
	*TaskError
}

func NewUnknownTaskError(taskID string) *UnknownTaskError {
	return &UnknownTaskError{
		TaskError: NewTaskError(taskID, fmt.Sprintf("unknown task %s", taskID)),
	}
}

type InvalidTaskTransitionError struct {
	*TaskError
	From string
	To   string
}

func NewInvalidTaskTransitionError(taskID, from, to string) *InvalidTaskTransitionError {
	return &InvalidTaskTransitionError{
		TaskError: NewTaskError(taskID, fmt.Sprintf("task %s cannot transition from %s to %s", taskID, from, to)),
		From:      from,
		To:        to,
	}
}

// Lock contention. Not a failure: acquire returning this is a control
// signal for schedulers and the conflict resolver.

type LockHeldError struct {
	*DomainError
	Key   string
	Owner string
}

func NewLockHeldError(key, owner string) *LockHeldError {
	return &LockHeldError{
		DomainError: &DomainError{Message: fmt.Sprintf("lock %s is held by %s", key, owner)},
		Key:         key,
		Owner:       owner,
	}
}

// IsLockHeld reports whether an error is lock contention
func IsLockHeld(err error) bool {
	var held *LockHeldError
	return errors.As(err, &held)
}

// Pathfinding errors

type NoPathError struct {
	*DomainError
	From    string
	To      string
	FloorID int
}

func NewNoPathError(from, to string, floorID int) *NoPathError {
	return &NoPathError{
		DomainError: &DomainError{Message: fmt.Sprintf("no path from %s to %s on floor %d", from, to, floorID)},
		From:        from,
		To:          to,
		FloorID:     floorID,
	}
}

// Drift: a physical sensor disagrees with cached state. The cache is
// corrected by the caller; the error carries both readings for the log.

type DriftError struct {
	*DomainError
	Cached   string
	Observed string
}

func NewDriftError(cached, observed string) *DriftError {
	return &DriftError{
		DomainError: &DomainError{Message: fmt.Sprintf("state drift: cached %s, sensor reports %s", cached, observed)},
		Cached:      cached,
		Observed:    observed,
	}
}

// UnavailableError signals a transient transport failure. The owning loop
// retries; callers surface it without terminating.

type UnavailableError struct {
	*DomainError
	Op string
}

func NewUnavailableError(op string, cause error) *UnavailableError {
	return &UnavailableError{
		DomainError: &DomainError{Message: fmt.Sprintf("%s unavailable: %v", op, cause)},
		Op:          op,
	}
}

// Validation error

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
