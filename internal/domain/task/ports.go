package task

import (
	"context"
	"time"
)

// EventRecord is one entry in a task's audit trail: what happened, which
// vehicle was involved, and when.
type EventRecord struct {
	TaskID     string    `json:"taskId"`
	VehicleID  string    `json:"vehicleId,omitempty"`
	Type       string    `json:"type"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventLog records task lifecycle events durably so operators can
// reconstruct what a task went through after the fact.
type EventLog interface {
	Append(ctx context.Context, rec *EventRecord) error
	ForTask(ctx context.Context, taskID string) ([]*EventRecord, error)
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}
