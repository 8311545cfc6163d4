package queries

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// GetTaskEventsQuery retrieves the audit trail of one task
type GetTaskEventsQuery struct {
	TaskID string
}

// GetTaskEventsResponse carries the task's recorded history
type GetTaskEventsResponse struct {
	TaskID string              `json:"taskId"`
	Events []*task.EventRecord `json:"events"`
}

// GetTaskEventsHandler handles task history queries
type GetTaskEventsHandler struct {
	log task.EventLog
}

func NewGetTaskEventsHandler(eventLog task.EventLog) *GetTaskEventsHandler {
	return &GetTaskEventsHandler{log: eventLog}
}

func (h *GetTaskEventsHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*GetTaskEventsQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetTaskEventsQuery")
	}
	if query.TaskID == "" {
		return nil, shared.NewValidationError("taskId", "must not be empty")
	}

	records, err := h.log.ForTask(ctx, query.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading events for task %s: %w", query.TaskID, err)
	}
	return &GetTaskEventsResponse{TaskID: query.TaskID, Events: records}, nil
}
