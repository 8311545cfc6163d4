package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// GetTaskQuery looks up one task record
type GetTaskQuery struct {
	TaskID string
}

// TaskDTO is the outward shape of a task record
type TaskDTO struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	SourceQR    string    `json:"sourceQr"`
	SourceFloor int       `json:"sourceFloor"`
	DestQR      string    `json:"destQr,omitempty"`
	DestFloor   int       `json:"destFloor,omitempty"`
	Row         int       `json:"row,omitempty"`
	BatchID     string    `json:"batchId,omitempty"`
	PalletType  string    `json:"palletType,omitempty"`
	ItemInfo    string    `json:"itemInfo,omitempty"`
	Status      string    `json:"status"`
	VehicleID   string    `json:"vehicleId,omitempty"`
	RetryCount  int       `json:"retryCount"`
	FailReason  string    `json:"failReason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	AssignedAt  time.Time `json:"assignedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// GetTaskResponse wraps the record
type GetTaskResponse struct {
	Task *TaskDTO `json:"task"`
}

// GetTaskHandler handles the GetTask query
type GetTaskHandler struct {
	tasks domainState.TaskQueueStore
}

// NewGetTaskHandler creates a new GetTaskHandler
func NewGetTaskHandler(tasks domainState.TaskQueueStore) *GetTaskHandler {
	return &GetTaskHandler{tasks: tasks}
}

// Handle executes the GetTask query
func (h *GetTaskHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*GetTaskQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetTaskQuery")
	}

	t, found, err := h.tasks.Get(ctx, query.TaskID)
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", query.TaskID, err)
	}
	if !found {
		return nil, shared.NewUnknownTaskError(query.TaskID)
	}
	return &GetTaskResponse{Task: toDTO(t)}, nil
}

func toDTO(t *task.Task) *TaskDTO {
	return &TaskDTO{
		ID:          t.ID,
		Seq:         t.Seq,
		SourceQR:    t.SourceQR,
		SourceFloor: t.SourceFloor,
		DestQR:      t.DestQR,
		DestFloor:   t.DestFloor,
		Row:         t.Row,
		BatchID:     t.BatchID,
		PalletType:  t.PalletType,
		ItemInfo:    t.ItemInfo,
		Status:      string(t.Status),
		VehicleID:   t.VehicleID,
		RetryCount:  t.RetryCount,
		FailReason:  t.FailReason,
		CreatedAt:   t.CreatedAt,
		AssignedAt:  t.AssignedAt,
		CompletedAt: t.CompletedAt,
	}
}
