package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/amr"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// EnqueueMoveCommand requests a free-roaming point-to-point move. The
// route is planned synchronously; execution is fire-and-forget.
type EnqueueMoveCommand struct {
	AMRID   string
	StartQR string
	EndQR   string
	FloorID int
}

// EnqueueMoveResponse echoes the task id and the planned move list
type EnqueueMoveResponse struct {
	TaskID       string   `json:"taskId"`
	MoveTaskList []string `json:"move_task_list"`
}

// EnqueueMoveHandler handles the EnqueueMove command
type EnqueueMoveHandler struct {
	executor *amr.Executor
}

// NewEnqueueMoveHandler creates a new EnqueueMoveHandler
func NewEnqueueMoveHandler(executor *amr.Executor) *EnqueueMoveHandler {
	return &EnqueueMoveHandler{executor: executor}
}

// Handle executes the EnqueueMove command
func (h *EnqueueMoveHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*EnqueueMoveCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *EnqueueMoveCommand")
	}

	ticket, err := h.executor.Enqueue(ctx, &amr.Request{
		AMRID:   cmd.AMRID,
		StartQR: cmd.StartQR,
		EndQR:   cmd.EndQR,
		FloorID: cmd.FloorID,
	})
	if err != nil {
		return nil, err
	}
	return &EnqueueMoveResponse{TaskID: ticket.TaskID, MoveTaskList: ticket.MoveTaskList}, nil
}
