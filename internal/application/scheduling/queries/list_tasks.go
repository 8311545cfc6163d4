package queries

import (
	"context"
	"fmt"
	"sort"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// ListTasksQuery snapshots the in-flight task set and the queue depths
type ListTasksQuery struct{}

// ListTasksResponse carries processing tasks (oldest first) plus the
// pending and staging backlog sizes.
type ListTasksResponse struct {
	Processing []*TaskDTO `json:"processing"`
	Pending    int        `json:"pending"`
	Staged     int        `json:"staged"`
}

// ListTasksHandler handles the ListTasks query
type ListTasksHandler struct {
	tasks domainState.TaskQueueStore
}

// NewListTasksHandler creates a new ListTasksHandler
func NewListTasksHandler(tasks domainState.TaskQueueStore) *ListTasksHandler {
	return &ListTasksHandler{tasks: tasks}
}

// Handle executes the ListTasks query
func (h *ListTasksHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	if _, ok := request.(*ListTasksQuery); !ok {
		return nil, fmt.Errorf("invalid request type: expected *ListTasksQuery")
	}

	processing, err := h.tasks.ProcessingTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting processing tasks: %w", err)
	}
	sort.Slice(processing, func(i, j int) bool { return processing[i].Seq < processing[j].Seq })

	out := make([]*TaskDTO, len(processing))
	for i, t := range processing {
		out[i] = toDTO(t)
	}

	pending, err := h.tasks.PendingCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting pending tasks: %w", err)
	}
	staged, err := h.tasks.StagingLen(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting staged orders: %w", err)
	}

	return &ListTasksResponse{Processing: out, Pending: pending, Staged: staged}, nil
}
