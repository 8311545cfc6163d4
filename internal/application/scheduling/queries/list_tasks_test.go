package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/application/scheduling/queries"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

func TestListTasksHandler_SnapshotsQueueState(t *testing.T) {
	// Arrange: two tasks in flight, one still pending, one staged order
	tasks := newTaskStore(t)
	ctx := context.Background()
	registerTask(t, tasks, "T-3", 3)
	registerTask(t, tasks, "T-1", 1)
	registerTask(t, tasks, "T-2", 2)

	_, err := tasks.UpdateStatus(ctx, "T-3", task.StatusAssigned, "SH-02")
	require.NoError(t, err)
	_, err = tasks.UpdateStatus(ctx, "T-1", task.StatusAssigned, "SH-01")
	require.NoError(t, err)

	require.NoError(t, tasks.PushStaging(ctx, &domainState.StagedOrder{
		OrderID:     "O-1",
		PickupQR:    "P1:00",
		PickupFloor: 1,
		StagedAt:    time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC),
	}))

	handler := queries.NewListTasksHandler(tasks)

	// Act
	resp, err := handler.Handle(ctx, &queries.ListTasksQuery{})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.ListTasksResponse)
	require.Len(t, result.Processing, 2)
	assert.Equal(t, "T-1", result.Processing[0].ID)
	assert.Equal(t, "T-3", result.Processing[1].ID)
	assert.Equal(t, "SH-01", result.Processing[0].VehicleID)
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, 1, result.Staged)
}

func TestListTasksHandler_EmptyQueues(t *testing.T) {
	// Arrange
	handler := queries.NewListTasksHandler(newTaskStore(t))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.ListTasksQuery{})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.ListTasksResponse)
	assert.Empty(t, result.Processing)
	assert.Zero(t, result.Pending)
	assert.Zero(t, result.Staged)
}

func TestListTasksHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler := queries.NewListTasksHandler(newTaskStore(t))

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
