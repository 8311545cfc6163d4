package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/persistence"
	"github.com/fleetworks/wcs-go/internal/application/scheduling/queries"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/test/helpers"
)

func TestGetTaskEventsHandler_ReturnsHistoryInOrder(t *testing.T) {
	// Arrange
	eventLog := persistence.NewTaskEventRepository(helpers.NewTestDB(t))
	handler := queries.NewGetTaskEventsHandler(eventLog)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	require.NoError(t, eventLog.Append(ctx, &task.EventRecord{
		TaskID: "T-1", VehicleID: "SH-01", Type: "PICKUP_COMPLETE", OccurredAt: at,
	}))
	require.NoError(t, eventLog.Append(ctx, &task.EventRecord{
		TaskID: "T-1", VehicleID: "SH-01", Type: "TASK_COMPLETE", OccurredAt: at.Add(time.Minute),
	}))
	require.NoError(t, eventLog.Append(ctx, &task.EventRecord{
		TaskID: "T-2", VehicleID: "SH-02", Type: "YIELD", OccurredAt: at,
	}))

	// Act
	resp, err := handler.Handle(ctx, &queries.GetTaskEventsQuery{TaskID: "T-1"})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.GetTaskEventsResponse)
	assert.Equal(t, "T-1", result.TaskID)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "PICKUP_COMPLETE", result.Events[0].Type)
	assert.Equal(t, "TASK_COMPLETE", result.Events[1].Type)
}

func TestGetTaskEventsHandler_EmptyHistoryIsNotAnError(t *testing.T) {
	// Arrange
	handler := queries.NewGetTaskEventsHandler(persistence.NewTaskEventRepository(helpers.NewTestDB(t)))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetTaskEventsQuery{TaskID: "T-9"})

	// Assert
	require.NoError(t, err)
	assert.Empty(t, resp.(*queries.GetTaskEventsResponse).Events)
}

func TestGetTaskEventsHandler_RequiresTaskID(t *testing.T) {
	// Arrange
	handler := queries.NewGetTaskEventsHandler(persistence.NewTaskEventRepository(helpers.NewTestDB(t)))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetTaskEventsQuery{})

	// Assert
	require.Error(t, err)
	assert.Nil(t, resp)
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "taskId", vErr.Field)
}

func TestGetTaskEventsHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler := queries.NewGetTaskEventsHandler(persistence.NewTaskEventRepository(helpers.NewTestDB(t)))

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
