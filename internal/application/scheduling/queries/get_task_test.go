package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/scheduling/queries"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

func newTaskStore(t *testing.T) *state.TaskQueueStore {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	return state.NewTaskQueueStore(state.NewKV(clock), clock)
}

func registerTask(t *testing.T, tasks *state.TaskQueueStore, id string, seq int64) *task.Task {
	t.Helper()
	tk, err := task.New(id, seq, "W1:00", 1, "W1:04", 1, time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, tasks.Register(context.Background(), tk))
	return tk
}

func TestGetTaskHandler_ReturnsTaskRecord(t *testing.T) {
	// Arrange
	tasks := newTaskStore(t)
	tk := registerTask(t, tasks, "T-1", 1)
	tk.BatchID = "batch-7"
	tk.ItemInfo = "SKU 4711"
	require.NoError(t, tasks.Save(context.Background(), tk))
	handler := queries.NewGetTaskHandler(tasks)

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetTaskQuery{TaskID: "T-1"})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.GetTaskResponse)
	assert.Equal(t, "T-1", result.Task.ID)
	assert.Equal(t, int64(1), result.Task.Seq)
	assert.Equal(t, "W1:00", result.Task.SourceQR)
	assert.Equal(t, "W1:04", result.Task.DestQR)
	assert.Equal(t, "batch-7", result.Task.BatchID)
	assert.Equal(t, "SKU 4711", result.Task.ItemInfo)
	assert.Equal(t, string(task.StatusPending), result.Task.Status)
}

func TestGetTaskHandler_UnknownTask(t *testing.T) {
	// Arrange
	handler := queries.NewGetTaskHandler(newTaskStore(t))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetTaskQuery{TaskID: "T-404"})

	// Assert
	require.Error(t, err)
	assert.Nil(t, resp)
	var unknown *shared.UnknownTaskError
	assert.ErrorAs(t, err, &unknown)
}

func TestGetTaskHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler := queries.NewGetTaskHandler(newTaskStore(t))

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
