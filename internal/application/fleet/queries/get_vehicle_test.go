package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/fleet/queries"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

func newVehicleQueryFixture(t *testing.T) (*fleet.Registry, *state.TaskQueueStore, *queries.GetVehicleHandler) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	registry := fleet.NewRegistry(clock, nil)
	tasks := state.NewTaskQueueStore(state.NewKV(clock), clock)
	return registry, tasks, queries.NewGetVehicleHandler(registry, tasks)
}

func addShuttle(t *testing.T, registry *fleet.Registry, id, nodeQR string) {
	t.Helper()
	v, err := vehicle.New(id, vehicle.KindShuttle, 1)
	require.NoError(t, err)
	v.NodeQR = nodeQR
	registry.Register(context.Background(), v)
}

func TestGetVehicleHandler_ReturnsVehicleWithActiveTask(t *testing.T) {
	// Arrange
	registry, tasks, handler := newVehicleQueryFixture(t)
	ctx := context.Background()
	addShuttle(t, registry, "SH-01", "W1:02")

	tk, err := task.New("T-1", 1, "W1:00", 1, "W1:04", 1, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, tasks.Register(ctx, tk))
	_, err = tasks.UpdateStatus(ctx, "T-1", task.StatusAssigned, "SH-01")
	require.NoError(t, err)

	// Act
	resp, err := handler.Handle(ctx, &queries.GetVehicleQuery{VehicleID: "SH-01"})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.GetVehicleResponse)
	assert.Equal(t, "SH-01", result.Vehicle.ID)
	assert.Equal(t, "W1:02", result.Vehicle.NodeQR)
	assert.Equal(t, "T-1", result.TaskID)
	assert.Equal(t, string(task.StatusAssigned), result.TaskStatus)
}

func TestGetVehicleHandler_NoActiveTaskLeavesBindingEmpty(t *testing.T) {
	// Arrange
	registry, _, handler := newVehicleQueryFixture(t)
	addShuttle(t, registry, "SH-01", "W1:02")

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetVehicleQuery{VehicleID: "SH-01"})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.GetVehicleResponse)
	assert.Empty(t, result.TaskID)
	assert.Empty(t, result.TaskStatus)
}

func TestGetVehicleHandler_UnknownVehicle(t *testing.T) {
	// Arrange
	_, _, handler := newVehicleQueryFixture(t)

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetVehicleQuery{VehicleID: "SH-404"})

	// Assert
	require.Error(t, err)
	assert.Nil(t, resp)
	var unknown *shared.UnknownVehicleError
	assert.ErrorAs(t, err, &unknown)
}

func TestGetVehicleHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	_, _, handler := newVehicleQueryFixture(t)

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
