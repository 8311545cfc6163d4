package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/fleet/queries"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

func seedMixedFleet(t *testing.T) *fleet.Registry {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	registry := fleet.NewRegistry(clock, nil)
	ctx := context.Background()

	for _, id := range []string{"SH-02", "SH-01"} {
		v, err := vehicle.New(id, vehicle.KindShuttle, 1)
		require.NoError(t, err)
		v.NodeQR = "W1:00"
		registry.Register(ctx, v)
	}
	amr, err := vehicle.New("AMR-01", vehicle.KindAMR, 2)
	require.NoError(t, err)
	amr.Battery = 91.5
	registry.Register(ctx, amr)

	registry.SetExecuting("SH-01", true)
	return registry
}

func TestListVehiclesHandler_SnapshotsFleetSortedByID(t *testing.T) {
	// Arrange
	handler := queries.NewListVehiclesHandler(seedMixedFleet(t))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.ListVehiclesQuery{})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.ListVehiclesResponse)
	require.Len(t, result.Vehicles, 3)
	assert.Equal(t, "AMR-01", result.Vehicles[0].ID)
	assert.Equal(t, "SH-01", result.Vehicles[1].ID)
	assert.Equal(t, "SH-02", result.Vehicles[2].ID)

	assert.True(t, result.Vehicles[1].Executing)
	assert.False(t, result.Vehicles[2].Executing)
	assert.Equal(t, 91.5, result.Vehicles[0].Battery)
	assert.Equal(t, string(vehicle.StatusIdle), result.Vehicles[1].Status)
}

func TestListVehiclesHandler_FiltersByKind(t *testing.T) {
	// Arrange
	handler := queries.NewListVehiclesHandler(seedMixedFleet(t))

	// Act
	resp, err := handler.Handle(context.Background(), &queries.ListVehiclesQuery{Kind: string(vehicle.KindAMR)})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.ListVehiclesResponse)
	require.Len(t, result.Vehicles, 1)
	assert.Equal(t, "AMR-01", result.Vehicles[0].ID)
	assert.Equal(t, 2, result.Vehicles[0].FloorID)
}

func TestListVehiclesHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler := queries.NewListVehiclesHandler(seedMixedFleet(t))

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
