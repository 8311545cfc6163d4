package commands_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/plc"
	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/lifter"
	"github.com/fleetworks/wcs-go/internal/application/lifter/commands"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// newLifterFixture builds a coordinator against the PLC simulator with
// the cage parked at startFloor. The processor loop stays stopped.
func newLifterFixture(t *testing.T, startFloor int) (*lifter.Coordinator, *state.LifterStateStore) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	store := state.NewLifterStateStore(kv, clock)
	sim := plc.NewSimulator([]int{1, 2}, startFloor, 0, clock)
	t.Cleanup(func() { _ = sim.Close() })
	return lifter.NewCoordinator(store, sim, nil, clock, []int{1, 2}), store
}

func TestRequestTripHandler_QueuesTripForVehicle(t *testing.T) {
	// Arrange
	coordinator, store := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)
	ctx := context.Background()

	// Act
	resp, err := handler.Handle(ctx, &commands.RequestTripCommand{
		VehicleID: "SH-01", TaskID: "T-7", FromFloor: 1, ToFloor: 2, EntryQR: "L1:00",
	})

	// Assert
	require.NoError(t, err)
	trip, ok := resp.(*commands.RequestTripResponse)
	require.True(t, ok)
	assert.NotEmpty(t, trip.TripID)
	assert.Equal(t, 1, trip.Position)

	queued, ok, err := store.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SH-01", queued.VehicleID)
	assert.Equal(t, "T-7", queued.TaskID)
	assert.Equal(t, 1, queued.FromFloor)
	assert.Equal(t, 2, queued.ToFloor)
	assert.Equal(t, "L1:00", queued.EntryQR)
	assert.False(t, queued.Boarded)
}

func TestRequestTripHandler_PositionGrowsWithQueueDepth(t *testing.T) {
	// Arrange
	coordinator, _ := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)
	ctx := context.Background()

	// Act
	_, err := handler.Handle(ctx, &commands.RequestTripCommand{VehicleID: "SH-01", FromFloor: 1, ToFloor: 2})
	require.NoError(t, err)
	resp, err := handler.Handle(ctx, &commands.RequestTripCommand{VehicleID: "SH-02", FromFloor: 2, ToFloor: 1})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, resp.(*commands.RequestTripResponse).Position)
}

func TestRequestTripHandler_RejectsSameFloorTrip(t *testing.T) {
	coordinator, _ := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)

	_, err := handler.Handle(context.Background(), &commands.RequestTripCommand{
		VehicleID: "SH-01", FromFloor: 2, ToFloor: 2,
	})

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "toFloor", verr.Field)
}

func TestRequestTripHandler_RejectsForeignLifterID(t *testing.T) {
	coordinator, _ := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)

	_, err := handler.Handle(context.Background(), &commands.RequestTripCommand{
		LifterID: "LIFTER_9", VehicleID: "SH-01", FromFloor: 1, ToFloor: 2,
	})

	var uerr *shared.UnknownVehicleError
	require.ErrorAs(t, err, &uerr)
}

func TestRequestTripHandler_AcceptsMatchingLifterID(t *testing.T) {
	coordinator, store := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)
	ctx := context.Background()

	_, err := handler.Handle(ctx, &commands.RequestTripCommand{
		LifterID: "LIFTER_1", VehicleID: "SH-01", FromFloor: 1, ToFloor: 2,
	})

	require.NoError(t, err)
	depth, err := store.QueueLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestRequestTripHandler_RejectsWrongRequestType(t *testing.T) {
	coordinator, _ := newLifterFixture(t, 1)
	handler := commands.NewRequestTripHandler(coordinator)

	_, err := handler.Handle(context.Background(), &commands.CompleteTripCommand{TaskID: "T-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
