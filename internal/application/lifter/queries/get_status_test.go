package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/plc"
	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/lifter"
	"github.com/fleetworks/wcs-go/internal/application/lifter/queries"
	domainLifter "github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

func newStatusFixture(t *testing.T) (*queries.GetLifterStatusHandler, *state.LifterStateStore) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	store := state.NewLifterStateStore(kv, clock)
	sim := plc.NewSimulator([]int{1, 2}, 2, 0, clock)
	t.Cleanup(func() { _ = sim.Close() })
	coordinator := lifter.NewCoordinator(store, sim, nil, clock, []int{1, 2})
	return queries.NewGetLifterStatusHandler(coordinator), store
}

func TestGetLifterStatusHandler_ReportsTowerStateAndQueueDepth(t *testing.T) {
	// Arrange
	handler, store := newStatusFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SaveStatus(ctx, &domainLifter.Lifter{
		ID: "LIFTER_1", CurrentFloor: 2, Status: domainLifter.StatusIdle,
	}))
	require.NoError(t, store.Enqueue(ctx, &domainLifter.QueueEntry{
		VehicleID: "SH-01", FromFloor: 2, ToFloor: 1,
	}))

	// Act
	resp, err := handler.Handle(ctx, &queries.GetLifterStatusQuery{})

	// Assert
	require.NoError(t, err)
	status, ok := resp.(*queries.GetLifterStatusResponse)
	require.True(t, ok)
	assert.Equal(t, "LIFTER_1", status.ID)
	assert.Equal(t, 2, status.CurrentFloor)
	assert.Equal(t, "IDLE", status.Status)
	assert.Equal(t, 1, status.QueueLen)
	assert.False(t, status.UpdatedAt.IsZero())
}

func TestGetLifterStatusHandler_SynthesizesColdStateFromSensors(t *testing.T) {
	// Arrange: nothing cached; the cage is parked at floor 2
	handler, _ := newStatusFixture(t)

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetLifterStatusQuery{})

	// Assert
	require.NoError(t, err)
	status := resp.(*queries.GetLifterStatusResponse)
	assert.Equal(t, "LIFTER_1", status.ID)
	assert.Equal(t, 2, status.CurrentFloor)
	assert.Equal(t, "IDLE", status.Status)
	assert.Zero(t, status.QueueLen)
}

func TestGetLifterStatusHandler_RejectsWrongRequestType(t *testing.T) {
	handler, _ := newStatusFixture(t)

	_, err := handler.Handle(context.Background(), "not a query")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
