package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/persistence"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
	"github.com/fleetworks/wcs-go/test/helpers"
)

func idleShuttle(id string, floorID int, nodeQR string) *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:      id,
		Kind:    vehicle.KindShuttle,
		FloorID: floorID,
		NodeQR:  nodeQR,
		Status:  vehicle.StatusIdle,
		Battery: 80,
	}
}

func TestRegistry_RegisterAndGetReturnsCopies(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	registry := fleet.NewRegistry(clock, nil)
	registry.Register(context.Background(), idleShuttle("SH-01", 1, "A1:01"))

	// Act
	got, ok := registry.Get("SH-01")

	// Assert
	require.True(t, ok)
	assert.Equal(t, clock.Now(), got.UpdatedAt)

	// Mutating the returned copy must not leak into the registry.
	got.NodeQR = "Z9:99"
	again, _ := registry.Get("SH-01")
	assert.Equal(t, "A1:01", again.NodeQR)
}

func TestRegistry_GetUnknownVehicle(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)

	// Act
	_, ok := registry.Get("SH-99")

	// Assert
	assert.False(t, ok)
}

func TestRegistry_UpdateStampsClockTime(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	registry := fleet.NewRegistry(clock, nil)
	registry.Register(context.Background(), idleShuttle("SH-01", 1, "A1:01"))
	clock.Advance(42 * time.Second)

	// Act
	updated, err := registry.Update(context.Background(), "SH-01", func(v *vehicle.Vehicle) {
		v.Carrying = true
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, updated.Carrying)
	assert.Equal(t, clock.Now(), updated.UpdatedAt)
}

func TestRegistry_UpdateUnknownVehicle(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)

	// Act
	_, err := registry.Update(context.Background(), "SH-99", func(v *vehicle.Vehicle) {})

	// Assert
	require.Error(t, err)
}

func TestRegistry_UpdatePositionMovesVehicle(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)
	registry.Register(context.Background(), idleShuttle("SH-01", 1, "A1:01"))

	// Act
	updated, err := registry.UpdatePosition(context.Background(), "SH-01", 2, "B2:07")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, updated.FloorID)
	assert.Equal(t, "B2:07", updated.NodeQR)
}

func TestRegistry_IdleShuttlesFiltersBusyAndForeignKinds(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)
	ctx := context.Background()
	registry.Register(ctx, idleShuttle("SH-01", 1, "A1:01"))

	busy := idleShuttle("SH-02", 1, "A1:02")
	busy.TaskID = "T-1"
	registry.Register(ctx, busy)

	faulted := idleShuttle("SH-03", 1, "A1:03")
	faulted.Status = vehicle.StatusError
	registry.Register(ctx, faulted)

	amr := idleShuttle("AMR-01", 1, "")
	amr.Kind = vehicle.KindAMR
	registry.Register(ctx, amr)

	// Act
	idle := registry.IdleShuttles()

	// Assert
	require.Len(t, idle, 1)
	assert.Equal(t, "SH-01", idle[0].ID)
}

func TestRegistry_ActiveShuttleCountExcludesFaulted(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)
	ctx := context.Background()
	registry.Register(ctx, idleShuttle("SH-01", 1, "A1:01"))
	busy := idleShuttle("SH-02", 1, "A1:02")
	busy.TaskID = "T-1"
	registry.Register(ctx, busy)
	faulted := idleShuttle("SH-03", 1, "A1:03")
	faulted.Status = vehicle.StatusError
	registry.Register(ctx, faulted)

	// Act / Assert: busy still counts as active, faulted does not.
	assert.Equal(t, 2, registry.ActiveShuttleCount())
}

func TestRegistry_ExecutingModeMembership(t *testing.T) {
	// Arrange
	registry := fleet.NewRegistry(nil, nil)

	// Act
	registry.SetExecuting("SH-01", true)

	// Assert
	assert.True(t, registry.IsExecuting("SH-01"))
	assert.False(t, registry.IsExecuting("SH-02"))

	registry.SetExecuting("SH-01", false)
	assert.False(t, registry.IsExecuting("SH-01"))
}

func TestRegistry_SessionsSurviveRestart(t *testing.T) {
	// Arrange: first controller run registers two vehicles.
	db := helpers.NewTestDB(t)
	sessions := persistence.NewVehicleSessionRepository(db)
	ctx := context.Background()

	first := fleet.NewRegistry(nil, sessions)
	first.Register(ctx, idleShuttle("SH-01", 1, "A1:01"))
	carrying := idleShuttle("SH-02", 2, "B2:05")
	carrying.Carrying = true
	carrying.TaskID = "T-7"
	first.Register(ctx, carrying)

	// Act: a fresh registry restores from the same store.
	second := fleet.NewRegistry(nil, sessions)
	restored, err := second.Restore(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	got, ok := second.Get("SH-02")
	require.True(t, ok)
	assert.True(t, got.Carrying)
	assert.Equal(t, "T-7", got.TaskID)
}
