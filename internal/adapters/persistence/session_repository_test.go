package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/persistence"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
	"github.com/fleetworks/wcs-go/test/helpers"
)

func shuttleSession(id string) *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:        id,
		Kind:      vehicle.KindShuttle,
		FloorID:   2,
		NodeQR:    "A1:07",
		Status:    vehicle.StatusMoving,
		Carrying:  true,
		Battery:   87.5,
		TaskID:    "T-42",
		UpdatedAt: time.Date(2025, 3, 1, 7, 30, 0, 0, time.UTC),
	}
}

func TestVehicleSessionRepository_SaveAndFind(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleSessionRepository(db)

	// Act
	err := repo.Save(context.Background(), shuttleSession("SH-01"))

	// Assert
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), "SH-01")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, vehicle.KindShuttle, found.Kind)
	assert.Equal(t, 2, found.FloorID)
	assert.Equal(t, "A1:07", found.NodeQR)
	assert.Equal(t, vehicle.StatusMoving, found.Status)
	assert.True(t, found.Carrying)
	assert.InDelta(t, 87.5, found.Battery, 0.001)
	assert.Equal(t, "T-42", found.TaskID)
}

func TestVehicleSessionRepository_SaveUpsertsExistingRow(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleSessionRepository(db)
	require.NoError(t, repo.Save(context.Background(), shuttleSession("SH-01")))

	// Act: the same vehicle reports again after finishing its task.
	updated := shuttleSession("SH-01")
	updated.NodeQR = "B2:12"
	updated.Status = vehicle.StatusIdle
	updated.Carrying = false
	updated.TaskID = ""
	require.NoError(t, repo.Save(context.Background(), updated))

	// Assert: still one row, carrying the new state.
	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "B2:12", all[0].NodeQR)
	assert.Equal(t, vehicle.StatusIdle, all[0].Status)
	assert.False(t, all[0].Carrying)
	assert.Empty(t, all[0].TaskID)
}

func TestVehicleSessionRepository_FindByIDMissingIsNil(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleSessionRepository(db)

	// Act
	found, err := repo.FindByID(context.Background(), "SH-99")

	// Assert
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestVehicleSessionRepository_FindAllOrdersByVehicleID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleSessionRepository(db)
	for _, id := range []string{"SH-03", "AMR-01", "SH-01"} {
		s := shuttleSession(id)
		if id == "AMR-01" {
			s.Kind = vehicle.KindAMR
			s.NodeQR = ""
			s.X, s.Y = 12.5, 4.25
		}
		require.NoError(t, repo.Save(context.Background(), s))
	}

	// Act
	all, err := repo.FindAll(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "AMR-01", all[0].ID)
	assert.Equal(t, "SH-01", all[1].ID)
	assert.Equal(t, "SH-03", all[2].ID)
	assert.Equal(t, vehicle.KindAMR, all[0].Kind)
	assert.InDelta(t, 12.5, all[0].X, 0.001)
}

func TestVehicleSessionRepository_Delete(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewVehicleSessionRepository(db)
	require.NoError(t, repo.Save(context.Background(), shuttleSession("SH-01")))

	// Act
	err := repo.Delete(context.Background(), "SH-01")

	// Assert
	require.NoError(t, err)
	found, err := repo.FindByID(context.Background(), "SH-01")
	require.NoError(t, err)
	assert.Nil(t, found)
}
