package state_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

func newPathFixture(t *testing.T) (*state.PathStore, *state.KV, *shared.MockClock) {
	t.Helper()
	clock := shared.NewMockClock(time.Time{})
	kv := state.NewKV(clock)
	return state.NewPathStore(kv, clock, 10*time.Minute), kv, clock
}

func twoStepPath(vehicleID string) *path.Path {
	return path.New(vehicleID, 1, []path.Step{
		{QR: "A1:01", Direction: floorplan.DirectionRight, Action: path.ActionNone},
		{QR: "A1:02", Direction: floorplan.DirectionRight, Action: path.ActionDropOff},
	})
}

func TestPathStore_SaveAndGetRoundTrip(t *testing.T) {
	// Arrange
	store, _, clock := newPathFixture(t)
	ctx := context.Background()

	// Act
	err := store.SavePath(ctx, "SH-01", twoStepPath("SH-01"), domainState.PathMetadata{
		IsCarrying: true,
		Priority:   1_000_000_042,
	})
	require.NoError(t, err)

	// Assert
	ap, ok, err := store.GetPath(ctx, "SH-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SH-01", ap.VehicleID)
	assert.Equal(t, []string{"A1:01", "A1:02"}, ap.Path.NodeQRs())
	assert.True(t, ap.Metadata.IsCarrying)
	assert.Equal(t, int64(1_000_000_042), ap.Metadata.Priority)
	assert.Equal(t, 10*time.Minute, ap.Metadata.TTL)
	assert.Equal(t, clock.Now(), ap.Metadata.SavedAt)
}

func TestPathStore_SaveRejectsNilPath(t *testing.T) {
	store, _, _ := newPathFixture(t)

	err := store.SavePath(context.Background(), "SH-01", nil, domainState.PathMetadata{})

	require.Error(t, err)
}

func TestPathStore_DeleteRemovesBothEntries(t *testing.T) {
	store, _, _ := newPathFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SavePath(ctx, "SH-01", twoStepPath("SH-01"), domainState.PathMetadata{}))

	require.NoError(t, store.DeletePath(ctx, "SH-01"))

	_, ok, err := store.GetPath(ctx, "SH-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPathStore_GetAllActivePaths(t *testing.T) {
	store, _, _ := newPathFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SavePath(ctx, "SH-01", twoStepPath("SH-01"), domainState.PathMetadata{}))
	require.NoError(t, store.SavePath(ctx, "SH-02", twoStepPath("SH-02"), domainState.PathMetadata{IsCarrying: true}))

	all, err := store.GetAllActivePaths(ctx)

	require.NoError(t, err)
	require.Len(t, all, 2)
	byVehicle := map[string]domainState.ActivePath{}
	for _, ap := range all {
		byVehicle[ap.VehicleID] = ap
	}
	assert.False(t, byVehicle["SH-01"].Metadata.IsCarrying)
	assert.True(t, byVehicle["SH-02"].Metadata.IsCarrying)
}

func TestPathStore_LeaseExpiryHidesPath(t *testing.T) {
	store, _, clock := newPathFixture(t)
	ctx := context.Background()
	err := store.SavePath(ctx, "SH-01", twoStepPath("SH-01"), domainState.PathMetadata{TTL: time.Minute})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	_, ok, err := store.GetPath(ctx, "SH-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPathStore_PurgeExpiredByMetadataAge(t *testing.T) {
	// Arrange - entries written with non-expiring leases, the shape the
	// purge pass exists to clean up
	store, kv, clock := newPathFixture(t)
	ctx := context.Background()

	seed := func(vehicleID string, ttl time.Duration) {
		pathJSON, err := json.Marshal(twoStepPath(vehicleID))
		require.NoError(t, err)
		metaJSON, err := json.Marshal(domainState.PathMetadata{TTL: ttl, SavedAt: clock.Now()})
		require.NoError(t, err)
		kv.Set("shuttle:active_path:"+vehicleID, string(pathJSON), 0)
		kv.Set("shuttle:path_metadata:"+vehicleID, string(metaJSON), 0)
	}
	seed("SH-01", time.Minute)
	seed("SH-02", time.Hour)

	// Act - nothing is old enough yet
	clock.Advance(30 * time.Second)
	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Act - SH-01 ages past its TTL
	clock.Advance(45 * time.Second)
	n, err = store.PurgeExpired(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ := store.GetPath(ctx, "SH-01")
	assert.False(t, ok)
	_, ok, _ = store.GetPath(ctx, "SH-02")
	assert.True(t, ok)
}

func TestPathStore_PurgeExpiredDropsMalformedMetadata(t *testing.T) {
	store, kv, _ := newPathFixture(t)
	ctx := context.Background()

	kv.Set("shuttle:active_path:SH-01", `{"vehicleId":"SH-01","floorId":1,"steps":[]}`, 0)
	kv.Set("shuttle:path_metadata:SH-01", "{not json", 0)

	n, err := store.PurgeExpired(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, _ := store.GetPath(ctx, "SH-01")
	assert.False(t, ok)
}
