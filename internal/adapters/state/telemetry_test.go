package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

func TestTelemetry_SaveAndLoad(t *testing.T) {
	store := state.NewTelemetryStore(state.NewKV(shared.NewMockClock(time.Time{})))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "AMR-01", "battery", `{"level":87}`))

	v, ok, err := store.Load(ctx, "AMR-01", "battery")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"level":87}`, v)
}

func TestTelemetry_LoadAllGroupsByKind(t *testing.T) {
	store := state.NewTelemetryStore(state.NewKV(shared.NewMockClock(time.Time{})))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "AMR-01", "battery", `{"level":87}`))
	require.NoError(t, store.Save(ctx, "AMR-01", "position", `{"x":3.5,"y":1.0}`))
	require.NoError(t, store.Save(ctx, "AMR-02", "battery", `{"level":40}`))

	all, err := store.LoadAll(ctx, "AMR-01")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"battery":  `{"level":87}`,
		"position": `{"x":3.5,"y":1.0}`,
	}, all)
}

func TestTelemetry_StaleReportsExpire(t *testing.T) {
	clock := shared.NewMockClock(time.Time{})
	store := state.NewTelemetryStore(state.NewKV(clock))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "AMR-01", "battery", `{"level":87}`))

	clock.Advance(state.TelemetryTTL + time.Second)

	_, ok, err := store.Load(ctx, "AMR-01", "battery")
	require.NoError(t, err)
	assert.False(t, ok)
	all, err := store.LoadAll(ctx, "AMR-01")
	require.NoError(t, err)
	assert.Empty(t, all)
}
