package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

func newTrackerFixture(t *testing.T) (*events.Bus, *fleet.Registry) {
	t.Helper()
	bus := events.NewBus(16)
	registry := fleet.NewRegistry(nil, nil)
	fleet.NewTracker(bus, registry).Register()

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-bus.Done()
	})
	return bus, registry
}

func TestTracker_SnapshotRefreshesSession(t *testing.T) {
	// Arrange
	bus, registry := newTrackerFixture(t)
	registry.Register(context.Background(), idleShuttle("SH-01", 1, "A1:01"))

	// Act
	bus.Publish(events.Event{
		Type:      events.TypeVehicleInfo,
		VehicleID: "SH-01",
		FloorID:   2,
		NodeQR:    "B2:09",
		Payload: map[string]interface{}{
			"x":        4.5,
			"y":        1.5,
			"battery":  63.0,
			"carrying": true,
			"status":   "MOVING",
		},
	})

	// Assert
	require.Eventually(t, func() bool {
		v, ok := registry.Get("SH-01")
		return ok && v.NodeQR == "B2:09"
	}, 2*time.Second, 10*time.Millisecond)

	v, _ := registry.Get("SH-01")
	assert.Equal(t, 2, v.FloorID)
	assert.InDelta(t, 4.5, v.X, 0.001)
	assert.InDelta(t, 1.5, v.Y, 0.001)
	assert.InDelta(t, 63.0, v.Battery, 0.001)
	assert.True(t, v.Carrying)
	assert.Equal(t, vehicle.StatusMoving, v.Status)
}

func TestTracker_SnapshotForUnknownVehicleIsDropped(t *testing.T) {
	// Arrange
	bus, registry := newTrackerFixture(t)

	// Act: no registration happened, so the snapshot must not create one.
	bus.Publish(events.Event{
		Type:      events.TypeVehicleInfo,
		VehicleID: "SH-77",
		NodeQR:    "A1:05",
	})
	bus.Publish(events.Event{Type: events.TypeShuttleMoved, VehicleID: "sync"})

	// Assert: wait for the queue to drain past both events.
	require.Eventually(t, func() bool {
		_, ok := registry.Get("SH-77")
		return !ok
	}, time.Second, 10*time.Millisecond)
	_, ok := registry.Get("SH-77")
	assert.False(t, ok)
}

func TestTracker_UnknownStatusStringLeavesStatusUntouched(t *testing.T) {
	// Arrange
	bus, registry := newTrackerFixture(t)
	registry.Register(context.Background(), idleShuttle("SH-01", 1, "A1:01"))

	// Act
	bus.Publish(events.Event{
		Type:      events.TypeVehicleInfo,
		VehicleID: "SH-01",
		NodeQR:    "A1:02",
		Payload:   map[string]interface{}{"status": "WARP_SPEED"},
	})

	// Assert
	require.Eventually(t, func() bool {
		v, _ := registry.Get("SH-01")
		return v.NodeQR == "A1:02"
	}, 2*time.Second, 10*time.Millisecond)
	v, _ := registry.Get("SH-01")
	assert.Equal(t, vehicle.StatusIdle, v.Status)
}

func TestTracker_ZeroBatteryReadingIsIgnored(t *testing.T) {
	// Arrange
	bus, registry := newTrackerFixture(t)
	shuttle := idleShuttle("SH-01", 1, "A1:01")
	shuttle.Battery = 55
	registry.Register(context.Background(), shuttle)

	// Act: a glitched snapshot reports battery 0.
	bus.Publish(events.Event{
		Type:      events.TypeVehicleInfo,
		VehicleID: "SH-01",
		NodeQR:    "A1:03",
		Payload:   map[string]interface{}{"battery": 0.0},
	})

	// Assert
	require.Eventually(t, func() bool {
		v, _ := registry.Get("SH-01")
		return v.NodeQR == "A1:03"
	}, 2*time.Second, 10*time.Millisecond)
	v, _ := registry.Get("SH-01")
	assert.InDelta(t, 55.0, v.Battery, 0.001)
}
