package amr_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/api"
	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/amr"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

type pollerFixture struct {
	poller    *amr.Poller
	client    *api.MockAMRClient
	telemetry *state.TelemetryStore
	registry  *fleet.Registry
}

// newPollerFixture starts the endpoint loops against the simulated
// vendor client and stops them on cleanup.
func newPollerFixture(t *testing.T, amrID string) *pollerFixture {
	t.Helper()

	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	telemetry := state.NewTelemetryStore(kv)
	registry := fleet.NewRegistry(clock, nil)
	client := api.NewMockAMRClient(aislePlan(t))

	poller := amr.NewPoller(amrID, client, telemetry, registry, clock)
	poller.Start()
	t.Cleanup(poller.Stop)

	return &pollerFixture{
		poller:    poller,
		client:    client,
		telemetry: telemetry,
		registry:  registry,
	}
}

func TestPoller_RegistersVehicleFromLocationPoll(t *testing.T) {
	// Arrange
	f := newPollerFixture(t, "AMR-01")
	f.client.AddUnit("AMR-01", 1, "W1:02")
	ctx := context.Background()

	// Assert: the first location tick seeds the registry
	require.Eventually(t, func() bool {
		_, ok := f.registry.Get("AMR-01")
		return ok
	}, 3*time.Second, 50*time.Millisecond)

	veh, _ := f.registry.Get("AMR-01")
	assert.Equal(t, vehicle.KindAMR, veh.Kind)
	assert.Equal(t, 1, veh.FloorID)
	assert.Equal(t, "W1:02", veh.NodeQR)
	assert.Equal(t, float64(2), veh.X)

	raw, ok, err := f.telemetry.Load(ctx, "AMR-01", amr.KindLocation)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"NodeQR":"W1:02"`)
}

func TestPoller_MirrorsMovingUnitIntoRegistry(t *testing.T) {
	// Arrange: the simulated unit walks one node per location poll
	f := newPollerFixture(t, "AMR-01")
	f.client.AddUnit("AMR-01", 1, "W1:00")
	require.NoError(t, f.client.SendMoveTask(context.Background(), "AMR-01", &common.AMRMoveTask{
		TaskID:       "T-walk",
		AMRID:        "AMR-01",
		MoveTaskList: []string{"W1:01", "W1:02"},
		StartQR:      "W1:00",
		EndQR:        "W1:02",
		FloorID:      1,
	}))

	// Assert
	require.Eventually(t, func() bool {
		veh, ok := f.registry.Get("AMR-01")
		return ok && veh.NodeQR == "W1:02"
	}, 5*time.Second, 50*time.Millisecond, "registry never caught up with the walking unit")

	veh, _ := f.registry.Get("AMR-01")
	assert.Equal(t, float64(2), veh.X)
}

func TestPoller_CachesEveryReportKind(t *testing.T) {
	// Arrange
	f := newPollerFixture(t, "AMR-01")
	f.client.AddUnit("AMR-01", 1, "W1:00")
	ctx := context.Background()

	// Assert: all five endpoints land in the cache; battery is the
	// slowest cadence at five seconds.
	require.Eventually(t, func() bool {
		cached, err := f.telemetry.LoadAll(ctx, "AMR-01")
		return err == nil && len(cached) == 5
	}, 8*time.Second, 100*time.Millisecond, "not every report kind was cached")

	cached, err := f.telemetry.LoadAll(ctx, "AMR-01")
	require.NoError(t, err)

	var batt common.AMRBattery
	require.NoError(t, json.Unmarshal([]byte(cached[amr.KindBattery]), &batt))
	assert.Greater(t, batt.Percent, float64(0))

	var cargo common.AMRCargo
	require.NoError(t, json.Unmarshal([]byte(cached[amr.KindCargo]), &cargo))
	assert.False(t, cargo.Loaded)

	var st common.AMRStatus
	require.NoError(t, json.Unmarshal([]byte(cached[amr.KindStatus]), &st))
	assert.Equal(t, "IDLE", st.State)

	var sens common.AMRSensors
	require.NoError(t, json.Unmarshal([]byte(cached[amr.KindSensors]), &sens))
	assert.True(t, sens.LidarHealthy)

	// The battery level is mirrored onto the registry entry
	veh, ok := f.registry.Get("AMR-01")
	require.True(t, ok)
	assert.Greater(t, veh.Battery, float64(0))
}
