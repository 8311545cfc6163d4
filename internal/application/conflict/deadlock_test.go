package conflict_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/conflict"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

type deadlockFixture struct {
	detector   *conflict.DeadlockDetector
	registry   *fleet.Registry
	tasks      *state.TaskQueueStore
	occupation *state.OccupationStore
	paths      *state.PathStore
	waits      *state.WaitStateStore
	amr        *state.AMRReservationStore
	clock      *shared.MockClock

	mu        sync.Mutex
	replanned []string
}

func newDeadlockFixture(t *testing.T) *deadlockFixture {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	f := &deadlockFixture{
		registry:   fleet.NewRegistry(clock, nil),
		tasks:      state.NewTaskQueueStore(kv, clock),
		occupation: state.NewOccupationStore(kv, 5*time.Minute),
		paths:      state.NewPathStore(kv, clock, 10*time.Minute),
		waits:      state.NewWaitStateStore(kv),
		amr:        state.NewAMRReservationStore(kv),
		clock:      clock,
	}
	f.detector = conflict.NewDeadlockDetector(
		f.registry, f.tasks, f.occupation, f.paths, f.waits, events.NewBus(16), clock,
	)
	f.detector.SetReplanner(func(_ context.Context, vehicleID string) {
		f.mu.Lock()
		f.replanned = append(f.replanned, vehicleID)
		f.mu.Unlock()
	})
	return f
}

// addMover registers a vehicle in MOVING state holding heldQR with a
// declared route through the given cells.
func (f *deadlockFixture) addMover(t *testing.T, id string, carrying bool, heldQR string, route ...string) {
	t.Helper()
	ctx := context.Background()

	v := &vehicle.Vehicle{ID: id, Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: heldQR, Status: vehicle.StatusMoving, Carrying: carrying}
	f.registry.Register(ctx, v)
	require.NoError(t, f.occupation.Block(ctx, heldQR, id))

	steps := make([]path.Step, 0, len(route))
	for _, qr := range route {
		steps = append(steps, path.Step{QR: qr, Direction: floorplan.DirectionRight})
	}
	require.NoError(t, f.paths.SavePath(ctx, id, path.New(id, 1, steps), domainState.PathMetadata{IsCarrying: carrying}))
}

func (f *deadlockFixture) replannedVehicles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.replanned...)
}

func TestDeadlockDetector_BreaksTwoVehicleCycle(t *testing.T) {
	// Arrange: SH-01 holds A1:01 and wants A1:02; SH-02 holds A1:02 and
	// wants A1:01. SH-01 carries a box, so SH-02 is the victim.
	f := newDeadlockFixture(t)
	ctx := context.Background()
	f.addMover(t, "SH-01", true, "A1:01", "A1:02")
	f.addMover(t, "SH-02", false, "A1:02", "A1:01")

	// Act
	f.detector.Scan(ctx)

	// Assert
	occupied, err := f.occupation.GetAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, occupied, "A1:02", "victim's cell is released")
	assert.Equal(t, "SH-01", occupied["A1:01"], "winner keeps its claim")

	_, stillCached, err := f.paths.GetPath(ctx, "SH-02")
	require.NoError(t, err)
	assert.False(t, stillCached, "victim's path is dropped")
	_, winnerCached, err := f.paths.GetPath(ctx, "SH-01")
	require.NoError(t, err)
	assert.True(t, winnerCached)

	assert.Equal(t, []string{"SH-02"}, f.replannedVehicles())
}

func TestDeadlockDetector_NoCycleNoAction(t *testing.T) {
	// Arrange: SH-01 waits on SH-02, but SH-02's route is clear. A chain,
	// not a loop.
	f := newDeadlockFixture(t)
	ctx := context.Background()
	f.addMover(t, "SH-01", false, "A1:01", "A1:02")
	f.addMover(t, "SH-02", false, "A1:02", "A1:03")

	// Act
	f.detector.Scan(ctx)

	// Assert
	occupied, err := f.occupation.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, occupied, 2, "nothing is released without a cycle")
	assert.Empty(t, f.replannedVehicles())
}

func TestDeadlockDetector_IdleVehiclesAreNotGraphMembers(t *testing.T) {
	// Arrange: same mutual block, but SH-02 is parked IDLE, not en route.
	f := newDeadlockFixture(t)
	ctx := context.Background()
	f.addMover(t, "SH-01", false, "A1:01", "A1:02")
	f.addMover(t, "SH-02", false, "A1:02", "A1:01")
	_, err := f.registry.Update(ctx, "SH-02", func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusIdle
	})
	require.NoError(t, err)

	// Act
	f.detector.Scan(ctx)

	// Assert: SH-01 waits on an idle blocker; that is congestion for the
	// conflict resolver, not a deadlock.
	occupied, err := f.occupation.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, occupied, 2)
	assert.Empty(t, f.replannedVehicles())
}

func TestDeadlockDetector_CycleSpanningShuttleAndAMR(t *testing.T) {
	// Arrange: the shuttle holds a grid cell the AMR wants; the AMR holds
	// a free-roaming reservation on the shuttle's next cell.
	f := newDeadlockFixture(t)
	f.detector.SetAMRReservations(f.amr)
	ctx := context.Background()

	f.addMover(t, "SH-01", false, "A1:01", "A1:02")
	require.NoError(t, f.amr.ReserveNode(ctx, "A1:02", "AMR-01", 5*time.Minute))
	require.NoError(t, f.amr.SavePath(ctx, "AMR-01", []string{"A1:02", "A1:01"}, 5*time.Minute))
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "AMR-01", Kind: vehicle.KindAMR, FloorID: 1, NodeQR: "A1:02", Status: vehicle.StatusMoving,
	})

	// Act
	f.detector.Scan(ctx)

	// Assert: both empty and seq 0, so the ID tie-break makes AMR-01 the
	// victim; its holds and path are cleared.
	held, err := f.amr.HeldNodes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, held, "A1:02")
	_, stillCached, err := f.amr.Path(ctx, "AMR-01")
	require.NoError(t, err)
	assert.False(t, stillCached)
	assert.Equal(t, []string{"AMR-01"}, f.replannedVehicles())
}

func TestDeadlockDetector_ThreeVehicleRing(t *testing.T) {
	// Arrange: A -> B -> C -> A. SH-02 and SH-03 carry, SH-01 does not.
	f := newDeadlockFixture(t)
	ctx := context.Background()
	f.addMover(t, "SH-01", false, "A1:01", "A1:02")
	f.addMover(t, "SH-02", true, "A1:02", "A1:03")
	f.addMover(t, "SH-03", true, "A1:03", "A1:01")

	// Act
	f.detector.Scan(ctx)

	// Assert
	occupied, err := f.occupation.GetAll(ctx)
	require.NoError(t, err)
	assert.NotContains(t, occupied, "A1:01")
	assert.Contains(t, occupied, "A1:02")
	assert.Contains(t, occupied, "A1:03")
	assert.Equal(t, []string{"SH-01"}, f.replannedVehicles())
}

func TestDeadlockDetector_SelfBlockIsNotADeadlock(t *testing.T) {
	// Arrange: a vehicle whose declared path runs through its own held
	// cell must not edge to itself.
	f := newDeadlockFixture(t)
	ctx := context.Background()
	f.addMover(t, "SH-01", false, "A1:01", "A1:01", "A1:02")

	// Act
	f.detector.Scan(ctx)

	// Assert
	occupied, err := f.occupation.GetAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, occupied, "A1:01")
	assert.Empty(t, f.replannedVehicles())
}
