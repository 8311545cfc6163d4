package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	domainLifter "github.com/fleetworks/wcs-go/internal/domain/lifter"
	domainMission "github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// bindTask walks a registered task to the given status with the vehicle
// attached, mirroring what a live dispatch pass would have done.
func bindTask(t *testing.T, ctx context.Context, f *dispatchFixture, taskID, vehicleID string, status task.Status) {
	t.Helper()
	_, err := f.tasks.UpdateStatus(ctx, taskID, task.StatusAssigned, vehicleID)
	require.NoError(t, err)
	if status == task.StatusAssigned {
		return
	}
	_, err = f.tasks.UpdateStatus(ctx, taskID, status, vehicleID)
	require.NoError(t, err)
}

func TestRouter_InitializedRegistersAndClaimsCell(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleInitialized, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:00",
	})

	// Assert
	require.Eventually(t, func() bool {
		veh, ok := f.registry.Get("SH-01")
		return ok && veh.NodeQR == "W1:00"
	}, 3*time.Second, 10*time.Millisecond)

	owner, held, err := f.occupation.Owner(ctx, "W1:00")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "SH-01", owner)
	assert.True(t, f.publisher.permitted("SH-01"))
}

func TestRouter_InitializedWithoutPositionIsRejected(t *testing.T) {
	// Arrange
	f := newDispatchFixture(t, 1)

	// Act: a position-less report, then a valid one. The bus preserves
	// order, so once SH-02 appears the first report has been handled.
	f.bus.Publish(events.Event{Type: events.TypeShuttleInitialized, VehicleID: "SH-01", FloorID: 1})
	f.bus.Publish(events.Event{Type: events.TypeShuttleInitialized, VehicleID: "SH-02", FloorID: 1, NodeQR: "W1:10"})

	// Assert
	require.Eventually(t, func() bool {
		_, ok := f.registry.Get("SH-02")
		return ok
	}, 3*time.Second, 10*time.Millisecond)
	_, ok := f.registry.Get("SH-01")
	assert.False(t, ok)
}

func TestRouter_ReInitializeRefreshesPosition(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:00", 1)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleInitialized, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:01",
	})

	// Assert
	require.Eventually(t, func() bool {
		veh, ok := f.registry.Get("SH-01")
		return ok && veh.NodeQR == "W1:01"
	}, 3*time.Second, 10*time.Millisecond)
	owner, held, err := f.occupation.Owner(ctx, "W1:01")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "SH-01", owner)
}

func TestRouter_MovedHandsOverOccupation(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:00", 1)
	require.NoError(t, f.occupation.Block(ctx, "W1:00", "SH-01"))

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleMoved, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:01",
	})

	// Assert
	require.Eventually(t, func() bool {
		owner, held, err := f.occupation.Owner(ctx, "W1:01")
		return err == nil && held && owner == "SH-01"
	}, 3*time.Second, 10*time.Millisecond)

	_, held, err := f.occupation.Owner(ctx, "W1:00")
	require.NoError(t, err)
	assert.False(t, held)

	veh, ok := f.registry.Get("SH-01")
	require.True(t, ok)
	assert.Equal(t, "W1:01", veh.NodeQR)
	assert.Equal(t, vehicle.StatusMoving, veh.Status)
}

func TestRouter_MovedMaintainsRowMembership(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:00", 1)

	// Act: a rightward hop joins row 0 in left-to-right mode.
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleMoved, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:01",
	})

	// Assert
	require.Eventually(t, func() bool {
		lock, ok, err := f.rows.RowInfo(ctx, 1, 0)
		return err == nil && ok && lock.Direction == floorplan.RowDirectionLeftToRight
	}, 3*time.Second, 10*time.Millisecond)
	lock, _, err := f.rows.RowInfo(ctx, 1, 0)
	require.NoError(t, err)
	assert.Contains(t, lock.Members, "SH-01")

	// Act: the vertical hop out of the aisle drops the membership.
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleMoved, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:11",
	})

	// Assert
	require.Eventually(t, func() bool {
		_, ok, err := f.rows.RowInfo(ctx, 1, 0)
		return err == nil && !ok
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRouter_MovedReleasesClearedPickup(t *testing.T) {
	// Arrange: SH-01 loaded at the pickup and still holding its claim.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:01", 1)
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W1:12", 1)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)
	require.NoError(t, f.reservation.Acquire(ctx, state.PickupLockKey("W1:01"), "SH-01", time.Minute))

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleMoved, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:02",
	})

	// Assert
	require.Eventually(t, func() bool {
		_, held, err := f.reservation.Owner(ctx, state.PickupLockKey("W1:01"))
		return err == nil && !held
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRouter_WaitingReportReachesResolver(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:00", 1)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleWaiting, VehicleID: "SH-01", FloorID: 1, NodeQR: "W1:00",
		Payload: map[string]interface{}{"targetNode": "W1:01", "blockedBy": "SH-02"},
	})

	// Assert
	require.Eventually(t, func() bool {
		_, ok, err := f.waits.GetWaitState(ctx, "SH-01")
		return err == nil && ok
	}, 3*time.Second, 10*time.Millisecond)

	w, _, err := f.waits.GetWaitState(ctx, "SH-01")
	require.NoError(t, err)
	assert.Equal(t, "W1:00", w.WaitingAt)
	assert.Equal(t, "W1:01", w.TargetQR)
	assert.Equal(t, "SH-02", w.BlockedBy)

	veh, ok := f.registry.Get("SH-01")
	require.True(t, ok)
	assert.Equal(t, vehicle.StatusWaiting, veh.Status)
}

func TestRouter_ResumedClearsWaitState(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:00",
		Status: vehicle.StatusWaiting,
	})
	require.NoError(t, f.waits.SetWaitState(ctx, "SH-01", &domainState.WaitState{
		VehicleID: "SH-01", WaitingAt: "W1:00", TargetQR: "W1:01", StartedAt: f.clock.Now(),
	}))

	// Act
	f.bus.Publish(events.Event{Type: events.TypeShuttleResumed, VehicleID: "SH-01", NodeQR: "W1:00"})

	// Assert
	require.Eventually(t, func() bool {
		veh, ok := f.registry.Get("SH-01")
		return ok && veh.Status == vehicle.StatusMoving
	}, 3*time.Second, 10*time.Millisecond)
	_, ok, err := f.waits.GetWaitState(ctx, "SH-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouter_TaskStartedMarksInProgress(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:00", 1)
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W1:12", 1)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusAssigned)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeShuttleTaskStarted, VehicleID: "SH-01", TaskID: "T-1",
	})

	// Assert
	require.Eventually(t, func() bool {
		tk, ok, err := f.tasks.Get(ctx, "T-1")
		return err == nil && ok && tk.Status == task.StatusInProgress
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRouter_PickupCompleteStartsDropoffLeg(t *testing.T) {
	// Arrange: SH-01 stands loaded on the pickup cell.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.addShuttle(ctx, "SH-01", "W1:01", 1)
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W1:02", 1)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusAssigned)
	source, found := f.plan.FindNode("W1:01")
	require.True(t, found)
	source.HasBox = true

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypePickupComplete, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:01",
	})

	// Assert: the box left the cell, the shuttle carries it, and the
	// leg to the end node goes out.
	sent := f.awaitMission(t, 1)
	assert.Equal(t, "SH-01", sent.VehicleID)
	assert.Equal(t, domainMission.OnArrivalTaskComplete, sent.Envelope.OnArrival)
	assert.True(t, sent.Envelope.IsCarrying)
	steps, err := sent.Envelope.DecodedSteps()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, path.Step{QR: "W1:02", Direction: floorplan.DirectionRight, Action: path.ActionDropOff}, steps[0])
	f.ack("SH-01")

	assert.False(t, source.HasBox)
	veh, ok := f.registry.Get("SH-01")
	require.True(t, ok)
	assert.True(t, veh.Carrying)
	tk, _, err := f.tasks.Get(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, tk.Status)
}

func TestRouter_TaskCompleteReleasesEverything(t *testing.T) {
	// Arrange: SH-01 dropping at the end node with every lock still held.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:02",
		Status: vehicle.StatusMoving, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W1:02", 1)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)
	require.NoError(t, f.reservation.Acquire(ctx, state.PickupLockKey("W1:01"), "SH-01", time.Minute))
	require.NoError(t, f.reservation.Acquire(ctx, state.EndNodeLockKey("W1:02"), "batch-1", time.Minute))
	require.NoError(t, f.paths.SavePath(ctx, "SH-01", path.New("SH-01", 1, []path.Step{
		{QR: "W1:02", Direction: floorplan.DirectionRight, Action: path.ActionDropOff},
	}), domainState.PathMetadata{IsCarrying: true}))

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeTaskComplete, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:02",
	})

	// Assert
	require.Eventually(t, func() bool {
		tk, ok, err := f.tasks.Get(ctx, "T-1")
		return err == nil && ok && tk.Status == task.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	_, held, err := f.reservation.Owner(ctx, state.EndNodeLockKey("W1:02"))
	require.NoError(t, err)
	assert.False(t, held)
	_, held, err = f.reservation.Owner(ctx, state.PickupLockKey("W1:01"))
	require.NoError(t, err)
	assert.False(t, held)

	_, ok, err := f.paths.GetPath(ctx, "SH-01")
	require.NoError(t, err)
	assert.False(t, ok)

	veh, found := f.registry.Get("SH-01")
	require.True(t, found)
	assert.Equal(t, vehicle.StatusIdle, veh.Status)
	assert.False(t, veh.Carrying)
	assert.Empty(t, veh.TaskID)

	dest, foundNode := f.plan.FindNode("W1:02")
	require.True(t, foundNode)
	assert.True(t, dest.HasBox)
}

func TestRouter_LifterArrivedOnOtherFloorCrossesVehicle(t *testing.T) {
	// Arrange: SH-01 rode the cage; the tower reports floor 2.
	ctx := context.Background()
	f := newDispatchFixture(t, 2)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:03",
		Status: vehicle.StatusWaiting, Carrying: true,
	})
	require.NoError(t, f.occupation.Block(ctx, "W1:03", "SH-01"))
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusWaitingForLifter)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeLifterArrived, VehicleID: "SH-01", TaskID: "T-1", FloorID: 2,
	})

	// Assert: position crossed, occupation handed over, task resumed
	// and the floor-2 leg published.
	sent := f.awaitMission(t, 1)
	assert.Equal(t, domainMission.OnArrivalTaskComplete, sent.Envelope.OnArrival)
	assert.Equal(t, []string{"W2:01", "W2:02"}, sent.Envelope.Simulation)
	f.ack("SH-01")

	veh, ok := f.registry.Get("SH-01")
	require.True(t, ok)
	assert.Equal(t, 2, veh.FloorID)
	assert.Equal(t, "W2:00", veh.NodeQR)

	owner, held, err := f.occupation.Owner(ctx, "W2:00")
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "SH-01", owner)
	_, held, err = f.occupation.Owner(ctx, "W1:03")
	require.NoError(t, err)
	assert.False(t, held)

	tk, _, err := f.tasks.Get(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, tk.Status)
}

func TestRouter_LifterArrivedOnOwnFloorPlansBoardingLeg(t *testing.T) {
	// Arrange: the tower just reached SH-01's floor for pick-up.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:00",
		Status: vehicle.StatusWaiting, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeLifterArrived, VehicleID: "SH-01", TaskID: "T-1", FloorID: 1,
	})

	// Assert: the published leg runs to the handover cell.
	sent := f.awaitMission(t, 1)
	assert.Equal(t, domainMission.OnArrivalArrivedAtLifter, sent.Envelope.OnArrival)
	assert.Equal(t, []string{"W1:01", "W1:02", "W1:03"}, sent.Envelope.Simulation)
	f.ack("SH-01")
}

func TestRouter_ArrivedAtLifterQueuesBoardedTrip(t *testing.T) {
	// Arrange: SH-01 reached the handover cell before any trip was
	// queued for it.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:03",
		Status: vehicle.StatusMoving, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeArrivedAtLifter, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:03",
	})

	// Assert
	require.Eventually(t, func() bool {
		pending, err := f.lifterStore.HasPending(ctx, "SH-01")
		return err == nil && pending
	}, 3*time.Second, 10*time.Millisecond)

	entry, _, err := f.lifterStore.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "SH-01", entry.VehicleID)
	assert.Equal(t, 1, entry.FromFloor)
	assert.Equal(t, 2, entry.ToFloor)
	assert.Equal(t, "W1:03", entry.EntryQR)
	assert.True(t, entry.Boarded)

	veh, ok := f.registry.Get("SH-01")
	require.True(t, ok)
	assert.Equal(t, vehicle.StatusWaiting, veh.Status)
}

func TestRouter_ArrivedAtLifterSkipsWhenTripAlreadyHolding(t *testing.T) {
	// Arrange: the queued trip's processor already owns this boarding.
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:03",
		Status: vehicle.StatusMoving, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)
	require.NoError(t, f.lifterStore.SaveStatus(ctx, &domainLifter.Lifter{
		ID: "LIFTER_1", CurrentFloor: 1, Status: domainLifter.StatusBusy, CarriedBy: "SH-01",
	}))

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeArrivedAtLifter, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:03",
	})

	// Assert: no duplicate trip lands in the queue.
	require.Eventually(t, func() bool {
		veh, ok := f.registry.Get("SH-01")
		return ok && veh.Status == vehicle.StatusWaiting
	}, 3*time.Second, 10*time.Millisecond)
	n, err := f.lifterStore.QueueLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRouter_WaitingForLifterRestoresLostTrip(t *testing.T) {
	// Arrange: SH-01 holds short of the handover cell but no trip is
	// queued, as after a controller restart.
	ctx := context.Background()
	f := newDispatchFixture(t, 2)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:02",
		Status: vehicle.StatusMoving, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeWaitingForLifter, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:02",
	})

	// Assert
	require.Eventually(t, func() bool {
		tk, ok, err := f.tasks.Get(ctx, "T-1")
		return err == nil && ok && tk.Status == task.StatusWaitingForLifter
	}, 3*time.Second, 10*time.Millisecond)

	entry, _, err := f.lifterStore.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "SH-01", entry.VehicleID)
	assert.Equal(t, "W1:03", entry.EntryQR)
	assert.Equal(t, 2, entry.ToFloor)
	assert.False(t, entry.Boarded)
}

func TestRouter_WaitingForLifterKeepsExistingTrip(t *testing.T) {
	// Arrange: the lookahead already queued this vehicle's trip.
	ctx := context.Background()
	f := newDispatchFixture(t, 2)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:02",
		Status: vehicle.StatusMoving, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W2:02", 2)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)
	require.NoError(t, f.lifterStore.Enqueue(ctx, &domainLifter.QueueEntry{
		VehicleID: "SH-01", TaskID: "T-1", FromFloor: 1, ToFloor: 2, EntryQR: "W1:03",
	}))

	// Act
	f.bus.Publish(events.Event{
		Type: events.TypeWaitingForLifter, VehicleID: "SH-01", TaskID: "T-1", NodeQR: "W1:02",
	})

	// Assert
	require.Eventually(t, func() bool {
		tk, ok, err := f.tasks.Get(ctx, "T-1")
		return err == nil && ok && tk.Status == task.StatusWaitingForLifter
	}, 3*time.Second, 10*time.Millisecond)
	n, err := f.lifterStore.QueueLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRouter_ReplanRebuildsCurrentSegment(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newDispatchFixture(t, 1)
	f.registry.Register(ctx, &vehicle.Vehicle{
		ID: "SH-01", Kind: vehicle.KindShuttle, FloorID: 1, NodeQR: "W1:00",
		Status: vehicle.StatusWaiting, Carrying: true,
	})
	f.stageTask(t, ctx, "T-1", "W1:01", 1, "W1:02", 1)
	bindTask(t, ctx, f, "T-1", "SH-01", task.StatusInProgress)

	// Act
	f.router.Replan(ctx, "SH-01")

	// Assert: a fresh leg to the end node goes out.
	sent := f.awaitMission(t, 1)
	assert.Equal(t, "SH-01", sent.VehicleID)
	assert.Equal(t, domainMission.OnArrivalTaskComplete, sent.Envelope.OnArrival)
	assert.Equal(t, []string{"W1:01", "W1:02"}, sent.Envelope.Simulation)
	f.ack("SH-01")
}

func TestRouter_ReplanForUnknownVehicleIsANoOp(t *testing.T) {
	// Arrange
	f := newDispatchFixture(t, 1)

	// Act
	f.router.Replan(context.Background(), "SH-99")

	// Assert
	assert.Empty(t, f.publisher.sent())
}
