package scheduling_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/scheduling"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

type schedulerFixture struct {
	scheduler   *scheduling.Scheduler
	registry    *fleet.Registry
	tasks       *state.TaskQueueStore
	rows        *state.RowLockStore
	reservation *state.ReservationStore
	plan        *floorplan.Plan
	clock       *shared.MockClock
}

// storageFloor builds floor 1 with a pickup cell and two storage rows of
// two cells each. Row 2's cells only accept EURO pallets.
func storageFloor(t *testing.T) *floorplan.Plan {
	t.Helper()
	graph := floorplan.NewFloorGraph(1)

	require.NoError(t, graph.AddNode(&floorplan.Node{
		QR: "P1:00", FloorID: 1, Col: 0, Row: 0,
		CellType: floorplan.CellTypePickup, DirectionType: floorplan.DirectionTypeBoth,
	}))
	add := func(qr string, col, row int, palletType string) {
		require.NoError(t, graph.AddNode(&floorplan.Node{
			QR: qr, FloorID: 1, Col: col, Row: row,
			CellType: floorplan.CellTypeStorage, DirectionType: floorplan.DirectionTypeBoth,
			PalletType: palletType,
		}))
	}
	add("S1:11", 1, 1, "")
	add("S1:12", 2, 1, "")
	add("S2:11", 1, 2, "EURO")
	add("S2:12", 2, 2, "EURO")

	plan := floorplan.NewPlan()
	plan.AddFloor(graph)
	return plan
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	f := &schedulerFixture{
		registry:    fleet.NewRegistry(clock, nil),
		tasks:       state.NewTaskQueueStore(kv, clock),
		rows:        state.NewRowLockStore(kv, clock),
		reservation: state.NewReservationStore(kv),
		plan:        storageFloor(t),
		clock:       clock,
	}
	f.scheduler = scheduling.NewScheduler(f.registry, f.plan, f.tasks, f.rows, f.reservation, clock)
	return f
}

func (f *schedulerFixture) stage(t *testing.T, orderID, pickupQR string, targetRow *int, palletType string) {
	t.Helper()
	err := f.tasks.PushStaging(context.Background(), &domainState.StagedOrder{
		OrderID:     orderID,
		PickupQR:    pickupQR,
		PickupFloor: 1,
		PalletType:  palletType,
		TargetRow:   targetRow,
		StagedAt:    f.clock.Now(),
	})
	require.NoError(t, err)
}

func (f *schedulerFixture) pendingTask(t *testing.T) *task.Task {
	t.Helper()
	committed, ok, err := f.tasks.NextPending(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "expected a committed task on the queue")
	return committed
}

func intPtr(v int) *int { return &v }

func TestScheduler_CommitsOneOrderPerTick(t *testing.T) {
	// Arrange
	f := newSchedulerFixture(t)
	f.stage(t, "O-1", "P1:00", nil, "")
	f.stage(t, "O-2", "P1:00", nil, "")

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert
	staged, err := f.tasks.StagingLen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, staged, "second order waits for the next tick")

	pending, err := f.tasks.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestScheduler_PicksFirstFreeStorageCellInRowColOrder(t *testing.T) {
	// Arrange
	f := newSchedulerFixture(t)
	f.stage(t, "O-1", "P1:00", nil, "")

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert
	committed := f.pendingTask(t)
	assert.Equal(t, "S1:11", committed.DestQR)
	assert.Equal(t, 1, committed.Row)
	assert.Equal(t, "P1:00", committed.SourceQR)
	assert.Equal(t, "P1:00", committed.BatchID)
	assert.Equal(t, task.StatusPending, committed.Status)

	// The chosen cell is claimed for the task.
	owner, held, err := f.reservation.Owner(context.Background(), state.EndNodeLockKey("S1:11"))
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, committed.ID, owner)
}

func TestScheduler_ExplicitTargetRowWins(t *testing.T) {
	// Arrange
	f := newSchedulerFixture(t)
	f.stage(t, "O-1", "P1:00", intPtr(2), "EURO")

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert
	committed := f.pendingTask(t)
	assert.Equal(t, 2, committed.Row)
	assert.Equal(t, "S2:11", committed.DestQR)
}

func TestScheduler_SkipsLockedCellsWithinTheRow(t *testing.T) {
	// Arrange: another task already claimed the first cell of row 1.
	f := newSchedulerFixture(t)
	require.NoError(t, f.reservation.Acquire(context.Background(), state.EndNodeLockKey("S1:11"), "T-prior", time.Hour))
	f.stage(t, "O-1", "P1:00", intPtr(1), "")

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert
	committed := f.pendingTask(t)
	assert.Equal(t, "S1:12", committed.DestQR)
}

func TestScheduler_FullRowRequeuesOrderAtFront(t *testing.T) {
	// Arrange: both cells of row 1 are claimed.
	f := newSchedulerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.reservation.Acquire(ctx, state.EndNodeLockKey("S1:11"), "T-a", time.Hour))
	require.NoError(t, f.reservation.Acquire(ctx, state.EndNodeLockKey("S1:12"), "T-b", time.Hour))
	f.stage(t, "O-1", "P1:00", intPtr(1), "")

	// Act
	require.NoError(t, f.scheduler.Tick(ctx))

	// Assert: nothing committed, the order is back at the queue head.
	pending, err := f.tasks.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	order, ok, err := f.tasks.PopStaging(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "O-1", order.OrderID)
}

func TestScheduler_PalletTypeFiltersCandidates(t *testing.T) {
	// Arrange: CHEP pallets fit nowhere on this floor except the
	// untyped row 1 cells.
	f := newSchedulerFixture(t)
	f.stage(t, "O-1", "P1:00", nil, "CHEP")

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert
	committed := f.pendingTask(t)
	assert.Equal(t, 1, committed.Row, "EURO-only row 2 is not eligible")
}

func TestScheduler_BatchRowBindingConvergesOrdersFromOnePickup(t *testing.T) {
	// Arrange: two active shuttles switch the scheduler into batch mode.
	f := newSchedulerFixture(t)
	ctx := context.Background()
	for _, id := range []string{"SH-01", "SH-02"} {
		v, err := vehicle.New(id, vehicle.KindShuttle, 1)
		require.NoError(t, err)
		f.registry.Register(ctx, v)
	}

	// The first order asks for row 2 explicitly and thereby pins the
	// batch; the second one asks for row 1 but must follow the batch.
	f.stage(t, "O-1", "P1:00", intPtr(2), "EURO")
	f.stage(t, "O-2", "P1:00", intPtr(1), "EURO")

	// Act
	require.NoError(t, f.scheduler.Tick(ctx))
	require.NoError(t, f.scheduler.Tick(ctx))

	// Assert
	first := f.pendingTask(t)
	_, err := f.tasks.UpdateStatus(ctx, first.ID, task.StatusAssigned, "SH-01")
	require.NoError(t, err)
	second := f.pendingTask(t)

	assert.Equal(t, 2, first.Row)
	assert.Equal(t, 2, second.Row, "batch row binding overrides the requested row")
	assert.NotEqual(t, first.DestQR, second.DestQR, "each task claims its own cell")
}

func TestScheduler_EmptyStagingQueueIsANoop(t *testing.T) {
	// Arrange
	f := newSchedulerFixture(t)

	// Act
	err := f.scheduler.Tick(context.Background())

	// Assert
	require.NoError(t, err)
	pending, err := f.tasks.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestScheduler_UnknownFloorDropsOrder(t *testing.T) {
	// Arrange
	f := newSchedulerFixture(t)
	err := f.tasks.PushStaging(context.Background(), &domainState.StagedOrder{
		OrderID:     "O-bad",
		PickupQR:    "P1:00",
		PickupFloor: 9,
		StagedAt:    f.clock.Now(),
	})
	require.NoError(t, err)

	// Act
	require.NoError(t, f.scheduler.Tick(context.Background()))

	// Assert: dropped, not requeued; the queue must not wedge.
	staged, err := f.tasks.StagingLen(context.Background())
	require.NoError(t, err)
	assert.Zero(t, staged)
}
