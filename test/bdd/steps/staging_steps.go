package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/scheduling"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

type stagingContext struct {
	scheduler   *scheduling.Scheduler
	registry    *fleet.Registry
	tasks       *state.TaskQueueStore
	rows        *state.RowLockStore
	reservation *state.ReservationStore
	graph       *floorplan.FloorGraph
	clock       *shared.MockClock
}

func (ctx *stagingContext) reset() {
	ctx.scheduler = nil
	ctx.registry = nil
	ctx.tasks = nil
	ctx.rows = nil
	ctx.reservation = nil
	ctx.graph = nil
	ctx.clock = shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
}

// Given steps

// aStorageFloorWithTwoRowsOfTwoCells builds floor 1 with pickup cell
// P1:00 and storage cells S<row>:1<col> in rows 1 and 2.
func (ctx *stagingContext) aStorageFloorWithTwoRowsOfTwoCells() error {
	graph := floorplan.NewFloorGraph(1)
	if err := graph.AddNode(&floorplan.Node{
		QR: "P1:00", FloorID: 1, Col: 0, Row: 0,
		CellType: floorplan.CellTypePickup, DirectionType: floorplan.DirectionTypeBoth,
	}); err != nil {
		return err
	}
	for row := 1; row <= 2; row++ {
		for col := 1; col <= 2; col++ {
			if err := graph.AddNode(&floorplan.Node{
				QR: fmt.Sprintf("S%d:1%d", row, col), FloorID: 1, Col: col, Row: row,
				CellType: floorplan.CellTypeStorage, DirectionType: floorplan.DirectionTypeBoth,
			}); err != nil {
				return err
			}
		}
	}

	plan := floorplan.NewPlan()
	plan.AddFloor(graph)

	kv := state.NewKV(ctx.clock)
	ctx.graph = graph
	ctx.registry = fleet.NewRegistry(ctx.clock, nil)
	ctx.tasks = state.NewTaskQueueStore(kv, ctx.clock)
	ctx.rows = state.NewRowLockStore(kv, ctx.clock)
	ctx.reservation = state.NewReservationStore(kv)
	ctx.scheduler = scheduling.NewScheduler(ctx.registry, plan, ctx.tasks, ctx.rows, ctx.reservation, ctx.clock)
	return nil
}

func (ctx *stagingContext) rowOnlyAcceptsPallets(row int, palletType string) error {
	if ctx.graph == nil {
		return fmt.Errorf("no storage floor was built")
	}
	for _, n := range ctx.graph.Nodes() {
		if n.Row == row && n.CellType == floorplan.CellTypeStorage {
			n.PalletType = palletType
		}
	}
	return nil
}

func (ctx *stagingContext) stage(orderID, pickupQR string, targetRow *int, palletType string) error {
	return ctx.tasks.PushStaging(context.Background(), &domainState.StagedOrder{
		OrderID:     orderID,
		PickupQR:    pickupQR,
		PickupFloor: 1,
		PalletType:  palletType,
		TargetRow:   targetRow,
		StagedAt:    ctx.clock.Now(),
	})
}

func (ctx *stagingContext) anOrderStagedAtPickupCell(orderID, pickupQR string) error {
	return ctx.stage(orderID, pickupQR, nil, "")
}

func (ctx *stagingContext) anOrderStagedAtPickupCellForRow(orderID, pickupQR string, row int) error {
	return ctx.stage(orderID, pickupQR, &row, "")
}

func (ctx *stagingContext) anOrderStagedAtPickupCellForRowWithPalletType(orderID, pickupQR string, row int, palletType string) error {
	return ctx.stage(orderID, pickupQR, &row, palletType)
}

func (ctx *stagingContext) anOrderStagedAtPickupCellWithPalletType(orderID, pickupQR, palletType string) error {
	return ctx.stage(orderID, pickupQR, nil, palletType)
}

func (ctx *stagingContext) cellIsAlreadyClaimedByTask(qr, taskID string) error {
	return ctx.reservation.Acquire(context.Background(), state.EndNodeLockKey(qr), taskID, time.Hour)
}

// When steps

func (ctx *stagingContext) theSchedulerRunsOnePass() error {
	if ctx.scheduler == nil {
		return fmt.Errorf("no storage floor was built")
	}
	return ctx.scheduler.Tick(context.Background())
}

// Then steps

func (ctx *stagingContext) committedTask() (*task.Task, error) {
	committed, ok, err := ctx.tasks.NextPending(context.Background())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("expected a committed task on the queue but found none")
	}
	return committed, nil
}

func (ctx *stagingContext) ordersShouldRemainStaged(expected int) error {
	staged, err := ctx.tasks.StagingLen(context.Background())
	if err != nil {
		return err
	}
	if staged != expected {
		return fmt.Errorf("expected %d staged orders but got %d", expected, staged)
	}
	return nil
}

func (ctx *stagingContext) tasksShouldBePending(expected int) error {
	pending, err := ctx.tasks.PendingCount(context.Background())
	if err != nil {
		return err
	}
	if pending != expected {
		return fmt.Errorf("expected %d pending tasks but got %d", expected, pending)
	}
	return nil
}

func (ctx *stagingContext) noTaskShouldBePending() error {
	return ctx.tasksShouldBePending(0)
}

func (ctx *stagingContext) theCommittedTaskShouldStoreIntoCell(qr string) error {
	committed, err := ctx.committedTask()
	if err != nil {
		return err
	}
	if committed.DestQR != qr {
		return fmt.Errorf("expected destination %s but got %s", qr, committed.DestQR)
	}
	return nil
}

func (ctx *stagingContext) theCommittedTaskShouldTargetRow(row int) error {
	committed, err := ctx.committedTask()
	if err != nil {
		return err
	}
	if committed.Row != row {
		return fmt.Errorf("expected row %d but got %d", row, committed.Row)
	}
	return nil
}

func (ctx *stagingContext) cellShouldBeClaimedForTheCommittedTask(qr string) error {
	committed, err := ctx.committedTask()
	if err != nil {
		return err
	}
	owner, held, err := ctx.reservation.Owner(context.Background(), state.EndNodeLockKey(qr))
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("expected cell %s to be claimed but it is free", qr)
	}
	if owner != committed.ID {
		return fmt.Errorf("expected cell %s claimed by %s but the owner is %s", qr, committed.ID, owner)
	}
	return nil
}

func (ctx *stagingContext) orderShouldBeAtTheHeadOfTheStagingQueue(orderID string) error {
	order, ok, err := ctx.tasks.PopStaging(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("the staging queue is empty")
	}
	if order.OrderID != orderID {
		return fmt.Errorf("expected order %s at the head but got %s", orderID, order.OrderID)
	}
	return nil
}

func InitializeStagingScenario(sc *godog.ScenarioContext) {
	stagingCtx := &stagingContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		stagingCtx.reset()
		return ctx, nil
	})

	// Given steps
	sc.Step(`^a storage floor with two rows of two cells$`, stagingCtx.aStorageFloorWithTwoRowsOfTwoCells)
	sc.Step(`^row (\d+) only accepts "([^"]*)" pallets$`, stagingCtx.rowOnlyAcceptsPallets)
	sc.Step(`^an order "([^"]*)" staged at pickup cell "([^"]*)"$`, stagingCtx.anOrderStagedAtPickupCell)
	sc.Step(`^an order "([^"]*)" staged at pickup cell "([^"]*)" for row (\d+)$`, stagingCtx.anOrderStagedAtPickupCellForRow)
	sc.Step(`^an order "([^"]*)" staged at pickup cell "([^"]*)" for row (\d+) with pallet type "([^"]*)"$`, stagingCtx.anOrderStagedAtPickupCellForRowWithPalletType)
	sc.Step(`^an order "([^"]*)" staged at pickup cell "([^"]*)" with pallet type "([^"]*)"$`, stagingCtx.anOrderStagedAtPickupCellWithPalletType)
	sc.Step(`^cell "([^"]*)" is already claimed by task "([^"]*)"$`, stagingCtx.cellIsAlreadyClaimedByTask)

	// When steps
	sc.Step(`^the scheduler runs one pass$`, stagingCtx.theSchedulerRunsOnePass)

	// Then steps
	sc.Step(`^(\d+) orders? should remain staged$`, stagingCtx.ordersShouldRemainStaged)
	sc.Step(`^(\d+) tasks? should be pending$`, stagingCtx.tasksShouldBePending)
	sc.Step(`^no task should be pending$`, stagingCtx.noTaskShouldBePending)
	sc.Step(`^the committed task should store into cell "([^"]*)"$`, stagingCtx.theCommittedTaskShouldStoreIntoCell)
	sc.Step(`^the committed task should target row (\d+)$`, stagingCtx.theCommittedTaskShouldTargetRow)
	sc.Step(`^cell "([^"]*)" should be claimed for the committed task$`, stagingCtx.cellShouldBeClaimedForTheCommittedTask)
	sc.Step(`^order "([^"]*)" should be at the head of the staging queue$`, stagingCtx.orderShouldBeAtTheHeadOfTheStagingQueue)
}
