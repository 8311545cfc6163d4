package steps

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/adapters/plc"
	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/dispatch"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	applifter "github.com/fleetworks/wcs-go/internal/application/lifter"
	"github.com/fleetworks/wcs-go/internal/application/mission"
	"github.com/fleetworks/wcs-go/internal/application/traffic"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	domainMission "github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

type capturedMission struct {
	VehicleID string
	Envelope  *domainMission.Envelope
}

// missionCapture records outbound missions so the Then steps can assert
// on what reached the vehicles.
type missionCapture struct {
	mu       sync.Mutex
	missions []capturedMission
}

func (c *missionCapture) PublishMission(_ context.Context, vehicleID string, env *domainMission.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missions = append(c.missions, capturedMission{VehicleID: vehicleID, Envelope: env})
	return nil
}

func (c *missionCapture) PublishCommand(context.Context, string, *common.VehicleCommand) error {
	return nil
}

func (c *missionCapture) SetRunPermission(context.Context, string, bool) error { return nil }

func (c *missionCapture) IsConnected(string) bool { return true }

func (c *missionCapture) sent() []capturedMission {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedMission, len(c.missions))
	copy(out, c.missions)
	return out
}

type dispatchContext struct {
	dispatcher  *dispatch.Dispatcher
	registry    *fleet.Registry
	tasks       *state.TaskQueueStore
	reservation *state.ReservationStore
	publisher   *missionCapture
	bus         *events.Bus
	busCancel   context.CancelFunc
	clock       *shared.MockClock
}

func (ctx *dispatchContext) reset() {
	ctx.dispatcher = nil
	ctx.registry = nil
	ctx.tasks = nil
	ctx.reservation = nil
	ctx.publisher = nil
	ctx.bus = nil
	ctx.busCancel = nil
	ctx.clock = shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
}

// teardown acknowledges every published mission so the retry loops can
// retire, then drains the dispatcher and the bus.
func (ctx *dispatchContext) teardown() {
	if ctx.bus == nil {
		return
	}
	acked := make(map[string]struct{})
	for _, m := range ctx.publisher.sent() {
		if _, done := acked[m.VehicleID]; done {
			continue
		}
		acked[m.VehicleID] = struct{}{}
		ctx.bus.Publish(events.Event{Type: events.TypeMissionAck, VehicleID: m.VehicleID})
	}
	ctx.dispatcher.Stop()
	ctx.busCancel()
	<-ctx.bus.Done()
	ctx.bus = nil
}

// Given steps

// aWarehouseWithATwoFloorPlan wires the dispatcher against floor 1 laid
// out as a 2x4 grid whose cell W1:03 is the lifter handover point, and
// floor 2 as a short aisle behind the lifter cell W2:00.
func (ctx *dispatchContext) aWarehouseWithATwoFloorPlan() error {
	f1 := floorplan.NewFloorGraph(1)
	for r := 0; r < 2; r++ {
		for c := 0; c < 4; c++ {
			cell := floorplan.CellTypeTravel
			if r == 0 && c == 3 {
				cell = floorplan.CellTypeLifter
			}
			if err := f1.AddNode(&floorplan.Node{
				QR:            fmt.Sprintf("W1:%d%d", r, c),
				FloorID:       1,
				Col:           c,
				Row:           r,
				X:             float64(c),
				Y:             float64(r),
				CellType:      cell,
				DirectionType: floorplan.DirectionTypeBoth,
			}); err != nil {
				return err
			}
		}
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			if err := f1.AddEdge(fmt.Sprintf("W1:%d%d", r, c), fmt.Sprintf("W1:%d%d", r, c+1), 1); err != nil {
				return err
			}
		}
	}
	for c := 0; c < 4; c++ {
		if err := f1.AddEdge(fmt.Sprintf("W1:0%d", c), fmt.Sprintf("W1:1%d", c), 1); err != nil {
			return err
		}
	}

	f2 := floorplan.NewFloorGraph(2)
	for c := 0; c < 3; c++ {
		cell := floorplan.CellTypeTravel
		if c == 0 {
			cell = floorplan.CellTypeLifter
		}
		if err := f2.AddNode(&floorplan.Node{
			QR:            fmt.Sprintf("W2:0%d", c),
			FloorID:       2,
			Col:           c,
			Row:           0,
			X:             float64(c),
			Y:             0,
			CellType:      cell,
			DirectionType: floorplan.DirectionTypeBoth,
		}); err != nil {
			return err
		}
	}
	for c := 0; c < 2; c++ {
		if err := f2.AddEdge(fmt.Sprintf("W2:0%d", c), fmt.Sprintf("W2:0%d", c+1), 1); err != nil {
			return err
		}
	}

	plan := floorplan.NewPlan()
	plan.AddFloor(f1)
	plan.AddFloor(f2)
	finder := pathfinding.New(plan)

	kv := state.NewKV(ctx.clock)
	ctx.registry = fleet.NewRegistry(ctx.clock, nil)
	ctx.tasks = state.NewTaskQueueStore(kv, ctx.clock)
	ctx.reservation = state.NewReservationStore(kv)
	occupation := state.NewOccupationStore(kv, 5*time.Minute)
	paths := state.NewPathStore(kv, ctx.clock, 10*time.Minute)
	rows := state.NewRowLockStore(kv, ctx.clock)
	lifterStore := state.NewLifterStateStore(kv, ctx.clock)

	ctx.bus = events.NewBus(64)
	busCtx, cancel := context.WithCancel(context.Background())
	ctx.busCancel = cancel
	go ctx.bus.Run(busCtx)

	ctx.publisher = &missionCapture{}
	sim := plc.NewSimulator([]int{1, 2}, 1, 0, ctx.clock)
	tower := applifter.NewCoordinator(lifterStore, sim, ctx.bus, ctx.clock, []int{1, 2})
	trafficSrc := traffic.NewService(paths, ctx.clock)

	missions := mission.NewCoordinator(
		ctx.registry, plan, finder, occupation, rows, paths, trafficSrc, tower, ctx.clock,
		map[int]string{1: "W1:03", 2: "W2:00"},
	)
	ctx.dispatcher = dispatch.NewDispatcher(
		ctx.registry, ctx.tasks, ctx.reservation, missions, finder, ctx.publisher, ctx.bus, ctx.clock,
	)
	return nil
}

func (ctx *dispatchContext) addShuttle(id, nodeQR string, floorID int, status vehicle.Status) error {
	if ctx.registry == nil {
		return fmt.Errorf("no warehouse was built")
	}
	ctx.registry.Register(context.Background(), &vehicle.Vehicle{
		ID:      id,
		Kind:    vehicle.KindShuttle,
		FloorID: floorID,
		NodeQR:  nodeQR,
		Status:  status,
	})
	return nil
}

func (ctx *dispatchContext) anIdleShuttleAtCellOnFloor(id, nodeQR string, floorID int) error {
	return ctx.addShuttle(id, nodeQR, floorID, vehicle.StatusIdle)
}

func (ctx *dispatchContext) aMovingShuttleAtCellOnFloor(id, nodeQR string, floorID int) error {
	return ctx.addShuttle(id, nodeQR, floorID, vehicle.StatusMoving)
}

func (ctx *dispatchContext) theFollowingShuttlesAreRegistered(table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("expected a header row and at least one shuttle row")
	}
	for _, row := range table.Rows[1:] {
		id := getCellValueFromTable(table, row, "id")
		cell := getCellValueFromTable(table, row, "cell")
		floorID, err := strconv.Atoi(getCellValueFromTable(table, row, "floor"))
		if err != nil {
			return fmt.Errorf("bad floor for shuttle %s: %w", id, err)
		}
		status := vehicle.Status(getCellValueFromTable(table, row, "status"))
		if err := ctx.addShuttle(id, cell, floorID, status); err != nil {
			return err
		}
	}
	return nil
}

// getCellValueFromTable resolves a cell by column name, treating the
// first table row as the header.
func getCellValueFromTable(table *godog.Table, row *messages.PickleTableRow, columnName string) string {
	if len(table.Rows) == 0 {
		return ""
	}
	for i, headerCell := range table.Rows[0].Cells {
		if headerCell.Value == columnName {
			if i < len(row.Cells) {
				return row.Cells[i].Value
			}
			return ""
		}
	}
	return ""
}

func (ctx *dispatchContext) aPendingTaskFromCellToCellOnFloor(id, sourceQR, destQR string, floorID int) error {
	if ctx.tasks == nil {
		return fmt.Errorf("no warehouse was built")
	}
	seq, err := ctx.tasks.NextSeq(context.Background())
	if err != nil {
		return err
	}
	tk, err := task.New(id, seq, sourceQR, floorID, destQR, floorID, ctx.clock.Now())
	if err != nil {
		return err
	}
	return ctx.tasks.Register(context.Background(), tk)
}

// When steps

func (ctx *dispatchContext) theDispatcherRunsOnePass() error {
	if ctx.dispatcher == nil {
		return fmt.Errorf("no warehouse was built")
	}
	return ctx.dispatcher.DispatchNext(context.Background())
}

// Then steps

func (ctx *dispatchContext) taskShouldBeAssignedTo(taskID, vehicleID string) error {
	tk, ok, err := ctx.tasks.Get(context.Background(), taskID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s is not on the queue", taskID)
	}
	if tk.Status != task.StatusAssigned {
		return fmt.Errorf("expected task %s assigned but its status is %s", taskID, tk.Status)
	}
	if tk.VehicleID != vehicleID {
		return fmt.Errorf("expected task %s on %s but it went to %q", taskID, vehicleID, tk.VehicleID)
	}
	veh, ok := ctx.registry.Get(vehicleID)
	if !ok {
		return fmt.Errorf("vehicle %s is not registered", vehicleID)
	}
	if veh.TaskID != taskID {
		return fmt.Errorf("expected vehicle %s bound to task %s but it carries %q", vehicleID, taskID, veh.TaskID)
	}
	return nil
}

func (ctx *dispatchContext) taskShouldStayPending(taskID string) error {
	tk, ok, err := ctx.tasks.Get(context.Background(), taskID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s is not on the queue", taskID)
	}
	if tk.Status != task.StatusPending {
		return fmt.Errorf("expected task %s pending but its status is %s", taskID, tk.Status)
	}
	return nil
}

func (ctx *dispatchContext) thePickupCellShouldBeLockedFor(qr, vehicleID string) error {
	owner, held, err := ctx.reservation.Owner(context.Background(), state.PickupLockKey(qr))
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("expected pickup cell %s to be locked but it is free", qr)
	}
	if owner != vehicleID {
		return fmt.Errorf("expected pickup cell %s locked by %s but the owner is %s", qr, vehicleID, owner)
	}
	return nil
}

func (ctx *dispatchContext) aMissionForTaskShouldReachVehicle(taskID, vehicleID string) error {
	deadline := time.Now().Add(3 * time.Second)
	for {
		for _, m := range ctx.publisher.sent() {
			if m.VehicleID == vehicleID && m.Envelope.TaskID == taskID {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no mission for task %s reached vehicle %s", taskID, vehicleID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (ctx *dispatchContext) noMissionShouldBePublished() error {
	if sent := ctx.publisher.sent(); len(sent) != 0 {
		return fmt.Errorf("expected no missions but %d were published", len(sent))
	}
	return nil
}

func InitializeDispatchScenario(sc *godog.ScenarioContext) {
	dispatchCtx := &dispatchContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		dispatchCtx.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		dispatchCtx.teardown()
		return ctx, nil
	})

	// Given steps
	sc.Step(`^a warehouse with a two-floor plan$`, dispatchCtx.aWarehouseWithATwoFloorPlan)
	sc.Step(`^an idle shuttle "([^"]*)" at cell "([^"]*)" on floor (\d+)$`, dispatchCtx.anIdleShuttleAtCellOnFloor)
	sc.Step(`^a moving shuttle "([^"]*)" at cell "([^"]*)" on floor (\d+)$`, dispatchCtx.aMovingShuttleAtCellOnFloor)
	sc.Step(`^the following shuttles are registered:$`, dispatchCtx.theFollowingShuttlesAreRegistered)
	sc.Step(`^a pending task "([^"]*)" from cell "([^"]*)" to cell "([^"]*)" on floor (\d+)$`, dispatchCtx.aPendingTaskFromCellToCellOnFloor)

	// When steps
	sc.Step(`^the dispatcher runs one pass$`, dispatchCtx.theDispatcherRunsOnePass)

	// Then steps
	sc.Step(`^task "([^"]*)" should be assigned to "([^"]*)"$`, dispatchCtx.taskShouldBeAssignedTo)
	sc.Step(`^task "([^"]*)" should stay pending$`, dispatchCtx.taskShouldStayPending)
	sc.Step(`^the pickup cell "([^"]*)" should be locked for "([^"]*)"$`, dispatchCtx.thePickupCellShouldBeLockedFor)
	sc.Step(`^a mission for task "([^"]*)" should reach vehicle "([^"]*)"$`, dispatchCtx.aMissionForTaskShouldReachVehicle)
	sc.Step(`^no mission should be published$`, dispatchCtx.noMissionShouldBePublished)
}
