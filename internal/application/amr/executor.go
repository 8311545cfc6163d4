package amr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
	"github.com/fleetworks/wcs-go/pkg/utils"
)

const (
	// DefaultStepDelay is the simulated travel time per path step
	DefaultStepDelay = 3 * time.Second

	// NodeHoldTTL leases each reserved node; a vehicle that dies
	// mid-route sheds its claims on expiry.
	NodeHoldTTL = 2 * time.Minute

	// PathTTL bounds the committed path record
	PathTTL = 10 * time.Minute

	// reserveBudget caps how long a task waits for contested nodes
	// before failing. Cycles inside the budget are broken by the
	// deadlock detector, which releases one side's holds.
	reserveBudget     = 30 * time.Second
	reserveRetryDelay = 1 * time.Second
)

// Task lifecycle statuses as published on the bus
const (
	TaskQueued    = "QUEUED"
	TaskAssigned  = "ASSIGNED"
	TaskStarted   = "STARTED"
	TaskProgress  = "PROGRESS"
	TaskCompleted = "COMPLETED"
	TaskFailed    = "FAILED"
)

// Request asks for one point-to-point move
type Request struct {
	AMRID   string
	StartQR string
	EndQR   string
	FloorID int
}

// Ticket is what the caller gets back immediately: the rest of the
// lifecycle arrives as AMR_TASK_UPDATE events.
type Ticket struct {
	TaskID       string   `json:"taskId"`
	MoveTaskList []string `json:"move_task_list"`
}

// Executor runs free-roaming move tasks. Enqueue plans synchronously
// and returns; a background task per request reserves the route node by
// node, pushes the move list to the vehicle and walks the sequence.
type Executor struct {
	finder      *pathfinding.Pathfinder
	registry    *fleet.Registry
	reservation domainState.AMRReservationStore
	client      common.AMRClient
	bus         *events.Bus
	clock       shared.Clock
	stepDelay   time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewExecutor wires the executor; stepDelay zero means the default
func NewExecutor(
	finder *pathfinding.Pathfinder,
	registry *fleet.Registry,
	reservation domainState.AMRReservationStore,
	client common.AMRClient,
	bus *events.Bus,
	clock shared.Clock,
	stepDelay time.Duration,
) *Executor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if stepDelay <= 0 {
		stepDelay = DefaultStepDelay
	}
	return &Executor{
		finder:      finder,
		registry:    registry,
		reservation: reservation,
		client:      client,
		bus:         bus,
		clock:       clock,
		stepDelay:   stepDelay,
		stopCh:      make(chan struct{}),
	}
}

// Stop abandons background tasks and waits for them to unwind. Holds of
// abandoned tasks are left to lease expiry.
func (e *Executor) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}

// Enqueue validates, plans and hands the task to its background runner.
// The move list is returned so the caller can echo it to the vehicle
// vendor's format.
func (e *Executor) Enqueue(ctx context.Context, req *Request) (*Ticket, error) {
	if req.AMRID == "" {
		return nil, shared.NewValidationError("amr_id", "must not be empty")
	}
	if req.StartQR == "" {
		return nil, shared.NewValidationError("start", "must not be empty")
	}
	if req.EndQR == "" {
		return nil, shared.NewValidationError("end", "must not be empty")
	}

	floorID := req.FloorID
	if veh, ok := e.registry.Get(req.AMRID); ok && floorID == 0 {
		floorID = veh.FloorID
	}

	nodes, err := e.finder.FindMetric(floorID, req.StartQR, req.EndQR)
	if err != nil {
		return nil, fmt.Errorf("planning %s -> %s for %s: %w", req.StartQR, req.EndQR, req.AMRID, err)
	}

	if _, known := e.registry.Get(req.AMRID); !known {
		v, vErr := vehicle.New(req.AMRID, vehicle.KindAMR, floorID)
		if vErr != nil {
			return nil, vErr
		}
		v.NodeQR = req.StartQR
		e.registry.Register(ctx, v)
	}

	taskID := utils.GenerateTaskID()
	qrs := make([]string, len(nodes))
	for i, n := range nodes {
		qrs[i] = n.QR
	}

	e.wg.Add(1)
	go e.run(taskID, req.AMRID, floorID, nodes)

	return &Ticket{TaskID: taskID, MoveTaskList: qrs}, nil
}

// run drives one task through its lifecycle. It owns its own context:
// the caller's request context ended when Enqueue returned.
func (e *Executor) run(taskID, amrID string, floorID int, nodes []*floorplan.Node) {
	defer e.wg.Done()

	budget := reserveBudget + time.Duration(len(nodes))*(e.stepDelay+time.Second) + 30*time.Second
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	qrs := make([]string, len(nodes))
	for i, n := range nodes {
		qrs[i] = n.QR
	}

	e.emit(taskID, amrID, TaskQueued, 0, "")

	if err := e.reservePath(ctx, amrID, qrs); err != nil {
		e.fail(taskID, amrID, fmt.Sprintf("reserving route: %v", err))
		return
	}
	e.emit(taskID, amrID, TaskAssigned, 0, "")

	if err := e.client.SendMoveTask(ctx, amrID, &common.AMRMoveTask{
		TaskID:       taskID,
		AMRID:        amrID,
		MoveTaskList: qrs,
		StartQR:      qrs[0],
		EndQR:        qrs[len(qrs)-1],
		FloorID:      floorID,
	}); err != nil {
		e.fail(taskID, amrID, fmt.Sprintf("sending move task: %v", err))
		return
	}

	if _, err := e.registry.Update(ctx, amrID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusMoving
	}); err != nil {
		fmt.Printf("Warning: marking %s moving: %v\n", amrID, err)
	}
	e.emit(taskID, amrID, TaskStarted, 0, "")
	fmt.Printf("AMR task %s started: %s, %d steps\n", taskID, amrID, len(nodes)-1)

	for i := 1; i < len(nodes); i++ {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			e.fail(taskID, amrID, "task budget exceeded mid-route")
			return
		case <-time.After(e.stepDelay):
		}

		node := nodes[i]
		if _, err := e.registry.Update(ctx, amrID, func(v *vehicle.Vehicle) {
			v.MoveTo(floorID, node.QR, e.clock.Now())
			v.MoveToXY(node.X, node.Y, e.clock.Now())
		}); err != nil {
			fmt.Printf("Warning: advancing %s to %s: %v\n", amrID, node.QR, err)
		}
		if err := e.reservation.ReleaseNode(ctx, nodes[i-1].QR, amrID); err != nil {
			fmt.Printf("Warning: releasing %s behind %s: %v\n", nodes[i-1].QR, amrID, err)
		}
		e.emit(taskID, amrID, TaskProgress, i, "")
	}

	// The goal hold is not released here: it shields the parked vehicle
	// until its lease expires and live telemetry takes over.
	if err := e.reservation.DeletePath(ctx, amrID); err != nil {
		fmt.Printf("Warning: dropping path of %s: %v\n", amrID, err)
	}
	if _, err := e.registry.Update(ctx, amrID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusIdle
	}); err != nil {
		fmt.Printf("Warning: parking %s: %v\n", amrID, err)
	}
	e.emit(taskID, amrID, TaskCompleted, len(nodes)-1, "")
	fmt.Printf("AMR task %s completed: %s at %s\n", taskID, amrID, qrs[len(qrs)-1])
}

// reservePath claims every node of the route, waiting out contention
// inside the reservation budget. On failure the partial claim is
// rolled back.
func (e *Executor) reservePath(ctx context.Context, amrID string, qrs []string) error {
	for i, qr := range qrs {
		for {
			err := e.reservation.ReserveNode(ctx, qr, amrID, NodeHoldTTL)
			if err == nil {
				break
			}
			if !shared.IsLockHeld(err) {
				e.rollback(ctx, amrID, qrs[:i])
				return err
			}
			select {
			case <-e.stopCh:
				e.rollback(ctx, amrID, qrs[:i])
				return fmt.Errorf("executor stopping")
			case <-ctx.Done():
				e.rollback(ctx, amrID, qrs[:i])
				return fmt.Errorf("node %s still contested: %w", qr, err)
			case <-time.After(reserveRetryDelay):
			}
		}
	}
	return e.reservation.SavePath(ctx, amrID, qrs, PathTTL)
}

func (e *Executor) rollback(ctx context.Context, amrID string, qrs []string) {
	for _, qr := range qrs {
		if err := e.reservation.ReleaseNode(ctx, qr, amrID); err != nil {
			fmt.Printf("Warning: rolling back hold on %s: %v\n", qr, err)
		}
	}
}

// fail owns its own context: the task context is often already dead by
// the time cleanup runs.
func (e *Executor) fail(taskID, amrID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := e.reservation.ClearVehicle(ctx, amrID); err != nil {
		fmt.Printf("Warning: clearing holds of %s: %v\n", amrID, err)
	}
	if _, err := e.registry.Update(ctx, amrID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusIdle
	}); err != nil {
		fmt.Printf("Warning: resetting %s: %v\n", amrID, err)
	}
	e.emit(taskID, amrID, TaskFailed, 0, reason)
	fmt.Printf("Warning: AMR task %s failed: %s\n", taskID, reason)
}

func (e *Executor) emit(taskID, amrID, status string, step int, detail string) {
	payload := map[string]interface{}{"status": status, "step": step}
	if detail != "" {
		payload["detail"] = detail
	}
	e.bus.Publish(events.Event{
		Type:      events.TypeAMRTaskUpdate,
		VehicleID: amrID,
		TaskID:    taskID,
		Payload:   payload,
		At:        e.clock.Now(),
	})
}
