// Package scheduling turns staged transport orders into committed
// tasks. The scheduler owns end-node selection: each tick it takes one
// order off the staging queue, picks a storage cell in the target row,
// locks that cell, and registers the finished task on the committed
// queue. One order per tick keeps the committed queue single-writer.
package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	state "github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/pkg/utils"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
)

const (
	// TickInterval is how often the scheduler looks at the staging queue
	TickInterval = 5 * time.Second

	// EndNodeLockTTL bounds how long a committed end-node stays claimed
	// if the task never reaches it.
	EndNodeLockTTL = 10 * time.Minute

	// BatchRowTTL bounds how long a pickup batch stays pinned to one row
	BatchRowTTL = time.Hour

	// multiVehicleThreshold is the fleet size at which orders from the
	// same pickup are funneled into a shared batch row.
	multiVehicleThreshold = 2
)

// Scheduler drains the staging queue into the committed task queue.
// The daemon loop supervisor drives Tick on its cadence.
type Scheduler struct {
	registry    *fleet.Registry
	plan        *floorplan.Plan
	tasks       domainState.TaskQueueStore
	rows        domainState.RowLockStore
	reservation domainState.ReservationStore
	clock       shared.Clock
}

func NewScheduler(
	registry *fleet.Registry,
	plan *floorplan.Plan,
	tasks domainState.TaskQueueStore,
	rows domainState.RowLockStore,
	reservation domainState.ReservationStore,
	clock shared.Clock,
) *Scheduler {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Scheduler{
		registry:    registry,
		plan:        plan,
		tasks:       tasks,
		rows:        rows,
		reservation: reservation,
		clock:       clock,
	}
}

// Tick runs one scheduling pass: at most one staged order is committed.
// Orders that cannot be placed yet go back to the queue front so the
// next tick retries them first.
func (s *Scheduler) Tick(ctx context.Context) error {
	defer s.reportDepth(ctx)

	n, err := s.tasks.StagingLen(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	order, ok, err := s.tasks.PopStaging(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	floorID := order.PickupFloor
	if order.TargetFloor != 0 {
		floorID = order.TargetFloor
	}
	graph, ok := s.plan.Floor(floorID)
	if !ok {
		// Unplaceable forever; dropping beats wedging the queue head
		fmt.Printf("Warning: order %s targets unknown floor %d, dropped\n", order.OrderID, floorID)
		return nil
	}

	row, ok, err := s.resolveRow(ctx, order, graph)
	if err != nil {
		s.requeue(ctx, order)
		return err
	}
	if !ok {
		fmt.Printf("Staging: no free storage on floor %d for order %s, retrying next tick\n", floorID, order.OrderID)
		s.requeue(ctx, order)
		return nil
	}

	candidates := availableInRow(graph, row, order.PalletType)
	if len(candidates) == 0 {
		fmt.Printf("Staging: row %d on floor %d has no free cell for order %s, retrying next tick\n", row, floorID, order.OrderID)
		s.requeue(ctx, order)
		return nil
	}

	taskID := utils.GenerateTaskID()
	endNode := s.claimFirst(ctx, candidates, taskID)
	if endNode == nil {
		fmt.Printf("Staging: all %d candidates in row %d locked, order %s retries next tick\n", len(candidates), row, order.OrderID)
		s.requeue(ctx, order)
		return nil
	}

	if err := s.commit(ctx, order, taskID, endNode, row); err != nil {
		s.releaseClaim(ctx, endNode.QR)
		s.requeue(ctx, order)
		return err
	}
	return nil
}

// resolveRow picks the target aisle. An explicit row on the order wins;
// otherwise the first free cell in (row, col) order fixes it. With two
// or more active shuttles the choice goes through the batch-row binding
// so orders from one pickup converge on a single aisle.
func (s *Scheduler) resolveRow(ctx context.Context, order *domainState.StagedOrder, graph *floorplan.FloorGraph) (int, bool, error) {
	var proposed int
	if order.TargetRow != nil {
		proposed = *order.TargetRow
	} else {
		first, ok := firstAvailable(graph, order.PalletType)
		if !ok {
			return 0, false, nil
		}
		proposed = first.Row
	}

	if s.registry.ActiveShuttleCount() >= multiVehicleThreshold {
		row, err := s.rows.AssignBatchRow(ctx, order.PickupQR, proposed, BatchRowTTL)
		if err != nil {
			return 0, false, err
		}
		return row, true, nil
	}
	return proposed, true, nil
}

// claimFirst walks the candidates left to right and returns the first
// cell whose end-node lock it wins. Contention is a normal outcome.
func (s *Scheduler) claimFirst(ctx context.Context, candidates []*floorplan.Node, taskID string) *floorplan.Node {
	for _, cell := range candidates {
		err := s.reservation.Acquire(ctx, state.EndNodeLockKey(cell.QR), taskID, EndNodeLockTTL)
		if err == nil {
			return cell
		}
		if !shared.IsLockHeld(err) {
			fmt.Printf("Warning: end-node lock on %s failed: %v\n", cell.QR, err)
		}
	}
	return nil
}

// commit builds the task record and registers it on the committed queue
func (s *Scheduler) commit(ctx context.Context, order *domainState.StagedOrder, taskID string, endNode *floorplan.Node, row int) error {
	seq, err := s.tasks.NextSeq(ctx)
	if err != nil {
		return err
	}
	t, err := task.New(taskID, seq, order.PickupQR, order.PickupFloor, endNode.QR, endNode.FloorID, s.clock.Now())
	if err != nil {
		return err
	}
	t.Row = row
	t.BatchID = order.PickupQR
	t.PalletType = order.PalletType
	t.ItemInfo = order.ItemInfo

	if err := s.tasks.Register(ctx, t); err != nil {
		return err
	}
	fmt.Printf("Staging: order %s committed as task %s, end node %s (floor %d row %d)\n",
		order.OrderID, t.ID, t.DestQR, t.DestFloor, row)
	return nil
}

func (s *Scheduler) requeue(ctx context.Context, order *domainState.StagedOrder) {
	if err := s.tasks.PushStagingFront(ctx, order); err != nil {
		fmt.Printf("Warning: re-queueing order %s failed: %v\n", order.OrderID, err)
	}
}

func (s *Scheduler) releaseClaim(ctx context.Context, qr string) {
	if err := s.reservation.Release(ctx, state.EndNodeLockKey(qr)); err != nil {
		fmt.Printf("Warning: releasing end-node lock on %s failed: %v\n", qr, err)
	}
}

func (s *Scheduler) reportDepth(ctx context.Context) {
	if staged, err := s.tasks.StagingLen(ctx); err == nil {
		metrics.SetQueueDepth("staging", staged)
	}
	if pending, err := s.tasks.PendingCount(ctx); err == nil {
		metrics.SetQueueDepth("pending", pending)
	}
}

// storageCells returns the free storage cells for a pallet type in
// (row, col) order. Availability means a storage cell that is not
// blocked, holds no box, and matches the pallet class.
func storageCells(graph *floorplan.FloorGraph, palletType string) []*floorplan.Node {
	var out []*floorplan.Node
	for _, n := range graph.NodesOfType(floorplan.CellTypeStorage) {
		if n.Blocked || n.HasBox || !n.AcceptsPallet(palletType) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func firstAvailable(graph *floorplan.FloorGraph, palletType string) (*floorplan.Node, bool) {
	cells := storageCells(graph, palletType)
	if len(cells) == 0 {
		return nil, false
	}
	return cells[0], true
}

func availableInRow(graph *floorplan.FloorGraph, row int, palletType string) []*floorplan.Node {
	var out []*floorplan.Node
	for _, n := range storageCells(graph, palletType) {
		if n.Row == row {
			out = append(out, n)
		}
	}
	return out
}
