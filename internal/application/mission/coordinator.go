// Package mission builds the next mission segment for a vehicle: the
// same-floor leg toward its final target, or the leg to the lifter
// handover cell when the target is on another floor.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/dispatch"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	domainMission "github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
	"github.com/fleetworks/wcs-go/pkg/utils"
)

// DefaultPathTTL is the lease on a cached active path
const DefaultPathTTL = 600 * time.Second

// Purpose states what reaching the final target accomplishes
type Purpose int

const (
	PurposePickup Purpose = iota
	PurposeDropoff
)

// Request asks for the next segment toward a task's target
type Request struct {
	VehicleID        string
	TaskID           string
	TaskSeq          int64
	Purpose          Purpose
	FinalTargetQR    string
	FinalTargetFloor int

	// Meta carried through to the envelope
	PickupQR string
	EndQR    string
	ItemInfo string
}

// Coordinator plans mission segments. It owns no loop; the dispatcher
// and the conflict resolver call it on demand.
type Coordinator struct {
	registry   *fleet.Registry
	plan       *floorplan.Plan
	finder     *pathfinding.Pathfinder
	occupation domainState.OccupationStore
	rows       domainState.RowLockStore
	paths      domainState.PathStore
	traffic    common.TrafficSource
	lifter     common.LifterControl
	clock      shared.Clock

	// entryByFloor maps each floor to its designated lifter handover
	// cell; floors absent here fall back to the catalog.
	entryByFloor map[int]string
	pathTTL      time.Duration
}

// NewCoordinator wires the segment planner
func NewCoordinator(
	registry *fleet.Registry,
	plan *floorplan.Plan,
	finder *pathfinding.Pathfinder,
	occupation domainState.OccupationStore,
	rows domainState.RowLockStore,
	paths domainState.PathStore,
	traffic common.TrafficSource,
	lifterCtl common.LifterControl,
	clock shared.Clock,
	entryByFloor map[int]string,
) *Coordinator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Coordinator{
		registry:     registry,
		plan:         plan,
		finder:       finder,
		occupation:   occupation,
		rows:         rows,
		paths:        paths,
		traffic:      traffic,
		lifter:       lifterCtl,
		clock:        clock,
		entryByFloor: entryByFloor,
		pathTTL:      DefaultPathTTL,
	}
}

// PlanNext computes the next mission segment and caches the path. The
// returned envelope is ready to publish.
func (c *Coordinator) PlanNext(ctx context.Context, req *Request) (*domainMission.Envelope, error) {
	veh, ok := c.registry.Get(req.VehicleID)
	if !ok {
		return nil, shared.NewUnknownVehicleError(req.VehicleID)
	}
	if veh.NodeQR == "" {
		return nil, shared.NewValidationError("vehicle", fmt.Sprintf("%s has not reported a position yet", req.VehicleID))
	}

	crossFloor := veh.FloorID != req.FinalTargetFloor
	targetQR := req.FinalTargetQR
	onArrival := domainMission.OnArrivalTaskComplete
	lastAction := path.ActionDropOff

	switch {
	case crossFloor:
		entry, err := c.EntryCell(veh.FloorID)
		if err != nil {
			return nil, err
		}
		targetQR = entry
		onArrival = domainMission.OnArrivalArrivedAtLifter
		lastAction = path.ActionStopAtNode
	case req.Purpose == PurposePickup:
		onArrival = domainMission.OnArrivalPickupComplete
		lastAction = path.ActionPickUp
	}

	opts, err := c.collectOptions(ctx, veh.ID, veh.Carrying, veh.NodeQR, targetQR, lastAction)
	if err != nil {
		return nil, err
	}

	p, tier, err := c.finder.FindWithFallback(veh.FloorID, veh.NodeQR, targetQR, opts)
	if err != nil {
		return nil, fmt.Errorf("planning %s -> %s for %s: %w", veh.NodeQR, targetQR, req.VehicleID, err)
	}
	if tier != pathfinding.TierSoftAvoid {
		fmt.Printf("Path for %s found on fallback tier %d\n", req.VehicleID, tier)
	}

	meta := domainState.PathMetadata{
		IsCarrying: veh.Carrying,
		Priority:   dispatch.PriorityOf(dispatch.Contender{VehicleID: veh.ID, Carrying: veh.Carrying, TaskSeq: req.TaskSeq}),
		TTL:        c.pathTTL,
	}
	if err := c.paths.SavePath(ctx, req.VehicleID, p, meta); err != nil {
		return nil, fmt.Errorf("caching path for %s: %w", req.VehicleID, err)
	}

	if crossFloor {
		held, err := c.lifterLookahead(ctx, veh, req, p, targetQR)
		if err != nil {
			return nil, err
		}
		if held != nil {
			return held, nil
		}
	}

	env := domainMission.FromPath(utils.GenerateMissionID(req.VehicleID), req.TaskID, p, onArrival)
	c.attachMeta(env, req, veh.Carrying)
	return env, nil
}

// lifterLookahead checks whether the tower is ready to receive the
// vehicle. When it is not, the trip is requested and the mission is cut
// to hold one cell short of the handover point; a vehicle already at
// that cell gets an empty wait-in-place mission.
func (c *Coordinator) lifterLookahead(ctx context.Context, veh *vehicle.Vehicle, req *Request, p *path.Path, entryQR string) (*domainMission.Envelope, error) {
	status, err := c.lifter.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading lifter state: %w", err)
	}
	if status.CurrentFloor == veh.FloorID && status.Status != lifter.StatusMoving {
		return nil, nil
	}

	if err := c.lifter.RequestLifter(ctx, &lifter.QueueEntry{
		VehicleID: veh.ID,
		TaskID:    req.TaskID,
		FromFloor: veh.FloorID,
		ToFloor:   req.FinalTargetFloor,
		EntryQR:   entryQR,
	}); err != nil {
		return nil, fmt.Errorf("requesting lifter to floor %d: %w", veh.FloorID, err)
	}

	held := p.TruncateBefore(entryQR)
	env := domainMission.FromPath(utils.GenerateMissionID(veh.ID), req.TaskID, held, domainMission.OnArrivalWaitingForLifter)
	c.attachMeta(env, req, veh.Carrying)
	return env, nil
}

// collectOptions gathers the coordination snapshots one query needs, so
// the pathfinder itself never touches a store.
func (c *Coordinator) collectOptions(ctx context.Context, vehicleID string, carrying bool, startQR, targetQR string, lastAction path.Action) (pathfinding.Options, error) {
	occupied, err := c.occupation.GetAll(ctx)
	if err != nil {
		return pathfinding.Options{}, fmt.Errorf("snapshotting occupation: %w", err)
	}

	avoid := make(map[string]struct{}, len(occupied))
	for qr, owner := range occupied {
		if owner == vehicleID || qr == startQR || qr == targetQR {
			continue
		}
		avoid[qr] = struct{}{}
	}

	snap, err := c.traffic.Snapshot(ctx, vehicleID)
	if err != nil {
		return pathfinding.Options{}, fmt.Errorf("snapshotting traffic: %w", err)
	}

	locks, err := c.rows.AllLocks(ctx)
	if err != nil {
		return pathfinding.Options{}, fmt.Errorf("snapshotting row locks: %w", err)
	}
	rowLocks := make(map[pathfinding.RowKey]floorplan.RowDirection, len(locks))
	for _, l := range locks {
		rowLocks[pathfinding.RowKey{FloorID: l.FloorID, Row: l.Row}] = l.Direction
	}

	return pathfinding.Options{
		VehicleID:  vehicleID,
		Carrying:   carrying,
		Avoid:      avoid,
		Occupied:   occupied,
		Traffic:    snap,
		RowLocks:   rowLocks,
		LastAction: lastAction,
	}, nil
}

// EntryCell resolves the lifter handover cell for a floor: the
// configured id first, the catalog's lifter cells as fallback.
func (c *Coordinator) EntryCell(floorID int) (string, error) {
	if qr, ok := c.entryByFloor[floorID]; ok && qr != "" {
		return qr, nil
	}
	nodes := c.plan.LifterNodes(floorID)
	if len(nodes) == 0 {
		return "", shared.NewValidationError("floor", fmt.Sprintf("floor %d has no lifter cell", floorID))
	}
	return nodes[0].QR, nil
}

func (c *Coordinator) attachMeta(env *domainMission.Envelope, req *Request, carrying bool) {
	env.FinalTargetQR = req.FinalTargetQR
	env.FinalTargetFloor = req.FinalTargetFloor
	env.PickupQR = req.PickupQR
	env.EndQR = req.EndQR
	env.ItemInfo = req.ItemInfo
	env.IsCarrying = carrying
}
