package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	state "github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/conflict"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/mission"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// Router subscribes the controller to vehicle events and advances task
// state in response. All handlers run on the bus dispatch goroutine;
// anything slow (mission publishing) is handed off to the dispatcher's
// publish path.
type Router struct {
	bus         *events.Bus
	registry    *fleet.Registry
	tasks       domainState.TaskQueueStore
	occupation  domainState.OccupationStore
	reservation domainState.ReservationStore
	paths       domainState.PathStore
	rows        domainState.RowLockStore
	plan        *floorplan.Plan
	missions    *mission.Coordinator
	resolver    *conflict.Resolver
	lifter      common.LifterControl
	dispatcher  *Dispatcher
	publisher   common.MissionPublisher
	clock       shared.Clock
}

// NewRouter wires the event router
func NewRouter(
	bus *events.Bus,
	registry *fleet.Registry,
	tasks domainState.TaskQueueStore,
	occupation domainState.OccupationStore,
	reservation domainState.ReservationStore,
	paths domainState.PathStore,
	rows domainState.RowLockStore,
	plan *floorplan.Plan,
	missions *mission.Coordinator,
	resolver *conflict.Resolver,
	lifterCtl common.LifterControl,
	dispatcher *Dispatcher,
	publisher common.MissionPublisher,
	clock shared.Clock,
) *Router {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Router{
		bus:         bus,
		registry:    registry,
		tasks:       tasks,
		occupation:  occupation,
		reservation: reservation,
		paths:       paths,
		rows:        rows,
		plan:        plan,
		missions:    missions,
		resolver:    resolver,
		lifter:      lifterCtl,
		dispatcher:  dispatcher,
		publisher:   publisher,
		clock:       clock,
	}
}

// Register subscribes every handler on the bus
func (r *Router) Register() {
	r.bus.Subscribe(events.TypeShuttleInitialized, r.handleInitialized)
	r.bus.Subscribe(events.TypeShuttleMoved, r.handleMoved)
	r.bus.Subscribe(events.TypeShuttleWaiting, r.handleWaiting)
	r.bus.Subscribe(events.TypeShuttleResumed, r.handleResumed)
	r.bus.Subscribe(events.TypeShuttleTaskStarted, r.handleTaskStarted)
	r.bus.Subscribe(events.TypePickupComplete, r.handlePickupComplete)
	r.bus.Subscribe(events.TypeTaskComplete, r.handleTaskComplete)
	r.bus.Subscribe(events.TypeArrivedAtLifter, r.handleArrivedAtLifter)
	r.bus.Subscribe(events.TypeWaitingForLifter, r.handleWaitingForLifter)
	r.bus.Subscribe(events.TypeLifterArrived, r.handleLifterArrived)
}

// Replan rebuilds the current mission segment for a vehicle. Wired
// into the conflict resolver and the deadlock detector as their
// re-dispatch callback; a vehicle without a task wakes the dispatcher
// instead.
func (r *Router) Replan(ctx context.Context, vehicleID string) {
	veh, ok := r.registry.Get(vehicleID)
	if !ok {
		return
	}
	t, ok, err := r.tasks.ActiveTask(ctx, vehicleID)
	if err != nil || !ok {
		r.dispatcher.Wake()
		return
	}
	r.continueMission(ctx, veh, t)
}

// handleInitialized seeds a shuttle session: register it, claim its
// starting cell, open its run permission and look for work.
func (r *Router) handleInitialized(ctx context.Context, ev events.Event) {
	if ev.NodeQR == "" {
		fmt.Printf("Warning: %s initialized without a position\n", ev.VehicleID)
		return
	}

	if _, known := r.registry.Get(ev.VehicleID); known {
		if _, err := r.registry.UpdatePosition(ctx, ev.VehicleID, ev.FloorID, ev.NodeQR); err != nil {
			fmt.Printf("Warning: refreshing session for %s: %v\n", ev.VehicleID, err)
			return
		}
	} else {
		v, err := vehicle.New(ev.VehicleID, vehicle.KindShuttle, ev.FloorID)
		if err != nil {
			fmt.Printf("Warning: rejecting session for %s: %v\n", ev.VehicleID, err)
			return
		}
		v.NodeQR = ev.NodeQR
		r.registry.Register(ctx, v)
	}

	if err := r.occupation.Block(ctx, ev.NodeQR, ev.VehicleID); err != nil {
		fmt.Printf("Warning: claiming start cell %s for %s: %v\n", ev.NodeQR, ev.VehicleID, err)
	}
	if err := r.publisher.SetRunPermission(ctx, ev.VehicleID, true); err != nil {
		fmt.Printf("Warning: opening run permission for %s: %v\n", ev.VehicleID, err)
	}
	fmt.Printf("Shuttle %s initialized at %s (floor %d)\n", ev.VehicleID, ev.NodeQR, ev.FloorID)
	r.dispatcher.Wake()
}

// handleMoved advances physical state: occupation hand-over, aisle
// direction membership, pickup-lock release once the loaded shuttle
// clears the cell, and a dispatch nudge.
func (r *Router) handleMoved(ctx context.Context, ev events.Event) {
	prev, ok := r.registry.Get(ev.VehicleID)
	if !ok {
		fmt.Printf("Warning: move report from unknown vehicle %s\n", ev.VehicleID)
		return
	}
	floorID := ev.FloorID
	if floorID == 0 {
		floorID = prev.FloorID
	}

	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.MoveTo(floorID, ev.NodeQR, r.clock.Now())
		if v.Status == vehicle.StatusIdle || v.Status == vehicle.StatusWaiting {
			v.Status = vehicle.StatusMoving
		}
	}); err != nil {
		fmt.Printf("Warning: recording move for %s: %v\n", ev.VehicleID, err)
		return
	}

	if err := r.occupation.HandleMove(ctx, ev.VehicleID, prev.NodeQR, ev.NodeQR); err != nil {
		fmt.Printf("Warning: occupation hand-over for %s (%s -> %s): %v\n", ev.VehicleID, prev.NodeQR, ev.NodeQR, err)
	}

	r.updateRowLocks(ctx, prev, floorID, ev.NodeQR)
	r.maybeReleasePickup(ctx, ev.VehicleID, ev.NodeQR)
	r.resolver.ClearWait(ctx, ev.VehicleID)
	r.dispatcher.Wake()
}

// updateRowLocks keeps aisle direction membership in step with the
// observed heading: a horizontal move joins the destination row's lock,
// a vertical move leaves the origin row's.
func (r *Router) updateRowLocks(ctx context.Context, prev *vehicle.Vehicle, floorID int, toQR string) {
	if prev.NodeQR == "" || prev.NodeQR == toQR || prev.FloorID != floorID {
		return
	}
	g, ok := r.plan.Floor(floorID)
	if !ok {
		return
	}
	from, okFrom := g.Node(prev.NodeQR)
	to, okTo := g.Node(toQR)
	if !okFrom || !okTo {
		return
	}

	heading := from.HeadingTo(to)
	if dir, horizontal := floorplan.RowDirectionFor(heading); horizontal {
		if err := r.rows.AcquireRow(ctx, floorID, to.Row, dir, prev.ID); err != nil {
			if shared.IsLockHeld(err) {
				fmt.Printf("Warning: %s moved into row %d against its direction lock\n", prev.ID, to.Row)
			} else {
				fmt.Printf("Warning: joining row %d for %s: %v\n", to.Row, prev.ID, err)
			}
		}
		return
	}
	if heading != floorplan.DirectionNone {
		if err := r.rows.ReleaseRow(ctx, floorID, from.Row, prev.ID); err != nil {
			fmt.Printf("Warning: leaving row %d for %s: %v\n", from.Row, prev.ID, err)
		}
	}
}

// maybeReleasePickup frees the pickup cell once the loaded shuttle has
// moved off it, so the next task on the same pickup can dispatch.
func (r *Router) maybeReleasePickup(ctx context.Context, vehicleID, nodeQR string) {
	t, ok, err := r.tasks.ActiveTask(ctx, vehicleID)
	if err != nil || !ok {
		return
	}
	if t.Status != task.StatusInProgress || nodeQR == t.SourceQR {
		return
	}
	key := state.PickupLockKey(t.SourceQR)
	owner, held, err := r.reservation.Owner(ctx, key)
	if err != nil || !held || owner != vehicleID {
		return
	}
	if err := r.reservation.Release(ctx, key); err != nil {
		fmt.Printf("Warning: releasing pickup lock %s: %v\n", key, err)
		return
	}
	fmt.Printf("Pickup %s released: %s cleared the cell\n", t.SourceQR, vehicleID)
}

// handleWaiting forwards a blockage report to the conflict resolver
func (r *Router) handleWaiting(ctx context.Context, ev events.Event) {
	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusWaiting
	}); err != nil {
		fmt.Printf("Warning: wait report from unknown vehicle %s\n", ev.VehicleID)
		return
	}
	if err := r.resolver.Resolve(ctx, &conflict.Blockage{
		VehicleID: ev.VehicleID,
		WaitingAt: ev.NodeQR,
		TargetQR:  payloadString(ev, "targetNode"),
		BlockedBy: payloadString(ev, "blockedBy"),
	}); err != nil {
		fmt.Printf("Warning: conflict resolution for %s: %v\n", ev.VehicleID, err)
	}
}

// handleResumed clears the waiting state once the vehicle reports it is
// rolling again. The next move report would do the same; this just does
// it sooner.
func (r *Router) handleResumed(ctx context.Context, ev events.Event) {
	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		if v.Status == vehicle.StatusWaiting {
			v.Status = vehicle.StatusMoving
		}
	}); err != nil {
		fmt.Printf("Warning: resume report from unknown vehicle %s\n", ev.VehicleID)
		return
	}
	r.resolver.ClearWait(ctx, ev.VehicleID)
}

// handleTaskStarted records that the vehicle began executing its
// mission. Pickup-complete repeats the transition when this report got
// lost on the way.
func (r *Router) handleTaskStarted(ctx context.Context, ev events.Event) {
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}
	if t.Status != task.StatusAssigned {
		return
	}
	if _, err := r.tasks.UpdateStatus(ctx, t.ID, task.StatusInProgress, ev.VehicleID); err != nil {
		fmt.Printf("Warning: starting task %s: %v\n", t.ID, err)
	}
}

// handlePickupComplete flips the task into its loaded phase and plans
// the leg to the end node.
func (r *Router) handlePickupComplete(ctx context.Context, ev events.Event) {
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}

	if t.Status != task.StatusInProgress {
		updated, err := r.tasks.UpdateStatus(ctx, t.ID, task.StatusInProgress, ev.VehicleID)
		if err != nil {
			fmt.Printf("Warning: marking task %s in progress: %v\n", t.ID, err)
			return
		}
		t = updated
	}

	if node, found := r.plan.FindNode(t.SourceQR); found {
		node.HasBox = false
	}

	veh, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.Carrying = true
	})
	if err != nil {
		fmt.Printf("Warning: recording pickup for %s: %v\n", ev.VehicleID, err)
		return
	}
	fmt.Printf("Pickup complete: %s loaded at %s, heading to %s\n", ev.VehicleID, t.SourceQR, t.DestQR)
	r.continueMission(ctx, veh, t)
}

// handleTaskComplete closes out the task and returns the shuttle to the
// idle pool. Executing-mode shuttles immediately pull the next task.
func (r *Router) handleTaskComplete(ctx context.Context, ev events.Event) {
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}

	if _, err := r.tasks.UpdateStatus(ctx, t.ID, task.StatusCompleted, ev.VehicleID); err != nil {
		fmt.Printf("Warning: completing task %s: %v\n", t.ID, err)
		return
	}
	if node, found := r.plan.FindNode(t.DestQR); found {
		node.HasBox = true
	}

	r.dispatcher.releaseLock(ctx, state.EndNodeLockKey(t.DestQR))
	pickupKey := state.PickupLockKey(t.SourceQR)
	if owner, held, err := r.reservation.Owner(ctx, pickupKey); err == nil && held && owner == ev.VehicleID {
		r.dispatcher.releaseLock(ctx, pickupKey)
	}

	if err := r.paths.DeletePath(ctx, ev.VehicleID); err != nil {
		fmt.Printf("Warning: dropping path for %s: %v\n", ev.VehicleID, err)
	}
	r.resolver.ClearWait(ctx, ev.VehicleID)
	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.Release()
	}); err != nil {
		fmt.Printf("Warning: releasing %s: %v\n", ev.VehicleID, err)
	}
	metrics.RecordMissionDispatch(ev.VehicleID, "completed")
	fmt.Printf("Task %s completed by %s\n", t.ID, ev.VehicleID)

	if r.registry.IsExecuting(ev.VehicleID) {
		r.dispatcher.Wake()
	}
}

// handleArrivedAtLifter runs when the shuttle stands on the handover
// cell. If no trip is holding for it, the carry trip is queued with the
// vehicle already aboard.
func (r *Router) handleArrivedAtLifter(ctx context.Context, ev events.Event) {
	veh, ok := r.registry.Get(ev.VehicleID)
	if !ok {
		fmt.Printf("Warning: lifter boarding report from unknown vehicle %s\n", ev.VehicleID)
		return
	}
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}

	st, err := r.lifter.Status(ctx)
	if err != nil {
		fmt.Printf("Warning: lifter status read failed: %v\n", err)
		return
	}
	if st.CurrentFloor != veh.FloorID {
		fmt.Printf("Warning: %s boarded but lifter reads floor %d, vehicle floor %d\n", ev.VehicleID, st.CurrentFloor, veh.FloorID)
	}

	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusWaiting
	}); err != nil {
		fmt.Printf("Warning: recording boarding for %s: %v\n", ev.VehicleID, err)
	}

	if st.CarriedBy == ev.VehicleID {
		// The queued trip is already holding for this boarding; its
		// processor sees the same event and starts the carry leg.
		return
	}

	if err := r.lifter.RequestLifter(ctx, &lifter.QueueEntry{
		VehicleID: ev.VehicleID,
		TaskID:    t.ID,
		FromFloor: veh.FloorID,
		ToFloor:   r.neededFloor(veh, t),
		EntryQR:   veh.NodeQR,
		Boarded:   true,
	}); err != nil {
		fmt.Printf("Warning: queueing carry trip for %s: %v\n", ev.VehicleID, err)
	}
}

// handleWaitingForLifter records the held state and restores a lost
// trip request: a crash between the lookahead and the processor would
// otherwise leave the vehicle holding forever.
func (r *Router) handleWaitingForLifter(ctx context.Context, ev events.Event) {
	veh, ok := r.registry.Get(ev.VehicleID)
	if !ok {
		return
	}
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}

	if t.Status != task.StatusWaitingForLifter {
		if _, err := r.tasks.UpdateStatus(ctx, t.ID, task.StatusWaitingForLifter, ev.VehicleID); err != nil {
			fmt.Printf("Warning: marking task %s waiting for lifter: %v\n", t.ID, err)
		}
	}
	if _, err := r.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		v.Status = vehicle.StatusWaiting
	}); err != nil {
		fmt.Printf("Warning: recording lifter wait for %s: %v\n", ev.VehicleID, err)
	}

	st, err := r.lifter.Status(ctx)
	if err != nil {
		fmt.Printf("Warning: lifter status read failed: %v\n", err)
		return
	}
	if st.CarriedBy == ev.VehicleID {
		return
	}
	queued, err := r.lifter.HasPending(ctx, ev.VehicleID)
	if err != nil || queued {
		return
	}

	entryQR, err := r.missions.EntryCell(veh.FloorID)
	if err != nil {
		fmt.Printf("Warning: re-requesting lifter for %s: %v\n", ev.VehicleID, err)
		return
	}
	if err := r.lifter.RequestLifter(ctx, &lifter.QueueEntry{
		VehicleID: ev.VehicleID,
		TaskID:    t.ID,
		FromFloor: veh.FloorID,
		ToFloor:   r.neededFloor(veh, t),
		EntryQR:   entryQR,
	}); err != nil {
		fmt.Printf("Warning: re-requesting lifter for %s: %v\n", ev.VehicleID, err)
		return
	}
	fmt.Printf("Lifter trip re-requested for %s\n", ev.VehicleID)
}

// handleLifterArrived reacts to the tower: at the vehicle's own floor
// it is a boarding call, at another floor it means the carry finished
// and the vehicle now stands on that floor's handover cell.
func (r *Router) handleLifterArrived(ctx context.Context, ev events.Event) {
	veh, ok := r.registry.Get(ev.VehicleID)
	if !ok {
		return
	}
	t := r.eventTask(ctx, ev)
	if t == nil {
		return
	}

	if ev.FloorID == veh.FloorID {
		// Boarding call: plan the leg onto the cage. The lookahead now
		// sees the cage idle at this floor and plans straight to the
		// handover cell.
		r.continueMission(ctx, veh, t)
		return
	}

	exitQR, err := r.missions.EntryCell(ev.FloorID)
	if err != nil {
		fmt.Printf("Warning: no handover cell on floor %d: %v\n", ev.FloorID, err)
		return
	}
	prevQR := veh.NodeQR
	veh, err = r.registry.UpdatePosition(ctx, ev.VehicleID, ev.FloorID, exitQR)
	if err != nil {
		fmt.Printf("Warning: recording floor crossing for %s: %v\n", ev.VehicleID, err)
		return
	}
	if err := r.occupation.HandleMove(ctx, ev.VehicleID, prevQR, exitQR); err != nil {
		fmt.Printf("Warning: occupation hand-over for %s across floors: %v\n", ev.VehicleID, err)
	}

	if t.Status == task.StatusWaitingForLifter {
		updated, err := r.tasks.UpdateStatus(ctx, t.ID, task.StatusInProgress, ev.VehicleID)
		if err != nil {
			fmt.Printf("Warning: resuming task %s: %v\n", t.ID, err)
		} else {
			t = updated
		}
	}

	fmt.Printf("%s crossed to floor %d via lifter\n", ev.VehicleID, ev.FloorID)
	r.continueMission(ctx, veh, t)
}

// continueMission plans and publishes the next segment for a task in
// flight: to the end node when loaded, to the pickup when not.
func (r *Router) continueMission(ctx context.Context, veh *vehicle.Vehicle, t *task.Task) {
	req := &mission.Request{
		VehicleID: veh.ID,
		TaskID:    t.ID,
		TaskSeq:   t.Seq,
		PickupQR:  t.SourceQR,
		EndQR:     t.DestQR,
		ItemInfo:  t.ItemInfo,
	}
	if veh.Carrying {
		req.Purpose = mission.PurposeDropoff
		req.FinalTargetQR = t.DestQR
		req.FinalTargetFloor = t.DestFloor
	} else {
		req.Purpose = mission.PurposePickup
		req.FinalTargetQR = t.SourceQR
		req.FinalTargetFloor = t.SourceFloor
	}

	env, err := r.missions.PlanNext(ctx, req)
	if err != nil {
		var noPath *shared.NoPathError
		if errors.As(err, &noPath) {
			r.dispatcher.failTask(ctx, t, "no path to "+req.FinalTargetQR+": "+err.Error())
			if _, relErr := r.registry.Update(ctx, veh.ID, func(v *vehicle.Vehicle) {
				v.Release()
			}); relErr != nil {
				fmt.Printf("Warning: releasing %s after failed plan: %v\n", veh.ID, relErr)
			}
			return
		}
		fmt.Printf("Warning: planning next segment for %s: %v\n", veh.ID, err)
		return
	}
	r.dispatcher.Publish(env, t.ID, veh.ID)
}

// eventTask resolves the task an event refers to, preferring the id
// carried on the event over the vehicle's active binding.
func (r *Router) eventTask(ctx context.Context, ev events.Event) *task.Task {
	if ev.TaskID != "" {
		if t, ok, err := r.tasks.Get(ctx, ev.TaskID); err == nil && ok {
			return t
		}
	}
	t, ok, err := r.tasks.ActiveTask(ctx, ev.VehicleID)
	if err != nil || !ok {
		fmt.Printf("Warning: no active task for %s on %s\n", ev.VehicleID, ev.Type)
		return nil
	}
	return t
}

// neededFloor is the floor the task needs the vehicle on next
func (r *Router) neededFloor(veh *vehicle.Vehicle, t *task.Task) int {
	if veh.Carrying {
		return t.DestFloor
	}
	return t.SourceFloor
}

func payloadString(ev events.Event, key string) string {
	if ev.Payload == nil {
		return ""
	}
	s, _ := ev.Payload[key].(string)
	return s
}
