// Package conflict resolves blocked vehicles: yield signalling by
// priority, tier-validated reroutes, backtracking into parking cells,
// and escalating waits that end in an emergency reroute.
package conflict

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/dispatch"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/pkg/utils"
)

const (
	// InitialWaitDelay is the pause before the first blocked re-check
	InitialWaitDelay = 5 * time.Second

	// RetryInterval spaces the re-checks that follow
	RetryInterval = 15 * time.Second

	// EmergencyAfter is the total wait that forces an any-cost reroute
	EmergencyAfter = 45 * time.Second

	// BacktrackLimit caps how many cells a vehicle retreats
	BacktrackLimit = 5

	// Reroute length limits, percent of the original path
	limitCarrying   = 140.0
	limitEmpty      = 200.0
	limitPerRetry   = 50.0
	limitPerWaitInc = 50.0
	limitCeiling    = 500.0
)

// Blockage is the waiting event as it arrives from the vehicle
type Blockage struct {
	VehicleID string
	WaitingAt string
	TargetQR  string
	BlockedBy string
}

// Resolver drives one conflict to a resolution. Retry timers re-enter
// Resolve until the vehicle moves again or escalation runs out.
type Resolver struct {
	registry   *fleet.Registry
	tasks      domainState.TaskQueueStore
	occupation domainState.OccupationStore
	paths      domainState.PathStore
	waits      domainState.WaitStateStore
	rows       domainState.RowLockStore
	traffic    common.TrafficSource
	finder     *pathfinding.Pathfinder
	publisher  common.MissionPublisher
	bus        *events.Bus
	parking    *ParkingFinder
	clock      shared.Clock

	// replan re-dispatches a vehicle whose blockage cleared; wired by
	// the dispatcher after construction.
	replan func(ctx context.Context, vehicleID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewResolver wires the conflict resolver
func NewResolver(
	registry *fleet.Registry,
	tasks domainState.TaskQueueStore,
	occupation domainState.OccupationStore,
	paths domainState.PathStore,
	waits domainState.WaitStateStore,
	rows domainState.RowLockStore,
	trafficSrc common.TrafficSource,
	finder *pathfinding.Pathfinder,
	publisher common.MissionPublisher,
	bus *events.Bus,
	parking *ParkingFinder,
	clock shared.Clock,
) *Resolver {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Resolver{
		registry:   registry,
		tasks:      tasks,
		occupation: occupation,
		paths:      paths,
		waits:      waits,
		rows:       rows,
		traffic:    trafficSrc,
		finder:     finder,
		publisher:  publisher,
		bus:        bus,
		parking:    parking,
		clock:      clock,
		timers:     make(map[string]*time.Timer),
	}
}

// SetReplanner registers the dispatcher callback used when a blocked
// vehicle becomes free to move again.
func (r *Resolver) SetReplanner(fn func(ctx context.Context, vehicleID string)) {
	r.replan = fn
}

// Resolve runs the resolution ladder for one blockage. Strategies are
// tried in order; the first that succeeds wins.
func (r *Resolver) Resolve(ctx context.Context, b *Blockage) error {
	ws := r.loadOrStartWait(ctx, b)
	waitFor := r.clock.Since(ws.StartedAt)

	fmt.Printf("Conflict: %s blocked at %s by %s (target %s, waited %v, retry %d)\n",
		b.VehicleID, b.WaitingAt, b.BlockedBy, b.TargetQR, waitFor.Truncate(time.Second), ws.RetryCount)

	if r.tryYield(ctx, b) {
		r.scheduleRetry(b, ws.RetryCount)
		return nil
	}

	if r.tryReroute(ctx, b, ws, waitFor) {
		r.clearWait(ctx, b.VehicleID)
		return nil
	}

	if r.tryBacktrack(ctx, b) {
		r.scheduleRetry(b, ws.RetryCount)
		return nil
	}

	// Nothing worked; hold position and escalate
	metrics.RecordConflictResolution("wait")
	r.scheduleRetry(b, ws.RetryCount)
	return nil
}

// ClearWait cancels the escalation for a vehicle that moved on its own
func (r *Resolver) ClearWait(ctx context.Context, vehicleID string) {
	r.clearWait(ctx, vehicleID)
}

// Stop cancels all pending retry timers
func (r *Resolver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// tryYield signals the blocker to give way when this vehicle outranks
// it. The blocked vehicle keeps waiting for the cell to clear.
func (r *Resolver) tryYield(ctx context.Context, b *Blockage) bool {
	mine, ok := r.contender(ctx, b.VehicleID)
	if !ok {
		return false
	}
	theirs, ok := r.contender(ctx, b.BlockedBy)
	if !ok {
		return false
	}

	verdict := dispatch.Compare(mine, theirs)
	if verdict.Winner != b.VehicleID {
		return false
	}

	cmd := &common.VehicleCommand{
		Action: common.CommandYield,
		Reason: fmt.Sprintf("%s outranks at %s (%s, diff %d)", b.VehicleID, b.TargetQR, verdict.Reason, verdict.Diff),
	}
	if err := r.publisher.PublishCommand(ctx, b.BlockedBy, cmd); err != nil {
		fmt.Printf("Warning: yield signal to %s failed: %v\n", b.BlockedBy, err)
		return false
	}

	r.bus.Publish(events.Event{
		Type:      events.TypeYield,
		VehicleID: b.BlockedBy,
		NodeQR:    b.TargetQR,
		Payload:   map[string]interface{}{"requestedBy": b.VehicleID, "reason": verdict.Reason},
	})
	metrics.RecordConflictResolution("yield")
	fmt.Printf("Yield: %s gives way to %s at %s (%s)\n", b.BlockedBy, b.VehicleID, b.TargetQR, verdict.Reason)
	return true
}

// tryReroute replans around the blocker and accepts the detour when its
// length passes the escalation tier in force.
func (r *Resolver) tryReroute(ctx context.Context, b *Blockage, ws *domainState.WaitState, waitFor time.Duration) bool {
	veh, ok := r.registry.Get(b.VehicleID)
	if !ok || veh.NodeQR == "" {
		return false
	}
	active, ok, err := r.paths.GetPath(ctx, b.VehicleID)
	if err != nil || !ok || active.Path.IsEmpty() {
		return false
	}
	dest, ok := active.Path.Destination()
	if !ok || dest.QR == veh.NodeQR {
		return false
	}

	opts, err := r.rerouteOptions(ctx, b, veh.NodeQR, dest.QR, veh.Carrying, dest.Action)
	if err != nil {
		fmt.Printf("Warning: reroute snapshots for %s failed: %v\n", b.VehicleID, err)
		return false
	}

	var detour *path.Path
	if waitFor >= EmergencyAfter {
		// Past the hard cap the avoid set is allowed to fall away too
		detour, _, err = r.finder.FindWithFallback(veh.FloorID, veh.NodeQR, dest.QR, opts)
	} else {
		detour, err = r.finder.FindTopological(veh.FloorID, veh.NodeQR, dest.QR, opts)
	}
	if err != nil {
		return false
	}

	remaining := active.Path.Len() - active.Path.IndexOf(veh.NodeQR) - 1
	if remaining <= 0 {
		remaining = active.Path.Len()
	}
	tier, accepted := validateDetour(remaining, detour.Len(), active.Metadata.IsCarrying, ws.RetryCount, waitFor)
	if !accepted {
		fmt.Printf("Reroute for %s rejected: %d steps vs %d remaining (retry %d, waited %v)\n",
			b.VehicleID, detour.Len(), remaining, ws.RetryCount, waitFor.Truncate(time.Second))
		return false
	}

	meta := active.Metadata
	meta.RerouteCount++
	if err := r.paths.SavePath(ctx, b.VehicleID, detour, meta); err != nil {
		fmt.Printf("Warning: saving detour for %s failed: %v\n", b.VehicleID, err)
		return false
	}

	cmd := &common.VehicleCommand{
		Action: common.CommandReroute,
		Path:   detour.Encode(),
		Reason: fmt.Sprintf("blocked by %s at %s", b.BlockedBy, b.TargetQR),
	}
	if err := r.publisher.PublishCommand(ctx, b.VehicleID, cmd); err != nil {
		fmt.Printf("Warning: reroute publish to %s failed: %v\n", b.VehicleID, err)
		return false
	}

	r.bus.Publish(events.Event{
		Type:      events.TypeReroute,
		VehicleID: b.VehicleID,
		NodeQR:    b.TargetQR,
		Payload:   map[string]interface{}{"steps": detour.Len(), "tier": tier, "rerouteCount": meta.RerouteCount},
	})
	metrics.RecordConflictResolution("reroute")
	metrics.RecordReroute(tier)
	fmt.Printf("Reroute: %s takes %d-step detour around %s (tier %s)\n", b.VehicleID, detour.Len(), b.BlockedBy, tier)
	return true
}

// tryBacktrack retreats along the driven path looking for a cell to hide
// in, preferring a reservable parking cell nearby.
func (r *Resolver) tryBacktrack(ctx context.Context, b *Blockage) bool {
	veh, ok := r.registry.Get(b.VehicleID)
	if !ok || veh.NodeQR == "" {
		return false
	}
	active, ok, err := r.paths.GetPath(ctx, b.VehicleID)
	if err != nil || !ok {
		return false
	}
	idx := active.Path.IndexOf(veh.NodeQR)
	if idx < 0 {
		return false
	}

	occupied, err := r.occupation.GetAll(ctx)
	if err != nil {
		return false
	}
	activePaths, err := r.paths.GetAllActivePaths(ctx)
	if err != nil {
		return false
	}

	maxBack := utils.Min(idx, BacktrackLimit)
	for back := 1; back <= maxBack; back++ {
		cand := active.Path.Steps[idx-back].QR
		if cand == b.TargetQR {
			continue
		}
		if owner, held := occupied[cand]; held && owner != b.VehicleID {
			continue
		}

		retreat := reversedSegment(active.Path, idx, idx-back)

		spot, found := r.parking.Find(ctx, &ParkingQuery{
			NearQR:      cand,
			ConflictQR:  b.TargetQR,
			VehicleID:   b.VehicleID,
			FloorID:     veh.FloorID,
			ActivePaths: activePaths,
		})
		if found {
			spur, err := r.finder.FindTopological(veh.FloorID, cand, spot, pathfinding.Options{
				VehicleID:  b.VehicleID,
				LastAction: path.ActionStopAtNode,
			})
			if err != nil {
				r.parking.Release(ctx, spot)
				continue
			}
			full := joinPaths(retreat, spur)
			if r.publishBacktrack(ctx, b, full, events.TypeBacktrackToParking, fmt.Sprintf("parking at %s", spot)) {
				metrics.RecordConflictResolution("backtrack_parking")
				return true
			}
			r.parking.Release(ctx, spot)
			return false
		}

		if r.safeToWait(cand, b, activePaths) {
			if r.publishBacktrack(ctx, b, retreat, events.TypeBacktrackAndWait, fmt.Sprintf("waiting at %s", cand)) {
				metrics.RecordConflictResolution("backtrack_wait")
				return true
			}
			return false
		}
	}
	return false
}

func (r *Resolver) publishBacktrack(ctx context.Context, b *Blockage, p *path.Path, evType events.Type, reason string) bool {
	if p.IsEmpty() {
		return false
	}
	cmd := &common.VehicleCommand{
		Action: common.CommandBacktrack,
		Path:   p.Encode(),
		Reason: reason,
	}
	if err := r.publisher.PublishCommand(ctx, b.VehicleID, cmd); err != nil {
		fmt.Printf("Warning: backtrack publish to %s failed: %v\n", b.VehicleID, err)
		return false
	}
	r.bus.Publish(events.Event{
		Type:      evType,
		VehicleID: b.VehicleID,
		NodeQR:    b.WaitingAt,
		Payload:   map[string]interface{}{"steps": p.Len(), "reason": reason},
	})
	fmt.Printf("Backtrack: %s retreats %d step(s), %s\n", b.VehicleID, p.Len(), reason)
	return true
}

// safeToWait reports whether a cell is out of everyone's way
func (r *Resolver) safeToWait(qr string, b *Blockage, activePaths []domainState.ActivePath) bool {
	for _, ap := range activePaths {
		if ap.VehicleID == b.VehicleID {
			continue
		}
		if ap.Path.Contains(qr) {
			return false
		}
	}
	return qr != b.TargetQR
}

// loadOrStartWait returns the live wait record, creating it on the
// first report of this blockage.
func (r *Resolver) loadOrStartWait(ctx context.Context, b *Blockage) *domainState.WaitState {
	ws, ok, err := r.waits.GetWaitState(ctx, b.VehicleID)
	if err == nil && ok && ws.WaitingAt == b.WaitingAt {
		return ws
	}
	ws = &domainState.WaitState{
		VehicleID: b.VehicleID,
		WaitingAt: b.WaitingAt,
		TargetQR:  b.TargetQR,
		BlockedBy: b.BlockedBy,
		StartedAt: r.clock.Now(),
	}
	if err := r.waits.SetWaitState(ctx, b.VehicleID, ws); err != nil {
		fmt.Printf("Warning: saving wait state for %s failed: %v\n", b.VehicleID, err)
	}
	return ws
}

// scheduleRetry arms the escalation timer: first re-check after the
// initial delay, then at the retry interval. Each firing re-enters
// Resolve with a bumped retry count; past the hard cap the reroute
// validation switches itself to emergency.
func (r *Resolver) scheduleRetry(b *Blockage, retryCount int) {
	delay := InitialWaitDelay
	if retryCount > 0 {
		delay = RetryInterval
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[b.VehicleID]; ok {
		t.Stop()
	}
	r.timers[b.VehicleID] = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		r.retry(ctx, b)
	})
}

// retry re-examines a blockage when its timer fires. A vehicle that is
// free again goes back to the dispatcher; one still blocked climbs the
// ladder with a higher retry count.
func (r *Resolver) retry(ctx context.Context, b *Blockage) {
	ws, ok, err := r.waits.GetWaitState(ctx, b.VehicleID)
	if err != nil || !ok || ws.WaitingAt != b.WaitingAt {
		return // resolved elsewhere
	}

	if owner, held, err := r.occupation.Owner(ctx, b.TargetQR); err == nil && (!held || owner == b.VehicleID) {
		fmt.Printf("Conflict cleared: %s free to proceed past %s\n", b.VehicleID, b.TargetQR)
		r.clearWait(ctx, b.VehicleID)
		if r.replan != nil {
			r.replan(ctx, b.VehicleID)
		}
		return
	}

	ws.RetryCount++
	if err := r.waits.SetWaitState(ctx, b.VehicleID, ws); err != nil {
		fmt.Printf("Warning: bumping wait state for %s failed: %v\n", b.VehicleID, err)
	}
	if err := r.Resolve(ctx, b); err != nil {
		fmt.Printf("Warning: conflict retry for %s failed: %v\n", b.VehicleID, err)
	}
}

func (r *Resolver) clearWait(ctx context.Context, vehicleID string) {
	r.mu.Lock()
	if t, ok := r.timers[vehicleID]; ok {
		t.Stop()
		delete(r.timers, vehicleID)
	}
	r.mu.Unlock()
	if err := r.waits.ClearWaitState(ctx, vehicleID); err != nil {
		fmt.Printf("Warning: clearing wait state for %s failed: %v\n", vehicleID, err)
	}
}

// contender assembles the priority inputs for one vehicle
func (r *Resolver) contender(ctx context.Context, vehicleID string) (dispatch.Contender, bool) {
	veh, ok := r.registry.Get(vehicleID)
	if !ok {
		return dispatch.Contender{}, false
	}
	c := dispatch.Contender{VehicleID: vehicleID, Carrying: veh.Carrying}
	if t, ok, err := r.tasks.ActiveTask(ctx, vehicleID); err == nil && ok {
		c.TaskSeq = t.Seq
	}
	return c, true
}

// rerouteOptions builds the hard-avoid set for a detour: the contested
// cell plus every cell of the blocker's declared path.
func (r *Resolver) rerouteOptions(ctx context.Context, b *Blockage, startQR, destQR string, carrying bool, lastAction path.Action) (pathfinding.Options, error) {
	avoid := map[string]struct{}{b.TargetQR: {}}
	if blockerPath, ok, err := r.paths.GetPath(ctx, b.BlockedBy); err == nil && ok {
		for _, qr := range blockerPath.Path.NodeQRs() {
			avoid[qr] = struct{}{}
		}
	}
	delete(avoid, startQR)
	delete(avoid, destQR)

	occupied, err := r.occupation.GetAll(ctx)
	if err != nil {
		return pathfinding.Options{}, err
	}
	snap, err := r.traffic.Snapshot(ctx, b.VehicleID)
	if err != nil {
		return pathfinding.Options{}, err
	}
	locks, err := r.rows.AllLocks(ctx)
	if err != nil {
		return pathfinding.Options{}, err
	}
	rowLocks := make(map[pathfinding.RowKey]floorplan.RowDirection, len(locks))
	for _, l := range locks {
		rowLocks[pathfinding.RowKey{FloorID: l.FloorID, Row: l.Row}] = l.Direction
	}

	return pathfinding.Options{
		VehicleID:  b.VehicleID,
		Carrying:   carrying,
		Avoid:      avoid,
		Occupied:   occupied,
		Traffic:    snap,
		RowLocks:   rowLocks,
		LastAction: lastAction,
	}, nil
}

// validateDetour applies the tiered length limits. The returned tier
// labels which escalation level admitted the detour.
func validateDetour(originalLen, detourLen int, carrying bool, retryCount int, waitFor time.Duration) (string, bool) {
	if waitFor >= EmergencyAfter {
		return "emergency", true
	}
	if originalLen <= 0 {
		return "t1", true
	}

	base := limitEmpty
	if carrying {
		base = limitCarrying
	}
	ratio := float64(detourLen) / float64(originalLen) * 100

	if ratio <= base {
		return "t1", true
	}
	withRetries := utils.ClampFloat(base+float64(retryCount)*limitPerRetry, base, limitCeiling)
	if ratio <= withRetries {
		return "t2", true
	}
	waitBumps := float64(int(waitFor/RetryInterval)) * limitPerWaitInc
	withWait := utils.ClampFloat(withRetries+waitBumps, base, limitCeiling)
	if ratio <= withWait {
		return "t3", true
	}
	return "", false
}

// reversedSegment builds the retreat from step index from down to step
// index to, exclusive. Directions flip; the final step stops the
// vehicle.
func reversedSegment(p *path.Path, from, to int) *path.Path {
	steps := make([]path.Step, 0, from-to)
	for j := from; j > to; j-- {
		steps = append(steps, path.Step{
			QR:        p.Steps[j-1].QR,
			Direction: p.Steps[j].Direction.Opposite(),
			Action:    path.ActionNone,
		})
	}
	if n := len(steps); n > 0 {
		steps[n-1].Action = path.ActionStopAtNode
	}
	return path.New(p.VehicleID, p.FloorID, steps)
}

// joinPaths appends b's steps after a's, keeping b's final action
func joinPaths(a, b *path.Path) *path.Path {
	steps := make([]path.Step, 0, a.Len()+b.Len())
	for i, s := range a.Steps {
		if i == a.Len()-1 && !b.IsEmpty() {
			s.Action = path.ActionNone
		}
		steps = append(steps, s)
	}
	steps = append(steps, b.Steps...)
	return path.New(a.VehicleID, a.FloorID, steps)
}
