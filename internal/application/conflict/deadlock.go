package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/dispatch"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// DeadlockScanInterval is how often the wait-for graph is rebuilt
const DeadlockScanInterval = 30 * time.Second

// DeadlockDetector breaks circular waits. Vehicles holding cells while
// wanting cells held by others form a wait-for graph; a cycle in it
// means nobody moves until someone is forced out.
type DeadlockDetector struct {
	registry   *fleet.Registry
	tasks      domainState.TaskQueueStore
	occupation domainState.OccupationStore
	paths      domainState.PathStore
	waits      domainState.WaitStateStore
	bus        *events.Bus
	clock      shared.Clock

	// replan re-dispatches the vehicle whose reservations were released
	replan func(ctx context.Context, vehicleID string)

	// amr widens the graph to free-roaming holds when set
	amr domainState.AMRReservationStore
}

// NewDeadlockDetector wires the cycle breaker
func NewDeadlockDetector(
	registry *fleet.Registry,
	tasks domainState.TaskQueueStore,
	occupation domainState.OccupationStore,
	paths domainState.PathStore,
	waits domainState.WaitStateStore,
	bus *events.Bus,
	clock shared.Clock,
) *DeadlockDetector {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &DeadlockDetector{
		registry:   registry,
		tasks:      tasks,
		occupation: occupation,
		paths:      paths,
		waits:      waits,
		bus:        bus,
		clock:      clock,
	}
}

// SetReplanner registers the dispatcher callback for freed vehicles
func (d *DeadlockDetector) SetReplanner(fn func(ctx context.Context, vehicleID string)) {
	d.replan = fn
}

// SetAMRReservations folds the free-roaming claim space into the scan.
// Shuttles and AMRs share floors, so a cycle can span both populations.
func (d *DeadlockDetector) SetAMRReservations(store domainState.AMRReservationStore) {
	d.amr = store
}

// Scan builds the wait-for graph once and breaks the first cycle found.
// The daemon loop supervisor drives it on its cadence; tests and the
// admin surface can force a scan directly.
func (d *DeadlockDetector) Scan(ctx context.Context) {
	edges, err := d.buildWaitForGraph(ctx)
	if err != nil {
		fmt.Printf("Warning: deadlock scan failed: %v\n", err)
		return
	}
	if len(edges) == 0 {
		return
	}

	cycle := findCycle(edges)
	if len(cycle) == 0 {
		return
	}

	victim := d.pickVictim(ctx, cycle)
	fmt.Printf("Deadlock: cycle %v, releasing %s\n", cycle, victim)

	if _, err := d.occupation.ClearVehicle(ctx, victim); err != nil {
		fmt.Printf("Warning: clearing cells of %s failed: %v\n", victim, err)
	}
	if err := d.paths.DeletePath(ctx, victim); err != nil {
		fmt.Printf("Warning: dropping path of %s failed: %v\n", victim, err)
	}
	if d.amr != nil {
		if _, err := d.amr.ClearVehicle(ctx, victim); err != nil {
			fmt.Printf("Warning: clearing free-roaming holds of %s failed: %v\n", victim, err)
		}
	}
	if err := d.waits.ClearWaitState(ctx, victim); err != nil {
		fmt.Printf("Warning: clearing wait state of %s failed: %v\n", victim, err)
	}

	d.bus.Publish(events.Event{
		Type:      events.TypeReroute,
		VehicleID: victim,
		Payload:   map[string]interface{}{"cause": "deadlock", "cycle": cycle},
	})
	metrics.RecordDeadlockResolved()

	if d.replan != nil {
		d.replan(ctx, victim)
	}
}

// buildWaitForGraph maps each en-route vehicle to the set of vehicles
// owning cells on its declared path.
func (d *DeadlockDetector) buildWaitForGraph(ctx context.Context) (map[string][]string, error) {
	occupied, err := d.occupation.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting occupation: %w", err)
	}
	if d.amr != nil {
		held, err := d.amr.HeldNodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("snapshotting free-roaming holds: %w", err)
		}
		for qr, owner := range held {
			if _, taken := occupied[qr]; !taken {
				occupied[qr] = owner
			}
		}
	}

	edges := make(map[string][]string)
	for _, v := range d.registry.All() {
		if v.Status != vehicle.StatusMoving && v.Status != vehicle.StatusWaiting {
			continue
		}
		qrs := d.declaredRoute(ctx, v.ID)
		if len(qrs) == 0 {
			continue
		}

		blockers := make(map[string]struct{})
		for _, qr := range qrs {
			if owner, held := occupied[qr]; held && owner != v.ID {
				blockers[owner] = struct{}{}
			}
		}
		if len(blockers) == 0 {
			continue
		}
		out := make([]string, 0, len(blockers))
		for b := range blockers {
			out = append(out, b)
		}
		sort.Strings(out)
		edges[v.ID] = out
	}
	return edges, nil
}

// declaredRoute is the path a vehicle has committed to, from whichever
// claim space it plans in.
func (d *DeadlockDetector) declaredRoute(ctx context.Context, vehicleID string) []string {
	if active, ok, err := d.paths.GetPath(ctx, vehicleID); err == nil && ok {
		return active.Path.NodeQRs()
	}
	if d.amr != nil {
		if qrs, ok, err := d.amr.Path(ctx, vehicleID); err == nil && ok {
			return qrs
		}
	}
	return nil
}

// pickVictim chooses the cycle member with the lowest priority so loaded
// vehicles and old tasks keep their claims.
func (d *DeadlockDetector) pickVictim(ctx context.Context, cycle []string) string {
	victim := cycle[0]
	var victimScore int64 = -1
	for _, id := range cycle {
		c := dispatch.Contender{VehicleID: id}
		if veh, ok := d.registry.Get(id); ok {
			c.Carrying = veh.Carrying
		}
		if t, ok, err := d.tasks.ActiveTask(ctx, id); err == nil && ok {
			c.TaskSeq = t.Seq
		}
		score := dispatch.PriorityOf(c)
		if victimScore == -1 || score < victimScore || (score == victimScore && id < victim) {
			victim = id
			victimScore = score
		}
	}
	return victim
}

// findCycle runs a DFS over the wait-for graph and returns the members
// of the first cycle encountered, in deterministic order.
func findCycle(edges map[string][]string) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	parent := make(map[string]string)

	roots := make([]string, 0, len(edges))
	for v := range edges {
		roots = append(roots, v)
	}
	sort.Strings(roots)

	var cycle []string
	var dfs func(v string) bool
	dfs = func(v string) bool {
		color[v] = gray
		for _, w := range edges[v] {
			switch color[w] {
			case white:
				parent[w] = v
				if dfs(w) {
					return true
				}
			case gray:
				// Found a back edge; walk parents to collect the loop
				cycle = append(cycle, w)
				for u := v; u != w; u = parent[u] {
					cycle = append(cycle, u)
					if _, ok := parent[u]; !ok {
						break
					}
				}
				return true
			}
		}
		color[v] = black
		return false
	}

	for _, v := range roots {
		if color[v] == white {
			if dfs(v) {
				sort.Strings(cycle)
				return cycle
			}
		}
	}
	return nil
}
