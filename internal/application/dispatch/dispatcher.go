// Package dispatch owns the shuttle dispatch loop and the event router.
// The dispatcher is the single writer on the committed queue's dequeue
// path: it matches pending tasks to idle shuttles, plans the first
// mission segment and hands the envelope to the publish-with-retry
// path. The router feeds vehicle events back into task state.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	state "github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/mission"
	domainDispatch "github.com/fleetworks/wcs-go/internal/domain/dispatch"
	domainMission "github.com/fleetworks/wcs-go/internal/domain/mission"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

const (
	// DispatchInterval is the safety-net cadence; event handlers wake
	// the loop early when work appears.
	DispatchInterval = 2 * time.Second

	// AckTimeout bounds how long a published mission may go
	// unacknowledged before the task fails.
	AckTimeout = 30 * time.Second

	// PublishRetryInterval is how often an unacknowledged mission is
	// re-published within the ack window.
	PublishRetryInterval = 500 * time.Millisecond

	// PickupLockTTL bounds a pickup claim; normally released as soon as
	// the loaded shuttle clears the pickup cell.
	PickupLockTTL = 10 * time.Minute

	dispatchTimeout = 15 * time.Second
)

// Dispatcher matches pending tasks to idle shuttles
type Dispatcher struct {
	registry    *fleet.Registry
	tasks       domainState.TaskQueueStore
	reservation domainState.ReservationStore
	missions    *mission.Coordinator
	finder      *pathfinding.Pathfinder
	publisher   common.MissionPublisher
	bus         *events.Bus
	clock       shared.Clock

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewDispatcher(
	registry *fleet.Registry,
	tasks domainState.TaskQueueStore,
	reservation domainState.ReservationStore,
	missions *mission.Coordinator,
	finder *pathfinding.Pathfinder,
	publisher common.MissionPublisher,
	bus *events.Bus,
	clock shared.Clock,
) *Dispatcher {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Dispatcher{
		registry:    registry,
		tasks:       tasks,
		reservation: reservation,
		missions:    missions,
		finder:      finder,
		publisher:   publisher,
		bus:         bus,
		clock:       clock,
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start runs the dispatch loop until Stop is called
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(DispatchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stopCh:
				return
			case <-ticker.C:
			case <-d.wake:
			}
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			if err := d.DispatchNext(ctx); err != nil {
				fmt.Printf("Warning: dispatch pass failed: %v\n", err)
			}
			cancel()
		}
	}()
	fmt.Printf("Dispatcher started (interval: %v)\n", DispatchInterval)
}

// Stop halts the loop and waits for in-flight publishes to settle
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// Wake asks the loop to run a dispatch pass now
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// DispatchNext runs one dispatch pass: peek the oldest pending task,
// pick the best idle shuttle, claim the pickup, plan the first segment
// and hand off to publish-with-retry. At most one task is assigned per
// pass.
func (d *Dispatcher) DispatchNext(ctx context.Context) error {
	t, ok, err := d.tasks.NextPending(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	shuttle := d.chooseShuttle(t)
	if shuttle == nil {
		return nil
	}

	lockKey := state.PickupLockKey(t.SourceQR)
	if err := d.reservation.Acquire(ctx, lockKey, shuttle.ID, PickupLockTTL); err != nil {
		if shared.IsLockHeld(err) {
			// Another shuttle is still working that pickup cell
			return nil
		}
		return err
	}

	started := d.clock.Now()
	env, err := d.missions.PlanNext(ctx, &mission.Request{
		VehicleID:        shuttle.ID,
		TaskID:           t.ID,
		TaskSeq:          t.Seq,
		Purpose:          mission.PurposePickup,
		FinalTargetQR:    t.SourceQR,
		FinalTargetFloor: t.SourceFloor,
		PickupQR:         t.SourceQR,
		EndQR:            t.DestQR,
		ItemInfo:         t.ItemInfo,
	})
	if err != nil {
		metrics.RecordPlanDuration("error", d.clock.Since(started).Seconds())
		d.releaseLock(ctx, lockKey)
		var noPath *shared.NoPathError
		if errors.As(err, &noPath) {
			d.failTask(ctx, t, "no path to pickup: "+err.Error())
			return nil
		}
		return fmt.Errorf("planning pickup segment for task %s: %w", t.ID, err)
	}
	metrics.RecordPlanDuration("ok", d.clock.Since(started).Seconds())

	if _, err := d.tasks.UpdateStatus(ctx, t.ID, task.StatusAssigned, shuttle.ID); err != nil {
		d.releaseLock(ctx, lockKey)
		return fmt.Errorf("assigning task %s to %s: %w", t.ID, shuttle.ID, err)
	}
	if _, err := d.registry.Update(ctx, shuttle.ID, func(v *vehicle.Vehicle) {
		_ = v.Assign(t.ID)
	}); err != nil {
		fmt.Printf("Warning: binding %s to task %s in registry failed: %v\n", shuttle.ID, t.ID, err)
	}

	fmt.Printf("Dispatch: task %s -> %s (pickup %s, end %s)\n", t.ID, shuttle.ID, t.SourceQR, t.DestQR)
	d.Publish(env, t.ID, shuttle.ID)
	return nil
}

// chooseShuttle picks the receiving shuttle: same-floor shuttles first,
// ranked by planned path length to the pickup; between equals, higher
// priority, then id, so repeated passes stay stable.
func (d *Dispatcher) chooseShuttle(t *task.Task) *vehicle.Vehicle {
	idle := d.registry.IdleShuttles()
	if len(idle) == 0 {
		return nil
	}

	type ranked struct {
		v        *vehicle.Vehicle
		offFloor bool
		dist     int
		priority int64
	}
	scored := make([]ranked, 0, len(idle))
	for _, v := range idle {
		r := ranked{v: v, priority: domainDispatch.PriorityOf(domainDispatch.Contender{
			VehicleID: v.ID,
			Carrying:  v.Carrying,
			TaskSeq:   t.Seq,
		})}
		if v.FloorID == t.SourceFloor && v.NodeQR != "" {
			if nodes, err := d.finder.FindMetric(v.FloorID, v.NodeQR, t.SourceQR); err == nil {
				r.dist = len(nodes)
			} else {
				r.offFloor = true
			}
		} else {
			r.offFloor = true
		}
		scored = append(scored, r)
	}

	best := scored[0]
	for _, r := range scored[1:] {
		if betterCandidate(r.offFloor, r.dist, r.priority, r.v.ID, best.offFloor, best.dist, best.priority, best.v.ID) {
			best = r
		}
	}
	return best.v
}

func betterCandidate(offFloor bool, dist int, prio int64, id string, bOffFloor bool, bDist int, bPrio int64, bID string) bool {
	if offFloor != bOffFloor {
		return !offFloor
	}
	if !offFloor && dist != bDist {
		return dist < bDist
	}
	if prio != bPrio {
		return prio > bPrio
	}
	return id < bID
}

// Publish hands an envelope to the publish-with-retry path. Each
// publish runs as its own task so a dead vehicle cannot stall the
// dispatch loop.
func (d *Dispatcher) Publish(env *domainMission.Envelope, taskID, vehicleID string) {
	d.wg.Add(1)
	go d.publishWithRetry(env, taskID, vehicleID)
}

// publishWithRetry publishes the mission, re-sending every retry
// interval until the vehicle acknowledges it or the ack window closes.
// A timeout fails the task and frees the vehicle.
func (d *Dispatcher) publishWithRetry(env *domainMission.Envelope, taskID, vehicleID string) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), AckTimeout+5*time.Second)
	defer cancel()

	acked := make(chan struct{}, 1)
	var once sync.Once
	subID := d.bus.Subscribe(events.TypeMissionAck, func(_ context.Context, ev events.Event) {
		if ev.VehicleID != vehicleID {
			return
		}
		if id, ok := ev.Payload["missionId"].(string); ok && id != "" && id != env.MissionID {
			return
		}
		once.Do(func() { acked <- struct{}{} })
	})
	defer d.bus.Unsubscribe(events.TypeMissionAck, subID)

	deadline := d.clock.Now().Add(AckTimeout)
	ticker := time.NewTicker(PublishRetryInterval)
	defer ticker.Stop()

	attempts := 0
	send := func() {
		attempts++
		if err := d.publisher.PublishMission(ctx, vehicleID, env); err != nil {
			if attempts == 1 {
				fmt.Printf("Warning: mission %s publish to %s failed: %v\n", env.MissionID, vehicleID, err)
			}
		}
	}
	send()

	for {
		select {
		case <-acked:
			metrics.RecordMissionDispatch(vehicleID, "acked")
			if attempts > 1 {
				fmt.Printf("Mission %s acked by %s after %d attempts\n", env.MissionID, vehicleID, attempts)
			}
			return
		case <-ticker.C:
			if d.clock.Now().After(deadline) {
				metrics.RecordMissionDispatch(vehicleID, "timeout")
				fmt.Printf("Warning: mission %s to %s unacknowledged after %v, failing task %s\n",
					env.MissionID, vehicleID, AckTimeout, taskID)
				d.abandonMission(ctx, taskID, vehicleID)
				return
			}
			send()
		case <-ctx.Done():
			return
		}
	}
}

// abandonMission fails a task whose mission never reached the vehicle
// and returns the vehicle to the idle pool.
func (d *Dispatcher) abandonMission(ctx context.Context, taskID, vehicleID string) {
	t, ok, err := d.tasks.Get(ctx, taskID)
	if err != nil || !ok {
		return
	}
	d.failTask(ctx, t, "mission unacknowledged by "+vehicleID)
	if _, err := d.registry.Update(ctx, vehicleID, func(v *vehicle.Vehicle) {
		v.Release()
	}); err != nil {
		fmt.Printf("Warning: releasing %s after failed hand-off: %v\n", vehicleID, err)
	}
}

// failTask marks a task failed and releases the locks it held
func (d *Dispatcher) failTask(ctx context.Context, t *task.Task, reason string) {
	if _, err := d.tasks.UpdateStatus(ctx, t.ID, task.StatusFailed, t.VehicleID); err != nil {
		fmt.Printf("Warning: failing task %s: %v\n", t.ID, err)
		return
	}
	if updated, ok, err := d.tasks.Get(ctx, t.ID); err == nil && ok {
		updated.FailReason = reason
		if err := d.tasks.Save(ctx, updated); err != nil {
			fmt.Printf("Warning: recording failure reason for %s: %v\n", t.ID, err)
		}
	}
	d.releaseLock(ctx, state.PickupLockKey(t.SourceQR))
	d.releaseLock(ctx, state.EndNodeLockKey(t.DestQR))
	metrics.RecordMissionDispatch(t.VehicleID, "failed")
	fmt.Printf("Task %s failed: %s\n", t.ID, reason)
}

func (d *Dispatcher) releaseLock(ctx context.Context, key string) {
	if err := d.reservation.Release(ctx, key); err != nil {
		fmt.Printf("Warning: releasing %s failed: %v\n", key, err)
	}
}
