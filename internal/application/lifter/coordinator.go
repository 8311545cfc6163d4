// Package lifter coordinates the vertical transport tower. Trip
// requests flow through one FIFO queue and a single processor loop,
// with drift correction against the physical floor sensors.
package lifter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

const (
	// BusyTTL is the safety lease on the busy latch: a crashed trip
	// frees the tower after this long. Healthy trips renew it while
	// the cage travels and while it holds for boarding.
	BusyTTL = 60 * time.Second

	// ProcessInterval is how often the processor looks for work
	ProcessInterval = 1 * time.Second

	// moveTimeout bounds one physical leg between floors
	moveTimeout = 90 * time.Second

	// boardTimeout bounds how long the cage holds at the origin floor
	// waiting for the vehicle to drive on.
	boardTimeout = 60 * time.Second

	// sensorPollInterval is how often arrival sensors are checked
	// while the cage travels.
	sensorPollInterval = 500 * time.Millisecond

	// tripBudget bounds one whole trip: positioning leg, boarding
	// wait, carry leg, plus slack for store and PLC round trips.
	tripBudget = 2*moveTimeout + boardTimeout + 10*time.Second
)

// errBoardTimeout means the vehicle never drove onto the cage. Not a
// tower fault: the trip is abandoned and the vehicle re-requests.
var errBoardTimeout = errors.New("vehicle did not board in time")

// Coordinator owns the tower. All trips flow through its queue; nothing
// else writes the control tags.
type Coordinator struct {
	store  lifter.StatusStore
	plc    lifter.PLCClient
	bus    *events.Bus
	clock  shared.Clock
	floors []int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoordinator wires the tower coordinator. floors lists the levels
// the tower serves, in ascending order.
func NewCoordinator(store lifter.StatusStore, plc lifter.PLCClient, bus *events.Bus, clock shared.Clock, floors []int) *Coordinator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Coordinator{
		store:  store,
		plc:    plc,
		bus:    bus,
		clock:  clock,
		floors: floors,
		stopCh: make(chan struct{}),
	}
}

// RequestLifter appends a trip request to the FIFO queue
func (c *Coordinator) RequestLifter(ctx context.Context, e *lifter.QueueEntry) error {
	if e.FromFloor == e.ToFloor {
		return shared.NewValidationError("toFloor", "trip must change floors")
	}
	e.EnqueuedAt = c.clock.Now()
	if err := c.store.Enqueue(ctx, e); err != nil {
		return fmt.Errorf("enqueueing lifter trip for %s: %w", e.VehicleID, err)
	}
	fmt.Printf("Lifter trip queued: %s floor %d -> %d\n", e.VehicleID, e.FromFloor, e.ToFloor)
	return nil
}

// Status returns the tower state, drift-corrected against the floor
// sensors. An empty cache is synthesized from sensors.
func (c *Coordinator) Status(ctx context.Context) (*lifter.Lifter, error) {
	cached, ok, err := c.store.Status(ctx)
	if err != nil {
		return nil, err
	}

	observed, sensorErr := lifter.ObservedFloor(ctx, c.plc, c.floors)
	if sensorErr != nil {
		if !ok {
			return nil, fmt.Errorf("lifter state cold and sensors unreadable: %w", sensorErr)
		}
		// Sensors flaky; trust the cache until they recover
		return cached, nil
	}

	if !ok {
		synthesized := &lifter.Lifter{
			ID:           "LIFTER_1",
			CurrentFloor: observed,
			Status:       lifter.StatusIdle,
		}
		if observed == 0 {
			// Cage between floors with no cached state: report moving
			// with unknown target until a sensor latches.
			synthesized.Status = lifter.StatusMoving
			synthesized.CurrentFloor = c.floors[0]
		}
		if err := c.store.SaveStatus(ctx, synthesized); err != nil {
			return nil, err
		}
		return synthesized, nil
	}

	if observed != 0 && observed != cached.CurrentFloor && cached.Status != lifter.StatusMoving {
		fmt.Printf("Warning: lifter drift corrected, cache said floor %d, sensor says %d\n", cached.CurrentFloor, observed)
		cached.CurrentFloor = observed
		if err := c.store.SaveStatus(ctx, cached); err != nil {
			return nil, err
		}
	}
	return cached, nil
}

// QueueLen reports pending trips
func (c *Coordinator) QueueLen(ctx context.Context) (int, error) {
	return c.store.QueueLen(ctx)
}

// CompleteTrip acknowledges a trip from outside the processor: the busy
// latch is dropped, an error state is cleared back to idle, and the
// oldest waiting request is returned so the caller knows what the tower
// does next. Trips the processor drives itself release their own latch;
// this path exists for manual recovery and external lifter controllers.
func (c *Coordinator) CompleteTrip(ctx context.Context, taskID string) (*lifter.QueueEntry, bool, error) {
	status, ok, err := c.store.Status(ctx)
	if err != nil {
		return nil, false, err
	}
	if ok && status.CarriedBy != "" {
		fmt.Printf("Warning: trip %s completed externally while tower reports carrying %s\n", taskID, status.CarriedBy)
	}

	if err := c.store.ClearBusy(ctx); err != nil {
		return nil, false, fmt.Errorf("clearing lifter busy latch: %w", err)
	}
	if ok && status.Status == lifter.StatusError {
		status.Status = lifter.StatusIdle
		status.TargetFloor = 0
		status.CarriedBy = ""
		if err := c.store.SaveStatus(ctx, status); err != nil {
			return nil, false, err
		}
		fmt.Printf("Lifter error state cleared by trip completion\n")
	}

	return c.store.Peek(ctx)
}

// HasPending reports whether the vehicle already has a queued trip
func (c *Coordinator) HasPending(ctx context.Context, vehicleID string) (bool, error) {
	return c.store.HasPending(ctx, vehicleID)
}

// Start launches the processor loop
func (c *Coordinator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(ProcessInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.processNext()
			}
		}
	}()
	fmt.Printf("Lifter coordinator started (interval: %v)\n", ProcessInterval)
}

// Stop halts the processor and waits for an in-flight trip to finish
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// processNext runs one iteration of the trip loop: skip when busy, pop
// the oldest request, latch busy with the safety TTL, drive the PLC,
// publish arrival, release.
func (c *Coordinator) processNext() {
	ctx, cancel := context.WithTimeout(context.Background(), tripBudget)
	defer cancel()

	busy, err := c.store.IsBusy(ctx)
	if err != nil || busy {
		return
	}

	entry, ok, err := c.store.Dequeue(ctx)
	if err != nil {
		fmt.Printf("Warning: lifter queue read failed: %v\n", err)
		return
	}
	if !ok {
		return
	}

	latched, err := c.store.SetBusy(ctx, BusyTTL)
	if err != nil || !latched {
		// Lost the latch; requeue so the trip is not dropped
		if reqErr := c.store.Enqueue(ctx, entry); reqErr != nil {
			fmt.Printf("Warning: lifter trip for %s lost: %v\n", entry.VehicleID, reqErr)
		}
		return
	}
	defer func() {
		if err := c.store.ClearBusy(ctx); err != nil {
			fmt.Printf("Warning: failed to clear lifter busy latch: %v\n", err)
		}
	}()

	if err := c.executeTrip(ctx, entry); err != nil {
		if errors.Is(err, errBoardTimeout) {
			fmt.Printf("Warning: lifter trip for %s abandoned: vehicle never boarded\n", entry.VehicleID)
			c.resetIdle(ctx)
			return
		}
		fmt.Printf("Warning: lifter trip for %s failed: %v\n", entry.VehicleID, err)
		c.markError(ctx, entry)
		return
	}

	if c.bus != nil {
		c.bus.Publish(events.Event{
			Type:      events.TypeLifterArrived,
			VehicleID: entry.VehicleID,
			TaskID:    entry.TaskID,
			FloorID:   entry.ToFloor,
			At:        c.clock.Now(),
		})
	}
}

// executeTrip runs one trip. When the vehicle is not yet aboard the
// cage first positions itself at the origin floor, announces arrival
// there, and holds until the vehicle drives on; then it carries the
// vehicle to the destination floor.
func (c *Coordinator) executeTrip(ctx context.Context, entry *lifter.QueueEntry) error {
	status, err := c.Status(ctx)
	if err != nil {
		return err
	}
	status.CarriedBy = entry.VehicleID

	if !entry.Boarded {
		if status.CurrentFloor != entry.FromFloor {
			if err := c.moveTo(ctx, status, entry.FromFloor); err != nil {
				return err
			}
		} else if err := c.store.SaveStatus(ctx, status); err != nil {
			return err
		}
		if err := c.awaitBoarding(ctx, entry); err != nil {
			return err
		}
	}

	if err := c.moveTo(ctx, status, entry.ToFloor); err != nil {
		return err
	}

	status.CarriedBy = ""
	if err := c.store.SaveStatus(ctx, status); err != nil {
		return err
	}
	fmt.Printf("Lifter arrived at floor %d for %s\n", entry.ToFloor, entry.VehicleID)
	return nil
}

// moveTo drives the cage to one floor and waits for its position
// sensor to latch.
func (c *Coordinator) moveTo(ctx context.Context, status *lifter.Lifter, floor int) error {
	status.Status = lifter.StatusMoving
	status.TargetFloor = floor
	if err := c.store.SaveStatus(ctx, status); err != nil {
		return err
	}

	tag := lifter.ControlTag(floor)
	if err := c.plc.WriteBool(ctx, tag, true); err != nil {
		return fmt.Errorf("commanding move to floor %d: %w", floor, err)
	}
	defer func() {
		if err := c.plc.WriteBool(ctx, tag, false); err != nil {
			fmt.Printf("Warning: failed to reset control tag %s: %v\n", tag, err)
		}
	}()

	if err := c.awaitArrival(ctx, floor); err != nil {
		return err
	}

	status.Status = lifter.StatusIdle
	status.CurrentFloor = floor
	status.TargetFloor = 0
	return c.store.SaveStatus(ctx, status)
}

// awaitBoarding announces the cage at the origin floor and waits for
// the vehicle to report itself aboard. The subscription is registered
// before the announcement so the report cannot slip past.
func (c *Coordinator) awaitBoarding(ctx context.Context, entry *lifter.QueueEntry) error {
	if c.bus == nil {
		return nil
	}

	boarded := make(chan struct{}, 1)
	var once sync.Once
	id := c.bus.Subscribe(events.TypeArrivedAtLifter, func(_ context.Context, ev events.Event) {
		if ev.VehicleID == entry.VehicleID {
			once.Do(func() { boarded <- struct{}{} })
		}
	})
	defer c.bus.Unsubscribe(events.TypeArrivedAtLifter, id)

	c.bus.Publish(events.Event{
		Type:      events.TypeLifterArrived,
		VehicleID: entry.VehicleID,
		TaskID:    entry.TaskID,
		FloorID:   entry.FromFloor,
		At:        c.clock.Now(),
	})

	timer := time.NewTimer(boardTimeout)
	defer timer.Stop()
	renew := time.NewTicker(BusyTTL / 3)
	defer renew.Stop()
	for {
		select {
		case <-boarded:
			return nil
		case <-renew.C:
			_ = c.store.RefreshBusy(ctx, BusyTTL)
		case <-timer.C:
			return errBoardTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resetIdle returns the tower to idle after an abandoned trip
func (c *Coordinator) resetIdle(ctx context.Context) {
	status, ok, err := c.store.Status(ctx)
	if err != nil || !ok {
		return
	}
	status.Status = lifter.StatusIdle
	status.TargetFloor = 0
	status.CarriedBy = ""
	if err := c.store.SaveStatus(ctx, status); err != nil {
		fmt.Printf("Warning: failed to reset lifter state: %v\n", err)
	}
}

func (c *Coordinator) awaitArrival(ctx context.Context, floor int) error {
	deadline := c.clock.Now().Add(moveTimeout)
	ticker := time.NewTicker(sensorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = c.store.RefreshBusy(ctx, BusyTTL)
			faulted, err := c.plc.ReadBool(ctx, lifter.TagError)
			if err == nil && faulted {
				return fmt.Errorf("lifter PLC reports fault during move to floor %d", floor)
			}
			on, err := c.plc.ReadBool(ctx, lifter.PositionTag(floor))
			if err != nil {
				fmt.Printf("Warning: lifter sensor read failed: %v\n", err)
				continue
			}
			if on {
				return nil
			}
			if c.clock.Now().After(deadline) {
				return fmt.Errorf("lifter did not reach floor %d within %v", floor, moveTimeout)
			}
		}
	}
}

func (c *Coordinator) markError(ctx context.Context, entry *lifter.QueueEntry) {
	status, _, err := c.store.Status(ctx)
	if err != nil || status == nil {
		return
	}
	status.Status = lifter.StatusError
	status.CarriedBy = entry.VehicleID
	if err := c.store.SaveStatus(ctx, status); err != nil {
		fmt.Printf("Warning: failed to record lifter error state: %v\n", err)
	}
}
