// Package events is the in-process event bus joining the vehicle
// gateway, the coordinators and the dispatcher. Ingress is a single
// dispatch goroutine fed by a bounded queue, so handler ordering per
// event is deterministic and a slow handler surfaces as queue pressure
// instead of unbounded goroutine growth.
package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Type names every event moving through the controller. Wire values
// match the vehicle protocol verbatim.
type Type string

const (
	TypeShuttleInitialized Type = "shuttle-initialized"
	TypeShuttleMoved       Type = "shuttle-moved"
	TypeShuttleWaiting     Type = "shuttle-waiting"
	TypeShuttleResumed     Type = "shuttle-resumed"
	TypeShuttleTaskStarted Type = "shuttle-task-started"
	TypePickupComplete     Type = "PICKUP_COMPLETE"
	TypeTaskComplete       Type = "TASK_COMPLETE"
	TypeArrivedAtLifter    Type = "ARRIVED_AT_LIFTER"
	TypeWaitingForLifter   Type = "WAITING_FOR_LIFTER"
	TypeLifterArrived      Type = "LIFTER_ARRIVED"
	TypeYield              Type = "YIELD"
	TypeReroute            Type = "REROUTE"
	TypeBacktrackToParking Type = "BACKTRACK_TO_PARKING"
	TypeBacktrackAndWait   Type = "BACKTRACK_AND_WAIT"
	TypeMissionAck         Type = "MISSION_ACK"
	TypeAMRTaskUpdate      Type = "AMR_TASK_UPDATE"

	// TypeVehicleInfo is the periodic state snapshot. Not part of the
	// semantic event set; it flows through the bus so snapshots and
	// events stay ordered per vehicle.
	TypeVehicleInfo Type = "vehicle-info"
)

// Event is one message on the bus. Payload carries event-specific
// fields the way they arrive from the gateway.
type Event struct {
	Type      Type
	VehicleID string
	TaskID    string
	FloorID   int
	NodeQR    string
	Payload   map[string]interface{}
	At        time.Time
}

// Handler consumes one event. Handlers run on the dispatch goroutine;
// long work must be handed off.
type Handler func(ctx context.Context, ev Event)

type subscription struct {
	id      int64
	handler Handler
}

// Bus fans events out to per-type subscribers through a bounded queue
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
	nextID   int64
	queue    chan Event
	stopOnce sync.Once
	stopped  chan struct{}
	dropped  int64
}

// NewBus creates a bus with the given queue capacity
func NewBus(queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Bus{
		handlers: make(map[Type][]subscription),
		queue:    make(chan Event, queueSize),
		stopped:  make(chan struct{}),
	}
}

// Subscribe registers a handler for one event type. Registration order
// is dispatch order. The returned id cancels the subscription via
// Unsubscribe.
func (b *Bus) Subscribe(t Type, h Handler) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[t] = append(b.handlers[t], subscription{id: b.nextID, handler: h})
	return b.nextID
}

// Unsubscribe removes a handler by its subscription id
func (b *Bus) Unsubscribe(t Type, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[t]
	for i, s := range subs {
		if s.id == id {
			b.handlers[t] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish enqueues an event without blocking. A full queue drops the
// event and logs it; coordination state is lease-based so a dropped
// event delays progress rather than corrupting it.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case b.queue <- ev:
	default:
		b.mu.Lock()
		b.dropped++
		dropped := b.dropped
		b.mu.Unlock()
		log.Printf("events: queue full, dropped %s for %s (total dropped %d)", ev.Type, ev.VehicleID, dropped)
	}
}

// Run drains the queue until the context is cancelled. It is the single
// dispatch task; callers run it in one goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.stopOnce.Do(func() { close(b.stopped) })
			return
		case ev := <-b.queue:
			b.dispatch(ctx, ev)
		}
	}
}

// Done is closed once Run has exited
func (b *Bus) Done() <-chan struct{} {
	return b.stopped
}

// Dropped returns how many events were lost to queue pressure
func (b *Bus) Dropped() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[ev.Type]))
	copy(subs, b.handlers[ev.Type])
	b.mu.RUnlock()
	for _, s := range subs {
		s.handler(ctx, ev)
	}
}

// WaitFor blocks until an event matching the predicate arrives or the
// timeout passes. Used by publish-with-retry to await acknowledgements.
func (b *Bus) WaitFor(ctx context.Context, t Type, timeout time.Duration, match func(Event) bool) (Event, bool) {
	found := make(chan Event, 1)
	var once sync.Once

	id := b.Subscribe(t, func(_ context.Context, ev Event) {
		if match == nil || match(ev) {
			once.Do(func() { found <- ev })
		}
	})
	defer b.Unsubscribe(t, id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev := <-found:
		return ev, true
	case <-timer.C:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}
