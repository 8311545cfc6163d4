package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/events"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// EventRecorder mirrors task-scoped bus events into the durable audit
// trail. Recording is best effort: a failed insert logs a warning and
// the controller keeps moving.
type EventRecorder struct {
	bus   *events.Bus
	tasks domainState.TaskQueueStore
	log   task.EventLog
	clock shared.Clock
}

func NewEventRecorder(bus *events.Bus, tasks domainState.TaskQueueStore, eventLog task.EventLog, clock shared.Clock) *EventRecorder {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &EventRecorder{bus: bus, tasks: tasks, log: eventLog, clock: clock}
}

// Register subscribes the recorder to every event type that belongs in a
// task's history.
func (r *EventRecorder) Register() {
	for _, t := range []events.Type{
		events.TypePickupComplete,
		events.TypeTaskComplete,
		events.TypeShuttleWaiting,
		events.TypeWaitingForLifter,
		events.TypeYield,
		events.TypeReroute,
		events.TypeBacktrackToParking,
		events.TypeBacktrackAndWait,
		events.TypeAMRTaskUpdate,
	} {
		r.bus.Subscribe(t, r.record)
	}
}

func (r *EventRecorder) record(ctx context.Context, ev events.Event) {
	taskID := ev.TaskID
	if taskID == "" && ev.VehicleID != "" {
		// Vehicles rarely echo the task id; resolve it from the active
		// binding instead.
		if t, ok, err := r.tasks.ActiveTask(ctx, ev.VehicleID); err == nil && ok {
			taskID = t.ID
		}
	}
	if taskID == "" {
		return
	}

	detail := ""
	if len(ev.Payload) > 0 {
		if b, err := json.Marshal(ev.Payload); err == nil {
			detail = string(b)
		}
	}
	at := ev.At
	if at.IsZero() {
		at = r.clock.Now()
	}

	rec := &task.EventRecord{
		TaskID:     taskID,
		VehicleID:  ev.VehicleID,
		Type:       string(ev.Type),
		Detail:     detail,
		OccurredAt: at,
	}
	if err := r.log.Append(ctx, rec); err != nil {
		fmt.Printf("Warning: audit append for task %s: %v\n", taskID, err)
	}
}
