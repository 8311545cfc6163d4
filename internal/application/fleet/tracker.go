package fleet

import (
	"context"

	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// Tracker applies periodic vehicle.info snapshots to the registry.
// Snapshots ride the same bus as the semantic events, so a snapshot
// never overtakes the move report that follows it.
type Tracker struct {
	bus      *events.Bus
	registry *Registry
}

// NewTracker creates the snapshot tracker
func NewTracker(bus *events.Bus, registry *Registry) *Tracker {
	return &Tracker{bus: bus, registry: registry}
}

// Register subscribes the tracker on the bus
func (t *Tracker) Register() {
	t.bus.Subscribe(events.TypeVehicleInfo, t.handleInfo)
}

// handleInfo refreshes the session from one snapshot. Snapshots for
// vehicles that never announced themselves are dropped; registration
// happens on shuttle-initialized (or the AMR pollers), not here.
func (t *Tracker) handleInfo(ctx context.Context, ev events.Event) {
	if _, known := t.registry.Get(ev.VehicleID); !known {
		return
	}

	_, err := t.registry.Update(ctx, ev.VehicleID, func(v *vehicle.Vehicle) {
		if ev.NodeQR != "" {
			v.NodeQR = ev.NodeQR
		}
		if ev.FloorID != 0 {
			v.FloorID = ev.FloorID
		}
		if x, ok := ev.Payload["x"].(float64); ok {
			v.X = x
		}
		if y, ok := ev.Payload["y"].(float64); ok {
			v.Y = y
		}
		if battery, ok := ev.Payload["battery"].(float64); ok && battery > 0 {
			v.Battery = battery
		}
		if carrying, ok := ev.Payload["carrying"].(bool); ok {
			v.Carrying = carrying
		}
		if status, ok := ev.Payload["status"].(string); ok {
			if s := parseStatus(status); s != "" {
				v.Status = s
			}
		}
		v.UpdatedAt = ev.At
	})
	if err != nil {
		// Session vanished between Get and Update; the next snapshot
		// is 300ms away.
		return
	}
}

// parseStatus maps a reported status string onto the domain set.
// Unknown strings leave the tracked status untouched.
func parseStatus(s string) vehicle.Status {
	switch vehicle.Status(s) {
	case vehicle.StatusIdle, vehicle.StatusMoving, vehicle.StatusWaiting,
		vehicle.StatusPicking, vehicle.StatusDropping, vehicle.StatusError:
		return vehicle.Status(s)
	}
	return ""
}
