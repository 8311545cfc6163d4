// Package fleet keeps the live view of every vehicle the controller
// manages. The registry is the in-memory source of truth during a run;
// sessions are mirrored to the database so a restart can rebuild the
// fleet without waiting for every vehicle to re-announce.
package fleet

import (
	"context"
	"log"
	"sync"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// Registry tracks vehicle state and executing-mode membership
type Registry struct {
	mu        sync.RWMutex
	vehicles  map[string]*vehicle.Vehicle
	executing map[string]struct{}
	clock     shared.Clock
	sessions  vehicle.SessionRepository
}

// NewRegistry creates a registry. sessions may be nil in tests; state
// then lives only in memory.
func NewRegistry(clock shared.Clock, sessions vehicle.SessionRepository) *Registry {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Registry{
		vehicles:  make(map[string]*vehicle.Vehicle),
		executing: make(map[string]struct{}),
		clock:     clock,
		sessions:  sessions,
	}
}

// Restore loads persisted sessions into the registry at startup
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.sessions == nil {
		return 0, nil
	}
	saved, err := r.sessions.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range saved {
		copied := *v
		r.vehicles[v.ID] = &copied
	}
	return len(saved), nil
}

// Register adds or replaces a vehicle session
func (r *Registry) Register(ctx context.Context, v *vehicle.Vehicle) {
	r.mu.Lock()
	copied := *v
	copied.UpdatedAt = r.clock.Now()
	r.vehicles[v.ID] = &copied
	r.mu.Unlock()
	r.persist(ctx, &copied)
}

// Get returns a copy of one vehicle's state
func (r *Registry) Get(id string) (*vehicle.Vehicle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, false
	}
	copied := *v
	return &copied, true
}

// All returns a copy of every vehicle's state
func (r *Registry) All() []*vehicle.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*vehicle.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		copied := *v
		out = append(out, &copied)
	}
	return out
}

// Update applies a mutation to one vehicle under the registry lock and
// mirrors the result to the session store.
func (r *Registry) Update(ctx context.Context, id string, fn func(v *vehicle.Vehicle)) (*vehicle.Vehicle, error) {
	r.mu.Lock()
	v, ok := r.vehicles[id]
	if !ok {
		r.mu.Unlock()
		return nil, shared.NewUnknownVehicleError(id)
	}
	fn(v)
	v.UpdatedAt = r.clock.Now()
	copied := *v
	r.mu.Unlock()
	r.persist(ctx, &copied)
	return &copied, nil
}

// UpdatePosition records an observed grid move
func (r *Registry) UpdatePosition(ctx context.Context, id string, floorID int, nodeQR string) (*vehicle.Vehicle, error) {
	return r.Update(ctx, id, func(v *vehicle.Vehicle) {
		v.MoveTo(floorID, nodeQR, r.clock.Now())
	})
}

// SetExecuting toggles executing-mode: vehicles in the set auto-pull
// the next task when they finish one.
func (r *Registry) SetExecuting(id string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.executing[id] = struct{}{}
	} else {
		delete(r.executing, id)
	}
}

// IsExecuting reports executing-mode membership
func (r *Registry) IsExecuting(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executing[id]
	return ok
}

// IdleShuttles returns available shuttles, copies, in map order
func (r *Registry) IdleShuttles() []*vehicle.Vehicle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*vehicle.Vehicle
	for _, v := range r.vehicles {
		if v.Kind == vehicle.KindShuttle && v.IsAvailable() && v.IsOperational() {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out
}

// ActiveShuttleCount counts operational shuttles, the gate for
// multi-vehicle row coordination.
func (r *Registry) ActiveShuttleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, v := range r.vehicles {
		if v.Kind == vehicle.KindShuttle && v.IsOperational() {
			n++
		}
	}
	return n
}

func (r *Registry) persist(ctx context.Context, v *vehicle.Vehicle) {
	if r.sessions == nil {
		return
	}
	if err := r.sessions.Save(ctx, v); err != nil {
		log.Printf("fleet: failed to persist session for %s: %v", v.ID, err)
	}
}
