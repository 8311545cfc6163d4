package conflict

import (
	"context"
	"fmt"
	"sort"
	"time"

	state "github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// ParkingTTL bounds how long a retreat cell stays reserved
const ParkingTTL = 300 * time.Second

// DefaultParkingRadius is the Manhattan search radius around the
// retreat cell.
const DefaultParkingRadius = 3

// ParkingQuery describes one search for a cell to hide in
type ParkingQuery struct {
	NearQR      string
	ConflictQR  string
	VehicleID   string
	FloorID     int
	ActivePaths []domainState.ActivePath
}

// ParkingFinder locates and reserves a cell a retreating vehicle can
// wait in without standing in anyone's way.
type ParkingFinder struct {
	plan        *floorplan.Plan
	reservation domainState.ReservationStore
	radius      int
}

// NewParkingFinder wires the search against the floor catalog
func NewParkingFinder(plan *floorplan.Plan, reservation domainState.ReservationStore) *ParkingFinder {
	return &ParkingFinder{plan: plan, reservation: reservation, radius: DefaultParkingRadius}
}

// Find returns a reserved parking cell near the given cell, or false
// when every candidate is taken. Candidates are tried closest-first;
// the reservation itself is the admission check, so two vehicles
// hunting the same corner cannot pick the same cell.
func (f *ParkingFinder) Find(ctx context.Context, q *ParkingQuery) (string, bool) {
	g, ok := f.plan.Floor(q.FloorID)
	if !ok {
		return "", false
	}
	near, ok := g.Node(q.NearQR)
	if !ok {
		return "", false
	}

	type candidate struct {
		qr   string
		dist int
	}
	var candidates []candidate
	for _, n := range g.Nodes() {
		if n.QR == q.ConflictQR || n.QR == q.NearQR {
			continue
		}
		if n.Blocked || n.HasBox || n.DirectionType == "" {
			continue
		}
		d := n.GridDistanceTo(near)
		if d > f.radius {
			continue
		}
		if inAnyPath(n.QR, q.VehicleID, q.ActivePaths) {
			continue
		}
		candidates = append(candidates, candidate{qr: n.QR, dist: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].qr < candidates[j].qr
	})

	for _, c := range candidates {
		if err := f.reservation.Acquire(ctx, state.ParkingLockKey(c.qr), q.VehicleID, ParkingTTL); err == nil {
			fmt.Printf("Parking: reserved %s for %s (distance %d)\n", c.qr, q.VehicleID, c.dist)
			return c.qr, true
		}
	}
	return "", false
}

// Release frees a parking reservation that will not be used
func (f *ParkingFinder) Release(ctx context.Context, qr string) {
	if err := f.reservation.Release(ctx, state.ParkingLockKey(qr)); err != nil {
		fmt.Printf("Warning: releasing parking %s failed: %v\n", qr, err)
	}
}

func inAnyPath(qr, selfID string, paths []domainState.ActivePath) bool {
	for _, ap := range paths {
		if ap.VehicleID == selfID {
			continue
		}
		if ap.Path.Contains(qr) {
			return true
		}
	}
	return false
}
