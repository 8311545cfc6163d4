// Package traffic builds the live congestion model from the active
// path cache. The model is a pure snapshot: producers assemble it from
// store reads, the pathfinder consumes it without suspending.
package traffic

import (
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/state"
)

// Corridor thresholds: a cell is a corridor when at least two vehicles
// traverse it and a single heading holds at least 70% of traversals;
// three or more vehicles make it high-traffic.
const (
	CorridorMinVehicles = 2
	CorridorShare       = 0.70
	HighTrafficVehicles = 3
)

// NodeTraffic aggregates every planned traversal of one cell
type NodeTraffic struct {
	Vehicles      int
	ByDirection   map[floorplan.Direction]int
	CarryingByDir map[floorplan.Direction]int
	Dominant      floorplan.Direction
	DominantShare float64
	Corridor      bool
	HighTraffic   bool
}

// AnyCarrying reports whether any planned traversal in the given
// heading belongs to a loaded vehicle.
func (t *NodeTraffic) AnyCarrying(d floorplan.Direction) bool {
	return t.CarryingByDir[d] > 0
}

// Snapshot maps cell QR to its aggregated traffic
type Snapshot map[string]*NodeTraffic

// Node returns the traffic on a cell, nil when untravelled
func (s Snapshot) Node(qr string) *NodeTraffic {
	if s == nil {
		return nil
	}
	return s[qr]
}

// BuildSnapshot folds every active path into per-cell traffic. Each
// step contributes its entry heading; a vehicle visiting a cell twice
// still counts once toward the vehicle total.
func BuildSnapshot(paths []state.ActivePath) Snapshot {
	return BuildSnapshotExcluding(paths, "")
}

// BuildSnapshotExcluding builds the model while ignoring one vehicle's
// own path, so a planner never routes around itself.
func BuildSnapshotExcluding(paths []state.ActivePath, excludeVehicleID string) Snapshot {
	snap := make(Snapshot)
	seen := make(map[string]map[string]struct{})

	for _, ap := range paths {
		if ap.Path == nil {
			continue
		}
		if excludeVehicleID != "" && ap.VehicleID == excludeVehicleID {
			continue
		}
		for _, step := range ap.Path.Steps {
			nt, ok := snap[step.QR]
			if !ok {
				nt = &NodeTraffic{
					ByDirection:   make(map[floorplan.Direction]int),
					CarryingByDir: make(map[floorplan.Direction]int),
				}
				snap[step.QR] = nt
				seen[step.QR] = make(map[string]struct{})
			}
			if _, dup := seen[step.QR][ap.VehicleID]; !dup {
				seen[step.QR][ap.VehicleID] = struct{}{}
				nt.Vehicles++
			}
			nt.ByDirection[step.Direction]++
			if ap.Metadata.IsCarrying {
				nt.CarryingByDir[step.Direction]++
			}
		}
	}

	for _, nt := range snap {
		total := 0
		for d, n := range nt.ByDirection {
			total += n
			if n > nt.ByDirection[nt.Dominant] || (nt.Dominant == floorplan.DirectionNone && n > 0) {
				nt.Dominant = d
			}
		}
		if total > 0 {
			nt.DominantShare = float64(nt.ByDirection[nt.Dominant]) / float64(total)
		}
		nt.Corridor = nt.Vehicles >= CorridorMinVehicles && nt.DominantShare >= CorridorShare
		nt.HighTraffic = nt.Corridor && nt.Vehicles >= HighTrafficVehicles
	}
	return snap
}
