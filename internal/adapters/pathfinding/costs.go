package pathfinding

import (
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/traffic"
)

// Penalty schedule for the topological planner. Base edge cost is 1;
// penalties compose additively per edge. Head-on traffic dominates
// everything except an outright corridor violation on a busy cell.
const (
	baseEdgeCost = 1.0

	occupiedSoftAvoid = 100.0

	oppositeBase         = 150.0
	oppositeMixedCargo   = 30.0
	oppositeBothCarrying = 50.0

	withTrafficEmpty    = 5.0
	withTrafficCarrying = 8.0

	crossingBase         = 15.0
	crossingMixedCargo   = 5.0
	crossingBothCarrying = 10.0

	corridorAgainst      = 180.0
	corridorAgainstBusy  = 250.0
	corridorWith         = 12.0
	corridorWithBusy     = 25.0
	corridorCrossing     = 35.0
	corridorCrossingBusy = 60.0
)

// trafficPenalty scores entering a cell with heading d against the live
// traffic model.
func trafficPenalty(nt *traffic.NodeTraffic, d floorplan.Direction, carrying bool) float64 {
	if nt == nil {
		return 0
	}
	penalty := 0.0

	if opp := d.Opposite(); nt.ByDirection[opp] > 0 {
		penalty += oppositeBase
		otherCarrying := nt.AnyCarrying(opp)
		switch {
		case carrying && otherCarrying:
			penalty += oppositeBothCarrying
		case carrying || otherCarrying:
			penalty += oppositeMixedCargo
		}
	}

	if nt.ByDirection[d] > 0 {
		if carrying {
			penalty += withTrafficCarrying
		} else {
			penalty += withTrafficEmpty
		}
	}

	if crossCount, crossCarrying := crossingTraffic(nt, d); crossCount > 0 {
		penalty += crossingBase
		switch {
		case carrying && crossCarrying:
			penalty += crossingBothCarrying
		case carrying || crossCarrying:
			penalty += crossingMixedCargo
		}
	}

	if nt.Corridor {
		penalty += corridorPenalty(nt, d)
	}
	return penalty
}

func crossingTraffic(nt *traffic.NodeTraffic, d floorplan.Direction) (int, bool) {
	count := 0
	carrying := false
	for dir, n := range nt.ByDirection {
		if dir == d || dir == d.Opposite() || dir == floorplan.DirectionNone {
			continue
		}
		count += n
		if nt.AnyCarrying(dir) {
			carrying = true
		}
	}
	return count, carrying
}

func corridorPenalty(nt *traffic.NodeTraffic, d floorplan.Direction) float64 {
	busy := nt.HighTraffic
	switch {
	case d == nt.Dominant.Opposite():
		if busy {
			return corridorAgainstBusy
		}
		return corridorAgainst
	case d == nt.Dominant:
		if busy {
			return corridorWithBusy
		}
		return corridorWith
	default:
		if busy {
			return corridorCrossingBusy
		}
		return corridorCrossing
	}
}
