// Package pathfinding implements the two planning modes of the
// controller: metric A* for free-roaming vehicles and topological
// weighted A* for grid shuttles. Both are CPU-bound and work entirely
// from snapshots handed in by the caller, so a query never blocks on a
// store.
package pathfinding

import (
	"container/heap"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/traffic"
)

// RowKey addresses one aisle for the row lock snapshot
type RowKey struct {
	FloorID int
	Row     int
}

// Options carries the coordination snapshots for one topological query
type Options struct {
	VehicleID string
	Carrying  bool

	// Avoid cells are impassable; the fallback chain drops this set
	// before giving up.
	Avoid map[string]struct{}

	// Occupied maps cell → owning vehicle; cells owned by someone else
	// cost extra but stay passable.
	Occupied map[string]string

	Traffic  traffic.Snapshot
	RowLocks map[RowKey]floorplan.RowDirection

	// LastAction is annotated on the final step only
	LastAction path.Action
}

// Tier identifies which fallback level produced a path
type Tier int

const (
	TierSoftAvoid Tier = 1
	TierNoAvoid   Tier = 2
	TierDirect    Tier = 3
)

// Pathfinder plans over an immutable floor plan
type Pathfinder struct {
	plan *floorplan.Plan
}

func New(plan *floorplan.Plan) *Pathfinder {
	return &Pathfinder{plan: plan}
}

// FindMetric plans for a free-roaming vehicle: geometric edge lengths,
// Euclidean heuristic. Returns the node sequence including the start.
func (pf *Pathfinder) FindMetric(floorID int, startQR, goalQR string) ([]*floorplan.Node, error) {
	g, ok := pf.plan.Floor(floorID)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	start, ok := g.Node(startQR)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	goal, ok := g.Node(goalQR)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	if startQR == goalQR {
		return []*floorplan.Node{start}, nil
	}

	nodes := pf.search(g, start, goal, func(from, to *floorplan.Node, distance float64) (float64, bool) {
		if !to.IsTraversable() {
			return 0, false
		}
		return distance, true
	}, func(n *floorplan.Node) float64 {
		return n.DistanceTo(goal)
	})
	if nodes == nil {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	return nodes, nil
}

// FindTopological plans a shuttle route with the full penalty model.
// The returned path excludes the start cell; its final step carries
// opts.LastAction.
func (pf *Pathfinder) FindTopological(floorID int, startQR, goalQR string, opts Options) (*path.Path, error) {
	g, ok := pf.plan.Floor(floorID)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	start, ok := g.Node(startQR)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	goal, ok := g.Node(goalQR)
	if !ok {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	if startQR == goalQR {
		return path.New(opts.VehicleID, floorID, nil), nil
	}

	nodes := pf.search(g, start, goal, func(from, to *floorplan.Node, distance float64) (float64, bool) {
		return pf.edgeCost(floorID, from, to, opts)
	}, func(n *floorplan.Node) float64 {
		return float64(n.GridDistanceTo(goal))
	})
	if nodes == nil {
		return nil, shared.NewNoPathError(startQR, goalQR, floorID)
	}
	return toSteps(opts.VehicleID, floorID, nodes, opts.LastAction), nil
}

// FindWithFallback runs the fallback chain: full penalties with the
// avoid set, then without it, then plain base cost. The tier that
// produced the path is returned for the caller's logs.
func (pf *Pathfinder) FindWithFallback(floorID int, startQR, goalQR string, opts Options) (*path.Path, Tier, error) {
	p, err := pf.FindTopological(floorID, startQR, goalQR, opts)
	if err == nil {
		return p, TierSoftAvoid, nil
	}

	if len(opts.Avoid) > 0 {
		relaxed := opts
		relaxed.Avoid = nil
		if p, err = pf.FindTopological(floorID, startQR, goalQR, relaxed); err == nil {
			return p, TierNoAvoid, nil
		}
	}

	direct := Options{VehicleID: opts.VehicleID, LastAction: opts.LastAction}
	if p, err = pf.FindTopological(floorID, startQR, goalQR, direct); err == nil {
		return p, TierDirect, nil
	}
	return nil, 0, err
}

// edgeCost scores one traversal from→to, or excludes the edge
func (pf *Pathfinder) edgeCost(floorID int, from, to *floorplan.Node, opts Options) (float64, bool) {
	if !to.IsTraversable() {
		return 0, false
	}
	if _, avoided := opts.Avoid[to.QR]; avoided {
		return 0, false
	}

	d := from.HeadingTo(to)
	if !to.DirectionType.Allows(d) {
		return 0, false
	}
	if d.IsHorizontal() {
		if locked, ok := opts.RowLocks[RowKey{FloorID: floorID, Row: to.Row}]; ok {
			if want, hasDir := floorplan.RowDirectionFor(d); hasDir && want != locked {
				return 0, false
			}
		}
	}

	cost := baseEdgeCost
	if owner, occupied := opts.Occupied[to.QR]; occupied && owner != opts.VehicleID {
		cost += occupiedSoftAvoid
	}
	cost += trafficPenalty(opts.Traffic.Node(to.QR), d, opts.Carrying)
	return cost, true
}

// search is plain A* over a floor graph. costFn may exclude an edge;
// heuristicFn must never overestimate. Ties resolve by lower f, then
// lower h, then insertion order so runs are deterministic.
func (pf *Pathfinder) search(
	g *floorplan.FloorGraph,
	start, goal *floorplan.Node,
	costFn func(from, to *floorplan.Node, distance float64) (float64, bool),
	heuristicFn func(n *floorplan.Node) float64,
) []*floorplan.Node {
	open := &openList{}
	heap.Init(open)

	gScore := map[string]float64{start.QR: 0}
	cameFrom := make(map[string]string)
	closed := make(map[string]struct{})
	seq := 0

	heap.Push(open, &openItem{qr: start.QR, f: heuristicFn(start), h: heuristicFn(start), seq: seq})

	for open.Len() > 0 {
		current := heap.Pop(open).(*openItem)
		if current.qr == goal.QR {
			return reconstruct(g, cameFrom, start.QR, goal.QR)
		}
		if _, done := closed[current.qr]; done {
			continue
		}
		closed[current.qr] = struct{}{}

		fromNode, ok := g.Node(current.qr)
		if !ok {
			continue
		}
		for _, nb := range g.Neighbors(current.qr) {
			if _, done := closed[nb.QR]; done {
				continue
			}
			toNode, ok := g.Node(nb.QR)
			if !ok {
				continue
			}
			stepCost, passable := costFn(fromNode, toNode, nb.Distance)
			if !passable {
				continue
			}
			tentative := gScore[current.qr] + stepCost
			if best, seen := gScore[nb.QR]; seen && tentative >= best {
				continue
			}
			gScore[nb.QR] = tentative
			cameFrom[nb.QR] = current.qr
			seq++
			h := heuristicFn(toNode)
			heap.Push(open, &openItem{qr: nb.QR, f: tentative + h, h: h, seq: seq})
		}
	}
	return nil
}

func reconstruct(g *floorplan.FloorGraph, cameFrom map[string]string, startQR, goalQR string) []*floorplan.Node {
	var qrs []string
	for qr := goalQR; ; {
		qrs = append(qrs, qr)
		if qr == startQR {
			break
		}
		prev, ok := cameFrom[qr]
		if !ok {
			return nil
		}
		qr = prev
	}
	nodes := make([]*floorplan.Node, 0, len(qrs))
	for i := len(qrs) - 1; i >= 0; i-- {
		n, _ := g.Node(qrs[i])
		nodes = append(nodes, n)
	}
	return nodes
}

// toSteps converts a node sequence into wire steps, dropping the start
// cell and annotating the final step with the requested action.
func toSteps(vehicleID string, floorID int, nodes []*floorplan.Node, last path.Action) *path.Path {
	steps := make([]path.Step, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		steps = append(steps, path.Step{
			QR:        nodes[i].QR,
			Direction: nodes[i-1].HeadingTo(nodes[i]),
			Action:    path.ActionNone,
		})
	}
	if n := len(steps); n > 0 && last != path.ActionNone {
		steps[n-1].Action = last
	}
	return path.New(vehicleID, floorID, steps)
}

type openItem struct {
	qr    string
	f     float64
	h     float64
	seq   int
	index int
}

type openList []*openItem

func (l openList) Len() int { return len(l) }

func (l openList) Less(i, j int) bool {
	if l[i].f != l[j].f {
		return l[i].f < l[j].f
	}
	if l[i].h != l[j].h {
		return l[i].h < l[j].h
	}
	return l[i].seq < l[j].seq
}

func (l openList) Swap(i, j int) {
	l[i], l[j] = l[j], l[i]
	l[i].index = i
	l[j].index = j
}

func (l *openList) Push(x interface{}) {
	item := x.(*openItem)
	item.index = len(*l)
	*l = append(*l, item)
}

func (l *openList) Pop() interface{} {
	old := *l
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*l = old[:n-1]
	return item
}
