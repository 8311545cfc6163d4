package floorplan

import (
	"fmt"
	"sort"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// Neighbor is an adjacency entry: the cell reachable in one step and the
// metric cost of that step.
type Neighbor struct {
	QR       string
	Distance float64
}

// FloorGraph is the navigable grid of a single warehouse level. The
// structure is immutable after loading; all lookups are safe for
// concurrent readers.
type FloorGraph struct {
	floorID   int
	nodes     map[string]*Node
	byCoord   map[[2]int]string
	adjacency map[string][]Neighbor
}

func NewFloorGraph(floorID int) *FloorGraph {
	return &FloorGraph{
		floorID:   floorID,
		nodes:     make(map[string]*Node),
		byCoord:   make(map[[2]int]string),
		adjacency: make(map[string][]Neighbor),
	}
}

func (g *FloorGraph) FloorID() int {
	return g.floorID
}

// AddNode registers a cell. Re-adding a QR replaces the previous cell in
// place but keeps its adjacency.
func (g *FloorGraph) AddNode(node *Node) error {
	if node == nil {
		return shared.NewValidationError("node", "must not be nil")
	}
	if node.QR == "" {
		return shared.NewValidationError("qr", "must not be empty")
	}
	if node.FloorID != g.floorID {
		return shared.NewValidationError("floorId", fmt.Sprintf("node %s belongs to floor %d, graph is floor %d", node.QR, node.FloorID, g.floorID))
	}
	g.nodes[node.QR] = node
	g.byCoord[[2]int{node.Col, node.Row}] = node.QR
	return nil
}

// AddEdge joins two registered cells in both directions with the given
// metric distance. A non-positive distance falls back to the Euclidean
// distance between the cells.
func (g *FloorGraph) AddEdge(fromQR, toQR string, distance float64) error {
	from, ok := g.nodes[fromQR]
	if !ok {
		return shared.NewValidationError("from", fmt.Sprintf("unknown cell %s", fromQR))
	}
	to, ok := g.nodes[toQR]
	if !ok {
		return shared.NewValidationError("to", fmt.Sprintf("unknown cell %s", toQR))
	}
	if distance <= 0 {
		distance = from.DistanceTo(to)
	}
	g.adjacency[fromQR] = append(g.adjacency[fromQR], Neighbor{QR: toQR, Distance: distance})
	g.adjacency[toQR] = append(g.adjacency[toQR], Neighbor{QR: fromQR, Distance: distance})
	return nil
}

// Node returns the cell with the given QR tag
func (g *FloorGraph) Node(qr string) (*Node, bool) {
	n, ok := g.nodes[qr]
	return n, ok
}

// NodeAt returns the cell at the given grid coordinate
func (g *FloorGraph) NodeAt(col, row int) (*Node, bool) {
	qr, ok := g.byCoord[[2]int{col, row}]
	if !ok {
		return nil, false
	}
	return g.nodes[qr], true
}

// Neighbors returns the adjacency list of a cell. The returned slice is
// shared; callers must not mutate it.
func (g *FloorGraph) Neighbors(qr string) []Neighbor {
	return g.adjacency[qr]
}

// Nodes returns every cell on the floor in QR order
func (g *FloorGraph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QR < out[j].QR })
	return out
}

// NodeCount returns the number of cells on the floor
func (g *FloorGraph) NodeCount() int {
	return len(g.nodes)
}

// NearestNode snaps a metric coordinate to the closest traversable cell.
// Used to anchor free-roaming vehicles onto the grid.
func (g *FloorGraph) NearestNode(x, y float64) (*Node, bool) {
	var best *Node
	bestDist := 0.0
	probe := &Node{X: x, Y: y}
	for _, n := range g.nodes {
		if !n.IsTraversable() {
			continue
		}
		d := n.DistanceTo(probe)
		if best == nil || d < bestDist {
			best = n
			bestDist = d
		}
	}
	return best, best != nil
}

// NodesOfType returns every cell of the given type in QR order
func (g *FloorGraph) NodesOfType(t CellType) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.CellType == t {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QR < out[j].QR })
	return out
}

// Plan is the full multi-floor warehouse layout
type Plan struct {
	floors map[int]*FloorGraph
}

func NewPlan() *Plan {
	return &Plan{floors: make(map[int]*FloorGraph)}
}

// AddFloor registers a floor graph, replacing any previous graph for the
// same level.
func (p *Plan) AddFloor(g *FloorGraph) {
	p.floors[g.FloorID()] = g
}

// Floor returns the graph for a level
func (p *Plan) Floor(id int) (*FloorGraph, bool) {
	g, ok := p.floors[id]
	return g, ok
}

// FloorIDs returns the known levels in ascending order
func (p *Plan) FloorIDs() []int {
	out := make([]int, 0, len(p.floors))
	for id := range p.floors {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// FindNode locates a QR tag across all floors
func (p *Plan) FindNode(qr string) (*Node, bool) {
	for _, g := range p.floors {
		if n, ok := g.Node(qr); ok {
			return n, true
		}
	}
	return nil, false
}

// LifterNodes returns the lifter access cells on a floor in QR order
func (p *Plan) LifterNodes(floorID int) []*Node {
	g, ok := p.floors[floorID]
	if !ok {
		return nil
	}
	return g.NodesOfType(CellTypeLifter)
}
