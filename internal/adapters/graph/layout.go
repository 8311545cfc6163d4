package graph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// Layout is the JSON exchange format for warehouse maps. Edges may be
// listed explicitly; floors without an edge list are wired as a grid,
// connecting every pair of cells adjacent in col/row.
type Layout struct {
	Floors []LayoutFloor `json:"floors"`
}

type LayoutFloor struct {
	ID    int               `json:"id"`
	Cells []*floorplan.Node `json:"cells"`
	Edges []floorplan.Edge  `json:"edges,omitempty"`
}

// ParseLayout reads a layout document and assembles the plan
func ParseLayout(r io.Reader) (*floorplan.Plan, error) {
	var layout Layout
	if err := json.NewDecoder(r).Decode(&layout); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if len(layout.Floors) == 0 {
		return nil, fmt.Errorf("layout has no floors")
	}

	plan := floorplan.NewPlan()
	for _, f := range layout.Floors {
		graph, err := buildFloor(f)
		if err != nil {
			return nil, err
		}
		plan.AddFloor(graph)
	}
	return plan, nil
}

func buildFloor(f LayoutFloor) (*floorplan.FloorGraph, error) {
	graph := floorplan.NewFloorGraph(f.ID)
	for _, cell := range f.Cells {
		if cell.FloorID == 0 {
			cell.FloorID = f.ID
		}
		if cell.CellType == "" {
			cell.CellType = floorplan.CellTypeTravel
		}
		if cell.DirectionType == "" {
			cell.DirectionType = floorplan.DirectionTypeBoth
		}
		if err := graph.AddNode(cell); err != nil {
			return nil, fmt.Errorf("floor %d: %w", f.ID, err)
		}
	}

	if len(f.Edges) > 0 {
		for _, e := range f.Edges {
			if err := graph.AddEdge(e.From, e.To, e.Distance); err != nil {
				return nil, fmt.Errorf("floor %d edge %s-%s: %w", f.ID, e.From, e.To, err)
			}
		}
		return graph, nil
	}

	// No explicit edges: wire the grid. Each cell connects to its right
	// and lower neighbor; AddEdge registers both directions.
	for _, n := range graph.Nodes() {
		if right, ok := graph.NodeAt(n.Col+1, n.Row); ok {
			if err := graph.AddEdge(n.QR, right.QR, 0); err != nil {
				return nil, fmt.Errorf("floor %d grid wiring: %w", f.ID, err)
			}
		}
		if down, ok := graph.NodeAt(n.Col, n.Row+1); ok {
			if err := graph.AddEdge(n.QR, down.QR, 0); err != nil {
				return nil, fmt.Errorf("floor %d grid wiring: %w", f.ID, err)
			}
		}
	}
	return graph, nil
}
