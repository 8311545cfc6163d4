package floorplan

import "math"

// CellType classifies what a navigation cell is used for beyond plain
// travel. The catalog is open ended; the controller only branches on the
// types below.
type CellType string

const (
	CellTypeTravel  CellType = "TRAVEL"
	CellTypeStorage CellType = "STORAGE"
	CellTypeLifter  CellType = "LIFTER"
	CellTypePickup  CellType = "PICKUP"
	CellTypeDrop    CellType = "DROP"
	CellTypeParking CellType = "PARKING"
	CellTypeCharger CellType = "CHARGER"
)

// DirectionType is the static traversal rule painted onto a cell by the
// warehouse layout: bidirectional travel, or a one-way row constraint.
type DirectionType string

const (
	DirectionTypeBoth        DirectionType = "BOTH"
	DirectionTypeLeftToRight DirectionType = "LTR"
	DirectionTypeRightToLeft DirectionType = "RTL"
)

// Allows reports whether the static rule permits travel in the given
// heading. Vertical movement is never constrained by a row rule.
func (t DirectionType) Allows(d Direction) bool {
	if !d.IsHorizontal() {
		return true
	}
	switch t {
	case DirectionTypeLeftToRight:
		return d == DirectionRight
	case DirectionTypeRightToLeft:
		return d == DirectionLeft
	default:
		return true
	}
}

// Node is one navigable cell of the warehouse grid. QR is the physical
// tag identifier vehicles scan and is unique within a floor. Col/Row are
// integer grid coordinates; X/Y are metric coordinates used by free
// roaming vehicles.
type Node struct {
	QR            string        `json:"qr"`
	FloorID       int           `json:"floorId"`
	Col           int           `json:"col"`
	Row           int           `json:"row"`
	X             float64       `json:"x"`
	Y             float64       `json:"y"`
	Blocked       bool          `json:"blocked"`
	HasBox        bool          `json:"hasBox"`
	CellType      CellType      `json:"cellType"`
	DirectionType DirectionType `json:"directionType"`
	PalletType    string        `json:"palletType,omitempty"`
}

// AcceptsPallet reports whether a storage cell can take a pallet of the
// given type. Cells without a pallet class accept anything.
func (n *Node) AcceptsPallet(palletType string) bool {
	return n.PalletType == "" || palletType == "" || n.PalletType == palletType
}

// DistanceTo returns the Euclidean distance in metric coordinates
func (n *Node) DistanceTo(other *Node) float64 {
	dx := n.X - other.X
	dy := n.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// GridDistanceTo returns the Manhattan distance in grid coordinates
func (n *Node) GridDistanceTo(other *Node) int {
	dc := n.Col - other.Col
	if dc < 0 {
		dc = -dc
	}
	dr := n.Row - other.Row
	if dr < 0 {
		dr = -dr
	}
	return dc + dr
}

// HeadingTo infers the travel direction from this cell to an adjacent
// cell. Non-adjacent cells yield DirectionNone.
func (n *Node) HeadingTo(other *Node) Direction {
	return DirectionFromDelta(other.Col-n.Col, other.Row-n.Row)
}

// IsTraversable reports whether a vehicle may plan through the cell
func (n *Node) IsTraversable() bool {
	return !n.Blocked
}

// Edge joins two cells on the same floor with a precomputed travel
// distance. Edges are stored once per unordered pair; traversal rules
// are evaluated per heading at query time.
type Edge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	FloorID  int     `json:"floorId"`
	Distance float64 `json:"distance"`
}
