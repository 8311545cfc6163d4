package floorplan

// Direction is the wire encoding for grid headings used by vehicle
// missions. Values follow the vehicle controller protocol: 1 up (row
// decreasing), 2 right (column increasing), 3 down, 4 left.
type Direction int

const (
	DirectionNone  Direction = 0
	DirectionUp    Direction = 1
	DirectionRight Direction = 2
	DirectionDown  Direction = 3
	DirectionLeft  Direction = 4
)

// DirectionFromDelta infers the heading for a single step between two
// 4-neighbour grid cells. Zero delta or a diagonal yields DirectionNone.
func DirectionFromDelta(dCol, dRow int) Direction {
	switch {
	case dCol > 0 && dRow == 0:
		return DirectionRight
	case dCol < 0 && dRow == 0:
		return DirectionLeft
	case dRow > 0 && dCol == 0:
		return DirectionDown
	case dRow < 0 && dCol == 0:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// Opposite returns the reverse heading
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	case DirectionLeft:
		return DirectionRight
	case DirectionRight:
		return DirectionLeft
	default:
		return DirectionNone
	}
}

// IsHorizontal reports whether the heading runs along a row
func (d Direction) IsHorizontal() bool {
	return d == DirectionLeft || d == DirectionRight
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionRight:
		return "RIGHT"
	case DirectionDown:
		return "DOWN"
	case DirectionLeft:
		return "LEFT"
	default:
		return "NONE"
	}
}

// RowDirection is the one-way orientation of a horizontal aisle
type RowDirection string

const (
	RowDirectionLeftToRight RowDirection = "LTR"
	RowDirectionRightToLeft RowDirection = "RTL"
)

// RowDirectionFor maps a grid heading onto the aisle orientation it
// implies. Vertical headings carry no row orientation.
func RowDirectionFor(d Direction) (RowDirection, bool) {
	switch d {
	case DirectionRight:
		return RowDirectionLeftToRight, true
	case DirectionLeft:
		return RowDirectionRightToLeft, true
	default:
		return "", false
	}
}
