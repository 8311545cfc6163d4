package path

import (
	"fmt"
	"strings"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// Action is the numeric operation code a vehicle executes on arrival at
// a step. The codes are part of the vehicle controller protocol and must
// not be renumbered.
type Action int

const (
	ActionNone       Action = 0
	ActionPickUp     Action = 11
	ActionDropOff    Action = 12
	ActionSlow1      Action = 13
	ActionSlow2      Action = 14
	ActionStopAtNode Action = 15
	ActionFast       Action = 16
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NO_ACTION"
	case ActionPickUp:
		return "PICK_UP"
	case ActionDropOff:
		return "DROP_OFF"
	case ActionSlow1:
		return "SLOW_1"
	case ActionSlow2:
		return "SLOW_2"
	case ActionStopAtNode:
		return "STOP_AT_NODE"
	case ActionFast:
		return "FAST"
	default:
		return fmt.Sprintf("ACTION_%d", int(a))
	}
}

// Step is one hop of a vehicle mission: the cell to reach, the heading
// to travel with, and the action to perform on arrival.
type Step struct {
	QR        string              `json:"qr"`
	Direction floorplan.Direction `json:"direction"`
	Action    Action              `json:"action"`
}

// Encode renders the step in the vehicle wire format "QR>dir:action"
func (s Step) Encode() string {
	return fmt.Sprintf("%s>%d:%d", s.QR, int(s.Direction), int(s.Action))
}

// ParseStep decodes the "QR>dir:action" wire format
func ParseStep(raw string) (Step, error) {
	qr, rest, ok := strings.Cut(raw, ">")
	if !ok || qr == "" {
		return Step{}, fmt.Errorf("malformed step %q: missing '>' separator", raw)
	}
	dirPart, actPart, ok := strings.Cut(rest, ":")
	if !ok {
		return Step{}, fmt.Errorf("malformed step %q: missing ':' separator", raw)
	}
	var dir, act int
	if _, err := fmt.Sscanf(dirPart, "%d", &dir); err != nil {
		return Step{}, fmt.Errorf("malformed step %q: bad direction: %w", raw, err)
	}
	if _, err := fmt.Sscanf(actPart, "%d", &act); err != nil {
		return Step{}, fmt.Errorf("malformed step %q: bad action: %w", raw, err)
	}
	return Step{QR: qr, Direction: floorplan.Direction(dir), Action: Action(act)}, nil
}

// Path is an ordered sequence of steps for one vehicle on one floor. The
// first step is the next cell to move to, not the cell the vehicle
// currently occupies.
type Path struct {
	VehicleID string `json:"vehicleId"`
	FloorID   int    `json:"floorId"`
	Steps     []Step `json:"steps"`
}

func New(vehicleID string, floorID int, steps []Step) *Path {
	return &Path{VehicleID: vehicleID, FloorID: floorID, Steps: steps}
}

// Len returns the number of steps
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// IsEmpty reports whether the path has no steps
func (p *Path) IsEmpty() bool {
	return p.Len() == 0
}

// NodeQRs returns the cell tags in travel order
func (p *Path) NodeQRs() []string {
	out := make([]string, 0, p.Len())
	for _, s := range p.Steps {
		out = append(out, s.QR)
	}
	return out
}

// Destination returns the final cell of the path
func (p *Path) Destination() (Step, bool) {
	if p.IsEmpty() {
		return Step{}, false
	}
	return p.Steps[len(p.Steps)-1], true
}

// Contains reports whether the path passes through the given cell
func (p *Path) Contains(qr string) bool {
	for _, s := range p.Steps {
		if s.QR == qr {
			return true
		}
	}
	return false
}

// IndexOf returns the position of a cell within the path, or -1
func (p *Path) IndexOf(qr string) int {
	for i, s := range p.Steps {
		if s.QR == qr {
			return i
		}
	}
	return -1
}

// TruncateBefore returns a copy ending one step short of the given cell,
// preserving step actions. Used to stop a vehicle at the cell before a
// handover point. Returns an empty path when the cell is the first step.
func (p *Path) TruncateBefore(qr string) *Path {
	idx := p.IndexOf(qr)
	if idx < 0 {
		return p.Clone()
	}
	steps := make([]Step, idx)
	copy(steps, p.Steps[:idx])
	if n := len(steps); n > 0 {
		steps[n-1].Action = ActionStopAtNode
	}
	return &Path{VehicleID: p.VehicleID, FloorID: p.FloorID, Steps: steps}
}

// Clone returns a deep copy
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	return &Path{VehicleID: p.VehicleID, FloorID: p.FloorID, Steps: steps}
}

// Encode renders every step in wire format, in travel order
func (p *Path) Encode() []string {
	out := make([]string, 0, p.Len())
	for _, s := range p.Steps {
		out = append(out, s.Encode())
	}
	return out
}

func (p *Path) String() string {
	return strings.Join(p.Encode(), " ")
}
