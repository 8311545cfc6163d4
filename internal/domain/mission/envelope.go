package mission

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/fleetworks/wcs-go/internal/domain/path"
)

// OnArrival tells the dispatcher what the vehicle reaching the end of
// this mission means for its task.
type OnArrival string

const (
	OnArrivalTaskComplete     OnArrival = "TASK_COMPLETE"
	OnArrivalPickupComplete   OnArrival = "PICKUP_COMPLETE"
	OnArrivalArrivedAtLifter  OnArrival = "ARRIVED_AT_LIFTER"
	OnArrivalWaitingForLifter OnArrival = "WAITING_FOR_LIFTER"
)

// Envelope is the wire message published to a vehicle channel: the
// planned steps plus the task context the dispatcher needs back when the
// vehicle reports arrival. Steps are flattened into numbered keys
// (step1..stepN) with a totalStep count, matching the onboard
// controller's expected shape.
type Envelope struct {
	MissionID        string
	TaskID           string
	VehicleID        string
	OnArrival        OnArrival
	FinalTargetQR    string
	FinalTargetFloor int
	PickupQR         string
	EndQR            string
	ItemInfo         string
	IsCarrying       bool
	Steps            []string
	Simulation       []string
}

// FromPath builds an envelope from a planned path. Simulation carries
// the bare cell ids for external observers.
func FromPath(missionID, taskID string, p *path.Path, onArrival OnArrival) *Envelope {
	return &Envelope{
		MissionID:  missionID,
		TaskID:     taskID,
		VehicleID:  p.VehicleID,
		OnArrival:  onArrival,
		Steps:      p.Encode(),
		Simulation: p.NodeQRs(),
	}
}

// TotalStep returns the step count as carried on the wire
func (e *Envelope) TotalStep() int {
	return len(e.Steps)
}

// IsWaitInPlace reports whether the vehicle should hold position. An
// empty step list with a lifter wait means the vehicle is already at the
// handover cell.
func (e *Envelope) IsWaitInPlace() bool {
	return len(e.Steps) == 0 && e.OnArrival == OnArrivalWaitingForLifter
}

// MarshalJSON flattens the step list into step1..stepN keys
func (e *Envelope) MarshalJSON() ([]byte, error) {
	payload := map[string]interface{}{
		"missionId":               e.MissionID,
		"taskId":                  e.TaskID,
		"vehicleId":               e.VehicleID,
		"onArrival":               string(e.OnArrival),
		"finalTargetNode":         e.FinalTargetQR,
		"finalTargetFloor":        e.FinalTargetFloor,
		"pickupNodeQr":            e.PickupQR,
		"endNodeQr":               e.EndQR,
		"itemInfo":                e.ItemInfo,
		"isCarrying":              e.IsCarrying,
		"totalStep":               len(e.Steps),
		"running_path_simulation": e.Simulation,
	}
	for i, s := range e.Steps {
		payload["step"+strconv.Itoa(i+1)] = s
	}
	return json.Marshal(payload)
}

// UnmarshalJSON rebuilds the step list from step1..stepN keys
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	str := func(key string) string {
		var s string
		if v, ok := raw[key]; ok {
			_ = json.Unmarshal(v, &s)
		}
		return s
	}
	e.MissionID = str("missionId")
	e.TaskID = str("taskId")
	e.VehicleID = str("vehicleId")
	e.OnArrival = OnArrival(str("onArrival"))
	e.FinalTargetQR = str("finalTargetNode")
	e.PickupQR = str("pickupNodeQr")
	e.EndQR = str("endNodeQr")
	e.ItemInfo = str("itemInfo")
	if v, ok := raw["finalTargetFloor"]; ok {
		if err := json.Unmarshal(v, &e.FinalTargetFloor); err != nil {
			return fmt.Errorf("finalTargetFloor: %w", err)
		}
	}
	if v, ok := raw["isCarrying"]; ok {
		if err := json.Unmarshal(v, &e.IsCarrying); err != nil {
			return fmt.Errorf("isCarrying: %w", err)
		}
	}
	if v, ok := raw["running_path_simulation"]; ok {
		if err := json.Unmarshal(v, &e.Simulation); err != nil {
			return fmt.Errorf("running_path_simulation: %w", err)
		}
	}
	var total int
	if v, ok := raw["totalStep"]; ok {
		if err := json.Unmarshal(v, &total); err != nil {
			return fmt.Errorf("totalStep: %w", err)
		}
	}
	e.Steps = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		v, ok := raw["step"+strconv.Itoa(i)]
		if !ok {
			return fmt.Errorf("mission %s: totalStep=%d but step%d is missing", e.MissionID, total, i)
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("step%d: %w", i, err)
		}
		e.Steps = append(e.Steps, s)
	}
	return nil
}

// DecodedSteps parses the wire steps back into structured form
func (e *Envelope) DecodedSteps() ([]path.Step, error) {
	out := make([]path.Step, 0, len(e.Steps))
	for i, raw := range e.Steps {
		s, err := path.ParseStep(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}
