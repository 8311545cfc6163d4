package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// CompleteTripCommand acknowledges a lifter trip from outside the
// processor loop: manual recovery, or an external lifter controller
// reporting its leg done.
type CompleteTripCommand struct {
	TaskID string
}

// CompleteTripResponse carries the next queued trip, if any
type CompleteTripResponse struct {
	NextVehicleID string `json:"nextVehicleId,omitempty"`
	NextFromFloor int    `json:"nextFromFloor,omitempty"`
	NextToFloor   int    `json:"nextToFloor,omitempty"`
	HasNext       bool   `json:"hasNext"`
}

// CompleteTripHandler handles the CompleteTrip command
type CompleteTripHandler struct {
	lifter common.LifterControl
}

// NewCompleteTripHandler creates a new CompleteTripHandler
func NewCompleteTripHandler(lifter common.LifterControl) *CompleteTripHandler {
	return &CompleteTripHandler{lifter: lifter}
}

// Handle executes the CompleteTrip command
func (h *CompleteTripHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*CompleteTripCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *CompleteTripCommand")
	}

	next, hasNext, err := h.lifter.CompleteTrip(ctx, cmd.TaskID)
	if err != nil {
		return nil, fmt.Errorf("completing lifter trip %s: %w", cmd.TaskID, err)
	}

	resp := &CompleteTripResponse{HasNext: hasNext}
	if hasNext {
		resp.NextVehicleID = next.VehicleID
		resp.NextFromFloor = next.FromFloor
		resp.NextToFloor = next.ToFloor
	}
	return resp, nil
}
