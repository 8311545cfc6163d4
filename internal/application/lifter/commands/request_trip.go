package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
	domainLifter "github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/pkg/utils"
)

// RequestTripCommand queues a tower trip on behalf of a vehicle. The
// external surface uses it for manual moves; mission flow queues trips
// through the event router instead. LifterID is optional and rejects
// requests aimed at a tower this controller does not run.
type RequestTripCommand struct {
	LifterID  string
	VehicleID string
	TaskID    string
	FromFloor int
	ToFloor   int
	EntryQR   string
	Boarded   bool
}

// RequestTripResponse reports the queued trip and its queue position
type RequestTripResponse struct {
	TripID   string `json:"tripId"`
	Position int    `json:"position"`
}

// RequestTripHandler handles the RequestTrip command
type RequestTripHandler struct {
	lifter common.LifterControl
}

// NewRequestTripHandler creates a new RequestTripHandler
func NewRequestTripHandler(lifter common.LifterControl) *RequestTripHandler {
	return &RequestTripHandler{lifter: lifter}
}

// Handle executes the RequestTrip command
func (h *RequestTripHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*RequestTripCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *RequestTripCommand")
	}

	if cmd.LifterID != "" {
		st, err := h.lifter.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading lifter status: %w", err)
		}
		if st.ID != cmd.LifterID {
			return nil, shared.NewUnknownVehicleError(cmd.LifterID)
		}
	}

	tripID := utils.GenerateTripID()
	if err := h.lifter.RequestLifter(ctx, &domainLifter.QueueEntry{
		VehicleID: cmd.VehicleID,
		TaskID:    cmd.TaskID,
		FromFloor: cmd.FromFloor,
		ToFloor:   cmd.ToFloor,
		EntryQR:   cmd.EntryQR,
		Boarded:   cmd.Boarded,
	}); err != nil {
		return nil, fmt.Errorf("queueing lifter trip: %w", err)
	}

	depth, err := h.lifter.QueueLen(ctx)
	if err != nil {
		depth = 0
	}
	fmt.Printf("Lifter trip %s queued: %s floor %d -> %d\n", tripID, cmd.VehicleID, cmd.FromFloor, cmd.ToFloor)
	return &RequestTripResponse{TripID: tripID, Position: depth}, nil
}
