package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// Waker nudges the dispatch loop without importing it
type Waker interface {
	Wake()
}

// SetExecutingCommand toggles executing-mode for one shuttle. Executing
// shuttles pull the next pending task as soon as they finish one.
type SetExecutingCommand struct {
	VehicleID string
	Enabled   bool
}

// SetExecutingResponse echoes the resulting mode
type SetExecutingResponse struct {
	VehicleID string `json:"vehicleId"`
	Executing bool   `json:"executing"`
}

// SetExecutingHandler handles the SetExecuting command
type SetExecutingHandler struct {
	registry   *fleet.Registry
	dispatcher Waker
}

// NewSetExecutingHandler creates a new SetExecutingHandler
func NewSetExecutingHandler(registry *fleet.Registry, dispatcher Waker) *SetExecutingHandler {
	return &SetExecutingHandler{registry: registry, dispatcher: dispatcher}
}

// Handle executes the SetExecuting command
func (h *SetExecutingHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*SetExecutingCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *SetExecutingCommand")
	}

	if _, found := h.registry.Get(cmd.VehicleID); !found {
		return nil, shared.NewUnknownVehicleError(cmd.VehicleID)
	}
	h.registry.SetExecuting(cmd.VehicleID, cmd.Enabled)
	fmt.Printf("Executing mode for %s: %v\n", cmd.VehicleID, cmd.Enabled)

	if cmd.Enabled && h.dispatcher != nil {
		h.dispatcher.Wake()
	}
	return &SetExecutingResponse{VehicleID: cmd.VehicleID, Executing: cmd.Enabled}, nil
}
