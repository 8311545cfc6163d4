package queries

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// GetVehicleQuery looks up one vehicle with its active task binding
type GetVehicleQuery struct {
	VehicleID string
}

// GetVehicleResponse pairs the vehicle with its current task, if any
type GetVehicleResponse struct {
	Vehicle    *VehicleDTO `json:"vehicle"`
	TaskID     string      `json:"taskId,omitempty"`
	TaskStatus string      `json:"taskStatus,omitempty"`
}

// GetVehicleHandler handles the GetVehicle query
type GetVehicleHandler struct {
	registry *fleet.Registry
	tasks    domainState.TaskQueueStore
}

// NewGetVehicleHandler creates a new GetVehicleHandler
func NewGetVehicleHandler(registry *fleet.Registry, tasks domainState.TaskQueueStore) *GetVehicleHandler {
	return &GetVehicleHandler{registry: registry, tasks: tasks}
}

// Handle executes the GetVehicle query
func (h *GetVehicleHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*GetVehicleQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetVehicleQuery")
	}

	v, found := h.registry.Get(query.VehicleID)
	if !found {
		return nil, shared.NewUnknownVehicleError(query.VehicleID)
	}

	resp := &GetVehicleResponse{
		Vehicle: vehicleDTO(h.registry, v),
	}
	if t, ok, err := h.tasks.ActiveTask(ctx, query.VehicleID); err == nil && ok {
		resp.TaskID = t.ID
		resp.TaskStatus = string(t.Status)
	}
	return resp, nil
}
