package queries

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// ListVehiclesQuery snapshots the fleet, optionally one kind only
type ListVehiclesQuery struct {
	Kind string
}

// VehicleDTO is the outward shape of one vehicle's state
type VehicleDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	FloorID   int       `json:"floorId"`
	NodeQR    string    `json:"nodeQr,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Status    string    `json:"status"`
	Carrying  bool      `json:"carrying"`
	Battery   float64   `json:"battery"`
	TaskID    string    `json:"taskId,omitempty"`
	Executing bool      `json:"executing"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListVehiclesResponse carries the fleet snapshot, sorted by id
type ListVehiclesResponse struct {
	Vehicles []*VehicleDTO `json:"vehicles"`
}

// ListVehiclesHandler handles the ListVehicles query
type ListVehiclesHandler struct {
	registry *fleet.Registry
}

// NewListVehiclesHandler creates a new ListVehiclesHandler
func NewListVehiclesHandler(registry *fleet.Registry) *ListVehiclesHandler {
	return &ListVehiclesHandler{registry: registry}
}

// Handle executes the ListVehicles query
func (h *ListVehiclesHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*ListVehiclesQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *ListVehiclesQuery")
	}

	all := h.registry.All()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	out := make([]*VehicleDTO, 0, len(all))
	for _, v := range all {
		if query.Kind != "" && string(v.Kind) != query.Kind {
			continue
		}
		out = append(out, vehicleDTO(h.registry, v))
	}
	return &ListVehiclesResponse{Vehicles: out}, nil
}

func vehicleDTO(registry *fleet.Registry, v *vehicle.Vehicle) *VehicleDTO {
	return &VehicleDTO{
		ID:        v.ID,
		Kind:      string(v.Kind),
		FloorID:   v.FloorID,
		NodeQR:    v.NodeQR,
		X:         v.X,
		Y:         v.Y,
		Status:    string(v.Status),
		Carrying:  v.Carrying,
		Battery:   v.Battery,
		TaskID:    v.TaskID,
		Executing: registry.IsExecuting(v.ID),
		UpdatedAt: v.UpdatedAt,
	}
}
