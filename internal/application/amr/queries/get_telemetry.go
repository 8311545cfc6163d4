package queries

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// GetTelemetryQuery reads the cached endpoint reports for one vehicle
type GetTelemetryQuery struct {
	AMRID string
}

// GetTelemetryResponse maps report kind to its decoded payload
type GetTelemetryResponse struct {
	AMRID string                 `json:"amrId"`
	Data  map[string]interface{} `json:"data"`
}

// GetTelemetryHandler handles the GetTelemetry query
type GetTelemetryHandler struct {
	telemetry domainState.TelemetryStore
}

// NewGetTelemetryHandler creates a new GetTelemetryHandler
func NewGetTelemetryHandler(telemetry domainState.TelemetryStore) *GetTelemetryHandler {
	return &GetTelemetryHandler{telemetry: telemetry}
}

// Handle executes the GetTelemetry query
func (h *GetTelemetryHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*GetTelemetryQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetTelemetryQuery")
	}

	cached, err := h.telemetry.LoadAll(ctx, query.AMRID)
	if err != nil {
		return nil, fmt.Errorf("loading telemetry for %s: %w", query.AMRID, err)
	}
	if len(cached) == 0 {
		return nil, shared.NewUnknownVehicleError(query.AMRID)
	}

	data := make(map[string]interface{}, len(cached))
	for kind, raw := range cached {
		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			// Serve the raw string rather than dropping the kind
			data[kind] = raw
			continue
		}
		data[kind] = decoded
	}
	return &GetTelemetryResponse{AMRID: query.AMRID, Data: data}, nil
}
