package httpapi

import (
	"fmt"
	"net/http"

	amrCommands "github.com/fleetworks/wcs-go/internal/application/amr/commands"
	amrQueries "github.com/fleetworks/wcs-go/internal/application/amr/queries"
)

// handleAMRPath plans a route for a free-roaming vehicle and pushes it
// as a fire-and-forget move task. The response returns immediately with
// the task id; progress arrives on the event channels.
func (s *Server) handleAMRPath(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AMRID   string `json:"amr_id"`
		Start   string `json:"start"`
		End     string `json:"end"`
		FloorID int    `json:"floor"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	cmd := &amrCommands.EnqueueMoveCommand{
		AMRID:   body.AMRID,
		StartQR: body.Start,
		EndQR:   body.End,
		FloorID: body.FloorID,
	}
	response, err := s.mediator.Send(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*amrCommands.EnqueueMoveResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAMRData serves the cached telemetry of one AMR
func (s *Server) handleAMRData(w http.ResponseWriter, r *http.Request) {
	query := &amrQueries.GetTelemetryQuery{AMRID: r.PathValue("id")}

	response, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*amrQueries.GetTelemetryResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
