package httpapi

import (
	"fmt"
	"net/http"

	dispatchCommands "github.com/fleetworks/wcs-go/internal/application/dispatch/commands"
	fleetCommands "github.com/fleetworks/wcs-go/internal/application/fleet/commands"
	fleetQueries "github.com/fleetworks/wcs-go/internal/application/fleet/queries"
)

// handleListVehicles snapshots the fleet. ?kind=SHUTTLE|AMR|LIFTER
// narrows the listing to one vehicle kind.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	query := &fleetQueries.ListVehiclesQuery{Kind: r.URL.Query().Get("kind")}

	response, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*fleetQueries.ListVehiclesResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetVehicle serves one vehicle with its active task binding
func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	query := &fleetQueries.GetVehicleQuery{VehicleID: r.PathValue("id")}

	response, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*fleetQueries.GetVehicleResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSetExecuting toggles executing-mode for one shuttle. Enabling
// it also nudges the dispatcher so an idle shuttle picks up pending
// work without waiting for the next cycle.
func (s *Server) handleSetExecuting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	cmd := &fleetCommands.SetExecutingCommand{
		VehicleID: r.PathValue("id"),
		Enabled:   body.Enabled,
	}
	response, err := s.mediator.Send(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*fleetCommands.SetExecutingResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDispatchNext runs one dispatch pass immediately instead of
// waiting for the dispatcher cycle
func (s *Server) handleDispatchNext(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &dispatchCommands.DispatchNextTaskCommand{})
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*dispatchCommands.DispatchNextTaskResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
