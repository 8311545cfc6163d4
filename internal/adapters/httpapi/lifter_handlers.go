package httpapi

import (
	"fmt"
	"net/http"

	lifterCommands "github.com/fleetworks/wcs-go/internal/application/lifter/commands"
	lifterQueries "github.com/fleetworks/wcs-go/internal/application/lifter/queries"
)

// handleLifterRequestTask enqueues a cross-floor trip for a vehicle.
// Callers that are already standing on the entry cell set boarded; the
// coordinator then skips the approach phase.
func (s *Server) handleLifterRequestTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LifterID  string `json:"lifter_id"`
		VehicleID string `json:"vehicle_id"`
		TaskID    string `json:"task_id"`
		FromFloor int    `json:"from_floor"`
		ToFloor   int    `json:"to_floor"`
		EntryQR   string `json:"entry_qr"`
		Boarded   bool   `json:"boarded"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	cmd := &lifterCommands.RequestTripCommand{
		LifterID:  body.LifterID,
		VehicleID: body.VehicleID,
		TaskID:    body.TaskID,
		FromFloor: body.FromFloor,
		ToFloor:   body.ToFloor,
		EntryQR:   body.EntryQR,
		Boarded:   body.Boarded,
	}
	response, err := s.mediator.Send(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*lifterCommands.RequestTripResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLifterCompleteTask marks the trip for the given task done and
// reports the next queued trip, if any
func (s *Server) handleLifterCompleteTask(w http.ResponseWriter, r *http.Request) {
	cmd := &lifterCommands.CompleteTripCommand{TaskID: r.PathValue("id")}

	response, err := s.mediator.Send(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*lifterCommands.CompleteTripResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLifterStatus serves the drift-corrected tower state
func (s *Server) handleLifterStatus(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &lifterQueries.GetLifterStatusQuery{})
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*lifterQueries.GetLifterStatusResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
