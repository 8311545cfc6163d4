package httpapi

import (
	"fmt"
	"net/http"

	schedulingCommands "github.com/fleetworks/wcs-go/internal/application/scheduling/commands"
	schedulingQueries "github.com/fleetworks/wcs-go/internal/application/scheduling/queries"
)

// handleStageTask stages a storage order. The destination cell is not
// part of the request; the staging scheduler allocates it when the
// order leaves the staging queue.
func (s *Server) handleStageTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PickupQR    string `json:"pickup_qr"`
		PickupFloor int    `json:"pickup_floor"`
		PalletType  string `json:"pallet_type"`
		ItemInfo    string `json:"item_info"`
		TargetRow   *int   `json:"target_row"`
		TargetFloor int    `json:"target_floor"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	cmd := &schedulingCommands.StageOrderCommand{
		PickupQR:    body.PickupQR,
		PickupFloor: body.PickupFloor,
		PalletType:  body.PalletType,
		ItemInfo:    body.ItemInfo,
		TargetRow:   body.TargetRow,
		TargetFloor: body.TargetFloor,
	}
	response, err := s.mediator.Send(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*schedulingCommands.StageOrderResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListTasks snapshots the processing set and the queue depths
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &schedulingQueries.ListTasksQuery{})
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*schedulingQueries.ListTasksResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetTask serves one task by id, searching processing, pending
// and staged queues
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	query := &schedulingQueries.GetTaskQuery{TaskID: r.PathValue("id")}

	response, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*schedulingQueries.GetTaskResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetTaskEvents serves the audit trail of one task, oldest first
func (s *Server) handleGetTaskEvents(w http.ResponseWriter, r *http.Request) {
	query := &schedulingQueries.GetTaskEventsQuery{TaskID: r.PathValue("id")}

	response, err := s.mediator.Send(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, ok := response.(*schedulingQueries.GetTaskEventsResponse)
	if !ok {
		writeError(w, fmt.Errorf("unexpected response type"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
