package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// GetLifterStatusQuery reads the drift-corrected tower state
type GetLifterStatusQuery struct{}

// GetLifterStatusResponse is the outward shape of the tower state
type GetLifterStatusResponse struct {
	ID           string    `json:"id"`
	CurrentFloor int       `json:"currentFloor"`
	TargetFloor  int       `json:"targetFloor,omitempty"`
	Status       string    `json:"status"`
	CarriedBy    string    `json:"carriedBy,omitempty"`
	QueueLen     int       `json:"queueLen"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GetLifterStatusHandler handles the GetLifterStatus query
type GetLifterStatusHandler struct {
	lifter common.LifterControl
}

// NewGetLifterStatusHandler creates a new GetLifterStatusHandler
func NewGetLifterStatusHandler(lifter common.LifterControl) *GetLifterStatusHandler {
	return &GetLifterStatusHandler{lifter: lifter}
}

// Handle executes the GetLifterStatus query
func (h *GetLifterStatusHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	if _, ok := request.(*GetLifterStatusQuery); !ok {
		return nil, fmt.Errorf("invalid request type: expected *GetLifterStatusQuery")
	}

	st, err := h.lifter.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading lifter status: %w", err)
	}
	depth, err := h.lifter.QueueLen(ctx)
	if err != nil {
		depth = 0
	}

	return &GetLifterStatusResponse{
		ID:           st.ID,
		CurrentFloor: st.CurrentFloor,
		TargetFloor:  st.TargetFloor,
		Status:       string(st.Status),
		CarriedBy:    st.CarriedBy,
		QueueLen:     depth,
		UpdatedAt:    st.UpdatedAt,
	}, nil
}
