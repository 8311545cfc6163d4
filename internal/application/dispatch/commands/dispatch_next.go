package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/dispatch"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// DispatchNextTaskCommand forces one pass of the dispatch loop. The
// loop runs on its own cadence; this exists for the admin surface and
// for tests that want deterministic stepping.
type DispatchNextTaskCommand struct{}

// DispatchNextTaskResponse reports whether the pass ran cleanly
type DispatchNextTaskResponse struct {
	Dispatched bool `json:"dispatched"`
}

// DispatchNextTaskHandler handles the DispatchNextTask command
type DispatchNextTaskHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewDispatchNextTaskHandler creates a new DispatchNextTaskHandler
func NewDispatchNextTaskHandler(dispatcher *dispatch.Dispatcher) *DispatchNextTaskHandler {
	return &DispatchNextTaskHandler{dispatcher: dispatcher}
}

// Handle executes the DispatchNextTask command
func (h *DispatchNextTaskHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	if _, ok := request.(*DispatchNextTaskCommand); !ok {
		return nil, fmt.Errorf("invalid request type: expected *DispatchNextTaskCommand")
	}
	if err := h.dispatcher.DispatchNext(ctx); err != nil {
		return nil, err
	}
	return &DispatchNextTaskResponse{Dispatched: true}, nil
}
