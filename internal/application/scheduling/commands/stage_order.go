package commands

import (
	"context"
	"fmt"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/pkg/utils"
)

// StageOrderCommand submits a transport order for end-node selection.
// The destination cell is not chosen here; the staging scheduler
// allocates it row by row.
type StageOrderCommand struct {
	PickupQR    string
	PickupFloor int
	PalletType  string
	ItemInfo    string
	TargetRow   *int
	TargetFloor int
}

// StageOrderResponse reports the accepted order and its queue position
type StageOrderResponse struct {
	OrderID  string `json:"orderId"`
	Position int    `json:"position"`
}

// StageOrderHandler validates against the floor catalog and appends to
// the staging queue.
type StageOrderHandler struct {
	tasks domainState.TaskQueueStore
	plan  *floorplan.Plan
	clock shared.Clock
}

// NewStageOrderHandler creates a new StageOrderHandler
func NewStageOrderHandler(
	tasks domainState.TaskQueueStore,
	plan *floorplan.Plan,
	clock shared.Clock,
) *StageOrderHandler {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &StageOrderHandler{tasks: tasks, plan: plan, clock: clock}
}

// Handle executes the StageOrder command
func (h *StageOrderHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*StageOrderCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type: expected *StageOrderCommand")
	}

	if cmd.PickupQR == "" {
		return nil, shared.NewValidationError("pickupQr", "must not be empty")
	}
	g, ok := h.plan.Floor(cmd.PickupFloor)
	if !ok {
		return nil, shared.NewValidationError("pickupFloor", fmt.Sprintf("floor %d is not in the catalog", cmd.PickupFloor))
	}
	if _, found := g.Node(cmd.PickupQR); !found {
		return nil, shared.NewValidationError("pickupQr", fmt.Sprintf("%s is not on floor %d", cmd.PickupQR, cmd.PickupFloor))
	}
	if cmd.TargetFloor != 0 {
		if _, found := h.plan.Floor(cmd.TargetFloor); !found {
			return nil, shared.NewValidationError("targetFloor", fmt.Sprintf("floor %d is not in the catalog", cmd.TargetFloor))
		}
	}

	order := &domainState.StagedOrder{
		OrderID:     utils.GenerateOrderID(),
		PickupQR:    cmd.PickupQR,
		PickupFloor: cmd.PickupFloor,
		PalletType:  cmd.PalletType,
		ItemInfo:    cmd.ItemInfo,
		TargetRow:   cmd.TargetRow,
		TargetFloor: cmd.TargetFloor,
		StagedAt:    h.clock.Now(),
	}
	if err := h.tasks.PushStaging(ctx, order); err != nil {
		return nil, fmt.Errorf("staging order: %w", err)
	}

	depth, err := h.tasks.StagingLen(ctx)
	if err != nil {
		depth = 0
	}
	fmt.Printf("Order %s staged: pickup %s (floor %d)\n", order.OrderID, order.PickupQR, order.PickupFloor)
	return &StageOrderResponse{OrderID: order.OrderID, Position: depth}, nil
}
