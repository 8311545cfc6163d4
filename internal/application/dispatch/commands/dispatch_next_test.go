package commands_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/dispatch"
	"github.com/fleetworks/wcs-go/internal/application/dispatch/commands"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// newIdleDispatcher wires a dispatcher over empty stores; a pass over
// an empty queue returns without touching the planner.
func newIdleDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	kv := state.NewKV(clock)
	registry := fleet.NewRegistry(clock, nil)
	tasks := state.NewTaskQueueStore(kv, clock)
	reservation := state.NewReservationStore(kv)
	return dispatch.NewDispatcher(registry, tasks, reservation, nil, nil, nil, nil, clock)
}

func TestDispatchNextTaskHandler_RunsOnePass(t *testing.T) {
	// Arrange
	handler := commands.NewDispatchNextTaskHandler(newIdleDispatcher(t))

	// Act
	resp, err := handler.Handle(context.Background(), &commands.DispatchNextTaskCommand{})

	// Assert
	require.NoError(t, err)
	result, ok := resp.(*commands.DispatchNextTaskResponse)
	require.True(t, ok)
	assert.True(t, result.Dispatched)
}

func TestDispatchNextTaskHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler := commands.NewDispatchNextTaskHandler(newIdleDispatcher(t))

	// Act
	_, err := handler.Handle(context.Background(), "not a command")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
