package logging_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/application/logging"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

type tracedRequest struct {
	VehicleID string
	TaskID    string
}

type anonymousRequest struct {
	Note string
}

// loggingHandler emits one event through the context logger
type loggingHandler struct{}

func (h *loggingHandler) Handle(ctx context.Context, _ mediator.Request) (mediator.Response, error) {
	logging.LoggerFromContext(ctx).Log(logging.LevelInfo, "handled", map[string]interface{}{"step": 1})
	return nil, nil
}

func TestTraceMiddleware_TagsVehicleAndTask(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	m := mediator.NewMediator()
	m.Use(logging.TraceMiddleware(capture))
	require.NoError(t, mediator.RegisterHandler[*tracedRequest](m, &loggingHandler{}))

	// Act
	_, err := m.Send(context.Background(), &tracedRequest{VehicleID: "SH-01", TaskID: "T-9"})

	// Assert
	require.NoError(t, err)
	require.Len(t, capture.metadata, 1)
	assert.Equal(t, "SH-01", capture.metadata[0]["vehicle"])
	assert.Equal(t, "T-9", capture.metadata[0]["task"])
	assert.Equal(t, 1, capture.metadata[0]["step"], "handler metadata survives tagging")
}

func TestTraceMiddleware_RequestWithoutIdentityStaysUntagged(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	m := mediator.NewMediator()
	m.Use(logging.TraceMiddleware(capture))
	require.NoError(t, mediator.RegisterHandler[*anonymousRequest](m, &loggingHandler{}))

	// Act
	_, err := m.Send(context.Background(), &anonymousRequest{Note: "no ids here"})

	// Assert
	require.NoError(t, err)
	require.Len(t, capture.metadata, 1)
	assert.NotContains(t, capture.metadata[0], "vehicle")
	assert.NotContains(t, capture.metadata[0], "task")
}

func TestTraceMiddleware_PartialIdentityTagsOnlyWhatExists(t *testing.T) {
	// Arrange
	capture := &captureLogger{}
	m := mediator.NewMediator()
	m.Use(logging.TraceMiddleware(capture))
	require.NoError(t, mediator.RegisterHandler[*tracedRequest](m, &loggingHandler{}))

	// Act
	_, err := m.Send(context.Background(), &tracedRequest{VehicleID: "AMR-03"})

	// Assert
	require.NoError(t, err)
	require.Len(t, capture.metadata, 1)
	assert.Equal(t, "AMR-03", capture.metadata[0]["vehicle"])
	assert.NotContains(t, capture.metadata[0], "task")
}
