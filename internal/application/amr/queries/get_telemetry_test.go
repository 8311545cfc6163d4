package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/amr/queries"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

func newTelemetryHandler(t *testing.T) (*queries.GetTelemetryHandler, *state.TelemetryStore) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	telemetry := state.NewTelemetryStore(state.NewKV(clock))
	return queries.NewGetTelemetryHandler(telemetry), telemetry
}

func TestGetTelemetryHandler_DecodesCachedReports(t *testing.T) {
	// Arrange
	handler, telemetry := newTelemetryHandler(t)
	ctx := context.Background()
	require.NoError(t, telemetry.Save(ctx, "AMR-01", "location", `{"NodeQR":"W1:02","FloorID":1,"X":2,"Y":0}`))
	require.NoError(t, telemetry.Save(ctx, "AMR-01", "battery", `{"Percent":87.5,"Charging":false}`))

	// Act
	resp, err := handler.Handle(ctx, &queries.GetTelemetryQuery{AMRID: "AMR-01"})

	// Assert
	require.NoError(t, err)
	result, ok := resp.(*queries.GetTelemetryResponse)
	require.True(t, ok)
	assert.Equal(t, "AMR-01", result.AMRID)

	loc, ok := result.Data["location"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "W1:02", loc["NodeQR"])

	batt, ok := result.Data["battery"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 87.5, batt["Percent"])
}

func TestGetTelemetryHandler_ServesUndecodablePayloadRaw(t *testing.T) {
	// Arrange
	handler, telemetry := newTelemetryHandler(t)
	ctx := context.Background()
	require.NoError(t, telemetry.Save(ctx, "AMR-01", "status", "OFFLINE"))

	// Act
	resp, err := handler.Handle(ctx, &queries.GetTelemetryQuery{AMRID: "AMR-01"})

	// Assert
	require.NoError(t, err)
	result := resp.(*queries.GetTelemetryResponse)
	assert.Equal(t, "OFFLINE", result.Data["status"])
}

func TestGetTelemetryHandler_UnknownVehicle(t *testing.T) {
	// Arrange
	handler, _ := newTelemetryHandler(t)

	// Act
	resp, err := handler.Handle(context.Background(), &queries.GetTelemetryQuery{AMRID: "AMR-404"})

	// Assert
	require.Error(t, err)
	assert.Nil(t, resp)
	var unknown *shared.UnknownVehicleError
	assert.ErrorAs(t, err, &unknown)
}

func TestGetTelemetryHandler_RejectsWrongRequestType(t *testing.T) {
	// Arrange
	handler, _ := newTelemetryHandler(t)

	// Act
	_, err := handler.Handle(context.Background(), "not a query")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request type")
}
