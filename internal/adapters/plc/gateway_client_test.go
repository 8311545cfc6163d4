package plc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/plc"
	"github.com/fleetworks/wcs-go/internal/domain/lifter"
)

func TestGatewayClient_ReadBool(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tags/"+lifter.TagPositionFloor2, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": true}`))
	}))
	defer server.Close()
	client := plc.NewGatewayClient(server.URL)

	// Act
	value, err := client.ReadBool(context.Background(), lifter.TagPositionFloor2)

	// Assert
	require.NoError(t, err)
	assert.True(t, value)
}

func TestGatewayClient_WriteBool(t *testing.T) {
	// Arrange
	var gotBody struct {
		Value bool `json:"value"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tags/"+lifter.TagControlFloor1, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()
	client := plc.NewGatewayClient(server.URL)

	// Act
	err := client.WriteBool(context.Background(), lifter.TagControlFloor1, true)

	// Assert
	require.NoError(t, err)
	assert.True(t, gotBody.Value)
}

func TestGatewayClient_ReadBoolBridgeFailure(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	client := plc.NewGatewayClient(server.URL)

	// Act
	_, err := client.ReadBool(context.Background(), lifter.TagError)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGatewayClient_WriteBoolBridgeFailure(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()
	client := plc.NewGatewayClient(server.URL)

	// Act
	err := client.WriteBool(context.Background(), lifter.TagControlFloor2, true)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
}

func TestGatewayClient_TrimsTrailingSlash(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tags/"+lifter.TagError, r.URL.Path)
		w.Write([]byte(`{"value": false}`))
	}))
	defer server.Close()
	client := plc.NewGatewayClient(server.URL + "/")

	// Act
	value, err := client.ReadBool(context.Background(), lifter.TagError)

	// Assert
	require.NoError(t, err)
	assert.False(t, value)
}
