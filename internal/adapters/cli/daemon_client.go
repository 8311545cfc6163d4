package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DaemonClient provides a client interface to communicate with the daemon
// over its HTTP API
type DaemonClient struct {
	baseURL    string
	httpClient *http.Client
}

// Response types (mirrors daemon JSON payloads)

type TaskInfo struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	SourceQR    string    `json:"sourceQr"`
	SourceFloor int       `json:"sourceFloor"`
	DestQR      string    `json:"destQr"`
	DestFloor   int       `json:"destFloor"`
	Row         int       `json:"row"`
	BatchID     string    `json:"batchId"`
	PalletType  string    `json:"palletType"`
	ItemInfo    string    `json:"itemInfo"`
	Status      string    `json:"status"`
	VehicleID   string    `json:"vehicleId"`
	RetryCount  int       `json:"retryCount"`
	FailReason  string    `json:"failReason"`
	CreatedAt   time.Time `json:"createdAt"`
	AssignedAt  time.Time `json:"assignedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

type StageOrderResponse struct {
	OrderID  string `json:"orderId"`
	Position int    `json:"position"`
}

type ListTasksResponse struct {
	Processing []*TaskInfo `json:"processing"`
	Pending    int         `json:"pending"`
	Staged     int         `json:"staged"`
}

type GetTaskResponse struct {
	Task *TaskInfo `json:"task"`
}

type TaskEvent struct {
	TaskID     string    `json:"taskId"`
	VehicleID  string    `json:"vehicleId"`
	Type       string    `json:"type"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurredAt"`
}

type TaskEventsResponse struct {
	TaskID string       `json:"taskId"`
	Events []*TaskEvent `json:"events"`
}

type VehicleInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	FloorID   int       `json:"floorId"`
	NodeQR    string    `json:"nodeQr"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Status    string    `json:"status"`
	Carrying  bool      `json:"carrying"`
	Battery   float64   `json:"battery"`
	TaskID    string    `json:"taskId"`
	Executing bool      `json:"executing"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ListVehiclesResponse struct {
	Vehicles []*VehicleInfo `json:"vehicles"`
}

type GetVehicleResponse struct {
	Vehicle    *VehicleInfo `json:"vehicle"`
	TaskID     string       `json:"taskId"`
	TaskStatus string       `json:"taskStatus"`
}

type SetExecutingResponse struct {
	VehicleID string `json:"vehicleId"`
	Executing bool   `json:"executing"`
}

type LifterStatusResponse struct {
	ID           string    `json:"id"`
	CurrentFloor int       `json:"currentFloor"`
	TargetFloor  int       `json:"targetFloor"`
	Status       string    `json:"status"`
	CarriedBy    string    `json:"carriedBy"`
	QueueLen     int       `json:"queueLen"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type RequestTripResponse struct {
	TripID   string `json:"tripId"`
	Position int    `json:"position"`
}

type CompleteTripResponse struct {
	NextVehicleID string `json:"nextVehicleId"`
	NextFromFloor int    `json:"nextFromFloor"`
	NextToFloor   int    `json:"nextToFloor"`
	HasNext       bool   `json:"hasNext"`
}

type EnqueueMoveResponse struct {
	TaskID       string   `json:"taskId"`
	MoveTaskList []string `json:"move_task_list"`
}

type TelemetryResponse struct {
	AMRID string                 `json:"amrId"`
	Data  map[string]interface{} `json:"data"`
}

type DispatchNextResponse struct {
	Dispatched bool `json:"dispatched"`
}

type PlanReloadResponse struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewDaemonClient creates a new daemon client for the given base address.
// A bare host:port is treated as plain HTTP.
func NewDaemonClient(address string) (*DaemonClient, error) {
	if address == "" {
		return nil, fmt.Errorf("daemon address is required")
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	if _, err := url.Parse(address); err != nil {
		return nil, fmt.Errorf("invalid daemon address %q: %w", address, err)
	}

	return &DaemonClient{
		baseURL: strings.TrimRight(address, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Close releases idle connections held by the client
func (c *DaemonClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// call performs one JSON round trip against the daemon API
func (c *DaemonClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("daemon returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health checks daemon liveness
func (c *DaemonClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.call(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StageOrder submits a transport order to the staging queue
func (c *DaemonClient) StageOrder(
	ctx context.Context,
	pickupQR string,
	pickupFloor int,
	palletType, itemInfo string,
	targetRow *int,
	targetFloor int,
) (*StageOrderResponse, error) {
	req := map[string]interface{}{
		"pickup_qr":    pickupQR,
		"pickup_floor": pickupFloor,
		"pallet_type":  palletType,
		"item_info":    itemInfo,
		"target_floor": targetFloor,
	}
	if targetRow != nil {
		req["target_row"] = *targetRow
	}

	var resp StageOrderResponse
	if err := c.call(ctx, http.MethodPost, "/tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTasks returns in-flight tasks plus queue depths
func (c *DaemonClient) ListTasks(ctx context.Context) (*ListTasksResponse, error) {
	var resp ListTasksResponse
	if err := c.call(ctx, http.MethodGet, "/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTask fetches one task by id
func (c *DaemonClient) GetTask(ctx context.Context, taskID string) (*GetTaskResponse, error) {
	var resp GetTaskResponse
	if err := c.call(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTaskEvents fetches the recorded history of one task
func (c *DaemonClient) GetTaskEvents(ctx context.Context, taskID string) (*TaskEventsResponse, error) {
	var resp TaskEventsResponse
	if err := c.call(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListVehicles returns the fleet snapshot, optionally filtered by kind
func (c *DaemonClient) ListVehicles(ctx context.Context, kind string) (*ListVehiclesResponse, error) {
	path := "/vehicles"
	if kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}

	var resp ListVehiclesResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVehicle fetches one vehicle by id
func (c *DaemonClient) GetVehicle(ctx context.Context, vehicleID string) (*GetVehicleResponse, error) {
	var resp GetVehicleResponse
	if err := c.call(ctx, http.MethodGet, "/vehicles/"+url.PathEscape(vehicleID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetExecuting toggles a vehicle's executing flag
func (c *DaemonClient) SetExecuting(ctx context.Context, vehicleID string, enabled bool) (*SetExecutingResponse, error) {
	req := map[string]bool{"enabled": enabled}

	var resp SetExecutingResponse
	if err := c.call(ctx, http.MethodPost, "/vehicles/"+url.PathEscape(vehicleID)+"/executing", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLifterStatus returns the lifter's live state
func (c *DaemonClient) GetLifterStatus(ctx context.Context) (*LifterStatusResponse, error) {
	var resp LifterStatusResponse
	if err := c.call(ctx, http.MethodGet, "/lifter/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestTrip enqueues a lifter trip on behalf of a shuttle
func (c *DaemonClient) RequestTrip(
	ctx context.Context,
	lifterID, vehicleID, taskID string,
	fromFloor, toFloor int,
	entryQR string,
	boarded bool,
) (*RequestTripResponse, error) {
	req := map[string]interface{}{
		"lifter_id":  lifterID,
		"vehicle_id": vehicleID,
		"task_id":    taskID,
		"from_floor": fromFloor,
		"to_floor":   toFloor,
		"entry_qr":   entryQR,
		"boarded":    boarded,
	}

	var resp RequestTripResponse
	if err := c.call(ctx, http.MethodPost, "/lifter/request-task", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteTrip marks a lifter trip finished and reports the next rider
func (c *DaemonClient) CompleteTrip(ctx context.Context, tripID string) (*CompleteTripResponse, error) {
	var resp CompleteTripResponse
	if err := c.call(ctx, http.MethodPost, "/lifter/complete-task/"+url.PathEscape(tripID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnqueueMove plans a free-roaming move and hands it to the executor
func (c *DaemonClient) EnqueueMove(ctx context.Context, amrID, start, end string, floorID int) (*EnqueueMoveResponse, error) {
	req := map[string]interface{}{
		"amr_id": amrID,
		"start":  start,
		"end":    end,
		"floor":  floorID,
	}

	var resp EnqueueMoveResponse
	if err := c.call(ctx, http.MethodPost, "/amr/path", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTelemetry returns the last raw vendor payload for one AMR
func (c *DaemonClient) GetTelemetry(ctx context.Context, amrID string) (*TelemetryResponse, error) {
	var resp TelemetryResponse
	if err := c.call(ctx, http.MethodGet, "/amr/data/"+url.PathEscape(amrID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DispatchNext forces one dispatch attempt outside the normal cadence
func (c *DaemonClient) DispatchNext(ctx context.Context) (*DispatchNextResponse, error) {
	var resp DispatchNextResponse
	if err := c.call(ctx, http.MethodPost, "/dispatch/next", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReloadPlan refreshes the floor plan catalog from the database
func (c *DaemonClient) ReloadPlan(ctx context.Context) (*PlanReloadResponse, error) {
	var resp PlanReloadResponse
	if err := c.call(ctx, http.MethodPost, "/plan/reload", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
