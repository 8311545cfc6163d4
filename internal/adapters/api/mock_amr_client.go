package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// MockAMRClient simulates the vendor controller for development and
// testing (no hardware required). Each location poll advances an active
// move task by one node, so the poller and executor see a unit that
// behaves like a slow but obedient robot.
type MockAMRClient struct {
	mu    sync.Mutex
	plan  *floorplan.Plan
	units map[string]*mockAMR
}

type mockAMR struct {
	x, y    float64
	nodeQR  string
	floorID int
	battery float64
	loaded  bool
	rackID  string
	state   string
	taskID  string
	route   []string
	step    int
}

// NewMockAMRClient creates a simulated vendor API. plan may be nil;
// positions then stay at the origin.
func NewMockAMRClient(plan *floorplan.Plan) *MockAMRClient {
	return &MockAMRClient{
		plan:  plan,
		units: make(map[string]*mockAMR),
	}
}

var _ common.AMRClient = (*MockAMRClient)(nil)

// AddUnit seeds one simulated AMR at a grid position
func (c *MockAMRClient) AddUnit(amrID string, floorID int, nodeQR string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := &mockAMR{
		nodeQR:  nodeQR,
		floorID: floorID,
		battery: 100,
		state:   "IDLE",
	}
	c.applyPosition(u, nodeQR)
	c.units[amrID] = u
}

// FetchLocation reports the unit's position, advancing an active route
// by one node per poll.
func (c *MockAMRClient) FetchLocation(ctx context.Context, amrID string) (*common.AMRLocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.unit(amrID)
	if err != nil {
		return nil, err
	}

	if u.state == "MOVING" && u.step < len(u.route) {
		c.applyPosition(u, u.route[u.step])
		u.step++
		if u.step >= len(u.route) {
			u.state = "IDLE"
			u.taskID = ""
			u.route = nil
		}
	}

	return &common.AMRLocation{
		X:       u.x,
		Y:       u.y,
		NodeQR:  u.nodeQR,
		FloorID: u.floorID,
	}, nil
}

// FetchBattery reports a slowly draining battery, never below 5%
func (c *MockAMRClient) FetchBattery(ctx context.Context, amrID string) (*common.AMRBattery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.unit(amrID)
	if err != nil {
		return nil, err
	}
	if u.battery > 5 {
		u.battery -= 0.05
	}
	return &common.AMRBattery{Percent: u.battery}, nil
}

func (c *MockAMRClient) FetchCargo(ctx context.Context, amrID string) (*common.AMRCargo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.unit(amrID)
	if err != nil {
		return nil, err
	}
	return &common.AMRCargo{Loaded: u.loaded, RackID: u.rackID}, nil
}

func (c *MockAMRClient) FetchStatus(ctx context.Context, amrID string) (*common.AMRStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, err := c.unit(amrID)
	if err != nil {
		return nil, err
	}
	return &common.AMRStatus{State: u.state, TaskID: u.taskID}, nil
}

// FetchSensors reports an always-healthy sensor suite
func (c *MockAMRClient) FetchSensors(ctx context.Context, amrID string) (*common.AMRSensors, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.unit(amrID); err != nil {
		return nil, err
	}
	return &common.AMRSensors{LidarHealthy: true}, nil
}

// SendMoveTask accepts a move task and starts walking it. Unknown units
// are registered on the fly so demos can dispatch without seeding.
func (c *MockAMRClient) SendMoveTask(ctx context.Context, amrID string, task *common.AMRMoveTask) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.units[amrID]
	if !ok {
		u = &mockAMR{battery: 100, state: "IDLE", floorID: task.FloorID}
		c.applyPosition(u, task.StartQR)
		c.units[amrID] = u
	}
	if u.state == "MOVING" {
		return fmt.Errorf("AMR %s is busy with task %s", amrID, u.taskID)
	}
	u.state = "MOVING"
	u.taskID = task.TaskID
	u.route = task.MoveTaskList
	u.step = 0
	return nil
}

func (c *MockAMRClient) unit(amrID string) (*mockAMR, error) {
	u, ok := c.units[amrID]
	if !ok {
		return nil, fmt.Errorf("unknown AMR %s", amrID)
	}
	return u, nil
}

func (c *MockAMRClient) applyPosition(u *mockAMR, nodeQR string) {
	u.nodeQR = nodeQR
	if c.plan == nil {
		return
	}
	if n, ok := c.plan.FindNode(nodeQR); ok {
		u.x = n.X
		u.y = n.Y
		u.floorID = n.FloorID
	}
}
