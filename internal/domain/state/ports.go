// Package state defines the coordination-store ports the controller
// runs on. Implementations must be linearizable per key; the in-memory
// adapter satisfies this with a single lock, a Redis-backed one would
// satisfy it natively.
package state

import (
	"context"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// OccupationStore tracks which vehicle physically holds which cell. It
// is the sole source of truth for "is this cell occupied right now".
// Entries carry a lease and expire silently when a vehicle stalls.
type OccupationStore interface {
	// Block claims a cell for a vehicle, refreshing the lease when the
	// vehicle already holds it. A cell held by another vehicle returns
	// LockHeldError.
	Block(ctx context.Context, nodeQR, owner string) error

	// Unblock releases a cell only when the owner matches; a mismatch is
	// refused and reported so position drift surfaces in the logs.
	Unblock(ctx context.Context, nodeQR, owner string) error

	// HandleMove claims the destination first and releases the origin
	// only after the claim succeeds, so a failed claim never strands the
	// vehicle without a cell. fromQR may be empty on the first report.
	HandleMove(ctx context.Context, vehicleID, fromQR, toQR string) error

	// ClearVehicle releases every cell the vehicle holds and returns how
	// many were released.
	ClearVehicle(ctx context.Context, vehicleID string) (int, error)

	// Owner returns the vehicle holding a cell, if any
	Owner(ctx context.Context, nodeQR string) (string, bool, error)

	// GetAll snapshots cell→vehicle for pathfinder avoidance
	GetAll(ctx context.Context) (map[string]string, error)
}

// ReservationStore is the second, logically distinct lock space used
// for end-node selection, pickup locks and parking claims. Acquire is
// set-if-absent with expiry and never refreshes on re-acquire.
type ReservationStore interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
	Owner(ctx context.Context, key string) (string, bool, error)
}

// PathMetadata rides alongside a cached path and feeds the traffic
// model and the conflict resolver.
type PathMetadata struct {
	IsCarrying   bool          `json:"isCarrying"`
	Priority     int64         `json:"priority"`
	TTL          time.Duration `json:"ttl"`
	SavedAt      time.Time     `json:"savedAt"`
	RerouteCount int           `json:"rerouteCount"`
}

// ActivePath pairs a cached path with its metadata
type ActivePath struct {
	VehicleID string
	Path      *path.Path
	Metadata  PathMetadata
}

// PathStore caches the active path of every vehicle with a TTL so the
// traffic model always works from live intent.
type PathStore interface {
	SavePath(ctx context.Context, vehicleID string, p *path.Path, meta PathMetadata) error
	DeletePath(ctx context.Context, vehicleID string) error
	GetPath(ctx context.Context, vehicleID string) (*ActivePath, bool, error)
	GetAllActivePaths(ctx context.Context) ([]ActivePath, error)

	// PurgeExpired drops paths whose metadata age exceeds their TTL and
	// returns how many were dropped.
	PurgeExpired(ctx context.Context) (int, error)
}

// RowLock is the live state of a one-way constraint on an aisle
type RowLock struct {
	FloorID   int
	Row       int
	Direction floorplan.RowDirection
	Members   []string
	CreatedAt time.Time
}

// RowLockStore serialises aisle direction: the first vehicle into a row
// fixes its direction and same-direction vehicles join as members; the
// opposite direction is refused until the row empties.
type RowLockStore interface {
	// AcquireRow adds the vehicle to the row lock, creating it with the
	// requested direction when absent. An opposing direction returns
	// LockHeldError.
	AcquireRow(ctx context.Context, floorID, row int, dir floorplan.RowDirection, vehicleID string) error

	// ReleaseRow removes the vehicle; the lock is deleted when the last
	// member leaves.
	ReleaseRow(ctx context.Context, floorID, row int, vehicleID string) error

	RowInfo(ctx context.Context, floorID, row int) (*RowLock, bool, error)

	// AllLocks snapshots every live row lock for path planning
	AllLocks(ctx context.Context) ([]RowLock, error)

	// Sweep drops locks older than the cutoff and returns how many
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)

	// AssignBatchRow binds a pickup batch to a target row. The first
	// caller persists its row with the given TTL; later callers get the
	// stored row back regardless of what they proposed.
	AssignBatchRow(ctx context.Context, batchID string, row int, ttl time.Duration) (int, error)
}

// TaskQueueStore is the globally ordered FIFO of committed tasks plus
// the mutable per-task records and the staging queue feeding it.
type TaskQueueStore interface {
	// Register appends a task to the committed queue and stores its
	// record. The task keeps its registration order via Seq.
	Register(ctx context.Context, t *task.Task) error

	// NextSeq allocates a monotonically increasing registration number
	NextSeq(ctx context.Context) (int64, error)

	// NextPending peeks the oldest task still in PENDING without
	// removing it.
	NextPending(ctx context.Context) (*task.Task, bool, error)

	// Get returns the task record
	Get(ctx context.Context, taskID string) (*task.Task, bool, error)

	// UpdateStatus persists a status change with its side effects:
	// ASSIGNED removes the task from the pending queue, adds it to the
	// processing set and maps the vehicle to it; COMPLETED and FAILED
	// undo both.
	UpdateStatus(ctx context.Context, taskID string, status task.Status, vehicleID string) (*task.Task, error)

	// Save persists field changes that do not affect status
	Save(ctx context.Context, t *task.Task) error

	// ActiveTask returns the task a vehicle is executing
	ActiveTask(ctx context.Context, vehicleID string) (*task.Task, bool, error)

	// ProcessingTasks snapshots the in-flight task set
	ProcessingTasks(ctx context.Context) ([]*task.Task, error)

	PendingCount(ctx context.Context) (int, error)

	// PushStaging appends a raw staged order; PushStagingFront returns
	// one the scheduler could not place this tick.
	PushStaging(ctx context.Context, s *StagedOrder) error
	PushStagingFront(ctx context.Context, s *StagedOrder) error
	PopStaging(ctx context.Context) (*StagedOrder, bool, error)
	StagingLen(ctx context.Context) (int, error)
}

// StagedOrder is a transport request before end-node selection: the
// pickup is fixed, the destination cell is chosen by the scheduler.
// TargetRow pins the aisle when the caller already knows it; TargetFloor
// zero means "store on the pickup floor".
type StagedOrder struct {
	OrderID     string    `json:"orderId"`
	PickupQR    string    `json:"pickupQr"`
	PickupFloor int       `json:"pickupFloor"`
	PalletType  string    `json:"palletType"`
	ItemInfo    string    `json:"itemInfo"`
	TargetRow   *int      `json:"targetRow,omitempty"`
	TargetFloor int       `json:"targetFloor,omitempty"`
	StagedAt    time.Time `json:"stagedAt"`
}

// TelemetryStore caches the latest report from each free-roaming
// vehicle endpoint, keyed by vehicle and report kind. Pollers write,
// the read API serves from here so a slow vendor endpoint never sits
// on the request path.
type TelemetryStore interface {
	Save(ctx context.Context, vehicleID, kind, payload string) error
	Load(ctx context.Context, vehicleID, kind string) (string, bool, error)

	// LoadAll returns every cached kind for one vehicle
	LoadAll(ctx context.Context, vehicleID string) (map[string]string, error)
}

// AMRReservationStore is the free-roaming fleet's claim space: one hold
// per node plus the path each vehicle committed to. Holds are separate
// from shuttle occupation because AMRs cross aisles the shuttle grid
// never routes through, but the deadlock detector reads both.
type AMRReservationStore interface {
	// ReserveNode claims a node for a vehicle. A node held by another
	// vehicle returns LockHeldError; re-claiming refreshes the hold.
	ReserveNode(ctx context.Context, nodeQR, vehicleID string, ttl time.Duration) error

	// ReleaseNode drops a hold when the owner matches
	ReleaseNode(ctx context.Context, nodeQR, vehicleID string) error

	SavePath(ctx context.Context, vehicleID string, nodeQRs []string, ttl time.Duration) error
	Path(ctx context.Context, vehicleID string) ([]string, bool, error)
	DeletePath(ctx context.Context, vehicleID string) error

	// ClearVehicle drops the path and every hold of one vehicle and
	// returns how many holds were released.
	ClearVehicle(ctx context.Context, vehicleID string) (int, error)

	// HeldNodes snapshots node→vehicle across the fleet
	HeldNodes(ctx context.Context) (map[string]string, error)
}

// WaitStateStore records how long a vehicle has been held up at a cell,
// driving the conflict resolver's escalation tiers.
type WaitStateStore interface {
	SetWaitState(ctx context.Context, vehicleID string, w *WaitState) error
	GetWaitState(ctx context.Context, vehicleID string) (*WaitState, bool, error)
	ClearWaitState(ctx context.Context, vehicleID string) error
}

// WaitState is one vehicle's current blockage
type WaitState struct {
	VehicleID  string    `json:"vehicleId"`
	WaitingAt  string    `json:"waitingAt"`
	TargetQR   string    `json:"targetQr"`
	BlockedBy  string    `json:"blockedBy"`
	RetryCount int       `json:"retryCount"`
	StartedAt  time.Time `json:"startedAt"`
}
