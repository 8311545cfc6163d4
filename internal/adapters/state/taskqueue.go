package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

const (
	globalTaskQueueKey = "shuttle:global_task_queue"
	processingTasksKey = "shuttle:processing_tasks"
	stagingQueueKey    = "task:staging_queue"
	taskRecordPrefix   = "shuttle:task:"
	activeTaskPrefix   = "shuttle:active_task:"
	taskSeqKey         = "shuttle:task_seq"
)

func taskRecordKey(taskID string) string    { return taskRecordPrefix + taskID }
func activeTaskKey(vehicleID string) string { return activeTaskPrefix + vehicleID }

// TaskQueueStore keeps the committed FIFO, the per-task records, the
// processing set and the staging queue. Status changes and their queue
// side effects run under one mutex so the committed queue only ever
// moves one way per task.
type TaskQueueStore struct {
	mu    sync.Mutex
	kv    *KV
	clock shared.Clock
}

var _ domainState.TaskQueueStore = (*TaskQueueStore)(nil)

func NewTaskQueueStore(kv *KV, clock shared.Clock) *TaskQueueStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &TaskQueueStore{kv: kv, clock: clock}
}

// Register appends the task to the committed queue in Seq order
func (s *TaskQueueStore) Register(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(t); err != nil {
		return err
	}
	s.kv.ZAdd(globalTaskQueueKey, t.ID, float64(t.Seq))
	return nil
}

// NextSeq allocates the next registration number. Sequence numbers give
// the committed queue its FIFO order and survive store restarts.
func (s *TaskQueueStore) NextSeq(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.kv.Incr(taskSeqKey), nil
}

// NextPending peeks the oldest task still pending without removing it
func (s *TaskQueueStore) NextPending(ctx context.Context) (*task.Task, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.kv.ZRangeAsc(globalTaskQueueKey, 0) {
		t, ok, err := s.read(id)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			// Record vanished; drop the orphaned queue entry
			s.kv.ZRem(globalTaskQueueKey, id)
			continue
		}
		if t.Status == task.StatusPending {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// Get returns one task record
func (s *TaskQueueStore) Get(ctx context.Context, taskID string) (*task.Task, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(taskID)
}

// UpdateStatus persists a status change and applies its queue side
// effects: ASSIGNED leaves the pending queue and enters the processing
// set; COMPLETED and FAILED leave the processing set and unbind the
// vehicle; PENDING re-queues after a failed hand-off.
func (s *TaskQueueStore) UpdateStatus(ctx context.Context, taskID string, status task.Status, vehicleID string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok, err := s.read(taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.NewTaskError(taskID, "unknown task")
	}

	switch status {
	case task.StatusAssigned:
		if err := t.AssignTo(vehicleID, s.clock.Now()); err != nil {
			return nil, err
		}
		s.kv.ZRem(globalTaskQueueKey, t.ID)
		s.kv.SAdd(processingTasksKey, t.ID)
		s.kv.Set(activeTaskKey(vehicleID), t.ID, 0)
	case task.StatusCompleted, task.StatusFailed:
		if err := t.Transition(status, s.clock.Now()); err != nil {
			return nil, err
		}
		s.kv.SRem(processingTasksKey, t.ID)
		if t.VehicleID != "" {
			s.kv.Del(activeTaskKey(t.VehicleID))
		}
	case task.StatusPending:
		previousVehicle := t.VehicleID
		if err := t.Transition(status, s.clock.Now()); err != nil {
			return nil, err
		}
		s.kv.SRem(processingTasksKey, t.ID)
		if previousVehicle != "" {
			s.kv.Del(activeTaskKey(previousVehicle))
		}
		s.kv.ZAdd(globalTaskQueueKey, t.ID, float64(t.Seq))
	default:
		if err := t.Transition(status, s.clock.Now()); err != nil {
			return nil, err
		}
	}

	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Save persists record changes that carry no status side effects
func (s *TaskQueueStore) Save(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(t)
}

// ActiveTask returns the task a vehicle is currently executing
func (s *TaskQueueStore) ActiveTask(ctx context.Context, vehicleID string) (*task.Task, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.kv.Get(activeTaskKey(vehicleID))
	if !ok {
		return nil, false, nil
	}
	return s.read(id)
}

// ProcessingTasks snapshots every in-flight task
func (s *TaskQueueStore) ProcessingTasks(ctx context.Context) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*task.Task
	for _, id := range s.kv.SMembers(processingTasksKey) {
		t, ok, err := s.read(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// PendingCount returns the committed queue length
func (s *TaskQueueStore) PendingCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.kv.ZCard(globalTaskQueueKey), nil
}

// PushStaging appends a staged order to the back of the staging queue
func (s *TaskQueueStore) PushStaging(ctx context.Context, o *domainState.StagedOrder) error {
	return s.pushStaging(ctx, o, false)
}

// PushStagingFront returns an order the scheduler could not place, so
// the next tick retries it first.
func (s *TaskQueueStore) PushStagingFront(ctx context.Context, o *domainState.StagedOrder) error {
	return s.pushStaging(ctx, o, true)
}

func (s *TaskQueueStore) pushStaging(ctx context.Context, o *domainState.StagedOrder, front bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding staged order %s: %w", o.OrderID, err)
	}
	if front {
		s.kv.LPush(stagingQueueKey, string(raw))
	} else {
		s.kv.RPush(stagingQueueKey, string(raw))
	}
	return nil
}

// PopStaging removes and returns the head of the staging queue
func (s *TaskQueueStore) PopStaging(ctx context.Context) (*domainState.StagedOrder, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, ok := s.kv.LPop(stagingQueueKey)
	if !ok {
		return nil, false, nil
	}
	var o domainState.StagedOrder
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, false, fmt.Errorf("decoding staged order: %w", err)
	}
	return &o, true, nil
}

// StagingLen returns how many orders wait for end-node selection
func (s *TaskQueueStore) StagingLen(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.kv.LLen(stagingQueueKey), nil
}

func (s *TaskQueueStore) read(taskID string) (*task.Task, bool, error) {
	raw, ok := s.kv.Get(taskRecordKey(taskID))
	if !ok {
		return nil, false, nil
	}
	var t task.Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, false, fmt.Errorf("decoding task %s: %w", taskID, err)
	}
	return &t, true, nil
}

func (s *TaskQueueStore) write(t *task.Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	s.kv.Set(taskRecordKey(t.ID), string(raw), 0)
	return nil
}
