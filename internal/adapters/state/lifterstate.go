package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

const (
	lifterStatusKey = "lifter:status"
	lifterQueueKey  = "lifter:coordinated_queue"
	lifterBusyKey   = "lifter:status:busy"
)

// LifterStateStore persists tower status as a field hash plus the trip
// queue and the busy latch.
type LifterStateStore struct {
	kv    *KV
	clock shared.Clock
}

var _ lifter.StatusStore = (*LifterStateStore)(nil)

func NewLifterStateStore(kv *KV, clock shared.Clock) *LifterStateStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &LifterStateStore{kv: kv, clock: clock}
}

// Status rebuilds the tower state from the status hash
func (s *LifterStateStore) Status(ctx context.Context) (*lifter.Lifter, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	h := s.kv.HGetAll(lifterStatusKey)
	if len(h) == 0 {
		return nil, false, nil
	}
	l := &lifter.Lifter{
		ID:        h["id"],
		Status:    lifter.Status(h["status"]),
		CarriedBy: h["carriedBy"],
	}
	var err error
	if l.CurrentFloor, err = strconv.Atoi(h["currentFloor"]); err != nil {
		return nil, false, fmt.Errorf("lifter status has malformed currentFloor %q: %w", h["currentFloor"], err)
	}
	if v := h["targetFloor"]; v != "" {
		if l.TargetFloor, err = strconv.Atoi(v); err != nil {
			return nil, false, fmt.Errorf("lifter status has malformed targetFloor %q: %w", v, err)
		}
	}
	if v := h["updatedAt"]; v != "" {
		if l.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, false, fmt.Errorf("lifter status has malformed updatedAt %q: %w", v, err)
		}
	}
	return l, true, nil
}

// SaveStatus writes the tower state field by field
func (s *LifterStateStore) SaveStatus(ctx context.Context, l *lifter.Lifter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.HSet(lifterStatusKey, "id", l.ID)
	s.kv.HSet(lifterStatusKey, "currentFloor", strconv.Itoa(l.CurrentFloor))
	s.kv.HSet(lifterStatusKey, "targetFloor", strconv.Itoa(l.TargetFloor))
	s.kv.HSet(lifterStatusKey, "status", string(l.Status))
	s.kv.HSet(lifterStatusKey, "carriedBy", l.CarriedBy)
	s.kv.HSet(lifterStatusKey, "updatedAt", s.clock.Now().Format(time.RFC3339Nano))
	return nil
}

// Enqueue appends a trip request to the coordinated queue
func (s *LifterStateStore) Enqueue(ctx context.Context, e *lifter.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding lifter request for %s: %w", e.VehicleID, err)
	}
	s.kv.RPush(lifterQueueKey, string(raw))
	return nil
}

// Dequeue pops the oldest trip request
func (s *LifterStateStore) Dequeue(ctx context.Context) (*lifter.QueueEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, ok := s.kv.LPop(lifterQueueKey)
	if !ok {
		return nil, false, nil
	}
	var e lifter.QueueEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, false, fmt.Errorf("decoding lifter request: %w", err)
	}
	return &e, true, nil
}

// Peek returns the oldest trip request without removing it
func (s *LifterStateStore) Peek(ctx context.Context) (*lifter.QueueEntry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	entries := s.kv.LRange(lifterQueueKey)
	if len(entries) == 0 {
		return nil, false, nil
	}
	var e lifter.QueueEntry
	if err := json.Unmarshal([]byte(entries[0]), &e); err != nil {
		return nil, false, fmt.Errorf("decoding lifter request: %w", err)
	}
	return &e, true, nil
}

// QueueLen returns the number of waiting trip requests
func (s *LifterStateStore) QueueLen(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.kv.LLen(lifterQueueKey), nil
}

// HasPending reports whether the vehicle already has a queued trip
func (s *LifterStateStore) HasPending(ctx context.Context, vehicleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, raw := range s.kv.LRange(lifterQueueKey) {
		var e lifter.QueueEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		if e.VehicleID == vehicleID {
			return true, nil
		}
	}
	return false, nil
}

// SetBusy latches the busy flag with a safety TTL so a crashed trip
// cannot wedge the tower forever.
func (s *LifterStateStore) SetBusy(ctx context.Context, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.kv.SetNX(lifterBusyKey, "1", ttl), nil
}

// RefreshBusy renews the busy lease. A latch that already expired is
// not resurrected; the next SetBusy decides ownership.
func (s *LifterStateStore) RefreshBusy(ctx context.Context, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Expire(lifterBusyKey, ttl)
	return nil
}

// ClearBusy releases the busy latch
func (s *LifterStateStore) ClearBusy(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Del(lifterBusyKey)
	return nil
}

// IsBusy reports whether a trip currently holds the latch
func (s *LifterStateStore) IsBusy(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := s.kv.Get(lifterBusyKey)
	return ok, nil
}
