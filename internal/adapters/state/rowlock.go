package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

const rowLockPrefix = "row:"

func rowLockKey(floorID, row int) string {
	return fmt.Sprintf("row:%d:%d:direction", floorID, row)
}

// BatchRowKey binds a pickup batch to its assigned aisle
func BatchRowKey(batchID string) string { return "batch:pickup:" + batchID }

type rowLockRecord struct {
	Direction floorplan.RowDirection `json:"direction"`
	Members   []string               `json:"members"`
	CreatedAt time.Time              `json:"createdAt"`
}

// RowLockStore serialises aisle direction. Compound updates run under a
// store-level mutex so member lists never lose writes.
type RowLockStore struct {
	mu    sync.Mutex
	kv    *KV
	clock shared.Clock
}

var _ domainState.RowLockStore = (*RowLockStore)(nil)

func NewRowLockStore(kv *KV, clock shared.Clock) *RowLockStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &RowLockStore{kv: kv, clock: clock}
}

// AcquireRow joins the vehicle to the row lock. The first vehicle fixes
// the direction; same-direction joins are idempotent; the opposite
// direction is refused until the row empties.
func (s *RowLockStore) AcquireRow(ctx context.Context, floorID, row int, dir floorplan.RowDirection, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowLockKey(floorID, row)
	rec, ok, err := s.read(key)
	if err != nil {
		return err
	}
	if !ok {
		rec = &rowLockRecord{Direction: dir, CreatedAt: s.clock.Now()}
	}
	if rec.Direction != dir {
		return shared.NewLockHeldError(key, fmt.Sprintf("%d vehicles heading %s", len(rec.Members), rec.Direction))
	}
	for _, m := range rec.Members {
		if m == vehicleID {
			return nil
		}
	}
	rec.Members = append(rec.Members, vehicleID)
	return s.write(key, rec)
}

// ReleaseRow removes the vehicle, deleting the lock when the last
// member leaves.
func (s *RowLockStore) ReleaseRow(ctx context.Context, floorID, row int, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowLockKey(floorID, row)
	rec, ok, err := s.read(key)
	if err != nil || !ok {
		return err
	}
	members := rec.Members[:0]
	for _, m := range rec.Members {
		if m != vehicleID {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		s.kv.Del(key)
		return nil
	}
	rec.Members = members
	return s.write(key, rec)
}

// RowInfo returns the live lock on a row
func (s *RowLockStore) RowInfo(ctx context.Context, floorID, row int) (*domainState.RowLock, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.read(rowLockKey(floorID, row))
	if err != nil || !ok {
		return nil, false, err
	}
	return &domainState.RowLock{
		FloorID:   floorID,
		Row:       row,
		Direction: rec.Direction,
		Members:   append([]string{}, rec.Members...),
		CreatedAt: rec.CreatedAt,
	}, true, nil
}

// AllLocks snapshots every live row lock
func (s *RowLockStore) AllLocks(ctx context.Context) ([]domainState.RowLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var locks []domainState.RowLock
	for _, key := range s.kv.Keys(rowLockPrefix) {
		var floorID, row int
		if _, err := fmt.Sscanf(key, "row:%d:%d:direction", &floorID, &row); err != nil {
			continue
		}
		rec, ok, err := s.read(key)
		if err != nil || !ok {
			continue
		}
		locks = append(locks, domainState.RowLock{
			FloorID:   floorID,
			Row:       row,
			Direction: rec.Direction,
			Members:   append([]string{}, rec.Members...),
			CreatedAt: rec.CreatedAt,
		})
	}
	return locks, nil
}

// Sweep drops locks older than the cutoff. Catches rows orphaned by
// vehicles that died without releasing.
func (s *RowLockStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for _, key := range s.kv.Keys(rowLockPrefix) {
		rec, ok, err := s.read(key)
		if err != nil || !ok {
			continue
		}
		if now.Sub(rec.CreatedAt) > olderThan {
			s.kv.Del(key)
			n++
		}
	}
	return n, nil
}

// AssignBatchRow binds a batch to a row. The first caller's row wins
// and persists for the TTL; later callers get the stored row back.
func (s *RowLockStore) AssignBatchRow(ctx context.Context, batchID string, row int, ttl time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	key := BatchRowKey(batchID)
	if s.kv.SetNX(key, strconv.Itoa(row), ttl) {
		return row, nil
	}
	raw, ok := s.kv.Get(key)
	if !ok {
		// Expired between SetNX and Get; claim it now
		s.kv.Set(key, strconv.Itoa(row), ttl)
		return row, nil
	}
	stored, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("batch %s has malformed row %q: %w", batchID, raw, err)
	}
	return stored, nil
}

func (s *RowLockStore) read(key string) (*rowLockRecord, bool, error) {
	raw, ok := s.kv.Get(key)
	if !ok {
		return nil, false, nil
	}
	var rec rowLockRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("decoding row lock %s: %w", key, err)
	}
	return &rec, true, nil
}

func (s *RowLockStore) write(key string, rec *rowLockRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding row lock %s: %w", key, err)
	}
	s.kv.Set(key, string(raw), 0)
	return nil
}
