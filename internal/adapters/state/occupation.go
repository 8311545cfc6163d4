package state

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

const (
	nodeKeyPrefix = "node:"
	nodeKeySuffix = ":occupied_by"
)

func nodeKey(qr string) string {
	return nodeKeyPrefix + qr + nodeKeySuffix
}

func qrFromNodeKey(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, nodeKeyPrefix), nodeKeySuffix)
}

// OccupationStore tracks physical cell ownership with leases. A vehicle
// that stalls past the lease silently relinquishes its cell.
type OccupationStore struct {
	kv       *KV
	leaseTTL time.Duration
}

var _ domainState.OccupationStore = (*OccupationStore)(nil)

func NewOccupationStore(kv *KV, leaseTTL time.Duration) *OccupationStore {
	if leaseTTL <= 0 {
		leaseTTL = 300 * time.Second
	}
	return &OccupationStore{kv: kv, leaseTTL: leaseTTL}
}

// Block claims a cell. Re-claiming a cell the vehicle already holds
// refreshes the lease; a cell held by someone else is refused.
func (s *OccupationStore) Block(ctx context.Context, nodeQR, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := nodeKey(nodeQR)
	if s.kv.SetNX(key, owner, s.leaseTTL) {
		return nil
	}
	current, ok := s.kv.Get(key)
	if !ok {
		// Lease lapsed between the failed SetNX and the read
		if s.kv.SetNX(key, owner, s.leaseTTL) {
			return nil
		}
		current, _ = s.kv.Get(key)
	}
	if current == owner {
		s.kv.Set(key, owner, s.leaseTTL)
		return nil
	}
	return shared.NewLockHeldError(key, current)
}

// Unblock releases a cell only when the owner matches. A mismatch is
// refused and logged: it means the caller's view of the grid drifted.
func (s *OccupationStore) Unblock(ctx context.Context, nodeQR, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := nodeKey(nodeQR)
	current, ok := s.kv.Get(key)
	if !ok {
		return nil
	}
	if current != owner {
		log.Printf("occupation: refusing unblock of %s by %s, held by %s", nodeQR, owner, current)
		return shared.NewLockHeldError(key, current)
	}
	s.kv.Del(key)
	return nil
}

// HandleMove claims the destination before releasing the origin. When
// the claim fails the origin is left untouched and the failure is
// reported to the caller.
func (s *OccupationStore) HandleMove(ctx context.Context, vehicleID, fromQR, toQR string) error {
	if err := s.Block(ctx, toQR, vehicleID); err != nil {
		return fmt.Errorf("claiming %s for %s: %w", toQR, vehicleID, err)
	}
	if fromQR == "" || fromQR == toQR {
		return nil
	}
	if err := s.Unblock(ctx, fromQR, vehicleID); err != nil {
		// Destination is claimed; a stale origin only wastes a lease
		log.Printf("occupation: move of %s kept stale origin %s: %v", vehicleID, fromQR, err)
	}
	return nil
}

// ClearVehicle releases every cell the vehicle holds
func (s *OccupationStore) ClearVehicle(ctx context.Context, vehicleID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, key := range s.kv.Keys(nodeKeyPrefix) {
		if !strings.HasSuffix(key, nodeKeySuffix) {
			continue
		}
		if owner, ok := s.kv.Get(key); ok && owner == vehicleID {
			s.kv.Del(key)
			n++
		}
	}
	return n, nil
}

// Owner returns the vehicle currently holding a cell
func (s *OccupationStore) Owner(ctx context.Context, nodeQR string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	owner, ok := s.kv.Get(nodeKey(nodeQR))
	return owner, ok, nil
}

// GetAll snapshots cell→vehicle for pathfinder avoidance
func (s *OccupationStore) GetAll(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, key := range s.kv.Keys(nodeKeyPrefix) {
		if !strings.HasSuffix(key, nodeKeySuffix) {
			continue
		}
		if owner, ok := s.kv.Get(key); ok {
			out[qrFromNodeKey(key)] = owner
		}
	}
	return out, nil
}
