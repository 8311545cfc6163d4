package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// amrReservationSetKey indexes every live node hold so snapshots never
// scan the whole key space.
const amrReservationSetKey = "amr:reservations:all"

// AMRReservationStore tracks node holds and committed paths for the
// free-roaming fleet. Holds are leases: a vehicle that dies mid-route
// sheds its claims on expiry and the membership index self-heals on the
// next snapshot.
type AMRReservationStore struct {
	kv *KV
}

var _ domainState.AMRReservationStore = (*AMRReservationStore)(nil)

func NewAMRReservationStore(kv *KV) *AMRReservationStore {
	return &AMRReservationStore{kv: kv}
}

// ReserveNode claims a node. The same vehicle re-claiming refreshes its
// lease; anyone else gets LockHeldError.
func (s *AMRReservationStore) ReserveNode(ctx context.Context, nodeQR, vehicleID string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := AMRReservationKey(nodeQR)
	if s.kv.SetNX(key, vehicleID, ttl) {
		s.kv.SAdd(amrReservationSetKey, nodeQR)
		return nil
	}
	owner, _ := s.kv.Get(key)
	if owner == vehicleID {
		s.kv.Set(key, vehicleID, ttl)
		return nil
	}
	return shared.NewLockHeldError(key, owner)
}

// ReleaseNode drops a hold when the owner matches. A mismatch is left
// in place: the true owner releases it or the lease expires.
func (s *AMRReservationStore) ReleaseNode(ctx context.Context, nodeQR, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := AMRReservationKey(nodeQR)
	owner, ok := s.kv.Get(key)
	if !ok {
		s.kv.SRem(amrReservationSetKey, nodeQR)
		return nil
	}
	if owner != vehicleID {
		return fmt.Errorf("node %s held by %s, not %s", nodeQR, owner, vehicleID)
	}
	s.kv.Del(key)
	s.kv.SRem(amrReservationSetKey, nodeQR)
	return nil
}

func (s *AMRReservationStore) SavePath(ctx context.Context, vehicleID string, nodeQRs []string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded, err := json.Marshal(nodeQRs)
	if err != nil {
		return fmt.Errorf("encoding path for %s: %w", vehicleID, err)
	}
	s.kv.Set(AMRPathKey(vehicleID), string(encoded), ttl)
	return nil
}

func (s *AMRReservationStore) Path(ctx context.Context, vehicleID string) ([]string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, ok := s.kv.Get(AMRPathKey(vehicleID))
	if !ok {
		return nil, false, nil
	}
	var qrs []string
	if err := json.Unmarshal([]byte(raw), &qrs); err != nil {
		return nil, false, fmt.Errorf("decoding path for %s: %w", vehicleID, err)
	}
	return qrs, true, nil
}

func (s *AMRReservationStore) DeletePath(ctx context.Context, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Del(AMRPathKey(vehicleID))
	return nil
}

// ClearVehicle drops the path and every hold of one vehicle
func (s *AMRReservationStore) ClearVehicle(ctx context.Context, vehicleID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	released := 0
	for _, nodeQR := range s.kv.SMembers(amrReservationSetKey) {
		owner, ok := s.kv.Get(AMRReservationKey(nodeQR))
		if !ok {
			s.kv.SRem(amrReservationSetKey, nodeQR)
			continue
		}
		if owner != vehicleID {
			continue
		}
		s.kv.Del(AMRReservationKey(nodeQR))
		s.kv.SRem(amrReservationSetKey, nodeQR)
		released++
	}
	s.kv.Del(AMRPathKey(vehicleID))
	return released, nil
}

// HeldNodes snapshots node→vehicle across the fleet, pruning index
// entries whose lease already expired.
func (s *AMRReservationStore) HeldNodes(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, nodeQR := range s.kv.SMembers(amrReservationSetKey) {
		owner, ok := s.kv.Get(AMRReservationKey(nodeQR))
		if !ok {
			s.kv.SRem(amrReservationSetKey, nodeQR)
			continue
		}
		out[nodeQR] = owner
	}
	return out, nil
}
