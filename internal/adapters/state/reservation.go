package state

import (
	"context"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// Reservation key namespaces. End-node locks are taken by the staging
// scheduler, pickup locks by dispatched shuttles, parking locks by the
// conflict resolver, node and path reservations by the free-roaming
// fleet.
func EndNodeLockKey(cellID string) string    { return "endnode:lock:" + cellID }
func PickupLockKey(qr string) string         { return "pickup:lock:" + qr }
func ParkingLockKey(qr string) string        { return "parking:" + qr + ":lock" }
func AMRReservationKey(nodeQR string) string { return "amr:reservation:" + nodeQR }
func AMRPathKey(vehicleID string) string     { return "amr:path:" + vehicleID }

// ReservationStore is the secondary lock space. Unlike cell occupation
// it never refreshes on re-acquire: a reservation is taken once and
// either released or left to expire.
type ReservationStore struct {
	kv *KV
}

var _ domainState.ReservationStore = (*ReservationStore)(nil)

func NewReservationStore(kv *KV) *ReservationStore {
	return &ReservationStore{kv: kv}
}

// Acquire takes the key if absent. Holding the key already does not
// extend it; the caller gets LockHeldError either way.
func (s *ReservationStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.kv.SetNX(key, owner, ttl) {
		return nil
	}
	current, _ := s.kv.Get(key)
	return shared.NewLockHeldError(key, current)
}

// Release drops the reservation regardless of owner
func (s *ReservationStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Del(key)
	return nil
}

// Owner returns the current holder of a reservation
func (s *ReservationStore) Owner(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	owner, ok := s.kv.Get(key)
	return owner, ok, nil
}
