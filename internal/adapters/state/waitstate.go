package state

import (
	"context"
	"encoding/json"
	"fmt"

	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

const waitStateSuffix = ":wait_state"

func waitStateKey(vehicleID string) string { return "shuttle:" + vehicleID + waitStateSuffix }

// WaitStateStore records per-vehicle blockage for escalation
type WaitStateStore struct {
	kv *KV
}

var _ domainState.WaitStateStore = (*WaitStateStore)(nil)

func NewWaitStateStore(kv *KV) *WaitStateStore {
	return &WaitStateStore{kv: kv}
}

func (s *WaitStateStore) SetWaitState(ctx context.Context, vehicleID string, w *domainState.WaitState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding wait state for %s: %w", vehicleID, err)
	}
	s.kv.Set(waitStateKey(vehicleID), string(raw), 0)
	return nil
}

func (s *WaitStateStore) GetWaitState(ctx context.Context, vehicleID string) (*domainState.WaitState, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	raw, ok := s.kv.Get(waitStateKey(vehicleID))
	if !ok {
		return nil, false, nil
	}
	var w domainState.WaitState
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, false, fmt.Errorf("decoding wait state for %s: %w", vehicleID, err)
	}
	return &w, true, nil
}

func (s *WaitStateStore) ClearWaitState(ctx context.Context, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Del(waitStateKey(vehicleID))
	return nil
}
