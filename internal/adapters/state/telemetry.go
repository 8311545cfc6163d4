package state

import (
	"context"
	"strings"
	"time"

	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

const telemetryPrefix = "amr:"

// TelemetryTTL bounds how long a cached report is served after its
// poller stops delivering. Stale entries vanish instead of presenting a
// parked vehicle as live.
const TelemetryTTL = 2 * time.Minute

func telemetryKey(vehicleID, kind string) string {
	return telemetryPrefix + vehicleID + ":" + kind
}

// TelemetryStore caches per-vehicle endpoint reports in the KV space
type TelemetryStore struct {
	kv *KV
}

var _ domainState.TelemetryStore = (*TelemetryStore)(nil)

func NewTelemetryStore(kv *KV) *TelemetryStore {
	return &TelemetryStore{kv: kv}
}

func (s *TelemetryStore) Save(ctx context.Context, vehicleID, kind, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Set(telemetryKey(vehicleID, kind), payload, TelemetryTTL)
	return nil
}

func (s *TelemetryStore) Load(ctx context.Context, vehicleID, kind string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := s.kv.Get(telemetryKey(vehicleID, kind))
	return v, ok, nil
}

// LoadAll returns every cached kind for one vehicle
func (s *TelemetryStore) LoadAll(ctx context.Context, vehicleID string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := telemetryPrefix + vehicleID + ":"
	out := make(map[string]string)
	for _, key := range s.kv.Keys(prefix) {
		kind := strings.TrimPrefix(key, prefix)
		if v, ok := s.kv.Get(key); ok {
			out[kind] = v
		}
	}
	return out, nil
}
