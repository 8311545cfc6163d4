package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

const (
	activePathPrefix   = "shuttle:active_path:"
	pathMetadataPrefix = "shuttle:path_metadata:"
)

func activePathKey(vehicleID string) string   { return activePathPrefix + vehicleID }
func pathMetadataKey(vehicleID string) string { return pathMetadataPrefix + vehicleID }

// PathStore caches the active path and metadata of every vehicle. The
// traffic model reads the whole cache; the cleaner prunes entries whose
// metadata age passed their TTL.
type PathStore struct {
	kv         *KV
	clock      shared.Clock
	defaultTTL time.Duration
}

var _ domainState.PathStore = (*PathStore)(nil)

func NewPathStore(kv *KV, clock shared.Clock, defaultTTL time.Duration) *PathStore {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if defaultTTL <= 0 {
		defaultTTL = 600 * time.Second
	}
	return &PathStore{kv: kv, clock: clock, defaultTTL: defaultTTL}
}

// SavePath stores the path and its metadata, stamping SavedAt and
// defaulting the TTL.
func (s *PathStore) SavePath(ctx context.Context, vehicleID string, p *path.Path, meta domainState.PathMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil {
		return shared.NewValidationError("path", "must not be nil")
	}
	if meta.TTL <= 0 {
		meta.TTL = s.defaultTTL
	}
	meta.SavedAt = s.clock.Now()

	pathJSON, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding path for %s: %w", vehicleID, err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding path metadata for %s: %w", vehicleID, err)
	}
	s.kv.Set(activePathKey(vehicleID), string(pathJSON), meta.TTL)
	s.kv.Set(pathMetadataKey(vehicleID), string(metaJSON), meta.TTL)
	return nil
}

// DeletePath removes the path and its metadata together
func (s *PathStore) DeletePath(ctx context.Context, vehicleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kv.Del(activePathKey(vehicleID))
	s.kv.Del(pathMetadataKey(vehicleID))
	return nil
}

// GetPath returns the cached path for one vehicle
func (s *PathStore) GetPath(ctx context.Context, vehicleID string) (*domainState.ActivePath, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return s.load(vehicleID)
}

// GetAllActivePaths snapshots every cached path for the traffic model
func (s *PathStore) GetAllActivePaths(ctx context.Context) ([]domainState.ActivePath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domainState.ActivePath
	for _, key := range s.kv.Keys(activePathPrefix) {
		vehicleID := strings.TrimPrefix(key, activePathPrefix)
		ap, ok, err := s.load(vehicleID)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *ap)
		}
	}
	return out, nil
}

// PurgeExpired drops paths whose metadata age exceeds their TTL. The KV
// lease usually beats it; this pass catches entries whose metadata was
// rewritten without a fresh lease.
func (s *PathStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := s.clock.Now()
	n := 0
	for _, key := range s.kv.Keys(pathMetadataPrefix) {
		vehicleID := strings.TrimPrefix(key, pathMetadataPrefix)
		raw, ok := s.kv.Get(key)
		if !ok {
			continue
		}
		var meta domainState.PathMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			s.kv.Del(key)
			s.kv.Del(activePathKey(vehicleID))
			n++
			continue
		}
		if now.Sub(meta.SavedAt) > meta.TTL {
			s.kv.Del(key)
			s.kv.Del(activePathKey(vehicleID))
			n++
		}
	}
	return n, nil
}

func (s *PathStore) load(vehicleID string) (*domainState.ActivePath, bool, error) {
	rawPath, ok := s.kv.Get(activePathKey(vehicleID))
	if !ok {
		return nil, false, nil
	}
	var p path.Path
	if err := json.Unmarshal([]byte(rawPath), &p); err != nil {
		return nil, false, fmt.Errorf("decoding path for %s: %w", vehicleID, err)
	}
	ap := &domainState.ActivePath{VehicleID: vehicleID, Path: &p}
	if rawMeta, ok := s.kv.Get(pathMetadataKey(vehicleID)); ok {
		if err := json.Unmarshal([]byte(rawMeta), &ap.Metadata); err != nil {
			return nil, false, fmt.Errorf("decoding path metadata for %s: %w", vehicleID, err)
		}
	}
	return ap, true, nil
}
