// Package traffic maintains the live congestion model for the
// topological planner: which cells carry traffic, in which dominant
// direction, and which aisles have become corridors.
package traffic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/traffic"
)

// CleanerInterval is how often stale paths are purged from the cache.
// The KV lease usually expires entries first; the cleaner is the safety
// net for metadata rewritten without a fresh lease.
const CleanerInterval = 30 * time.Second

// Service builds traffic snapshots from the path cache and runs the
// background cleaner.
type Service struct {
	paths  domainState.PathStore
	clock  shared.Clock
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewService(paths domainState.PathStore, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Service{
		paths:  paths,
		clock:  clock,
		stopCh: make(chan struct{}),
	}
}

// Snapshot builds the congestion model from every active path,
// excluding the querying vehicle's own path.
func (s *Service) Snapshot(ctx context.Context, excludeVehicleID string) (traffic.Snapshot, error) {
	active, err := s.paths.GetAllActivePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active paths: %w", err)
	}
	return traffic.BuildSnapshotExcluding(active, excludeVehicleID), nil
}

// StartCleaner launches the periodic purge of expired paths
func (s *Service) StartCleaner() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(CleanerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.clean()
			}
		}
	}()
	fmt.Printf("Traffic cleaner started (interval: %v)\n", CleanerInterval)
}

// Stop halts the cleaner and waits for it to exit
func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Service) clean() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := s.paths.PurgeExpired(ctx)
	if err != nil {
		fmt.Printf("Warning: traffic cleaner failed: %v\n", err)
		return
	}
	if n > 0 {
		fmt.Printf("Traffic cleaner purged %d expired path(s)\n", n)
	}
}
