package graph

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// CatalogProvider serves the warehouse floor plan with in-memory caching
//
// Loads from the database catalog on first use and keeps the assembled
// plan around; forceRefresh re-reads the catalog.
type CatalogProvider struct {
	repo floorplan.CatalogRepository

	mu     sync.Mutex
	cached *floorplan.Plan
}

// NewCatalogProvider creates a new floor plan provider
func NewCatalogProvider(repo floorplan.CatalogRepository) *CatalogProvider {
	return &CatalogProvider{repo: repo}
}

var _ common.FloorPlanProvider = (*CatalogProvider)(nil)

// GetPlan retrieves the floor plan (cache first, database on miss or
// forced refresh)
func (p *CatalogProvider) GetPlan(ctx context.Context, forceRefresh bool) (*common.PlanLoadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh && p.cached != nil {
		return &common.PlanLoadResult{
			Plan:    p.cached,
			Source:  "cache",
			Message: fmt.Sprintf("Loaded plan from cache (%d floors)", len(p.cached.FloorIDs())),
		}, nil
	}

	plan, err := p.repo.LoadPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load floor plan catalog: %w", err)
	}
	floors := plan.FloorIDs()
	if len(floors) == 0 {
		return nil, fmt.Errorf("floor plan catalog is empty; import a layout first")
	}

	cells := 0
	for _, id := range floors {
		if g, ok := plan.Floor(id); ok {
			cells += g.NodeCount()
		}
	}
	log.Printf("Loaded floor plan from database: %d floors, %d cells", len(floors), cells)

	p.cached = plan
	return &common.PlanLoadResult{
		Plan:    plan,
		Source:  "database",
		Message: fmt.Sprintf("Loaded plan from database (%d floors, %d cells)", len(floors), cells),
	}, nil
}
