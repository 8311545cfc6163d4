package floorplan

import "context"

// CatalogRepository persists the warehouse layout. The plan is read once
// at startup and on explicit reload; box-state changes are mirrored back
// as vehicles pick and drop.
type CatalogRepository interface {
	LoadPlan(ctx context.Context) (*Plan, error)
	SavePlan(ctx context.Context, plan *Plan) error
	SetBoxState(ctx context.Context, qr string, hasBox bool) error

	// FloorEntries returns the configured lifter handover cell per floor.
	// Floors without one fall back to the catalog's lifter cells.
	FloorEntries(ctx context.Context) (map[int]string, error)
}
