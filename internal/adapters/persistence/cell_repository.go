package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// CellRepositoryGORM implements floor plan catalog persistence using GORM
type CellRepositoryGORM struct {
	db *gorm.DB
}

// NewCellRepository creates a new GORM-based catalog repository
func NewCellRepository(db *gorm.DB) *CellRepositoryGORM {
	return &CellRepositoryGORM{db: db}
}

var _ floorplan.CatalogRepository = (*CellRepositoryGORM)(nil)

// LoadPlan reads the full catalog and assembles the in-memory plan.
// Edges referencing unknown cells are skipped with a warning rather than
// failing the load; a partially wired floor is still navigable.
func (r *CellRepositoryGORM) LoadPlan(ctx context.Context) (*floorplan.Plan, error) {
	var floors []FloorModel
	if err := r.db.WithContext(ctx).Order("id").Find(&floors).Error; err != nil {
		return nil, fmt.Errorf("failed to load floors: %w", err)
	}

	plan := floorplan.NewPlan()
	for _, f := range floors {
		graph, err := r.loadFloor(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		plan.AddFloor(graph)
	}
	return plan, nil
}

func (r *CellRepositoryGORM) loadFloor(ctx context.Context, floorID int) (*floorplan.FloorGraph, error) {
	var cells []CellModel
	if err := r.db.WithContext(ctx).
		Where("floor_id = ?", floorID).
		Find(&cells).Error; err != nil {
		return nil, fmt.Errorf("failed to load cells for floor %d: %w", floorID, err)
	}

	graph := floorplan.NewFloorGraph(floorID)
	for _, c := range cells {
		node := &floorplan.Node{
			QR:            c.QR,
			FloorID:       c.FloorID,
			Col:           c.Col,
			Row:           c.Row,
			X:             c.X,
			Y:             c.Y,
			Blocked:       c.Blocked != 0,
			HasBox:        c.HasBox != 0,
			CellType:      floorplan.CellType(c.CellType),
			DirectionType: floorplan.DirectionType(c.DirectionType),
			PalletType:    c.PalletType,
		}
		if err := graph.AddNode(node); err != nil {
			return nil, fmt.Errorf("failed to add cell %s on floor %d: %w", c.QR, floorID, err)
		}
	}

	var edges []CellEdgeModel
	if err := r.db.WithContext(ctx).
		Where("floor_id = ?", floorID).
		Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load edges for floor %d: %w", floorID, err)
	}
	for _, e := range edges {
		if err := graph.AddEdge(e.FromQR, e.ToQR, e.Distance); err != nil {
			fmt.Printf("Warning: skipping edge %s-%s on floor %d: %v\n", e.FromQR, e.ToQR, floorID, err)
		}
	}
	return graph, nil
}

// SavePlan replaces the stored catalog with the given plan. The swap is
// transactional so readers never observe a half-written layout.
func (r *CellRepositoryGORM) SavePlan(ctx context.Context, plan *floorplan.Plan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []interface{}{&CellEdgeModel{}, &CellModel{}, &FloorModel{}} {
			if err := tx.Where("1 = 1").Delete(table).Error; err != nil {
				return fmt.Errorf("failed to clear catalog: %w", err)
			}
		}

		for _, floorID := range plan.FloorIDs() {
			graph, _ := plan.Floor(floorID)
			entryQR := ""
			if lifters := graph.NodesOfType(floorplan.CellTypeLifter); len(lifters) > 0 {
				entryQR = lifters[0].QR
			}
			if err := tx.Create(&FloorModel{
				ID:            floorID,
				Name:          fmt.Sprintf("Floor %d", floorID),
				LifterEntryQR: entryQR,
			}).Error; err != nil {
				return fmt.Errorf("failed to save floor %d: %w", floorID, err)
			}
			if err := saveFloorCells(tx, graph); err != nil {
				return err
			}
		}
		return nil
	})
}

// FloorEntries returns the lifter handover cell configured per floor.
// Floors with no configured cell are omitted.
func (r *CellRepositoryGORM) FloorEntries(ctx context.Context) (map[int]string, error) {
	var floors []FloorModel
	if err := r.db.WithContext(ctx).Find(&floors).Error; err != nil {
		return nil, fmt.Errorf("failed to load floor entries: %w", err)
	}
	entries := make(map[int]string, len(floors))
	for _, f := range floors {
		if f.LifterEntryQR != "" {
			entries[f.ID] = f.LifterEntryQR
		}
	}
	return entries, nil
}

func saveFloorCells(tx *gorm.DB, graph *floorplan.FloorGraph) error {
	nodes := graph.Nodes()
	models := make([]CellModel, 0, len(nodes))
	for _, n := range nodes {
		models = append(models, CellModel{
			FloorID:       n.FloorID,
			QR:            n.QR,
			Col:           n.Col,
			Row:           n.Row,
			X:             n.X,
			Y:             n.Y,
			Blocked:       boolToInt(n.Blocked),
			HasBox:        boolToInt(n.HasBox),
			CellType:      string(n.CellType),
			DirectionType: string(n.DirectionType),
			PalletType:    n.PalletType,
		})
	}
	if len(models) > 0 {
		if err := tx.CreateInBatches(models, 200).Error; err != nil {
			return fmt.Errorf("failed to save cells for floor %d: %w", graph.FloorID(), err)
		}
	}

	// Adjacency is symmetric; persist each unordered pair once.
	seen := make(map[string]struct{})
	var edges []CellEdgeModel
	for _, n := range nodes {
		for _, nb := range graph.Neighbors(n.QR) {
			key := n.QR + "|" + nb.QR
			if n.QR > nb.QR {
				key = nb.QR + "|" + n.QR
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, CellEdgeModel{
				FloorID:  graph.FloorID(),
				FromQR:   n.QR,
				ToQR:     nb.QR,
				Distance: nb.Distance,
			})
		}
	}
	if len(edges) > 0 {
		if err := tx.CreateInBatches(edges, 200).Error; err != nil {
			return fmt.Errorf("failed to save edges for floor %d: %w", graph.FloorID(), err)
		}
	}
	return nil
}

// SetBoxState mirrors a pick or drop to the catalog so box occupancy
// survives a controller restart.
func (r *CellRepositoryGORM) SetBoxState(ctx context.Context, qr string, hasBox bool) error {
	result := r.db.WithContext(ctx).
		Model(&CellModel{}).
		Where("qr = ?", qr).
		Update("has_box", boolToInt(hasBox))
	if result.Error != nil {
		return fmt.Errorf("failed to update box state for %s: %w", qr, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("cell %s not found in catalog", qr)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
