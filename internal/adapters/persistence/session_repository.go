package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// VehicleSessionRepositoryGORM implements vehicle session persistence
// using GORM. Save sits on the registry's hot path, so it is a single
// upsert with no read-before-write.
type VehicleSessionRepositoryGORM struct {
	db *gorm.DB
}

// NewVehicleSessionRepository creates a new GORM-based session repository
func NewVehicleSessionRepository(db *gorm.DB) *VehicleSessionRepositoryGORM {
	return &VehicleSessionRepositoryGORM{db: db}
}

var _ vehicle.SessionRepository = (*VehicleSessionRepositoryGORM)(nil)

// Save creates or updates the session row for a vehicle
func (r *VehicleSessionRepositoryGORM) Save(ctx context.Context, v *vehicle.Vehicle) error {
	model := &VehicleSessionModel{
		VehicleID: v.ID,
		Kind:      string(v.Kind),
		FloorID:   v.FloorID,
		NodeQR:    v.NodeQR,
		X:         v.X,
		Y:         v.Y,
		Status:    string(v.Status),
		Carrying:  boolToInt(v.Carrying),
		Battery:   v.Battery,
		TaskID:    v.TaskID,
		UpdatedAt: v.UpdatedAt,
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vehicle_id"}},
		UpdateAll: true,
	}).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save session for %s: %w", v.ID, err)
	}
	return nil
}

// FindByID retrieves one vehicle session. Returns nil without error when
// no session exists.
func (r *VehicleSessionRepositoryGORM) FindByID(ctx context.Context, id string) (*vehicle.Vehicle, error) {
	var model VehicleSessionModel

	err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", id).
		First(&model).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session for %s: %w", id, err)
	}
	return sessionToVehicle(&model), nil
}

// FindAll retrieves every persisted vehicle session
func (r *VehicleSessionRepositoryGORM) FindAll(ctx context.Context) ([]*vehicle.Vehicle, error) {
	var models []VehicleSessionModel

	if err := r.db.WithContext(ctx).
		Order("vehicle_id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	vehicles := make([]*vehicle.Vehicle, 0, len(models))
	for i := range models {
		vehicles = append(vehicles, sessionToVehicle(&models[i]))
	}
	return vehicles, nil
}

// Delete removes a vehicle session, used when a unit is decommissioned
func (r *VehicleSessionRepositoryGORM) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", id).
		Delete(&VehicleSessionModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete session for %s: %w", id, err)
	}
	return nil
}

func sessionToVehicle(m *VehicleSessionModel) *vehicle.Vehicle {
	return &vehicle.Vehicle{
		ID:        m.VehicleID,
		Kind:      vehicle.Kind(m.Kind),
		FloorID:   m.FloorID,
		NodeQR:    m.NodeQR,
		X:         m.X,
		Y:         m.Y,
		Status:    vehicle.Status(m.Status),
		Carrying:  m.Carrying != 0,
		Battery:   m.Battery,
		TaskID:    m.TaskID,
		UpdatedAt: m.UpdatedAt,
	}
}
