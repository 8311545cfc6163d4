package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// TaskEventRepositoryGORM implements the task audit trail using GORM
type TaskEventRepositoryGORM struct {
	db *gorm.DB
}

// NewTaskEventRepository creates a new GORM-based task event repository
func NewTaskEventRepository(db *gorm.DB) *TaskEventRepositoryGORM {
	return &TaskEventRepositoryGORM{db: db}
}

var _ task.EventLog = (*TaskEventRepositoryGORM)(nil)

// Append records one task lifecycle event
func (r *TaskEventRepositoryGORM) Append(ctx context.Context, rec *task.EventRecord) error {
	model := &TaskEventModel{
		TaskID:     rec.TaskID,
		VehicleID:  rec.VehicleID,
		EventType:  rec.Type,
		Detail:     rec.Detail,
		OccurredAt: rec.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append event for task %s: %w", rec.TaskID, err)
	}
	return nil
}

// ForTask retrieves the audit trail of one task in chronological order
func (r *TaskEventRepositoryGORM) ForTask(ctx context.Context, taskID string) ([]*task.EventRecord, error) {
	var models []TaskEventModel

	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("occurred_at, id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load events for task %s: %w", taskID, err)
	}

	records := make([]*task.EventRecord, 0, len(models))
	for _, m := range models {
		records = append(records, &task.EventRecord{
			TaskID:     m.TaskID,
			VehicleID:  m.VehicleID,
			Type:       m.EventType,
			Detail:     m.Detail,
			OccurredAt: m.OccurredAt,
		})
	}
	return records, nil
}

// Prune deletes events older than the cutoff and returns how many rows
// went away. Called periodically so the table does not grow unbounded.
func (r *TaskEventRepositoryGORM) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", olderThan).
		Delete(&TaskEventModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune task events: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
