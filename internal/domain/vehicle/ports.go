package vehicle

import "context"

// SessionRepository persists vehicle sessions so the controller can
// rebuild its fleet view after a restart.
type SessionRepository interface {
	Save(ctx context.Context, v *Vehicle) error
	FindByID(ctx context.Context, id string) (*Vehicle, error)
	FindAll(ctx context.Context) ([]*Vehicle, error)
	Delete(ctx context.Context, id string) error
}
