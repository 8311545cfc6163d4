package lifter

import (
	"context"
	"time"
)

// StatusStore persists lifter status, the coordinated trip queue and
// the busy latch between controller restarts.
type StatusStore interface {
	// Status returns the cached tower state; ok is false when the cache
	// is cold and the caller must synthesize it from sensors.
	Status(ctx context.Context) (*Lifter, bool, error)
	SaveStatus(ctx context.Context, l *Lifter) error

	// Enqueue appends a trip request in arrival order
	Enqueue(ctx context.Context, e *QueueEntry) error
	Dequeue(ctx context.Context) (*QueueEntry, bool, error)

	// Peek returns the oldest request without removing it
	Peek(ctx context.Context) (*QueueEntry, bool, error)
	QueueLen(ctx context.Context) (int, error)

	// HasPending reports whether a trip request for the vehicle is
	// still queued.
	HasPending(ctx context.Context, vehicleID string) (bool, error)

	// SetBusy latches the busy flag with a safety TTL; returns false
	// when another trip already holds it.
	SetBusy(ctx context.Context, ttl time.Duration) (bool, error)

	// RefreshBusy renews the lease while a healthy trip is in flight
	RefreshBusy(ctx context.Context, ttl time.Duration) error
	ClearBusy(ctx context.Context) error
	IsBusy(ctx context.Context) (bool, error)
}
