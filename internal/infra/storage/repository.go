package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// ErrNotFound is returned when a requested record doesn't exist.
var ErrNotFound = errors.New("record not found")

// DeliveryRepository persists hook execution outcomes for operator
// visibility and the status CLI.
type DeliveryRepository interface {
	// RecordDelivery saves one execution outcome.
	RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error

	// ListRecent retrieves the newest records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.DeliveryRecord, error)

	// CountByStatus counts records per status since the given time.
	CountByStatus(ctx context.Context, since time.Time) (map[string]int, error)
}

// DeadLetterRepository stores notifications the redelivery queue gave up
// on, so an operator can inspect or requeue them later.
type DeadLetterRepository interface {
	// Add parks a notification with the reason it was dropped.
	Add(ctx context.Context, n *domain.QueuedNotification, reason string) error

	// List retrieves up to limit dead letters, oldest first.
	List(ctx context.Context, limit int) ([]*domain.DeadLetter, error)

	// Delete removes a dead letter by notification ID.
	Delete(ctx context.Context, id string) error

	// Purge removes dead letters older than the cutoff and reports how
	// many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
