package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/infra/storage"
)

// DeadLetterRepo stores permanently dropped notifications in PostgreSQL.
type DeadLetterRepo struct {
	db *DB
}

func NewDeadLetterRepo(db *DB) *DeadLetterRepo {
	return &DeadLetterRepo{db: db}
}

func (r *DeadLetterRepo) Add(ctx context.Context, n *domain.QueuedNotification, reason string) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO dead_letters (notification_id, hook_id, event_id, payload, retry_count, reason, queued_at, dropped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (notification_id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		n.ID, n.HookID, n.EventID, payload, n.RetryCount, reason, n.CreatedAt)
	return err
}

func (r *DeadLetterRepo) List(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT notification_id, hook_id, event_id, payload, retry_count, reason, queued_at, dropped_at
		FROM dead_letters
		ORDER BY dropped_at ASC
		LIMIT $1
	`
	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DeadLetter
	for rows.Next() {
		var dl domain.DeadLetter
		var payload []byte
		if err := rows.Scan(
			&dl.Notification.ID, &dl.Notification.HookID, &dl.Notification.EventID,
			&payload, &dl.Notification.RetryCount, &dl.Reason,
			&dl.Notification.CreatedAt, &dl.DroppedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &dl.Notification.Payload); err != nil {
			return nil, err
		}
		out = append(out, &dl)
	}
	return out, rows.Err()
}

func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM dead_letters WHERE notification_id=$1", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *DeadLetterRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM dead_letters WHERE dropped_at < $1", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
