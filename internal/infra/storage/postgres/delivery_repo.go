package postgres

import (
	"context"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// DeliveryRepo stores hook execution outcomes in PostgreSQL.
type DeliveryRepo struct {
	db *DB
}

func NewDeliveryRepo(db *DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

func (r *DeliveryRepo) RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error {
	query := `
		INSERT INTO delivery_history (execution_id, hook_id, event_id, status, attempts, error_msg, duration_ms, created_at)
		VALUES (:execution_id, :hook_id, :event_id, :status, :attempts, :error_msg, :duration_ms, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, rec)
	return err
}

func (r *DeliveryRepo) ListRecent(ctx context.Context, limit int) ([]*domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT execution_id, hook_id, event_id, status, attempts, error_msg, duration_ms, created_at
		FROM delivery_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	var recs []*domain.DeliveryRecord
	if err := r.db.SelectContext(ctx, &recs, query, limit); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteDeliveriesBefore removes history older than the cutoff.
func (r *DeliveryRepo) DeleteDeliveriesBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM delivery_history WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DeliveryRepo) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	query := `
		SELECT status, count(*) AS n
		FROM delivery_history
		WHERE created_at >= $1
		GROUP BY status
	`
	rows, err := r.db.QueryxContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
