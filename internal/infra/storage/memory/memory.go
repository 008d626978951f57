// Package memory provides in-memory repository implementations used when
// no database is configured. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/infra/storage"
)

const maxHistory = 1000

// DeliveryRepo keeps a bounded in-memory delivery history.
type DeliveryRepo struct {
	mu   sync.RWMutex
	recs []*domain.DeliveryRecord
}

func NewDeliveryRepo() *DeliveryRepo {
	return &DeliveryRepo{}
}

func (r *DeliveryRepo) RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	r.recs = append(r.recs, &cp)
	if len(r.recs) > maxHistory {
		r.recs = r.recs[len(r.recs)-maxHistory:]
	}
	return nil
}

func (r *DeliveryRepo) ListRecent(ctx context.Context, limit int) ([]*domain.DeliveryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*domain.DeliveryRecord, 0, limit)
	for i := len(r.recs) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *r.recs[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteDeliveriesBefore removes history older than the cutoff.
func (r *DeliveryRepo) DeleteDeliveriesBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.recs[:0]
	var removed int64
	for _, rec := range r.recs {
		if rec.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.recs = kept
	return removed, nil
}

func (r *DeliveryRepo) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{}
	for _, rec := range r.recs {
		if !rec.CreatedAt.Before(since) {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

// DeadLetterRepo keeps dropped notifications in memory.
type DeadLetterRepo struct {
	mu   sync.RWMutex
	byID map[string]*domain.DeadLetter

	now func() time.Time
}

func NewDeadLetterRepo() *DeadLetterRepo {
	return &DeadLetterRepo{
		byID: make(map[string]*domain.DeadLetter),
		now:  time.Now,
	}
}

func (r *DeadLetterRepo) Add(ctx context.Context, n *domain.QueuedNotification, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[n.ID]; exists {
		return nil
	}
	r.byID[n.ID] = &domain.DeadLetter{
		Notification: *n,
		Reason:       reason,
		DroppedAt:    r.now(),
	}
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, limit int) ([]*domain.DeadLetter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*domain.DeadLetter, 0, len(r.byID))
	for _, dl := range r.byID {
		cp := *dl
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DroppedAt.Before(out[j].DroppedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; !exists {
		return storage.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *DeadLetterRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, dl := range r.byID {
		if dl.DroppedAt.Before(before) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}
