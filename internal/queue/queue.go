// Package queue holds notifications that could not be delivered because of
// a downstream outage, and drains them on a schedule once the dependency
// recovers.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/notify"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// Config controls queue capacity and drain behavior. Retention and retry
// interval use coarse units because that is how operators reason about a
// catch-up queue.
type Config struct {
	Enabled              bool `yaml:"enabled"`
	MaxSize              int  `yaml:"max_size"`
	MaxRetries           int  `yaml:"max_retries"`
	RetryIntervalMinutes int  `yaml:"retry_interval_minutes"`
	RetentionHours       int  `yaml:"retention_hours"`
}

// DefaultConfig keeps a day of notifications with 5-minute drain cycles.
var DefaultConfig = Config{
	Enabled:              true,
	MaxSize:              1000,
	MaxRetries:           5,
	RetryIntervalMinutes: 5,
	RetentionHours:       24,
}

// RetryInterval returns the configured drain interval.
func (c Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMinutes) * time.Minute
}

// Retention returns the configured retention window.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Store persists queue entries so pending notifications survive restarts.
type Store interface {
	Save(ctx context.Context, n *domain.QueuedNotification) error
	Delete(ctx context.Context, id string) error
	Load(ctx context.Context) ([]*domain.QueuedNotification, error)
}

// DropFunc receives notifications evicted without delivery, so callers can
// dead-letter them.
type DropFunc func(ctx context.Context, n *domain.QueuedNotification, reason string)

// Status is a read-only queue snapshot.
type Status struct {
	Enabled   bool  `json:"enabled"`
	Size      int   `json:"size"`
	MaxSize   int   `json:"max_size"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Queue is the in-memory redelivery queue. All access to the entry map
// goes through the mutex; delivery calls happen outside it.
type Queue struct {
	cfg      Config
	notifier notify.Notifier
	breakers *breaker.Registry
	store    Store    // optional
	onDrop   DropFunc // optional
	log      *slog.Logger

	mu        sync.Mutex
	entries   map[string]*domain.QueuedNotification
	delivered int64
	failed    int64

	now func() time.Time // injectable for tests
}

// New creates a queue draining into the given notifier.
func New(cfg Config, notifier notify.Notifier, breakers *breaker.Registry, log *slog.Logger) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig.MaxSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.RetryIntervalMinutes <= 0 {
		cfg.RetryIntervalMinutes = DefaultConfig.RetryIntervalMinutes
	}
	if cfg.RetentionHours <= 0 {
		cfg.RetentionHours = DefaultConfig.RetentionHours
	}
	if log == nil {
		log = slog.Default()
	}
	return &Queue{
		cfg:      cfg,
		notifier: notifier,
		breakers: breakers,
		log:      log,
		entries:  make(map[string]*domain.QueuedNotification),
		now:      time.Now,
	}
}

// SetStore attaches a persistence backend. Call before Start/Restore.
func (q *Queue) SetStore(s Store) { q.store = s }

// SetDropFunc attaches a dead-letter callback.
func (q *Queue) SetDropFunc(f DropFunc) { q.onDrop = f }

// Restore loads persisted entries back into memory after a restart.
func (q *Queue) Restore(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	saved, err := q.store.Load(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, n := range saved {
		if len(q.entries) >= q.cfg.MaxSize {
			break
		}
		q.entries[n.ID] = n
	}
	metrics.QueueDepth.Set(float64(len(q.entries)))
	q.log.Info("restored redelivery queue", "entries", len(q.entries))
	return nil
}

// Enqueue parks a notification for redelivery. When the queue is full the
// single oldest entry is evicted first; the caller is never blocked.
func (q *Queue) Enqueue(ctx context.Context, hookID, eventID string, payload map[string]any) (string, error) {
	if !q.cfg.Enabled {
		return "", &domain.ConfigurationError{Msg: "notification queuing is disabled"}
	}

	n := &domain.QueuedNotification{
		ID:         uuid.New().String(),
		HookID:     hookID,
		EventID:    eventID,
		Payload:    payload,
		CreatedAt:  q.now(),
		MaxRetries: q.cfg.MaxRetries,
	}

	q.mu.Lock()
	var evicted *domain.QueuedNotification
	if len(q.entries) >= q.cfg.MaxSize {
		evicted = q.oldestLocked()
		if evicted != nil {
			delete(q.entries, evicted.ID)
		}
	}
	q.entries[n.ID] = n
	size := len(q.entries)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(size))

	if evicted != nil {
		q.drop(ctx, evicted, "capacity")
	}
	if q.store != nil {
		if err := q.store.Save(ctx, n); err != nil {
			q.log.Warn("failed to persist queued notification", "id", n.ID, "error", err)
		}
	}

	q.log.Info("queued notification for redelivery",
		"id", n.ID, "hook", hookID, "event", eventID, "queue_size", size)
	return n.ID, nil
}

// ProcessQueue walks the queue once: expires stale entries, skips entries
// not yet due or gated by an open breaker, and attempts the rest. Returns
// how many were delivered.
func (q *Queue) ProcessQueue(ctx context.Context) int {
	now := q.now()

	q.mu.Lock()
	pending := make([]*domain.QueuedNotification, 0, len(q.entries))
	for _, n := range q.entries {
		pending = append(pending, n)
	}
	q.mu.Unlock()

	// Oldest first so catch-up preserves rough ordering.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	br := q.breakers.Get(q.notifier.Dependency())
	delivered := 0

	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}

		if n.Age(now) > q.cfg.Retention() {
			q.remove(ctx, n)
			q.countFailed()
			q.drop(ctx, n, "expired")
			metrics.QueueDelivered.WithLabelValues("expired").Inc()
			continue
		}

		if !n.LastRetryAt.IsZero() && now.Sub(n.LastRetryAt) < q.cfg.RetryInterval() {
			continue
		}

		// A known-open breaker means the dependency is still down; skipping
		// here does not consume the entry's retry budget.
		if br.Open() {
			q.log.Debug("skipping redelivery, circuit open",
				"dependency", string(q.notifier.Dependency()))
			continue
		}

		err := br.Do(ctx, func(ctx context.Context) error {
			return q.notifier.Deliver(ctx, n.Payload)
		})
		if err == nil {
			q.remove(ctx, n)
			q.countDelivered()
			delivered++
			metrics.QueueDelivered.WithLabelValues("delivered").Inc()
			continue
		}
		if breaker.IsCircuitOpen(err) {
			continue
		}

		n.RetryCount++
		n.LastRetryAt = q.now()
		if n.RetryCount >= n.MaxRetries {
			q.remove(ctx, n)
			q.countFailed()
			q.drop(ctx, n, "max retries exceeded")
			metrics.QueueDelivered.WithLabelValues("exhausted").Inc()
			continue
		}
		if q.store != nil {
			if serr := q.store.Save(ctx, n); serr != nil {
				q.log.Warn("failed to persist retry state", "id", n.ID, "error", serr)
			}
		}
	}

	if delivered > 0 {
		q.log.Info("redelivery cycle complete", "delivered", delivered)
	}
	return delivered
}

// Status returns a snapshot for the health surface.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Enabled:   q.cfg.Enabled,
		Size:      len(q.entries),
		MaxSize:   q.cfg.MaxSize,
		Delivered: q.delivered,
		Failed:    q.failed,
	}
}

func (q *Queue) oldestLocked() *domain.QueuedNotification {
	var oldest *domain.QueuedNotification
	for _, n := range q.entries {
		if oldest == nil || n.CreatedAt.Before(oldest.CreatedAt) {
			oldest = n
		}
	}
	return oldest
}

func (q *Queue) remove(ctx context.Context, n *domain.QueuedNotification) {
	q.mu.Lock()
	delete(q.entries, n.ID)
	size := len(q.entries)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(size))
	if q.store != nil {
		if err := q.store.Delete(ctx, n.ID); err != nil {
			q.log.Warn("failed to delete persisted notification", "id", n.ID, "error", err)
		}
	}
}

func (q *Queue) drop(ctx context.Context, n *domain.QueuedNotification, reason string) {
	q.log.Warn("dropping queued notification",
		"id", n.ID, "hook", n.HookID, "event", n.EventID, "reason", reason)
	if q.onDrop != nil {
		q.onDrop(ctx, n, reason)
	}
}

func (q *Queue) countDelivered() {
	q.mu.Lock()
	q.delivered++
	q.mu.Unlock()
}

func (q *Queue) countFailed() {
	q.mu.Lock()
	q.failed++
	q.mu.Unlock()
}
