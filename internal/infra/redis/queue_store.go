package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// QueueStore persists redelivery-queue entries in Redis so pending
// notifications survive a process restart. Entries live in a sorted set
// scored by creation time plus one value key per entry with a TTL.
type QueueStore struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// NewQueueStore creates a store. ttl should match the queue's retention
// window so Redis expires what the queue would have dropped anyway.
func NewQueueStore(client *Client, namespace string, ttl time.Duration) *QueueStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QueueStore{rdb: client.rdb, namespace: namespace, ttl: ttl}
}

func (s *QueueStore) indexKey() string {
	return fmt.Sprintf("notification_queue:%s", s.namespace)
}

func (s *QueueStore) entryKey(id string) string {
	return fmt.Sprintf("queued_notification:%s:%s", s.namespace, id)
}

// Save writes or updates one entry.
func (s *QueueStore) Save(ctx context.Context, n *domain.QueuedNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := s.rdb.Set(ctx, s.entryKey(n.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set notification: %w", err)
	}

	if err := s.rdb.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(n.CreatedAt.UnixMilli()),
		Member: n.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index notification: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (s *QueueStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.ZRem(ctx, s.indexKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := s.rdb.Del(ctx, s.entryKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Load returns all persisted entries in creation order. Index members
// whose value key expired are cleaned up as they are found.
func (s *QueueStore) Load(ctx context.Context) ([]*domain.QueuedNotification, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	out := make([]*domain.QueuedNotification, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, s.entryKey(id)).Bytes()
		if err == redis.Nil {
			s.rdb.ZRem(ctx, s.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get notification: %w", err)
		}

		var n domain.QueuedNotification
		if err := json.Unmarshal(data, &n); err != nil {
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}
