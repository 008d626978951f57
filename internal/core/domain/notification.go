package domain

import "time"

// QueuedNotification is a notification parked for redelivery after the
// primary delivery path failed. Owned exclusively by the redelivery queue.
type QueuedNotification struct {
	ID          string         `json:"id"`
	HookID      string         `json:"hook_id"`
	EventID     string         `json:"event_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
	RetryCount  int            `json:"retry_count"`
	LastRetryAt time.Time      `json:"last_retry_at"`
	MaxRetries  int            `json:"max_retries"`
}

// Age returns how long the notification has been queued.
func (n *QueuedNotification) Age(now time.Time) time.Duration {
	return now.Sub(n.CreatedAt)
}

// DeadLetter is a notification the redelivery queue permanently gave up
// on, parked for operator inspection.
type DeadLetter struct {
	Notification QueuedNotification `json:"notification"`
	Reason       string             `json:"reason"`
	DroppedAt    time.Time          `json:"dropped_at"`
}
