package domain

import "time"

// DeliveryRecord is the persisted outcome of one hook execution, kept for
// operator visibility and the status CLI.
type DeliveryRecord struct {
	ExecutionID string    `db:"execution_id" json:"execution_id"`
	HookID      string    `db:"hook_id"      json:"hook_id"`
	EventID     string    `db:"event_id"     json:"event_id"`
	Status      string    `db:"status"       json:"status"`
	Attempts    int       `db:"attempts"     json:"attempts"`
	Error       string    `db:"error_msg"    json:"error,omitempty"`
	DurationMS  int64     `db:"duration_ms"  json:"duration_ms"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
