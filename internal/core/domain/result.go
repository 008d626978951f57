package domain

import (
	"time"
)

// ExecutionStatus tracks the lifecycle of a single hook execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSuccess   ExecutionStatus = "success"
	StatusFailed    ExecutionStatus = "failed"
	StatusRetrying  ExecutionStatus = "retrying"
	StatusCancelled ExecutionStatus = "cancelled"
)

// validTransitions encodes the forward-only status machine:
// pending -> running -> {success|failed|retrying|cancelled},
// retrying -> running. Terminal states have no successors.
var validTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusPending:  {StatusRunning, StatusCancelled},
	StatusRunning:  {StatusSuccess, StatusFailed, StatusRetrying, StatusCancelled},
	StatusRetrying: {StatusRunning, StatusFailed, StatusCancelled},
}

// HookExecutionResult records the outcome of one (hook, event) execution
// attempt series. Mutated only by the execution engine; frozen once a
// terminal status is reached.
type HookExecutionResult struct {
	HookID      string
	ExecutionID string
	Status      ExecutionStatus
	Errors      []string
	Metadata    map[string]any
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewHookExecutionResult creates a pending result for a hook execution.
func NewHookExecutionResult(hookID, executionID string) *HookExecutionResult {
	return &HookExecutionResult{
		HookID:      hookID,
		ExecutionID: executionID,
		Status:      StatusPending,
		Metadata:    make(map[string]any),
		StartedAt:   time.Now(),
	}
}

// Transition moves the result to the next status if the transition is
// legal. Illegal transitions (including any move out of a terminal state)
// are ignored so a late-arriving goroutine cannot corrupt a frozen result.
func (r *HookExecutionResult) Transition(next ExecutionStatus) bool {
	for _, allowed := range validTransitions[r.Status] {
		if allowed == next {
			r.Status = next
			return true
		}
	}
	return false
}

// RecordError appends an error message in attempt order.
func (r *HookExecutionResult) RecordError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// MarkCompleted freezes the result with a terminal status and stamps the
// completion time.
func (r *HookExecutionResult) MarkCompleted(status ExecutionStatus) {
	if !r.Transition(status) {
		return
	}
	r.CompletedAt = time.Now()
}

// ExecutionTimeMS returns elapsed wall time in milliseconds. For in-flight
// executions it measures against now.
func (r *HookExecutionResult) ExecutionTimeMS() int64 {
	end := r.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt).Milliseconds()
}

// Completed reports whether the result has reached a terminal status.
func (r *HookExecutionResult) Completed() bool {
	switch r.Status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
