package domain

import (
	"fmt"
	"time"
)

// ErrorCategory identifies which part of the pipeline an error belongs to.
type ErrorCategory string

const (
	CategoryWebhookProcessing    ErrorCategory = "webhook_processing"
	CategoryEventClassification  ErrorCategory = "event_classification"
	CategoryRuleEvaluation       ErrorCategory = "rule_evaluation"
	CategoryHookExecution        ErrorCategory = "hook_execution"
	CategoryNotificationDelivery ErrorCategory = "notification_delivery"
	CategoryConfiguration        ErrorCategory = "configuration_error"
	CategoryExternalService      ErrorCategory = "external_service"
	CategoryTimeout              ErrorCategory = "timeout"
	CategoryRateLimit            ErrorCategory = "rate_limit"
	CategoryAuthentication       ErrorCategory = "authentication"
)

// ErrorSeverity ranks how urgently an error needs attention.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ClassifiedError is the single normalized error record used across the
// pipeline. Created once by the classifier and never mutated afterwards.
type ClassifiedError struct {
	Message     string
	Category    ErrorCategory
	Severity    ErrorSeverity
	Recoverable bool
	RetryAfter  time.Duration // 0 = no hint
	HookID      string
	EventID     string
	Context     map[string]any
	Cause       error
	OccurredAt  time.Time
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Severity, e.Message)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}
