package domain

import (
	"fmt"
	"time"
)

// DeliveryError is returned by notifiers when the downstream API answered
// with a non-success status. Carries enough for the classifier to decide
// recoverability without knowing the transport.
type DeliveryError struct {
	StatusCode int
	RetryAfter time.Duration // parsed from Retry-After when present
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed with status %d: %s", e.StatusCode, e.Body)
}

// ConfigurationError marks failures that cannot self-heal through retry.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// ValidationError marks malformed data produced or consumed by a hook.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
	}
	return "validation failed: " + e.Msg
}
