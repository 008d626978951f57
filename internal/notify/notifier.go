// Package notify holds the delivery transports for outbound notifications.
// Transports report which logical dependency they talk to so the execution
// engine and redelivery queue can pick the matching circuit breaker.
package notify

import (
	"context"

	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// Notifier delivers a rendered payload to a downstream channel.
type Notifier interface {
	// Name identifies the transport in logs and metrics.
	Name() string

	// Dependency is the circuit-breaker key for this transport.
	Dependency() breaker.Dependency

	// Deliver sends the payload. Failures are returned raw; classification
	// happens at the caller.
	Deliver(ctx context.Context, payload map[string]any) error
}
