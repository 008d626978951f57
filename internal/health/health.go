// Package health provides system health monitoring and status reporting.
package health

import (
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Breakers     []breaker.Status  `json:"breakers"`
	Queue        queue.Status      `json:"queue"`
	Errors       errstats.Snapshot `json:"errors"`
}
