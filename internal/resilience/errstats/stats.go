// Package errstats aggregates error and recovery counters for the health
// surface. One collector is constructed by the composition root and shared
// by reference; there is no package-level state.
package errstats

import (
	"sync"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

const defaultRecentCap = 100

// Record is one entry in the bounded recent-error buffer.
type Record struct {
	Time     time.Time            `json:"time"`
	Category domain.ErrorCategory `json:"category"`
	Severity domain.ErrorSeverity `json:"severity"`
	HookID   string               `json:"hook_id,omitempty"`
	EventID  string               `json:"event_id,omitempty"`
	Message  string               `json:"message"`
}

// Snapshot is a read-only view of the collector.
type Snapshot struct {
	TotalErrors         int64                          `json:"total_errors"`
	ErrorsByCategory    map[domain.ErrorCategory]int64 `json:"errors_by_category"`
	ErrorsBySeverity    map[domain.ErrorSeverity]int64 `json:"errors_by_severity"`
	ErrorsByHook        map[string]int64               `json:"errors_by_hook"`
	RecoverySuccessRate float64                        `json:"recovery_success_rate"`
	AverageRecoveryTime time.Duration                  `json:"average_recovery_time"`
	Recent              []Record                       `json:"recent"`
}

// Collector accumulates error metrics. Safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	totalErrors int64
	byCategory  map[domain.ErrorCategory]int64
	bySeverity  map[domain.ErrorSeverity]int64
	byHook      map[string]int64

	recoveryAttempts  int64
	recoverySuccesses int64
	recoveryTimeTotal time.Duration

	recent    []Record
	recentCap int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{recentCap: defaultRecentCap}
	c.init()
	return c
}

func (c *Collector) init() {
	c.byCategory = make(map[domain.ErrorCategory]int64)
	c.bySeverity = make(map[domain.ErrorSeverity]int64)
	c.byHook = make(map[string]int64)
	c.recent = c.recent[:0]
}

// RecordError counts a classified error and appends it to the recent ring.
func (c *Collector) RecordError(cerr *domain.ClassifiedError) {
	if cerr == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalErrors++
	c.byCategory[cerr.Category]++
	c.bySeverity[cerr.Severity]++
	if cerr.HookID != "" {
		c.byHook[cerr.HookID]++
	}

	c.recent = append(c.recent, Record{
		Time:     cerr.OccurredAt,
		Category: cerr.Category,
		Severity: cerr.Severity,
		HookID:   cerr.HookID,
		EventID:  cerr.EventID,
		Message:  cerr.Message,
	})
	if len(c.recent) > c.recentCap {
		c.recent = c.recent[len(c.recent)-c.recentCap:]
	}
}

// RecordRecovery tracks the outcome of an execution that needed retries.
// took is only meaningful for successful recoveries.
func (c *Collector) RecordRecovery(success bool, took time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recoveryAttempts++
	if success {
		c.recoverySuccesses++
		c.recoveryTimeTotal += took
	}
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		TotalErrors:      c.totalErrors,
		ErrorsByCategory: make(map[domain.ErrorCategory]int64, len(c.byCategory)),
		ErrorsBySeverity: make(map[domain.ErrorSeverity]int64, len(c.bySeverity)),
		ErrorsByHook:     make(map[string]int64, len(c.byHook)),
		Recent:           append([]Record(nil), c.recent...),
	}
	for k, v := range c.byCategory {
		s.ErrorsByCategory[k] = v
	}
	for k, v := range c.bySeverity {
		s.ErrorsBySeverity[k] = v
	}
	for k, v := range c.byHook {
		s.ErrorsByHook[k] = v
	}
	if c.recoveryAttempts > 0 {
		s.RecoverySuccessRate = float64(c.recoverySuccesses) / float64(c.recoveryAttempts)
	}
	if c.recoverySuccesses > 0 {
		s.AverageRecoveryTime = c.recoveryTimeTotal / time.Duration(c.recoverySuccesses)
	}
	return s
}

// Reset clears all counters. Used for test isolation and operator resets.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalErrors = 0
	c.recoveryAttempts = 0
	c.recoverySuccesses = 0
	c.recoveryTimeTotal = 0
	c.init()
}
