package errstats

import (
	"testing"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

func TestRecordError(t *testing.T) {
	c := NewCollector()

	c.RecordError(&domain.ClassifiedError{
		Category: domain.CategoryTimeout,
		Severity: domain.SeverityHigh,
		HookID:   "h1",
	})
	c.RecordError(&domain.ClassifiedError{
		Category: domain.CategoryTimeout,
		Severity: domain.SeverityHigh,
		HookID:   "h2",
	})
	c.RecordError(&domain.ClassifiedError{
		Category: domain.CategoryRateLimit,
		Severity: domain.SeverityMedium,
		HookID:   "h1",
	})

	s := c.Snapshot()
	if s.TotalErrors != 3 {
		t.Errorf("total %d, want 3", s.TotalErrors)
	}
	if s.ErrorsByCategory[domain.CategoryTimeout] != 2 {
		t.Errorf("timeout count %d, want 2", s.ErrorsByCategory[domain.CategoryTimeout])
	}
	if s.ErrorsByHook["h1"] != 2 {
		t.Errorf("h1 count %d, want 2", s.ErrorsByHook["h1"])
	}
	if len(s.Recent) != 3 {
		t.Errorf("recent %d, want 3", len(s.Recent))
	}
}

func TestRecentBufferBounded(t *testing.T) {
	c := NewCollector()
	for i := 0; i < defaultRecentCap+50; i++ {
		c.RecordError(&domain.ClassifiedError{Category: domain.CategoryHookExecution})
	}
	if got := len(c.Snapshot().Recent); got != defaultRecentCap {
		t.Errorf("recent %d, want %d", got, defaultRecentCap)
	}
}

func TestRecoveryRate(t *testing.T) {
	c := NewCollector()
	c.RecordRecovery(true, 2*time.Second)
	c.RecordRecovery(true, 4*time.Second)
	c.RecordRecovery(false, 0)

	s := c.Snapshot()
	if s.RecoverySuccessRate < 0.66 || s.RecoverySuccessRate > 0.67 {
		t.Errorf("rate %v, want ~0.667", s.RecoverySuccessRate)
	}
	if s.AverageRecoveryTime != 3*time.Second {
		t.Errorf("avg %v, want 3s", s.AverageRecoveryTime)
	}
}

func TestReset(t *testing.T) {
	c := NewCollector()
	c.RecordError(&domain.ClassifiedError{Category: domain.CategoryTimeout})
	c.RecordRecovery(true, time.Second)
	c.Reset()

	s := c.Snapshot()
	if s.TotalErrors != 0 || len(s.Recent) != 0 || s.RecoverySuccessRate != 0 {
		t.Errorf("reset left data behind: %+v", s)
	}
}
