package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
)

// QueueStatusProvider reports redelivery queue state. Nil-safe to omit.
type QueueStatusProvider interface {
	Status() queue.Status
}

// Monitor aggregates health status from the breakers, the redelivery
// queue, and the error statistics collector.
type Monitor struct {
	breakers *breaker.Registry
	queue    QueueStatusProvider
	stats    *errstats.Collector

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a new health monitor. queue may be nil when
// redelivery is disabled.
func NewMonitor(breakers *breaker.Registry, q QueueStatusProvider, stats *errstats.Collector) *Monitor {
	return &Monitor{
		breakers: breakers,
		queue:    q,
		stats:    stats,
	}
}

// CheckHealth builds the current health report. Checks are rate limited
// so scrapers cannot hammer the collectors.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 5*time.Second && m.lastReport.SystemStatus != "" {
		return m.lastReport
	}

	report := Report{
		SystemStatus: StatusHealthy,
		Breakers:     m.breakers.StatusAll(),
		Errors:       m.stats.Snapshot(),
	}
	sort.Slice(report.Breakers, func(i, j int) bool {
		return report.Breakers[i].Dependency < report.Breakers[j].Dependency
	})

	if m.queue != nil {
		report.Queue = m.queue.Status()
		metrics.QueueDepth.Set(float64(report.Queue.Size))
	}

	report.SystemStatus = evaluate(report)

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// evaluate derives the aggregate status: any open breaker or a full
// redelivery queue is critical, a half-open breaker or queued work is
// degraded.
func evaluate(r Report) SystemStatus {
	status := StatusHealthy

	for _, b := range r.Breakers {
		switch b.State {
		case breaker.StateOpen:
			return StatusCritical
		case breaker.StateHalfOpen:
			status = StatusDegraded
		}
	}

	if r.Queue.Enabled {
		if r.Queue.MaxSize > 0 && r.Queue.Size >= r.Queue.MaxSize {
			return StatusCritical
		}
		if r.Queue.Size > 0 {
			status = StatusDegraded
		}
	}

	return status
}

// Start runs periodic health evaluation until the context is cancelled,
// keeping the queue depth gauge fresh between scrapes.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckHealth(ctx)
		}
	}
}
