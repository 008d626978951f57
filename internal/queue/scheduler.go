package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler drains the queue on a fixed interval. Start is idempotent and
// Stop is safe to call multiple times, including from teardown paths that
// never started it.
type Scheduler struct {
	queue    *Queue
	interval time.Duration
	log      *slog.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a scheduler for the queue's configured interval.
func NewScheduler(q *Queue, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		queue:    q,
		interval: q.cfg.RetryInterval(),
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the drain loop. Calling Start on a running scheduler is a
// no-op error rather than a second loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("queue scheduler already running")
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("queue scheduler started", "interval", s.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.queue.ProcessQueue(ctx)
			}
		}
	}()
	return nil
}

// Stop halts the drain loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	if s.running.Load() {
		<-s.done
		s.running.Store(false)
	}
}
