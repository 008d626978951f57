package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/notify"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNotifier) Name() string                   { return "fake" }
func (f *fakeNotifier) Dependency() breaker.Dependency { return breaker.DepSlackAPI }

func (f *fakeNotifier) Deliver(ctx context.Context, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func newTestQueue(cfg Config, n notify.Notifier) *Queue {
	return New(cfg, n, breaker.NewRegistry(breaker.DefaultConfig), nil)
}

func TestEnqueueDisabled(t *testing.T) {
	q := newTestQueue(Config{Enabled: false}, &fakeNotifier{})

	_, err := q.Enqueue(context.Background(), "h", "e", nil)
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	q := newTestQueue(Config{Enabled: true, MaxSize: 3}, &fakeNotifier{})

	var dropped []string
	q.SetDropFunc(func(ctx context.Context, n *domain.QueuedNotification, reason string) {
		if reason == "capacity" {
			dropped = append(dropped, n.EventID)
		}
	})

	// Advance the clock per enqueue so CreatedAt ordering is deterministic.
	base := time.Now()
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		if _, err := q.Enqueue(ctx, "h", id, nil); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	st := q.Status()
	if st.Size != 3 {
		t.Errorf("size %d, want 3", st.Size)
	}
	if len(dropped) != 1 || dropped[0] != "e1" {
		t.Errorf("dropped %v, want [e1]", dropped)
	}
}

func TestProcessQueueDelivers(t *testing.T) {
	fn := &fakeNotifier{}
	q := newTestQueue(Config{Enabled: true, MaxSize: 10}, fn)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, "h", "e1", map[string]any{"text": "x"})
	_, _ = q.Enqueue(ctx, "h", "e2", map[string]any{"text": "y"})

	if got := q.ProcessQueue(ctx); got != 2 {
		t.Fatalf("delivered %d, want 2", got)
	}
	st := q.Status()
	if st.Size != 0 || st.Delivered != 2 {
		t.Errorf("status %+v", st)
	}
}

func TestProcessQueueExpiresWithoutAttempt(t *testing.T) {
	fn := &fakeNotifier{}
	q := newTestQueue(Config{Enabled: true, MaxSize: 10, RetentionHours: 1}, fn)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, "h", "e1", nil)

	// Jump the clock past retention.
	q.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if got := q.ProcessQueue(ctx); got != 0 {
		t.Fatalf("delivered %d, want 0", got)
	}
	if fn.callCount() != 0 {
		t.Error("expired entry must not be attempted")
	}
	st := q.Status()
	if st.Size != 0 || st.Failed != 1 {
		t.Errorf("status %+v", st)
	}
}

func TestProcessQueueRespectsRetryInterval(t *testing.T) {
	fn := &fakeNotifier{err: errors.New("down")}
	q := newTestQueue(Config{Enabled: true, MaxSize: 10, MaxRetries: 5, RetryIntervalMinutes: 10}, fn)
	ctx := context.Background()

	_, _ = q.Enqueue(ctx, "h", "e1", nil)

	q.ProcessQueue(ctx) // first attempt fails, stamps LastRetryAt
	if fn.callCount() != 1 {
		t.Fatalf("calls %d, want 1", fn.callCount())
	}

	q.ProcessQueue(ctx) // not yet due
	if fn.callCount() != 1 {
		t.Errorf("retried before interval elapsed")
	}
}

func TestProcessQueueEvictsAfterMaxRetries(t *testing.T) {
	fn := &fakeNotifier{err: errors.New("down")}
	q := newTestQueue(Config{Enabled: true, MaxSize: 10, MaxRetries: 2, RetryIntervalMinutes: 1}, fn)
	ctx := context.Background()

	var dropReason string
	q.SetDropFunc(func(ctx context.Context, n *domain.QueuedNotification, reason string) {
		dropReason = reason
	})

	_, _ = q.Enqueue(ctx, "h", "e1", nil)

	base := time.Now()
	step := 0
	q.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * 2 * time.Minute)
	}

	q.ProcessQueue(ctx)
	q.ProcessQueue(ctx)

	st := q.Status()
	if st.Size != 0 {
		t.Errorf("size %d, want 0 after retry exhaustion", st.Size)
	}
	if st.Failed != 1 {
		t.Errorf("failed %d, want 1", st.Failed)
	}
	if dropReason != "max retries exceeded" {
		t.Errorf("drop reason %q", dropReason)
	}
}

func TestProcessQueueSkipsWhenBreakerOpen(t *testing.T) {
	fn := &fakeNotifier{}
	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, Timeout: time.Hour})
	q := New(Config{Enabled: true, MaxSize: 10}, fn, reg, nil)
	ctx := context.Background()

	// Trip the breaker for the notifier's dependency.
	br := reg.Get(breaker.DepSlackAPI)
	_ = br.Do(ctx, func(ctx context.Context) error { return errors.New("down") })
	if br.State() != breaker.StateOpen {
		t.Fatal("breaker should be open")
	}

	_, _ = q.Enqueue(ctx, "h", "e1", nil)
	q.ProcessQueue(ctx)

	if fn.callCount() != 0 {
		t.Error("delivery attempted against open breaker")
	}
	st := q.Status()
	if st.Size != 1 {
		t.Errorf("size %d, want entry preserved", st.Size)
	}
}
