package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/notify"
	"github.com/vietddude/hookbridge/internal/queue"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/classify"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
	"github.com/vietddude/hookbridge/internal/resilience/fallback"
	"github.com/vietddude/hookbridge/internal/resilience/retry"
)

// Recorder persists terminal execution outcomes. Optional.
type Recorder interface {
	RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error
}

// Config bundles the engine's tunables.
type Config struct {
	ExecutionTimeout time.Duration
	Policy           retry.Policy
	StopGracePeriod  time.Duration
}

// Engine runs hooks against events under timeout, retry, and circuit
// breaking. One engine instance is owned by the composition root.
type Engine struct {
	cfg      Config
	registry *Registry
	delays   *retry.Engine
	breakers *breaker.Registry
	cascade  *fallback.Cascade
	stats    *errstats.Collector
	log      *slog.Logger

	redelivery *queue.Queue    // optional
	adminCh    notify.Notifier // optional fallback/admin channel
	recorder   Recorder        // optional

	rootCtx    context.Context
	rootCancel context.CancelFunc
	inflight   sync.WaitGroup
}

// NewEngine wires the engine. Optional collaborators may be nil.
func NewEngine(
	cfg Config,
	registry *Registry,
	delays *retry.Engine,
	breakers *breaker.Registry,
	cascade *fallback.Cascade,
	stats *errstats.Collector,
	log *slog.Logger,
) *Engine {
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 30 * time.Second
	}
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = retry.DefaultPolicy
	}
	if cfg.StopGracePeriod <= 0 {
		cfg.StopGracePeriod = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		registry:   registry,
		delays:     delays,
		breakers:   breakers,
		cascade:    cascade,
		stats:      stats,
		log:        log,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
	}
}

// SetRedeliveryQueue attaches the redelivery queue.
func (e *Engine) SetRedeliveryQueue(q *queue.Queue) { e.redelivery = q }

// SetAdminNotifier attaches the admin/fallback channel.
func (e *Engine) SetAdminNotifier(n notify.Notifier) { e.adminCh = n }

// SetRecorder attaches delivery-history persistence.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

// Dispatch runs every candidate hook for the event concurrently and
// returns their results in registration order. A failing or panicking hook
// never affects its siblings.
func (e *Engine) Dispatch(ctx context.Context, evt *domain.Event) []*domain.HookExecutionResult {
	candidates := e.registry.Candidates(evt)
	results := make([]*domain.HookExecutionResult, len(candidates))

	var wg sync.WaitGroup
	for i, h := range candidates {
		wg.Add(1)
		go func(i int, h Hook) {
			defer wg.Done()
			results[i] = e.Execute(ctx, h, evt)
		}(i, h)
	}
	wg.Wait()

	return results
}

// Execute runs one hook against one event through the full retry loop.
func (e *Engine) Execute(ctx context.Context, h Hook, evt *domain.Event) *domain.HookExecutionResult {
	e.inflight.Add(1)
	defer e.inflight.Done()

	result := domain.NewHookExecutionResult(h.ID(), uuid.New().String())

	// Cheap short-circuits before any retry machinery.
	if !h.Enabled() {
		result.Metadata["skipped"] = "disabled"
		result.MarkCompleted(domain.StatusCancelled)
		return result
	}
	if !h.CanHandle(evt) {
		result.Metadata["skipped"] = "not_applicable"
		result.MarkCompleted(domain.StatusCancelled)
		return result
	}

	// Hard wall-clock budget for the whole attempt series. Engine stop
	// cancels it as well.
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecutionTimeout)
	defer cancel()
	unhook := context.AfterFunc(e.rootCtx, cancel)
	defer unhook()

	var terminal *domain.ClassifiedError
	attempts := 0

	for attempt := 0; attempt < e.cfg.Policy.MaxAttempts; attempt++ {
		result.Transition(domain.StatusRunning)
		attempts = attempt + 1

		err := e.attempt(execCtx, h, evt)
		if err == nil {
			result.Metadata["attempt"] = attempts
			if attempt > 0 {
				result.Metadata["recovered"] = true
				e.stats.RecordRecovery(true, time.Since(result.StartedAt))
			}
			result.MarkCompleted(domain.StatusSuccess)
			metrics.HookExecutions.WithLabelValues(h.ID(), string(result.Status)).Inc()
			e.record(evt, result, nil)
			return result
		}

		if execCtx.Err() != nil {
			return e.finishInterrupted(ctx, h, evt, result, attempts)
		}

		cerr := classify.Classify(err, h.ID(), evt.ID)
		result.RecordError(cerr.Error())
		e.stats.RecordError(cerr)
		terminal = cerr

		if !cerr.Recoverable {
			e.log.Warn("hook failed with non-recoverable error",
				"hook", h.ID(), "event", evt.ID, "category", string(cerr.Category))
			break
		}
		if attempt == e.cfg.Policy.MaxAttempts-1 {
			break
		}

		result.Transition(domain.StatusRetrying)
		metrics.HookRetries.WithLabelValues(h.ID()).Inc()

		delay := e.delays.ComputeDelay(attempt, cerr, e.cfg.Policy)
		e.log.Debug("retrying hook execution",
			"hook", h.ID(), "event", evt.ID, "attempt", attempts, "delay", delay)
		select {
		case <-execCtx.Done():
			return e.finishInterrupted(ctx, h, evt, result, attempts)
		case <-time.After(delay):
		}
	}

	return e.finishFailed(ctx, h, evt, result, terminal, attempts)
}

// attempt runs one breaker-gated execution attempt. The hook runs in its
// own goroutine so a handler that ignores cancellation cannot wedge the
// engine; the buffered channel lets it finish late without leaking.
func (e *Engine) attempt(ctx context.Context, h Hook, evt *domain.Event) error {
	br := e.breakers.Get(hookDependency(h))

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("hook panicked: %v", r)
			}
		}()
		done <- br.Do(ctx, func(ctx context.Context) error {
			return h.Execute(ctx, evt)
		})
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishInterrupted closes out an execution cut short by timeout or
// engine shutdown.
func (e *Engine) finishInterrupted(
	ctx context.Context,
	h Hook,
	evt *domain.Event,
	result *domain.HookExecutionResult,
	attempts int,
) *domain.HookExecutionResult {
	result.Metadata["attempt"] = attempts

	if e.rootCtx.Err() != nil || ctx.Err() != nil {
		result.RecordError("execution cancelled")
		result.MarkCompleted(domain.StatusCancelled)
		metrics.HookExecutions.WithLabelValues(h.ID(), string(result.Status)).Inc()
		return result
	}

	cerr := &domain.ClassifiedError{
		Message:     fmt.Sprintf("hook execution exceeded %s timeout", e.cfg.ExecutionTimeout),
		Category:    domain.CategoryTimeout,
		Severity:    domain.SeverityHigh,
		Recoverable: true,
		HookID:      h.ID(),
		EventID:     evt.ID,
		OccurredAt:  time.Now(),
	}
	result.RecordError(cerr.Error())
	e.stats.RecordError(cerr)
	return e.finishFailed(ctx, h, evt, result, cerr, attempts)
}

// finishFailed closes out a terminally failed execution: fallback
// degradation, best-effort admin notification, and conditional redelivery
// queueing.
func (e *Engine) finishFailed(
	ctx context.Context,
	h Hook,
	evt *domain.Event,
	result *domain.HookExecutionResult,
	terminal *domain.ClassifiedError,
	attempts int,
) *domain.HookExecutionResult {
	result.Metadata["attempt"] = attempts
	result.MarkCompleted(domain.StatusFailed)
	metrics.HookExecutions.WithLabelValues(h.ID(), string(result.Status)).Inc()

	if attempts > 1 {
		e.stats.RecordRecovery(false, 0)
	}

	degraded := e.cascade.Degrade(evt.Payload, terminal)
	result.Metadata["fallback_level"] = degraded.Level.String()

	if e.adminCh != nil {
		e.notifyAdmin(ctx, h, evt, terminal)
	}

	if e.redelivery != nil && shouldEnqueue(terminal) {
		if id, err := e.redelivery.Enqueue(ctx, h.ID(), evt.ID, degraded.Payload); err != nil {
			e.log.Warn("failed to queue notification for redelivery",
				"hook", h.ID(), "event", evt.ID, "error", err)
		} else {
			result.Metadata["queued_notification_id"] = id
		}
	}

	e.record(evt, result, terminal)
	return result
}

// shouldEnqueue limits redelivery to failures that a later drain can
// plausibly fix: delivery-path errors and open circuits.
func shouldEnqueue(terminal *domain.ClassifiedError) bool {
	if terminal == nil {
		return false
	}
	if terminal.Category == domain.CategoryNotificationDelivery && terminal.Recoverable {
		return true
	}
	return breaker.IsCircuitOpen(terminal)
}

// notifyAdmin sends a short failure digest to the admin channel. Strictly
// best effort.
func (e *Engine) notifyAdmin(ctx context.Context, h Hook, evt *domain.Event, terminal *domain.ClassifiedError) {
	category := "unknown"
	if terminal != nil {
		category = string(terminal.Category)
	}
	payload := map[string]any{
		"text": fmt.Sprintf("hook %s failed for event %s (%s)", h.ID(), evt.ID, category),
	}
	if err := e.adminCh.Deliver(ctx, payload); err != nil {
		e.log.Warn("admin notification failed", "hook", h.ID(), "error", err)
	}
}

func (e *Engine) record(evt *domain.Event, result *domain.HookExecutionResult, terminal *domain.ClassifiedError) {
	if e.recorder == nil {
		return
	}

	rec := &domain.DeliveryRecord{
		ExecutionID: result.ExecutionID,
		HookID:      result.HookID,
		EventID:     evt.ID,
		Status:      string(result.Status),
		DurationMS:  result.ExecutionTimeMS(),
		CreatedAt:   time.Now(),
	}
	if v, ok := result.Metadata["attempt"].(int); ok {
		rec.Attempts = v
	}
	if terminal != nil {
		rec.Error = terminal.Error()
	}

	// History writes must not block or fail the execution path.
	recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.recorder.RecordDelivery(recCtx, rec); err != nil {
		e.log.Warn("failed to record delivery history", "execution", rec.ExecutionID, "error", err)
	}
}

// Stop cancels in-flight executions and waits up to the grace period for
// them to unwind. Stragglers are logged, never crashed on.
func (e *Engine) Stop(ctx context.Context) error {
	e.rootCancel()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(e.cfg.StopGracePeriod):
		e.log.Warn("hook executions did not terminate within grace period")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
