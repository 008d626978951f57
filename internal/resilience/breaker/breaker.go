package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/metrics"
)

// Dependency identifies the logical downstream a breaker protects. Callers
// declare it explicitly; breakers are never selected by inspecting names.
type Dependency string

const (
	DepSlackAPI          Dependency = "slack_api"
	DepJiraAPI           Dependency = "jira_api"
	DepDatabase          Dependency = "database"
	DepNotifyGateway     Dependency = "notify_gateway"
	DepWebhookProcessing Dependency = "webhook_processing"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config controls breaker thresholds.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 2,
	Timeout:          60 * time.Second,
	HalfOpenMaxCalls: 3,
}

// Status is a read-only snapshot for health reporting.
type Status struct {
	Dependency      Dependency `json:"dependency"`
	State           State      `json:"state"`
	FailureCount    int        `json:"failure_count"`
	SuccessCount    int        `json:"success_count"`
	LastFailureTime time.Time  `json:"last_failure_time,omitempty"`
}

// Breaker is a circuit breaker for a single dependency. The mutex only
// guards transition bookkeeping; it is never held across the guarded call.
type Breaker struct {
	dep Dependency
	cfg Config

	mu                sync.Mutex
	state             State
	failureCount      int
	successCount      int
	lastFailureTime   time.Time
	halfOpenCallsMade int
}

// New creates a closed breaker for the given dependency.
func New(dep Dependency, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultConfig.HalfOpenMaxCalls
	}
	return &Breaker{dep: dep, cfg: cfg, state: StateClosed}
}

// Do runs fn under the breaker. Open-state rejections and exhausted
// half-open probation budgets fail fast with a non-recoverable error and
// never invoke fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

// admit decides whether a call may proceed, applying the open->half_open
// timeout transition and consuming half-open probation budget atomically.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailureTime) <= b.cfg.Timeout {
			return b.rejection("circuit breaker is open")
		}
		b.transition(StateHalfOpen)
		b.halfOpenCallsMade = 0
		b.successCount = 0
		fallthrough
	case StateHalfOpen:
		if b.halfOpenCallsMade >= b.cfg.HalfOpenMaxCalls {
			return b.rejection("circuit breaker half-open probation limit exceeded")
		}
		b.halfOpenCallsMade++
	}
	return nil
}

func (b *Breaker) rejection(msg string) *domain.ClassifiedError {
	return &domain.ClassifiedError{
		Message:     msg,
		Category:    domain.CategoryExternalService,
		Severity:    domain.SeverityHigh,
		Recoverable: false,
		Context: map[string]any{
			"dependency":   string(b.dep),
			"state":        string(b.state),
			"circuit_open": true,
		},
		OccurredAt: time.Now(),
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.failureCount = 0
			b.successCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureTime = time.Now()

	switch b.state {
	case StateHalfOpen:
		// No partial credit: any half-open failure trips the breaker.
		b.transition(StateOpen)
		b.successCount = 0
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// IsCircuitOpen reports whether an error is a breaker rejection, as
// opposed to a failure of the guarded call itself.
func IsCircuitOpen(err error) bool {
	var cerr *domain.ClassifiedError
	if !errors.As(err, &cerr) || cerr.Context == nil {
		return false
	}
	open, _ := cerr.Context["circuit_open"].(bool)
	return open
}

// transition changes state and records the move. Caller holds the mutex.
func (b *Breaker) transition(next State) {
	b.state = next
	metrics.BreakerTransitions.WithLabelValues(string(b.dep), string(next)).Inc()
}

// State returns the current state without forcing transitions.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && time.Since(b.lastFailureTime) <= b.cfg.Timeout
}

// Reset forces the breaker closed. Operator action only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
	b.halfOpenCallsMade = 0
}

// Status returns a snapshot for health reporting.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Dependency:      b.dep,
		State:           b.state,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
	}
}
