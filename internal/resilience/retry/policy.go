package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// Strategy selects the backoff curve for retry delays.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
	StrategyImmediate   Strategy = "immediate"
	StrategyNone        Strategy = "none"
)

// Policy defines retry behavior. Immutable once constructed.
type Policy struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            bool          `yaml:"jitter"`
	Strategy          Strategy      `yaml:"strategy"`
}

// DefaultPolicy provides sensible defaults: 1s, 2s, 4s (max 60s).
var DefaultPolicy = Policy{
	MaxAttempts:       3,
	BaseDelay:         1 * time.Second,
	MaxDelay:          60 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
	Strategy:          StrategyExponential,
}

// Engine computes retry delays. The random source is injectable so jitter
// is reproducible in tests.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine with the given random source. A nil source
// falls back to a time-seeded one.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// ComputeDelay returns how long to wait before the given attempt
// (0-indexed) is retried. An error-supplied retry-after hint always wins
// over the configured strategy, clamped to MaxDelay.
func (e *Engine) ComputeDelay(attempt int, cerr *domain.ClassifiedError, p Policy) time.Duration {
	if cerr != nil && cerr.RetryAfter > 0 {
		return clamp(cerr.RetryAfter, p.MaxDelay)
	}

	var delay float64
	switch p.Strategy {
	case StrategyExponential:
		delay = float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	case StrategyLinear:
		delay = float64(p.BaseDelay) * float64(attempt+1)
	case StrategyFixed:
		delay = float64(p.BaseDelay)
	case StrategyImmediate, StrategyNone:
		return 0
	default:
		delay = float64(p.BaseDelay)
	}

	if p.Jitter {
		// Uniform factor in [0.5, 1.0) spreads out synchronized retries.
		delay *= 0.5 + e.rng.Float64()*0.5
	}

	return clamp(time.Duration(delay), p.MaxDelay)
}

func clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}
