package worker

import (
	"context"
	"log/slog"
	"time"
)

// DeliveryPruner deletes old delivery history rows.
type DeliveryPruner interface {
	DeleteDeliveriesBefore(ctx context.Context, before time.Time) (int64, error)
}

// DeadLetterPruner deletes old dead letters.
type DeadLetterPruner interface {
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes old delivery history and dead letters based on the
// retention policy.
type Pruner struct {
	retention   time.Duration
	deliveries  DeliveryPruner
	deadLetters DeadLetterPruner
	log         *slog.Logger
}

// NewPruner creates a new Pruner worker. Either store may be nil.
func NewPruner(
	retention time.Duration,
	deliveries DeliveryPruner,
	deadLetters DeadLetterPruner,
	log *slog.Logger,
) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		retention:   retention,
		deliveries:  deliveries,
		deadLetters: deadLetters,
		log:         log,
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check interval: 10% of retention, clamped to [1m, 1h].
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := time.Now().Add(-p.retention)

	if p.deliveries != nil {
		n, err := p.deliveries.DeleteDeliveriesBefore(ctx, threshold)
		if err != nil {
			p.log.Error("failed to prune delivery history", "error", err)
		} else if n > 0 {
			p.log.Info("pruned delivery history", "removed", n)
		}
	}

	if p.deadLetters != nil {
		n, err := p.deadLetters.Purge(ctx, threshold)
		if err != nil {
			p.log.Error("failed to prune dead letters", "error", err)
		} else if n > 0 {
			p.log.Info("pruned dead letters", "removed", n)
		}
	}
}
