// Package dispatch is the boundary between raw JIRA webhooks and the hook
// execution engine: validation, rate limiting, classification, and
// enrichment happen here. Senders always get a structured acknowledgement;
// internal failures never propagate back as errors.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/hooks"
	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/resilience/classify"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
)

// Config controls boundary validation.
type Config struct {
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	RateLimit    int           `yaml:"rate_limit"`
	RateWindow   time.Duration `yaml:"rate_window"`
	JiraBaseURL  string        `yaml:"jira_base_url"`
}

// DefaultConfig caps bodies at 1 MiB and clients at 120 events/minute.
var DefaultConfig = Config{
	MaxBodyBytes: 1 << 20,
	RateLimit:    120,
	RateWindow:   time.Minute,
}

// Ack is the structured acknowledgement returned for every webhook, even
// when internal processing failed. Webhook senders retry on errors, so the
// answer is always a 200-shaped body.
type Ack struct {
	Status  string    `json:"status"`
	EventID string    `json:"event_id,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Hooks   []HookAck `json:"hooks,omitempty"`
}

// HookAck summarizes one hook's outcome for the sender.
type HookAck struct {
	HookID  string `json:"hook_id"`
	Status  string `json:"status"`
	Attempt any    `json:"attempt,omitempty"`
}

// Ack statuses.
const (
	AckAccepted    = "accepted"
	AckRejected    = "rejected"
	AckRateLimited = "rate_limited"
	AckDegraded    = "accepted_with_errors"
)

// Dispatcher validates, classifies, enriches, and hands events to the
// execution engine.
type Dispatcher struct {
	cfg      Config
	engine   *hooks.Engine
	limiter  *RateLimiter
	enricher *Enricher
	stats    *errstats.Collector
	log      *slog.Logger
}

// New creates a dispatcher in front of the engine.
func New(cfg Config, engine *hooks.Engine, stats *errstats.Collector, log *slog.Logger) *Dispatcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig.MaxBodyBytes
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultConfig.RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultConfig.RateWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cfg:      cfg,
		engine:   engine,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		enricher: NewEnricher(cfg.JiraBaseURL),
		stats:    stats,
		log:      log,
	}
}

// Dispatch processes one raw webhook body from the identified client. It
// never returns an error; every outcome is an Ack.
func (d *Dispatcher) Dispatch(ctx context.Context, clientID string, body []byte) (ack *Ack) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic during webhook dispatch", "client", clientID, "panic", r)
			cerr := classify.Classify(fmt.Errorf("dispatch panicked: %v", r), "", "")
			d.stats.RecordError(cerr)
			ack = &Ack{Status: AckDegraded, Reason: "internal error"}
		}
	}()

	if int64(len(body)) > d.cfg.MaxBodyBytes {
		metrics.EventsRejected.WithLabelValues("oversized").Inc()
		return &Ack{Status: AckRejected, Reason: "payload too large"}
	}

	if !d.limiter.Allow(clientID) {
		metrics.EventsRejected.WithLabelValues("rate_limited").Inc()
		d.log.Warn("client rate limited", "client", clientID)
		return &Ack{Status: AckRateLimited, Reason: "rate limit exceeded"}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.EventsRejected.WithLabelValues("malformed").Inc()
		return &Ack{Status: AckRejected, Reason: "body is not valid JSON"}
	}
	if err := validatePayload(payload); err != nil {
		metrics.EventsRejected.WithLabelValues("schema").Inc()
		d.log.Debug("webhook failed schema validation", "client", clientID, "error", err)
		return &Ack{Status: AckRejected, Reason: "payload failed validation"}
	}

	evt := classifyEvent(payload)
	d.enricher.enrich(evt.Payload, payload)
	metrics.EventsReceived.WithLabelValues(string(evt.Category)).Inc()
	d.log.Info("webhook event accepted",
		"event", evt.ID, "category", string(evt.Category), "urgency", string(evt.Urgency))

	results := d.engine.Dispatch(ctx, evt)
	return buildAck(evt, results)
}

func buildAck(evt *domain.Event, results []*domain.HookExecutionResult) *Ack {
	ack := &Ack{Status: AckAccepted, EventID: evt.ID}
	for _, r := range results {
		ack.Hooks = append(ack.Hooks, HookAck{
			HookID:  r.HookID,
			Status:  string(r.Status),
			Attempt: r.Metadata["attempt"],
		})
		if r.Status == domain.StatusFailed {
			ack.Status = AckDegraded
		}
	}
	return ack
}
