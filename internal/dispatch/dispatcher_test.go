package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/hooks"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
	"github.com/vietddude/hookbridge/internal/resilience/errstats"
	"github.com/vietddude/hookbridge/internal/resilience/fallback"
	"github.com/vietddude/hookbridge/internal/resilience/retry"
)

type recordingHook struct {
	id     string
	events []*domain.Event
	err    error
}

func (h *recordingHook) ID() string                       { return h.id }
func (h *recordingHook) Enabled() bool                    { return true }
func (h *recordingHook) CanHandle(evt *domain.Event) bool { return true }

func (h *recordingHook) Execute(ctx context.Context, evt *domain.Event) error {
	h.events = append(h.events, evt)
	return h.err
}

func newTestDispatcher(t *testing.T, hks ...hooks.Hook) (*Dispatcher, *hooks.Registry) {
	t.Helper()
	registry := hooks.NewRegistry()
	for _, h := range hks {
		if err := registry.Register(h); err != nil {
			t.Fatal(err)
		}
	}
	engine := hooks.NewEngine(
		hooks.Config{
			ExecutionTimeout: time.Second,
			Policy:           retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, Strategy: retry.StrategyFixed},
		},
		registry,
		retry.NewEngine(nil),
		breaker.NewRegistry(breaker.DefaultConfig),
		fallback.New(fallback.DefaultConfig, nil),
		errstats.NewCollector(),
		nil,
	)
	d := New(Config{JiraBaseURL: "https://jira.example.com"}, engine, errstats.NewCollector(), nil)
	return d, registry
}

func webhookBody(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"webhookEvent": "jira:issue_created",
		"timestamp":    1700000000,
		"issue": map[string]any{
			"key": "PROJ-42",
			"fields": map[string]any{
				"summary":     "Deploy broke",
				"description": "Rollout halted",
				"priority":    map[string]any{"name": "High"},
				"assignee":    map[string]any{"displayName": "Alice"},
				"reporter":    map[string]any{"displayName": "Bob"},
			},
		},
		"user": map[string]any{"displayName": "Bob"},
	}
	for k, v := range overrides {
		payload[k] = v
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestDispatchAccepted(t *testing.T) {
	h := &recordingHook{id: "team-a"}
	d, _ := newTestDispatcher(t, h)

	ack := d.Dispatch(context.Background(), "client-1", webhookBody(t, nil))

	if ack.Status != AckAccepted {
		t.Fatalf("status %s, want accepted (reason: %s)", ack.Status, ack.Reason)
	}
	if ack.EventID == "" {
		t.Error("event id missing")
	}
	if len(ack.Hooks) != 1 || ack.Hooks[0].Status != string(domain.StatusSuccess) {
		t.Errorf("hook acks: %+v", ack.Hooks)
	}

	if len(h.events) != 1 {
		t.Fatalf("hook saw %d events", len(h.events))
	}
	evt := h.events[0]
	if evt.Category != domain.EventIssueCreated {
		t.Errorf("category %v", evt.Category)
	}
	if evt.Urgency != domain.UrgencyHigh {
		t.Errorf("urgency %v", evt.Urgency)
	}
	if evt.Payload["project"] != "PROJ" {
		t.Errorf("project %v", evt.Payload["project"])
	}
	if evt.Payload["ticket_url"] != "https://jira.example.com/browse/PROJ-42" {
		t.Errorf("ticket_url %v", evt.Payload["ticket_url"])
	}
	if evt.Payload["stakeholders"] == nil {
		t.Error("stakeholders missing")
	}
}

func TestDispatchRejectsInvalidBodies(t *testing.T) {
	d, _ := newTestDispatcher(t)

	tests := []struct {
		name string
		body []byte
	}{
		{"not json", []byte("nope")},
		{"missing webhookEvent", mustJSON(t, map[string]any{"issue": map[string]any{"key": "P-1"}})},
		{"missing issue", mustJSON(t, map[string]any{"webhookEvent": "jira:issue_created"})},
		{"bad issue key", webhookBody(t, map[string]any{"issue": map[string]any{"key": "lowercase-1"}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := d.Dispatch(context.Background(), "client-1", tt.body)
			if ack.Status != AckRejected {
				t.Errorf("status %s, want rejected", ack.Status)
			}
		})
	}
}

func TestDispatchOversizedBody(t *testing.T) {
	h := &recordingHook{id: "team-a"}
	d, _ := newTestDispatcher(t, h)
	d.cfg.MaxBodyBytes = 10

	ack := d.Dispatch(context.Background(), "client-1", webhookBody(t, nil))
	if ack.Status != AckRejected || ack.Reason != "payload too large" {
		t.Errorf("ack %+v", ack)
	}
	if len(h.events) != 0 {
		t.Error("oversized body reached hooks")
	}
}

func TestDispatchRateLimits(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.limiter = NewRateLimiter(2, time.Minute)

	body := webhookBody(t, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if ack := d.Dispatch(ctx, "spammy", body); ack.Status == AckRateLimited {
			t.Fatalf("request %d limited early", i)
		}
	}
	if ack := d.Dispatch(ctx, "spammy", body); ack.Status != AckRateLimited {
		t.Errorf("status %s, want rate_limited", ack.Status)
	}
	// Other clients are unaffected.
	if ack := d.Dispatch(ctx, "quiet", body); ack.Status == AckRateLimited {
		t.Error("per-client limit leaked across clients")
	}
}

func TestDispatchDegradesOnHookFailure(t *testing.T) {
	failing := &recordingHook{id: "bad", err: &domain.ValidationError{Msg: "nope"}}
	ok := &recordingHook{id: "good"}
	d, _ := newTestDispatcher(t, failing, ok)

	ack := d.Dispatch(context.Background(), "client-1", webhookBody(t, nil))

	if ack.Status != AckDegraded {
		t.Fatalf("status %s, want accepted_with_errors", ack.Status)
	}
	if len(ack.Hooks) != 2 {
		t.Fatalf("hook acks %d, want 2", len(ack.Hooks))
	}
	if ack.Hooks[0].HookID != "bad" || ack.Hooks[0].Status != string(domain.StatusFailed) {
		t.Errorf("first ack %+v", ack.Hooks[0])
	}
	if ack.Hooks[1].Status != string(domain.StatusSuccess) {
		t.Errorf("second ack %+v", ack.Hooks[1])
	}
}

func TestClassifyTransitionAndAssignment(t *testing.T) {
	tests := []struct {
		name    string
		changed string
		want    domain.EventCategory
	}{
		{"status change", "status", domain.EventIssueTransitioned},
		{"assignee change", "assignee", domain.EventIssueAssigned},
		{"other change", "labels", domain.EventIssueUpdated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHook{id: "h"}
			d, _ := newTestDispatcher(t, h)

			body := webhookBody(t, map[string]any{
				"webhookEvent": "jira:issue_updated",
				"changelog": map[string]any{
					"items": []any{map[string]any{"field": tt.changed}},
				},
			})
			ack := d.Dispatch(context.Background(), "c", body)
			if ack.Status != AckAccepted {
				t.Fatalf("ack %+v", ack)
			}
			if h.events[0].Category != tt.want {
				t.Errorf("category %v, want %v", h.events[0].Category, tt.want)
			}
		})
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
