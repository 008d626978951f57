package hooks

import (
	"context"
	"strings"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/notify"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// NotificationHook is the standard team hook: it matches events by project
// and category and forwards a rendered payload to its notifier. Instances
// are built from the hooks section of the config file.
type NotificationHook struct {
	id         string
	enabled    bool
	projects   map[string]bool              // empty = all projects
	categories map[domain.EventCategory]bool // empty = all categories
	notifier   notify.Notifier
}

// NewNotificationHook creates a hook routing matching events to notifier.
func NewNotificationHook(id string, enabled bool, projects []string, categories []string, notifier notify.Notifier) *NotificationHook {
	h := &NotificationHook{
		id:         id,
		enabled:    enabled,
		projects:   make(map[string]bool, len(projects)),
		categories: make(map[domain.EventCategory]bool, len(categories)),
		notifier:   notifier,
	}
	for _, p := range projects {
		h.projects[strings.ToUpper(p)] = true
	}
	for _, c := range categories {
		h.categories[domain.EventCategory(c)] = true
	}
	return h
}

func (h *NotificationHook) ID() string    { return h.id }
func (h *NotificationHook) Enabled() bool { return h.enabled }

// Dependency routes this hook's calls through its notifier's breaker.
func (h *NotificationHook) Dependency() breaker.Dependency {
	return h.notifier.Dependency()
}

// CanHandle matches on project key and event category.
func (h *NotificationHook) CanHandle(evt *domain.Event) bool {
	if len(h.categories) > 0 && !h.categories[evt.Category] {
		return false
	}
	if len(h.projects) > 0 {
		project := strings.ToUpper(evt.Field("project"))
		if !h.projects[project] {
			return false
		}
	}
	return true
}

// Execute renders a notification from the event's guaranteed fields and
// delivers it.
func (h *NotificationHook) Execute(ctx context.Context, evt *domain.Event) error {
	payload := map[string]any{
		"text": renderText(evt),
	}
	if summary := evt.Field("summary"); summary != "" {
		payload["summary"] = summary
	}
	if desc := evt.Field("description"); desc != "" {
		payload["description"] = desc
	}
	if author := evt.Field("author"); author != "" {
		payload["author"] = author
	}
	return h.notifier.Deliver(ctx, payload)
}

func renderText(evt *domain.Event) string {
	summary := evt.Field("summary")
	if summary == "" {
		summary = "JIRA event"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(evt.Category))
	b.WriteString("] ")
	b.WriteString(summary)
	if evt.Urgency == domain.UrgencyHigh || evt.Urgency == domain.UrgencyCritical {
		b.WriteString(" (")
		b.WriteString(string(evt.Urgency))
		b.WriteString(" urgency)")
	}
	return b.String()
}
