package dispatch

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// eventCategories maps JIRA webhookEvent values to our categories.
var eventCategories = map[string]domain.EventCategory{
	"jira:issue_created": domain.EventIssueCreated,
	"jira:issue_updated": domain.EventIssueUpdated,
	"jira:issue_deleted": domain.EventIssueUpdated,
	"comment_created":    domain.EventIssueCommented,
	"comment_updated":    domain.EventIssueCommented,
}

// priorityUrgency maps JIRA priority names to notification urgency.
var priorityUrgency = map[string]domain.Urgency{
	"blocker":  domain.UrgencyCritical,
	"highest":  domain.UrgencyCritical,
	"critical": domain.UrgencyCritical,
	"high":     domain.UrgencyHigh,
	"major":    domain.UrgencyHigh,
	"medium":   domain.UrgencyNormal,
	"low":      domain.UrgencyLow,
	"lowest":   domain.UrgencyLow,
	"minor":    domain.UrgencyLow,
	"trivial":  domain.UrgencyLow,
}

// classifyEvent normalizes a validated webhook payload into an Event with
// category, urgency, and a significance score.
func classifyEvent(payload map[string]any) *domain.Event {
	evt := &domain.Event{
		ID:         uuid.New().String(),
		Payload:    map[string]any{},
		ReceivedAt: time.Now(),
	}

	webhookEvent, _ := payload["webhookEvent"].(string)
	evt.Type = webhookEvent
	evt.Category = categorize(webhookEvent, payload)

	issue, _ := payload["issue"].(map[string]any)
	fields, _ := issue["fields"].(map[string]any)

	if key, ok := issue["key"].(string); ok {
		evt.Payload["issue_key"] = key
		evt.Payload["project"] = issueKeyProject(key)
	}
	if summary, ok := fields["summary"].(string); ok {
		evt.Payload["summary"] = summary
	}
	if desc, ok := fields["description"].(string); ok {
		evt.Payload["description"] = desc
	}
	if user, ok := payload["user"].(map[string]any); ok {
		if name, ok := user["displayName"].(string); ok {
			evt.Payload["author"] = name
		}
	}

	evt.Urgency = urgencyOf(fields)
	evt.Significance = significanceOf(evt.Category, evt.Urgency)
	return evt
}

func categorize(webhookEvent string, payload map[string]any) domain.EventCategory {
	// Status and assignee changes arrive as issue_updated with a changelog;
	// they get their own categories so teams can route them separately.
	if webhookEvent == "jira:issue_updated" {
		if changed := changedFields(payload); changed["status"] {
			return domain.EventIssueTransitioned
		} else if changed["assignee"] {
			return domain.EventIssueAssigned
		}
	}
	if cat, ok := eventCategories[webhookEvent]; ok {
		return cat
	}
	return domain.EventUnknown
}

func changedFields(payload map[string]any) map[string]bool {
	out := map[string]bool{}
	changelog, _ := payload["changelog"].(map[string]any)
	items, _ := changelog["items"].([]any)
	for _, raw := range items {
		item, _ := raw.(map[string]any)
		if field, ok := item["field"].(string); ok {
			out[strings.ToLower(field)] = true
		}
	}
	return out
}

func urgencyOf(fields map[string]any) domain.Urgency {
	priority, _ := fields["priority"].(map[string]any)
	name, _ := priority["name"].(string)
	if u, ok := priorityUrgency[strings.ToLower(name)]; ok {
		return u
	}
	return domain.UrgencyNormal
}

// significanceOf produces a 0-100 score used by downstream reporting.
func significanceOf(cat domain.EventCategory, urgency domain.Urgency) int {
	base := 20
	switch cat {
	case domain.EventIssueCreated, domain.EventIssueTransitioned:
		base = 40
	case domain.EventIssueAssigned:
		base = 30
	}
	switch urgency {
	case domain.UrgencyCritical:
		base += 50
	case domain.UrgencyHigh:
		base += 30
	case domain.UrgencyNormal:
		base += 10
	}
	if base > 100 {
		base = 100
	}
	return base
}
