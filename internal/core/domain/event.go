package domain

import "time"

// EventCategory groups JIRA webhook events by what happened to the issue.
type EventCategory string

const (
	EventIssueCreated      EventCategory = "issue_created"
	EventIssueUpdated      EventCategory = "issue_updated"
	EventIssueCommented    EventCategory = "issue_commented"
	EventIssueTransitioned EventCategory = "issue_transitioned"
	EventIssueAssigned     EventCategory = "issue_assigned"
	EventUnknown           EventCategory = "unknown"
)

// Urgency ranks how quickly stakeholders should be notified.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Event is a normalized webhook event handed to the execution engine.
// HookIDs carries explicit targets; empty means "all applicable hooks".
type Event struct {
	ID           string
	Type         string
	Category     EventCategory
	Urgency      Urgency
	Significance int // 0-100, derived during classification
	HookIDs      []string
	Payload      map[string]any
	ReceivedAt   time.Time
}

// Field returns a top-level payload field as a string, or "" if absent.
func (e *Event) Field(key string) string {
	if e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
