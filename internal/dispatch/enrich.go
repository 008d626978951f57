package dispatch

import (
	"fmt"
	"strings"
)

// Enricher adds ticket and stakeholder context to classified events before
// they reach the hooks.
type Enricher struct {
	jiraBaseURL string
}

// NewEnricher creates an enricher. baseURL may be empty, in which case no
// browse links are added.
func NewEnricher(jiraBaseURL string) *Enricher {
	return &Enricher{jiraBaseURL: strings.TrimRight(jiraBaseURL, "/")}
}

// enrich decorates the event payload in place with ticket links and the
// stakeholder list derived from the raw webhook body.
func (e *Enricher) enrich(payload map[string]any, raw map[string]any) {
	if key, ok := payload["issue_key"].(string); ok && e.jiraBaseURL != "" {
		payload["ticket_url"] = fmt.Sprintf("%s/browse/%s", e.jiraBaseURL, key)
	}

	stakeholders := map[string]bool{}
	issue, _ := raw["issue"].(map[string]any)
	fields, _ := issue["fields"].(map[string]any)
	for _, role := range []string{"assignee", "reporter", "creator"} {
		person, _ := fields[role].(map[string]any)
		if name, ok := person["displayName"].(string); ok && name != "" {
			stakeholders[name] = true
		}
	}
	if len(stakeholders) > 0 {
		names := make([]string, 0, len(stakeholders))
		for name := range stakeholders {
			names = append(names, name)
		}
		payload["stakeholders"] = names
	}
}
