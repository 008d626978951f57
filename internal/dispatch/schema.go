package dispatch

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// webhookSchema is the shape we require of inbound JIRA webhook payloads
// before they reach classification. Kept intentionally loose: JIRA adds
// fields per deployment, so only the envelope is pinned down.
const webhookSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["webhookEvent", "issue"],
  "properties": {
    "webhookEvent": {"type": "string", "minLength": 1},
    "timestamp": {"type": "integer"},
    "issue": {
      "type": "object",
      "required": ["key"],
      "properties": {
        "key": {"type": "string", "pattern": "^[A-Z][A-Z0-9]*-[0-9]+$"},
        "fields": {"type": "object"}
      }
    },
    "user": {"type": "object"},
    "comment": {"type": "object"},
    "changelog": {"type": "object"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("jira-webhook.json", webhookSchema)

// validatePayload checks the decoded payload against the webhook schema.
func validatePayload(payload map[string]any) error {
	if err := compiledSchema.Validate(payload); err != nil {
		return fmt.Errorf("webhook payload rejected: %w", err)
	}
	return nil
}

// issueKeyProject extracts the project portion of an issue key
// ("PROJ-42" -> "PROJ").
func issueKeyProject(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[:i]
	}
	return ""
}
