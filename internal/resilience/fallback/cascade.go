// Package fallback degrades notification payloads through progressively
// simpler renderings until one can be built. The final level is static and
// cannot fail, so callers always get a deliverable payload.
package fallback

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// Level ranks rendering richness. Lower values are richer; degradation
// walks the levels in increasing order.
type Level int

const (
	LevelRich Level = iota
	LevelStructured
	LevelText
	LevelMinimal
	LevelError
)

var levelNames = map[Level]string{
	LevelRich:       "rich",
	LevelStructured: "structured",
	LevelText:       "text",
	LevelMinimal:    "minimal",
	LevelError:      "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel maps a config string to a Level. Unknown values degrade all
// the way to minimal rather than failing config load.
func ParseLevel(s string) Level {
	for l, name := range levelNames {
		if name == strings.ToLower(s) {
			return l
		}
	}
	return LevelMinimal
}

// Config controls cascade behavior.
type Config struct {
	MaxLevel            Level // deepest non-error level the cascade may use
	IncludeErrorDetails bool  // include error category in the final level
}

// DefaultConfig allows full degradation with error details.
var DefaultConfig = Config{MaxLevel: LevelMinimal, IncludeErrorDetails: true}

// Result is a degraded payload plus bookkeeping about how it was built.
type Result struct {
	Payload map[string]any
	Level   Level
}

// Cascade builds degraded payloads from the fields guaranteed present in
// any event payload: summary, description, and author.
type Cascade struct {
	cfg Config
	log *slog.Logger
}

// New creates a cascade. A nil logger uses the default.
func New(cfg Config, log *slog.Logger) *Cascade {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxLevel < LevelRich || cfg.MaxLevel > LevelMinimal {
		cfg.MaxLevel = LevelMinimal
	}
	return &Cascade{cfg: cfg, log: log}
}

type builder func(summary, description, author string) (map[string]any, error)

// Degrade walks the levels from richest to simplest until one builds. The
// error level is the unconditional terminal: it echoes static content and
// never fails, regardless of the input payload.
func (c *Cascade) Degrade(payload map[string]any, cerr *domain.ClassifiedError) Result {
	summary := stringField(payload, "summary", "title")
	description := stringField(payload, "description", "body")
	author := stringField(payload, "author", "user")

	builders := []struct {
		level Level
		build builder
	}{
		{LevelRich, buildRich},
		{LevelStructured, buildStructured},
		{LevelText, buildText},
		{LevelMinimal, buildMinimal},
	}

	for _, b := range builders {
		if b.level > c.cfg.MaxLevel {
			break
		}
		out, err := b.build(summary, description, author)
		if err != nil {
			c.log.Debug("fallback level failed, degrading further",
				"level", b.level.String(), "error", err)
			continue
		}
		out["degraded"] = true
		out["fallback_level"] = b.level.String()
		return Result{Payload: out, Level: b.level}
	}

	return Result{Payload: c.buildError(cerr), Level: LevelError}
}

func buildRich(summary, description, author string) (map[string]any, error) {
	if summary == "" || description == "" {
		return nil, fmt.Errorf("rich rendering needs summary and description")
	}
	blocks := []map[string]any{
		{"type": "header", "text": summary},
		{"type": "section", "text": description},
	}
	if author != "" {
		blocks = append(blocks, map[string]any{"type": "context", "text": "reported by " + author})
	}
	return map[string]any{"blocks": blocks}, nil
}

func buildStructured(summary, description, author string) (map[string]any, error) {
	if summary == "" {
		return nil, fmt.Errorf("structured rendering needs a summary")
	}
	fields := []map[string]string{{"title": "Summary", "value": summary}}
	if description != "" {
		fields = append(fields, map[string]string{"title": "Description", "value": description})
	}
	if author != "" {
		fields = append(fields, map[string]string{"title": "Author", "value": author})
	}
	return map[string]any{
		"attachments": []map[string]any{{"fields": fields}},
	}, nil
}

func buildText(summary, description, author string) (map[string]any, error) {
	parts := make([]string, 0, 3)
	for _, s := range []string{summary, description, author} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no renderable fields")
	}
	return map[string]any{"text": strings.Join(parts, " - ")}, nil
}

func buildMinimal(summary, _, _ string) (map[string]any, error) {
	if summary == "" {
		summary = "JIRA event received"
	}
	return map[string]any{"text": summary}, nil
}

func (c *Cascade) buildError(cerr *domain.ClassifiedError) map[string]any {
	text := "Notification could not be rendered."
	if c.cfg.IncludeErrorDetails && cerr != nil {
		text = fmt.Sprintf("Notification could not be rendered (%s).", cerr.Category)
	}
	return map[string]any{
		"text":           text,
		"error":          true,
		"fallback_level": LevelError.String(),
	}
}

func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := payload[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
