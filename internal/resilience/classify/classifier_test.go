package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		category    domain.ErrorCategory
		severity    domain.ErrorSeverity
		recoverable bool
		retryAfter  time.Duration
	}{
		{
			name:        "connection refused",
			err:         errors.New("dial tcp 10.0.0.1:443: connection refused"),
			category:    domain.CategoryExternalService,
			severity:    domain.SeverityHigh,
			recoverable: true,
			retryAfter:  30 * time.Second,
		},
		{
			name:        "context deadline",
			err:         context.DeadlineExceeded,
			category:    domain.CategoryTimeout,
			severity:    domain.SeverityHigh,
			recoverable: true,
			retryAfter:  60 * time.Second,
		},
		{
			name:        "http 429 with hint",
			err:         &domain.DeliveryError{StatusCode: 429, RetryAfter: 15 * time.Second},
			category:    domain.CategoryRateLimit,
			severity:    domain.SeverityMedium,
			recoverable: true,
			retryAfter:  15 * time.Second,
		},
		{
			name:        "http 401",
			err:         &domain.DeliveryError{StatusCode: 401},
			category:    domain.CategoryNotificationDelivery,
			severity:    domain.SeverityCritical,
			recoverable: false,
		},
		{
			name:        "http 503",
			err:         &domain.DeliveryError{StatusCode: 503, RetryAfter: 10 * time.Second},
			category:    domain.CategoryNotificationDelivery,
			severity:    domain.SeverityHigh,
			recoverable: true,
			retryAfter:  10 * time.Second,
		},
		{
			name:        "configuration",
			err:         &domain.ConfigurationError{Msg: "missing webhook url"},
			category:    domain.CategoryConfiguration,
			severity:    domain.SeverityHigh,
			recoverable: false,
		},
		{
			name:        "validation",
			err:         &domain.ValidationError{Field: "summary", Msg: "empty"},
			category:    domain.CategoryHookExecution,
			severity:    domain.SeverityMedium,
			recoverable: true,
		},
		{
			name:        "grpc unavailable",
			err:         status.Error(codes.Unavailable, "gateway down"),
			category:    domain.CategoryExternalService,
			severity:    domain.SeverityHigh,
			recoverable: true,
			retryAfter:  30 * time.Second,
		},
		{
			name:        "grpc unauthenticated",
			err:         status.Error(codes.Unauthenticated, "bad token"),
			category:    domain.CategoryNotificationDelivery,
			severity:    domain.SeverityCritical,
			recoverable: false,
		},
		{
			name:        "unrecognized",
			err:         errors.New("something odd"),
			category:    domain.CategoryHookExecution,
			severity:    domain.SeverityMedium,
			recoverable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "hook-1", "evt-1")
			if got.Category != tt.category {
				t.Errorf("category %v, want %v", got.Category, tt.category)
			}
			if got.Severity != tt.severity {
				t.Errorf("severity %v, want %v", got.Severity, tt.severity)
			}
			if got.Recoverable != tt.recoverable {
				t.Errorf("recoverable %v, want %v", got.Recoverable, tt.recoverable)
			}
			if tt.retryAfter > 0 && got.RetryAfter != tt.retryAfter {
				t.Errorf("retry_after %v, want %v", got.RetryAfter, tt.retryAfter)
			}
			if got.HookID != "hook-1" || got.EventID != "evt-1" {
				t.Errorf("ids not attached: %q %q", got.HookID, got.EventID)
			}
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	tagged := &domain.ClassifiedError{
		Message:     "already classified",
		Category:    domain.CategoryRuleEvaluation,
		Severity:    domain.SeverityLow,
		Recoverable: true,
		HookID:      "hook-1",
		EventID:     "evt-1",
	}
	if got := Classify(tagged, "other-hook", "other-evt"); got != tagged {
		t.Fatal("fully tagged errors must pass through unchanged")
	}

	shared := &domain.ClassifiedError{
		Message:     "breaker rejection",
		Category:    domain.CategoryExternalService,
		Severity:    domain.SeverityHigh,
		Recoverable: false,
	}
	got := Classify(shared, "hook-9", "evt-9")
	if got.HookID != "hook-9" || got.EventID != "evt-9" {
		t.Errorf("ids not filled in: %q %q", got.HookID, got.EventID)
	}
	if got.Category != shared.Category || got.Recoverable != shared.Recoverable {
		t.Error("classification fields lost in the copy")
	}
	// The shared original must not be stamped by one call site.
	if shared.HookID != "" || shared.EventID != "" {
		t.Errorf("shared error mutated: %q %q", shared.HookID, shared.EventID)
	}
}

func TestClassifyWrapped(t *testing.T) {
	inner := &domain.DeliveryError{StatusCode: 401}
	wrapped := errors.Join(errors.New("sending digest"), inner)

	got := Classify(wrapped, "h", "e")
	if got.Recoverable {
		t.Error("wrapped auth failure must stay non-recoverable")
	}
}
