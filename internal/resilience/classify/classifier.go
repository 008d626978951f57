// Package classify maps raw errors from hooks, notifiers, and transports
// into the ClassifiedError taxonomy. Classification is centralized here so
// retry and fallback decisions stay consistent across the pipeline.
package classify

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/hookbridge/internal/core/domain"
)

// Default retry-after hints when the error itself carries none.
const (
	transportRetryAfter = 30 * time.Second
	timeoutRetryAfter   = 60 * time.Second
	rateLimitRetryAfter = 60 * time.Second
)

var transportPatterns = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
	"network is unreachable",
	"eof",
}

// Classify normalizes any error into a ClassifiedError. Already-classified
// errors pass through unchanged; missing hook/event IDs are filled in on a
// copy so an error shared across call sites is never stamped in place.
func Classify(err error, hookID, eventID string) *domain.ClassifiedError {
	var cerr *domain.ClassifiedError
	if errors.As(err, &cerr) {
		if cerr.HookID != "" && cerr.EventID != "" {
			return cerr
		}
		filled := *cerr
		if filled.HookID == "" {
			filled.HookID = hookID
		}
		if filled.EventID == "" {
			filled.EventID = eventID
		}
		return &filled
	}

	out := &domain.ClassifiedError{
		Message:    err.Error(),
		HookID:     hookID,
		EventID:    eventID,
		Cause:      err,
		OccurredAt: time.Now(),
	}

	switch {
	case classifyGRPC(err, out):
	case classifyDelivery(err, out):
	case classifyConfig(err, out):
	case classifyTimeout(err, out):
	case classifyTransport(err, out):
	case classifyValidation(err, out):
	default:
		// Unrecognized errors default to a retryable hook failure.
		out.Category = domain.CategoryHookExecution
		out.Severity = domain.SeverityMedium
		out.Recoverable = true
	}
	return out
}

func classifyTimeout(err error, out *domain.ClassifiedError) bool {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout")
	if !timedOut {
		return false
	}
	out.Category = domain.CategoryTimeout
	out.Severity = domain.SeverityHigh
	out.Recoverable = true
	out.RetryAfter = timeoutRetryAfter
	return true
}

func classifyTransport(err error, out *domain.ClassifiedError) bool {
	var opErr *net.OpError
	matched := errors.As(err, &opErr)
	if !matched {
		msg := strings.ToLower(err.Error())
		for _, p := range transportPatterns {
			if strings.Contains(msg, p) {
				matched = true
				break
			}
		}
	}
	if !matched {
		return false
	}
	out.Category = domain.CategoryExternalService
	out.Severity = domain.SeverityHigh
	out.Recoverable = true
	out.RetryAfter = transportRetryAfter
	return true
}

func classifyDelivery(err error, out *domain.ClassifiedError) bool {
	var derr *domain.DeliveryError
	if !errors.As(err, &derr) {
		return false
	}

	switch {
	case derr.StatusCode == 401 || derr.StatusCode == 403:
		// Auth failures cannot self-heal: short-circuit to non-recoverable.
		out.Category = domain.CategoryNotificationDelivery
		out.Severity = domain.SeverityCritical
		out.Recoverable = false
	case derr.StatusCode == 429:
		out.Category = domain.CategoryRateLimit
		out.Severity = domain.SeverityMedium
		out.Recoverable = true
		out.RetryAfter = derr.RetryAfter
		if out.RetryAfter <= 0 {
			out.RetryAfter = rateLimitRetryAfter
		}
	default:
		out.Category = domain.CategoryNotificationDelivery
		out.Severity = domain.SeverityHigh
		out.Recoverable = true
		out.RetryAfter = derr.RetryAfter
	}
	out.Context = map[string]any{"status_code": derr.StatusCode}
	return true
}

func classifyConfig(err error, out *domain.ClassifiedError) bool {
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		return false
	}
	out.Category = domain.CategoryConfiguration
	out.Severity = domain.SeverityHigh
	out.Recoverable = false
	return true
}

func classifyValidation(err error, out *domain.ClassifiedError) bool {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	out.Category = domain.CategoryHookExecution
	out.Severity = domain.SeverityMedium
	out.Recoverable = true
	return true
}

// classifyGRPC maps gRPC status codes from the notification gateway.
// ResourceExhausted responses may carry a RetryInfo detail with the
// server-suggested delay.
func classifyGRPC(err error, out *domain.ClassifiedError) bool {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return false
	}

	switch st.Code() {
	case codes.Unavailable:
		out.Category = domain.CategoryExternalService
		out.Severity = domain.SeverityHigh
		out.Recoverable = true
		out.RetryAfter = transportRetryAfter
	case codes.DeadlineExceeded:
		out.Category = domain.CategoryTimeout
		out.Severity = domain.SeverityHigh
		out.Recoverable = true
		out.RetryAfter = timeoutRetryAfter
	case codes.ResourceExhausted:
		out.Category = domain.CategoryRateLimit
		out.Severity = domain.SeverityMedium
		out.Recoverable = true
		out.RetryAfter = grpcRetryInfo(st)
		if out.RetryAfter <= 0 {
			out.RetryAfter = rateLimitRetryAfter
		}
	case codes.Unauthenticated, codes.PermissionDenied:
		out.Category = domain.CategoryNotificationDelivery
		out.Severity = domain.SeverityCritical
		out.Recoverable = false
	case codes.InvalidArgument, codes.FailedPrecondition:
		out.Category = domain.CategoryConfiguration
		out.Severity = domain.SeverityHigh
		out.Recoverable = false
	default:
		return false
	}
	return true
}

func grpcRetryInfo(st *status.Status) time.Duration {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.RetryInfo); ok {
			return info.GetRetryDelay().AsDuration()
		}
	}
	return 0
}
