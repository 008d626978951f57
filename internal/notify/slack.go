package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/metrics"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// SlackNotifier posts payloads to a Slack incoming webhook.
type SlackNotifier struct {
	name       string
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for one webhook URL.
func NewSlackNotifier(name, webhookURL string, timeout time.Duration) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		name:       name,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (n *SlackNotifier) Name() string { return n.name }

func (n *SlackNotifier) Dependency() breaker.Dependency { return breaker.DepSlackAPI }

// Deliver posts the payload as JSON. Non-2xx responses become
// DeliveryErrors carrying the status code and any Retry-After hint.
func (n *SlackNotifier) Deliver(ctx context.Context, payload map[string]any) error {
	if n.webhookURL == "" {
		return &domain.ConfigurationError{Msg: "slack webhook url not configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		metrics.DeliveryErrors.WithLabelValues(n.name, "transport").Inc()
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.DeliveryLatency.WithLabelValues(n.name).Observe(time.Since(start).Seconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	metrics.DeliveryErrors.WithLabelValues(n.name, statusClass(resp.StatusCode)).Inc()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &domain.DeliveryError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		Body:       string(respBody),
	}
}

// statusClass buckets HTTP failure codes for the delivery-error metric.
func statusClass(status int) string {
	switch {
	case status == 429:
		return "rate_limit"
	case status == 401 || status == 403:
		return "auth"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

// parseRetryAfter handles the delta-seconds form Slack uses on 429s.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
