// Package notify delivers operational events to estate administrators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/service"
)

// WebhookNotifier posts events as JSON to a configured endpoint. An empty
// URL makes it a no-op, so callers never need to nil-check their notifier.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  service.RetryOptions
}

// NewWebhookNotifier creates a notifier for the given endpoint URL.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// NotifyAdmins delivers one event. Delivery failures are retried with
// backoff; a notifier without an endpoint logs the event and succeeds.
func (n *WebhookNotifier) NotifyAdmins(ctx context.Context, event string, payload map[string]any) error {
	if n.url == "" {
		slog.Debug("notification endpoint not configured, skipping", "event", event)
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	return common.WithRetry(ctx, func() error {
		return n.post(ctx, body)
	}, n.retry)
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("notification delivery failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &common.RetryableError{Err: fmt.Errorf("notification endpoint returned %d", resp.StatusCode), Retryable: true}
	case resp.StatusCode >= 400:
		return &common.RetryableError{Err: fmt.Errorf("notification endpoint returned %d", resp.StatusCode), Retryable: false}
	}
	return nil
}
