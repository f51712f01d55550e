// Package notify delivers drafted notifications to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// WebhookSender posts notifications as JSON to a configured endpoint.
// Delivery is best-effort and bounded by the client timeout; the planning
// engine records the returned status per recipient.
type WebhookSender struct {
	httpClient *http.Client
	url        string
	logger     *slog.Logger
}

// NewWebhookSender creates a sender against the given webhook URL.
func NewWebhookSender(url string, timeout time.Duration, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:    url,
		logger: logger,
	}
}

// Send posts one notification. Any transport or non-2xx failure reports
// failed delivery; it never blocks beyond the client timeout.
func (s *WebhookSender) Send(ctx context.Context, n domain.Notification) (domain.DeliveryStatus, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return domain.DeliveryFailed, fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return domain.DeliveryFailed, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.DeliveryFailed, fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.DeliveryFailed, fmt.Errorf("webhook error: status %d: %s", resp.StatusCode, body)
	}

	s.logger.Debug("notification delivered", "notification_id", n.ID, "recipient", n.RecipientType)
	return domain.DeliverySent, nil
}
