package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookNotifier posts alerts as JSON to a single URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier returns client wrapper.
func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Notify delivers the alert.
func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook request failed", zap.String("device_id", alert.DeviceID), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook returned non-success", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
