package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"hookfleet/pkg/config"
	"hookfleet/pkg/logger"
)

// Notifier delivers human-readable status text to an operations
// destination. Delivery is best-effort; callers never fail on a
// notification error.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// WebhookNotifier posts text messages to an ops webhook URL
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a notifier from config, falling back to the
// OPS_WEBHOOK_URL environment variable
func NewWebhookNotifier() *WebhookNotifier {
	var webhookURL string
	if config.GlobalConfig != nil && config.GlobalConfig.Notification.WebhookURL != "" {
		webhookURL = config.GlobalConfig.Notification.WebhookURL
	} else {
		webhookURL = os.Getenv("OPS_WEBHOOK_URL")
	}

	if webhookURL == "" {
		logger.Warn("ops webhook URL not configured (check config file or OPS_WEBHOOK_URL env), notifications will be disabled")
	}

	return &WebhookNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

var _ Notifier = (*WebhookNotifier)(nil)

// Send posts a text message to the ops webhook
func (n *WebhookNotifier) Send(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		logger.DebugCtx(ctx, "ops webhook URL not configured, skipping notification")
		return nil
	}

	message := map[string]interface{}{
		"msg_type": "text",
		"content": map[string]string{
			"text": text,
		},
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ops webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}
