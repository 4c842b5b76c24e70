package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the capability surface the fleet controller needs from the
// chat platform. All calls may fail with a transport error; callers treat
// failure as "unknown state, retry next cycle".
type Client interface {
	ListChannels(ctx context.Context, guildID string) ([]Channel, error)
	CreateChannel(ctx context.Context, guildID, name string) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	ListWebhooks(ctx context.Context, channelID string) ([]Webhook, error)
	CreateWebhook(ctx context.Context, channelID, name, icon string) (*Webhook, error)
	DeleteWebhook(ctx context.Context, webhookID string) error
	Probe(ctx context.Context, webhookURL string, timeout time.Duration) (int, error)
}

// HTTPClient talks to the platform REST API
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a platform REST client
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ Client = (*HTTPClient)(nil)

// ListChannels lists all channels of a guild
func (c *HTTPClient) ListChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/channels", guildID), nil, &channels); err != nil {
		return nil, fmt.Errorf("failed to list channels of guild %s: %w", guildID, err)
	}
	return channels, nil
}

// CreateChannel creates a text channel inside a guild
func (c *HTTPClient) CreateChannel(ctx context.Context, guildID, name string) (*Channel, error) {
	body := map[string]interface{}{"name": name}
	var channel Channel
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/guilds/%s/channels", guildID), body, &channel); err != nil {
		return nil, fmt.Errorf("failed to create channel %s in guild %s: %w", name, guildID, err)
	}
	return &channel, nil
}

// DeleteChannel deletes a channel. Deleting an already-deleted channel is
// treated as success.
func (c *HTTPClient) DeleteChannel(ctx context.Context, channelID string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/channels/%s", channelID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete channel %s: %w", channelID, err)
	}
	return nil
}

// ListWebhooks lists the webhooks of a channel
func (c *HTTPClient) ListWebhooks(ctx context.Context, channelID string) ([]Webhook, error) {
	var webhooks []Webhook
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/channels/%s/webhooks", channelID), nil, &webhooks); err != nil {
		return nil, fmt.Errorf("failed to list webhooks of channel %s: %w", channelID, err)
	}
	return webhooks, nil
}

// CreateWebhook creates a webhook on a channel
func (c *HTTPClient) CreateWebhook(ctx context.Context, channelID, name, icon string) (*Webhook, error) {
	body := map[string]interface{}{"name": name}
	if icon != "" {
		body["avatar"] = icon
	}
	var webhook Webhook
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/channels/%s/webhooks", channelID), body, &webhook); err != nil {
		return nil, fmt.Errorf("failed to create webhook on channel %s: %w", channelID, err)
	}
	return &webhook, nil
}

// DeleteWebhook deletes a webhook. Deleting an already-deleted webhook is
// treated as success.
func (c *HTTPClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/webhooks/%s", webhookID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete webhook %s: %w", webhookID, err)
	}
	return nil
}

// Probe issues a bounded-timeout GET against a webhook url and returns the
// status code. A url that does not parse fails without a request.
func (c *HTTPClient) Probe(ctx context.Context, webhookURL string, timeout time.Duration) (int, error) {
	parsed, err := url.Parse(webhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return 0, fmt.Errorf("malformed webhook url %q", webhookURL)
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, webhookURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe transport error: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// do performs a REST call and decodes the JSON response into out when
// out is non-nil
func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// A delete racing an external delete comes back 404; the resource is
	// gone either way.
	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("platform API returned status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
