package platform

// Channel is a namespace inside a guild that hosts at most one
// manager-created webhook.
type Channel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`
}

// Webhook is a callback resource the platform lets other systems POST
// messages into. URL carries the secret token.
type Webhook struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
}

// WebhooksUpdate is the platform-pushed signal that the webhook set of a
// channel changed. It carries no detail about what changed; subscribers
// re-list the channel and diff.
type WebhooksUpdate struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

// EventHandler receives platform-pushed change events from the gateway
type EventHandler interface {
	OnWebhooksUpdate(event WebhooksUpdate)
}
