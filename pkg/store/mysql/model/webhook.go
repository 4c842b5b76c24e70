package model

import "time"

// Pool classes partition the fleet for downstream load distribution.
// The controller treats them as opaque labels; consumers round-robin
// across the classes they care about.
const (
	PoolClassCore   = "core"
	PoolClassBackup = "backup"
)

// ActiveWebhook is a webhook currently serving deliveries.
//
// The unique index on url is the single source of truth for duplicate
// prevention: a url may exist in exactly one of active_webhooks and
// pending_deletion_webhooks, never both.
type ActiveWebhook struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID string    `gorm:"column:webhook_id;type:varchar(32);not null;index:idx_active_webhook_id" json:"webhook_id"`
	URL       string    `gorm:"column:url;type:varchar(512);not null;uniqueIndex:idx_active_url_unique" json:"url"`
	ChannelID string    `gorm:"column:channel_id;type:varchar(32);not null;index:idx_active_channel" json:"channel_id"`
	GuildID   string    `gorm:"column:guild_id;type:varchar(32);not null" json:"guild_id"`
	PoolClass string    `gorm:"column:pool_class;type:varchar(32);not null;index:idx_active_pool_class" json:"pool_class"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"updated_at"`
}

// TableName specifies the table name for ActiveWebhook
func (ActiveWebhook) TableName() string {
	return "active_webhooks"
}

// PendingDeletionWebhook is a webhook awaiting grace-period cleanup.
// It keeps serving deliveries until the purge loop removes its channel;
// DateAdded determines purge eligibility.
type PendingDeletionWebhook struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WebhookID string    `gorm:"column:webhook_id;type:varchar(32);not null;index:idx_pending_webhook_id" json:"webhook_id"`
	URL       string    `gorm:"column:url;type:varchar(512);not null;uniqueIndex:idx_pending_url_unique" json:"url"`
	ChannelID string    `gorm:"column:channel_id;type:varchar(32);not null" json:"channel_id"`
	GuildID   string    `gorm:"column:guild_id;type:varchar(32);not null" json:"guild_id"`
	PoolClass string    `gorm:"column:pool_class;type:varchar(32);not null" json:"pool_class"`
	DateAdded time.Time `gorm:"column:date_added;type:datetime(3);not null;index:idx_pending_date_added" json:"date_added"`
	CreatedAt time.Time `gorm:"column:created_at;type:datetime(3);not null;default:CURRENT_TIMESTAMP(3)" json:"created_at"`
}

// TableName specifies the table name for PendingDeletionWebhook
func (PendingDeletionWebhook) TableName() string {
	return "pending_deletion_webhooks"
}
