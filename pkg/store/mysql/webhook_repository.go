package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"hookfleet/pkg/store/mysql/model"
)

// ErrDuplicateURL is returned when an insert collides with the unique url
// index of either fleet table. Callers roll back and delete the orphaned
// remote resource.
var ErrDuplicateURL = errors.New("webhook url already recorded")

// WebhookRepository handles fleet persistence in MySQL
type WebhookRepository struct {
	ds *Datastore
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(ds *Datastore) *WebhookRepository {
	return &WebhookRepository{ds: ds}
}

// CreateActive inserts an active webhook row
func (r *WebhookRepository) CreateActive(ctx context.Context, wh *model.ActiveWebhook) error {
	if err := r.ds.DB(ctx).Create(wh).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to create active webhook: %w", err)
	}
	return nil
}

// ListActive retrieves all active webhooks
func (r *WebhookRepository) ListActive(ctx context.Context) ([]*model.ActiveWebhook, error) {
	var webhooks []*model.ActiveWebhook
	if err := r.ds.DB(ctx).Find(&webhooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list active webhooks: %w", err)
	}
	return webhooks, nil
}

// CreatePending inserts a pending-deletion webhook row
func (r *WebhookRepository) CreatePending(ctx context.Context, wh *model.PendingDeletionWebhook) error {
	if err := r.ds.DB(ctx).Create(wh).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("failed to create pending-deletion webhook: %w", err)
	}
	return nil
}

// ListPending retrieves all pending-deletion webhooks
func (r *WebhookRepository) ListPending(ctx context.Context) ([]*model.PendingDeletionWebhook, error) {
	var webhooks []*model.PendingDeletionWebhook
	if err := r.ds.DB(ctx).Find(&webhooks).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending-deletion webhooks: %w", err)
	}
	return webhooks, nil
}

// ListExpiredPending retrieves pending-deletion webhooks whose date_added
// is strictly before the cutoff
func (r *WebhookRepository) ListExpiredPending(ctx context.Context, before time.Time) ([]*model.PendingDeletionWebhook, error) {
	var webhooks []*model.PendingDeletionWebhook
	err := r.ds.DB(ctx).
		Where("date_added < ?", before).
		Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending-deletion webhooks: %w", err)
	}
	return webhooks, nil
}

// DeletePending removes a pending-deletion row by surrogate id
func (r *WebhookRepository) DeletePending(ctx context.Context, id int64) error {
	return r.ds.DB(ctx).Where("id = ?", id).Delete(&model.PendingDeletionWebhook{}).Error
}

// CountFleet returns |active| + |pending-deletion|
func (r *WebhookRepository) CountFleet(ctx context.Context) (int64, error) {
	var active, pending int64
	if err := r.ds.DB(ctx).Model(&model.ActiveWebhook{}).Count(&active).Error; err != nil {
		return 0, fmt.Errorf("failed to count active webhooks: %w", err)
	}
	if err := r.ds.DB(ctx).Model(&model.PendingDeletionWebhook{}).Count(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending-deletion webhooks: %w", err)
	}
	return active + pending, nil
}

// CountActiveByPoolClass returns active webhook counts keyed by pool class
func (r *WebhookRepository) CountActiveByPoolClass(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PoolClass string
		N         int64
	}
	err := r.ds.DB(ctx).
		Model(&model.ActiveWebhook{}).
		Select("pool_class, count(*) as n").
		Group("pool_class").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active webhooks by pool class: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.PoolClass] = row.N
	}
	return counts, nil
}

// CountByStatus returns the two table counts separately
func (r *WebhookRepository) CountByStatus(ctx context.Context) (active int64, pending int64, err error) {
	if err = r.ds.DB(ctx).Model(&model.ActiveWebhook{}).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count active webhooks: %w", err)
	}
	if err = r.ds.DB(ctx).Model(&model.PendingDeletionWebhook{}).Count(&pending).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count pending-deletion webhooks: %w", err)
	}
	return active, pending, nil
}

// URLExists reports whether a url is recorded in either fleet table.
// Plain SELECTs only: the rotation batch calls this mid-transaction and a
// flushing lookup would trip the unique index before the guard can act.
func (r *WebhookRepository) URLExists(ctx context.Context, url string) (bool, error) {
	var count int64
	if err := r.ds.DB(ctx).Model(&model.ActiveWebhook{}).Where("url = ?", url).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up url in active webhooks: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := r.ds.DB(ctx).Model(&model.PendingDeletionWebhook{}).Where("url = ?", url).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up url in pending-deletion webhooks: %w", err)
	}
	return count > 0, nil
}

// MoveAllActiveToPending copies every active row into pending-deletion with
// the given date_added and deletes the active rows. Must run inside ExecTx:
// a crash can then never leave a webhook tracked in neither table.
func (r *WebhookRepository) MoveAllActiveToPending(ctx context.Context, dateAdded time.Time) (int64, error) {
	actives, err := r.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	for _, wh := range actives {
		pending := &model.PendingDeletionWebhook{
			WebhookID: wh.WebhookID,
			URL:       wh.URL,
			ChannelID: wh.ChannelID,
			GuildID:   wh.GuildID,
			PoolClass: wh.PoolClass,
			DateAdded: dateAdded,
		}
		if err := r.ds.DB(ctx).Delete(&model.ActiveWebhook{}, wh.ID).Error; err != nil {
			return 0, fmt.Errorf("failed to delete active webhook %s: %w", wh.WebhookID, err)
		}
		if err := r.CreatePending(ctx, pending); err != nil {
			return 0, err
		}
	}
	return int64(len(actives)), nil
}

// DeleteByWebhookID removes the row holding the webhook id from whichever
// table holds it. Returns the deleted row's pool class and whether a row
// was deleted.
func (r *WebhookRepository) DeleteByWebhookID(ctx context.Context, webhookID string) (string, bool, error) {
	var active model.ActiveWebhook
	err := r.ds.DB(ctx).Where("webhook_id = ?", webhookID).First(&active).Error
	if err == nil {
		if err := r.ds.DB(ctx).Delete(&model.ActiveWebhook{}, active.ID).Error; err != nil {
			return "", false, fmt.Errorf("failed to delete active webhook %s: %w", webhookID, err)
		}
		return active.PoolClass, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, fmt.Errorf("failed to look up active webhook %s: %w", webhookID, err)
	}

	var pending model.PendingDeletionWebhook
	err = r.ds.DB(ctx).Where("webhook_id = ?", webhookID).First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up pending-deletion webhook %s: %w", webhookID, err)
	}
	if err := r.ds.DB(ctx).Delete(&model.PendingDeletionWebhook{}, pending.ID).Error; err != nil {
		return "", false, fmt.Errorf("failed to delete pending-deletion webhook %s: %w", webhookID, err)
	}
	return pending.PoolClass, true, nil
}

// KnownWebhookIDs returns the set of webhook ids recorded in either table
func (r *WebhookRepository) KnownWebhookIDs(ctx context.Context) (map[string]struct{}, error) {
	known := make(map[string]struct{})

	var activeIDs []string
	if err := r.ds.DB(ctx).Model(&model.ActiveWebhook{}).Pluck("webhook_id", &activeIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to collect active webhook ids: %w", err)
	}
	var pendingIDs []string
	if err := r.ds.DB(ctx).Model(&model.PendingDeletionWebhook{}).Pluck("webhook_id", &pendingIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to collect pending-deletion webhook ids: %w", err)
	}

	for _, id := range activeIDs {
		known[id] = struct{}{}
	}
	for _, id := range pendingIDs {
		known[id] = struct{}{}
	}
	return known, nil
}
