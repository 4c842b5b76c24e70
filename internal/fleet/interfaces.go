package fleet

import (
	"context"
	"time"

	"hookfleet/pkg/notification"
	"hookfleet/pkg/platform"
	"hookfleet/pkg/store/mysql"
	"hookfleet/pkg/store/mysql/model"
)

type webhookRepository interface {
	CreateActive(ctx context.Context, wh *model.ActiveWebhook) error
	ListActive(ctx context.Context) ([]*model.ActiveWebhook, error)
	CreatePending(ctx context.Context, wh *model.PendingDeletionWebhook) error
	ListPending(ctx context.Context) ([]*model.PendingDeletionWebhook, error)
	ListExpiredPending(ctx context.Context, before time.Time) ([]*model.PendingDeletionWebhook, error)
	DeletePending(ctx context.Context, id int64) error
	CountFleet(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (active int64, pending int64, err error)
	CountActiveByPoolClass(ctx context.Context) (map[string]int64, error)
	URLExists(ctx context.Context, url string) (bool, error)
	MoveAllActiveToPending(ctx context.Context, dateAdded time.Time) (int64, error)
	DeleteByWebhookID(ctx context.Context, webhookID string) (poolClass string, deleted bool, err error)
	KnownWebhookIDs(ctx context.Context) (map[string]struct{}, error)
}

type txRunner interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// compile-time assertions

var (
	_ webhookRepository     = (*mysql.WebhookRepository)(nil)
	_ txRunner              = (*mysql.Datastore)(nil)
	_ platform.Client       = (*platform.HTTPClient)(nil)
	_ notification.Notifier = (*notification.WebhookNotifier)(nil)
	_ platform.EventHandler = (*Manager)(nil)
)
