package fleet

import (
	"context"
	"fmt"

	"hookfleet/pkg/logger"
)

// Purge deletes the backing channel of every pending-deletion row older
// than the grace period. The remote delete is best-effort; the local row
// is removed regardless, since its job (tracking something awaiting
// cleanup) is done either way.
func (m *Manager) Purge(ctx context.Context) error {
	cutoff := m.now().Add(-m.cfg.GracePeriod)
	expired, err := m.repo.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired pending-deletion webhooks: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	purged := 0
	for _, row := range expired {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.markExpectDelete(row.ChannelID)
		if err := m.client.DeleteChannel(ctx, row.ChannelID); err != nil {
			logger.WarnCtx(ctx, "purge: failed to delete channel %s for webhook %s: %v", row.ChannelID, row.WebhookID, err)
		}

		if err := m.repo.DeletePending(ctx, row.ID); err != nil {
			logger.ErrorCtx(ctx, "purge: failed to delete pending-deletion row %d: %v", row.ID, err)
			continue
		}
		purged++
	}

	logger.InfoCtx(ctx, "purge complete: removed %d of %d expired pending-deletion webhooks", purged, len(expired))
	return nil
}
