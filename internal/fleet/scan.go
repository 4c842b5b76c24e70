package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hookfleet/pkg/logger"
	"hookfleet/pkg/store/mysql"
	"hookfleet/pkg/store/mysql/model"
)

// ScanMissing reconciles platform truth into the store: every live webhook
// on a managed guild with no row in either table is inserted into
// pending-deletion, where the normal grace-period policy applies.
//
// The scan is strictly additive. It never deletes platform resources and
// never deletes local rows, so it is safe against listing glitches.
func (m *Manager) ScanMissing(ctx context.Context) error {
	known, err := m.repo.KnownWebhookIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load known webhook ids: %w", err)
	}

	absorbed := 0
	for _, guildID := range m.allGuilds() {
		channels, err := m.client.ListChannels(ctx, guildID)
		if err != nil {
			logger.WarnCtx(ctx, "scan: failed to list channels of guild %s, skipping: %v", guildID, err)
			continue
		}

		for _, channel := range channels {
			if !strings.HasPrefix(channel.Name, m.cfg.ChannelPrefix+"-") {
				continue
			}
			webhooks, err := m.client.ListWebhooks(ctx, channel.ID)
			if err != nil {
				logger.WarnCtx(ctx, "scan: failed to list webhooks of channel %s, skipping: %v", channel.ID, err)
				continue
			}

			for _, wh := range webhooks {
				if _, ok := known[wh.ID]; ok {
					continue
				}
				pending := &model.PendingDeletionWebhook{
					WebhookID: wh.ID,
					URL:       wh.URL,
					ChannelID: channel.ID,
					GuildID:   guildID,
					PoolClass: model.PoolClassCore,
					DateAdded: m.now(),
				}
				err := m.tx.ExecTx(ctx, func(ctx context.Context) error {
					return m.repo.CreatePending(ctx, pending)
				})
				if err != nil {
					if errors.Is(err, mysql.ErrDuplicateURL) {
						// same url already tracked under another webhook id
						continue
					}
					logger.WarnCtx(ctx, "scan: failed to absorb webhook %s: %v", wh.ID, err)
					continue
				}
				known[wh.ID] = struct{}{}
				absorbed++
				logger.InfoCtx(ctx, "scan: absorbed untracked webhook %s on channel %s into pending deletion", wh.ID, channel.ID)
			}
		}
	}

	if absorbed > 0 {
		logger.InfoCtx(ctx, "scan complete: absorbed %d untracked webhooks", absorbed)
	}
	return nil
}
