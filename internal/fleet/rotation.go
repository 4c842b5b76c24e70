package fleet

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"hookfleet/pkg/logger"
	"hookfleet/pkg/platform"
	"hookfleet/pkg/store/mysql"
	"hookfleet/pkg/store/mysql/model"
)

var errNoEligibleGuilds = errors.New("no eligible guilds remain for this cycle")

// Rotate moves the entire active fleet into pending-deletion and tops the
// fleet back up to target size, one batch per pool class.
//
// All status transitions commit before any creation starts: a crash
// mid-cycle can shrink the active set, but never the recorded fleet.
func (m *Manager) Rotate(ctx context.Context) error {
	count, err := m.repo.CountFleet(ctx)
	if err != nil {
		return fmt.Errorf("failed to count fleet: %w", err)
	}
	if count > int64(m.cfg.FleetCeiling) {
		// purge or health loops have stalled; growing the fleet further
		// would compound the backlog
		m.notify(ctx, fmt.Sprintf("rotation aborted: fleet size %d exceeds ceiling %d, no action taken", count, m.cfg.FleetCeiling))
		logger.ErrorCtx(ctx, "rotation aborted: fleet size %d exceeds ceiling %d", count, m.cfg.FleetCeiling)
		return nil
	}

	var rotated int64
	err = m.tx.ExecTx(ctx, func(ctx context.Context) error {
		var txErr error
		rotated, txErr = m.repo.MoveAllActiveToPending(ctx, m.now())
		return txErr
	})
	if err != nil {
		return fmt.Errorf("failed to move active fleet to pending deletion: %w", err)
	}
	logger.InfoCtx(ctx, "rotation: moved %d active webhooks to pending deletion", rotated)

	created := 0
	for _, poolClass := range []string{model.PoolClassCore, model.PoolClassBackup} {
		created += m.createBatch(ctx, poolClass, m.cfg.BatchSize)
	}

	m.notify(ctx, fmt.Sprintf("webhook rotation complete: %d rotated out, %d created", rotated, created))
	return nil
}

// createBatch provisions up to n webhooks for one pool class. A failed
// creation is retried in a later attempt; the attempt budget bounds
// retries so a persistent failure cannot spin the loop forever.
func (m *Manager) createBatch(ctx context.Context, poolClass string, n int) int {
	candidates := append([]string(nil), m.guilds[poolClass]...)
	if len(candidates) == 0 {
		logger.WarnCtx(ctx, "no guilds configured for pool class %s, skipping batch", poolClass)
		return 0
	}

	created := 0
	for attempts := 0; created < n && attempts < 2*n; attempts++ {
		if ctx.Err() != nil {
			break
		}
		var err error
		candidates, err = m.provisionOne(ctx, poolClass, candidates)
		if err != nil {
			if errors.Is(err, errNoEligibleGuilds) {
				logger.ErrorCtx(ctx, "pool class %s: all guilds saturated, aborting batch at %d/%d", poolClass, created, n)
				break
			}
			logger.WarnCtx(ctx, "pool class %s: webhook creation failed, will retry: %v", poolClass, err)
			continue
		}
		created++
		if created%10 == 0 && created < n {
			m.sleep(ctx, m.cfg.CreateBackoff)
		}
	}

	if created < n {
		logger.WarnCtx(ctx, "pool class %s: created %d of %d webhooks", poolClass, created, n)
	}
	return created
}

// provisionOne creates one channel+webhook pair on a guild with room.
// Saturated guilds are evicted from the candidate list for the rest of the
// cycle; the shrunk list is returned to the caller.
func (m *Manager) provisionOne(ctx context.Context, poolClass string, candidates []string) ([]string, error) {
	for len(candidates) > 0 {
		guildID := m.selector.Pick(candidates)

		channels, err := m.client.ListChannels(ctx, guildID)
		if err != nil {
			return candidates, fmt.Errorf("failed to list channels of guild %s: %w", guildID, err)
		}
		if len(channels) >= m.cfg.GuildCapacity {
			candidates = removeGuild(candidates, guildID)
			logger.InfoCtx(ctx, "guild %s at capacity (%d channels), evicted for this cycle", guildID, len(channels))
			continue
		}

		name := firstUnusedChannelName(channels, m.cfg.ChannelPrefix)
		channel, err := m.client.CreateChannel(ctx, guildID, name)
		if err != nil {
			return candidates, fmt.Errorf("failed to create channel %s in guild %s: %w", name, guildID, err)
		}

		if err := m.createWebhookOn(ctx, channel.ID, guildID, poolClass, true); err != nil {
			return candidates, err
		}
		return candidates, nil
	}
	return candidates, errNoEligibleGuilds
}

// createWebhookOn creates a webhook on the channel and records it as
// active. The store's unique url index is the source of truth for
// duplicate prevention; the URLExists pre-check just avoids the common
// case reaching the constraint. On a conflict the remote webhook (and,
// for freshly created channels, the channel) is deleted so no orphaned
// platform resource leaks.
func (m *Manager) createWebhookOn(ctx context.Context, channelID, guildID, poolClass string, deleteChannelOnConflict bool) error {
	wh, err := m.client.CreateWebhook(ctx, channelID, m.cfg.WebhookName, m.cfg.WebhookIcon)
	if err != nil {
		return fmt.Errorf("failed to create webhook on channel %s: %w", channelID, err)
	}

	// plain read so an in-flight transaction is not flushed early
	exists, err := m.repo.URLExists(ctx, wh.URL)
	if err != nil {
		logger.WarnCtx(ctx, "duplicate pre-check failed for webhook %s, relying on unique index: %v", wh.ID, err)
	}
	if err == nil && exists {
		m.discardRemote(ctx, wh.ID, channelID, deleteChannelOnConflict)
		return fmt.Errorf("webhook url already recorded, discarded remote webhook %s", wh.ID)
	}

	err = m.tx.ExecTx(ctx, func(ctx context.Context) error {
		return m.repo.CreateActive(ctx, &model.ActiveWebhook{
			WebhookID: wh.ID,
			URL:       wh.URL,
			ChannelID: channelID,
			GuildID:   guildID,
			PoolClass: poolClass,
		})
	})
	if err != nil {
		if errors.Is(err, mysql.ErrDuplicateURL) {
			m.discardRemote(ctx, wh.ID, channelID, deleteChannelOnConflict)
			return fmt.Errorf("unique url conflict on commit, discarded remote webhook %s", wh.ID)
		}
		return fmt.Errorf("failed to record webhook %s: %w", wh.ID, err)
	}

	m.markSelfCreated(wh.ID)
	m.appendSnapshot(channelID, webhookRef{ID: wh.ID, URL: wh.URL})
	logger.InfoCtx(ctx, "created webhook %s (pool class %s) on channel %s in guild %s", wh.ID, poolClass, channelID, guildID)
	return nil
}

// discardRemote best-effort deletes the platform resources of a creation
// that lost the duplicate race
func (m *Manager) discardRemote(ctx context.Context, webhookID, channelID string, deleteChannel bool) {
	if err := m.client.DeleteWebhook(ctx, webhookID); err != nil {
		logger.WarnCtx(ctx, "failed to delete orphaned webhook %s: %v", webhookID, err)
	}
	if !deleteChannel {
		return
	}
	m.markExpectDelete(channelID)
	if err := m.client.DeleteChannel(ctx, channelID); err != nil {
		logger.WarnCtx(ctx, "failed to delete orphaned channel %s: %v", channelID, err)
	}
}

// removeGuild returns candidates without the given guild
func removeGuild(candidates []string, guildID string) []string {
	out := candidates[:0]
	for _, id := range candidates {
		if id != guildID {
			out = append(out, id)
		}
	}
	return out
}

// firstUnusedChannelName returns "<prefix>-<i>" for the smallest index not
// taken by an existing channel
func firstUnusedChannelName(channels []platform.Channel, prefix string) string {
	taken := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		taken[ch.Name] = struct{}{}
	}
	for i := 0; ; i++ {
		name := prefix + "-" + strconv.Itoa(i)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}
