package fleet

import (
	"context"
	"fmt"

	"hookfleet/pkg/logger"
	"hookfleet/pkg/platform"
)

// OnWebhooksUpdate implements platform.EventHandler
func (m *Manager) OnWebhooksUpdate(event platform.WebhooksUpdate) {
	if err := m.HandleWebhooksUpdate(m.ctx, event); err != nil {
		logger.ErrorCtx(m.ctx, "drift handling failed for channel %s: %v", event.ChannelID, err)
	}
}

// HandleWebhooksUpdate reacts to a platform-pushed "webhook set changed"
// signal for one channel: it diffs the live set against the cached
// snapshot, remediates external deletions, and refreshes the snapshot.
//
// Webhooks that appear out of band are logged only; the missing-record
// scan absorbs them on its next pass. Duplicate event delivery is handled
// by the suppression flag set before each self-initiated mutation.
func (m *Manager) HandleWebhooksUpdate(ctx context.Context, event platform.WebhooksUpdate) error {
	if m.consumeExpectDelete(event.ChannelID) {
		logger.DebugCtx(ctx, "channel %s: expected deletion event observed, not drift", event.ChannelID)
		return nil
	}

	live, err := m.client.ListWebhooks(ctx, event.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to list webhooks of channel %s: %w", event.ChannelID, err)
	}

	liveSet := make(map[string]platform.Webhook, len(live))
	for _, wh := range live {
		liveSet[wh.ID] = wh
	}

	m.mu.Lock()
	snapshot := m.snapshots[event.ChannelID]
	snapshotSet := make(map[string]struct{}, len(snapshot))
	for _, ref := range snapshot {
		snapshotSet[ref.ID] = struct{}{}
	}
	var appeared []string
	for id := range liveSet {
		if _, known := snapshotSet[id]; known {
			continue
		}
		if _, ours := m.selfCreated[id]; ours {
			// our own recent creation echoing back; observed, so the
			// suppression entry has done its job
			delete(m.selfCreated, id)
			continue
		}
		appeared = append(appeared, id)
	}
	var vanished []webhookRef
	for _, ref := range snapshot {
		if _, stillThere := liveSet[ref.ID]; !stillThere {
			vanished = append(vanished, ref)
		}
	}
	m.mu.Unlock()

	for _, id := range appeared {
		// deliberately no action: the missing-record scan absorbs these
		logger.InfoCtx(ctx, "channel %s: out-of-band webhook %s appeared, leaving for missing-record scan", event.ChannelID, id)
	}

	for _, ref := range vanished {
		m.remediateDeletion(ctx, event.ChannelID, event.GuildID, ref)
	}

	refs := make([]webhookRef, 0, len(live))
	for _, wh := range live {
		refs = append(refs, webhookRef{ID: wh.ID, URL: wh.URL})
	}
	m.setSnapshot(event.ChannelID, refs)
	return nil
}

// remediateDeletion handles one externally deleted webhook: remove its
// store row, then create exactly one replacement on the same channel
func (m *Manager) remediateDeletion(ctx context.Context, channelID, guildID string, ref webhookRef) {
	poolClass, deleted, err := m.repo.DeleteByWebhookID(ctx, ref.ID)
	if err != nil {
		logger.ErrorCtx(ctx, "failed to delete row for externally removed webhook %s: %v", ref.ID, err)
		return
	}
	if !deleted {
		logger.WarnCtx(ctx, "externally removed webhook %s had no store row", ref.ID)
		return
	}

	m.notify(ctx, fmt.Sprintf("webhook %s on channel %s was deleted externally, replacing", ref.ID, channelID))

	// the create below triggers another event for this channel; flag it as
	// ours before issuing the call so it is not misread as drift
	m.markExpectDelete(channelID)

	if err := m.createWebhookOn(ctx, channelID, guildID, poolClass, false); err != nil {
		logger.ErrorCtx(ctx, "failed to create replacement webhook on channel %s: %v", channelID, err)
		m.notify(ctx, fmt.Sprintf("replacement webhook creation failed on channel %s: %v", channelID, err))
		return
	}
	m.notify(ctx, fmt.Sprintf("replacement webhook created on channel %s", channelID))
}
