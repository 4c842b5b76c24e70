package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookfleet/pkg/config"
	"hookfleet/pkg/platform"
	"hookfleet/pkg/store/mysql/model"
)

func TestHandleWebhooksUpdate_ExternalDeletionReplaced(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	notifier := &fakeNotifier{}
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, notifier)
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	victim := client.addWebhook(ch.ID)
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: victim.ID, URL: victim.URL, ChannelID: ch.ID, GuildID: "guild-a", PoolClass: model.PoolClassBackup,
	}))
	m.setSnapshot(ch.ID, []webhookRef{{ID: victim.ID, URL: victim.URL}})

	// external deletion, then the platform event
	client.removeWebhook(ch.ID, victim.ID)
	require.NoError(t, m.HandleWebhooksUpdate(ctx, platform.WebhooksUpdate{ChannelID: ch.ID, GuildID: "guild-a"}))

	actives, _ := repo.ListActive(ctx)
	require.Len(t, actives, 1)
	assert.NotEqual(t, victim.ID, actives[0].WebhookID)
	assert.Equal(t, ch.ID, actives[0].ChannelID)
	assert.Equal(t, model.PoolClassBackup, actives[0].PoolClass, "replacement keeps the deleted row's pool class")

	// one live replacement on the platform
	live, _ := client.ListWebhooks(ctx, ch.ID)
	assert.Len(t, live, 1)

	messages := notifier.all()
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "deleted externally")
	assert.Contains(t, messages[1], "replacement webhook created")
}

func TestHandleWebhooksUpdate_DuplicateEventCreatesOneReplacement(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	victim := client.addWebhook(ch.ID)
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: victim.ID, URL: victim.URL, ChannelID: ch.ID, GuildID: "guild-a", PoolClass: model.PoolClassCore,
	}))
	m.setSnapshot(ch.ID, []webhookRef{{ID: victim.ID, URL: victim.URL}})
	client.removeWebhook(ch.ID, victim.ID)

	event := platform.WebhooksUpdate{ChannelID: ch.ID, GuildID: "guild-a"}
	require.NoError(t, m.HandleWebhooksUpdate(ctx, event))
	// the platform delivers the deletion event a second time; the
	// suppression flag set before the replacement create swallows it
	require.NoError(t, m.HandleWebhooksUpdate(ctx, event))

	actives, _ := repo.ListActive(ctx)
	assert.Len(t, actives, 1, "exactly one replacement row")
	live, _ := client.ListWebhooks(ctx, ch.ID)
	assert.Len(t, live, 1, "exactly one replacement webhook")
}

func TestHandleWebhooksUpdate_NewForeignWebhook(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	m.setSnapshot(ch.ID, nil)
	client.addWebhook(ch.ID)

	require.NoError(t, m.HandleWebhooksUpdate(ctx, platform.WebhooksUpdate{ChannelID: ch.ID, GuildID: "guild-a"}))

	// out-of-band additions are log-only here; the missing-record scan
	// absorbs them later
	actives, _ := repo.ListActive(ctx)
	pendings, _ := repo.ListPending(ctx)
	assert.Empty(t, actives)
	assert.Empty(t, pendings)
	assert.Empty(t, client.deletedWebhooks)
}

func TestHandleWebhooksUpdate_OwnCreationNotDrift(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	// rotation just created this webhook and flagged it
	wh := client.addWebhook(ch.ID)
	m.setSnapshot(ch.ID, nil)
	m.markSelfCreated(wh.ID)

	require.NoError(t, m.HandleWebhooksUpdate(ctx, platform.WebhooksUpdate{ChannelID: ch.ID, GuildID: "guild-a"}))

	// suppression entry consumed once observed
	m.mu.Lock()
	_, stillFlagged := m.selfCreated[wh.ID]
	m.mu.Unlock()
	assert.False(t, stillFlagged)

	// snapshot refreshed with the observed set
	m.mu.Lock()
	snapshot := m.snapshots[ch.ID]
	m.mu.Unlock()
	require.Len(t, snapshot, 1)
	assert.Equal(t, wh.ID, snapshot[0].ID)
}

func TestHandleWebhooksUpdate_SuppressedEventConsumedOnce(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	m.markExpectDelete(ch.ID)

	// first event is the echo of our own deletion
	require.NoError(t, m.HandleWebhooksUpdate(ctx, platform.WebhooksUpdate{ChannelID: ch.ID, GuildID: "guild-a"}))
	m.mu.Lock()
	_, stillFlagged := m.expectDelete[ch.ID]
	m.mu.Unlock()
	assert.False(t, stillFlagged, "flag cleared after one event")
}
