package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookfleet/pkg/config"
	"hookfleet/pkg/store/mysql/model"
)

func TestScanMissing_AbsorbsUntrackedWebhooks(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	cfg := testFleetConfig()
	m := newTestManager(cfg, config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ch := client.addChannel("guild-a", "drops-0")
	tracked := client.addWebhook(ch.ID)
	foreign := client.addWebhook(ch.ID)

	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: tracked.ID, URL: tracked.URL, ChannelID: ch.ID, GuildID: "guild-a", PoolClass: model.PoolClassCore,
	}))

	require.NoError(t, m.ScanMissing(ctx))

	pendings, _ := repo.ListPending(ctx)
	require.Len(t, pendings, 1)
	assert.Equal(t, foreign.ID, pendings[0].WebhookID)
	assert.Equal(t, now, pendings[0].DateAdded)

	// tracked row untouched
	actives, _ := repo.ListActive(ctx)
	require.Len(t, actives, 1)
	assert.Equal(t, tracked.ID, actives[0].WebhookID)
}

func TestScanMissing_IgnoresUnmanagedChannels(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	general := client.addChannel("guild-a", "general")
	client.addWebhook(general.ID)

	require.NoError(t, m.ScanMissing(ctx))

	pendings, _ := repo.ListPending(ctx)
	assert.Empty(t, pendings, "webhooks outside prefix-named channels are not ours")
}

func TestScanMissing_NeverDeletes(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	// store rows with no live platform counterpart
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: "ghost", URL: "https://platform.example/api/webhooks/ghost/t", ChannelID: "ch-gone", GuildID: "guild-a", PoolClass: model.PoolClassCore,
	}))
	client.addChannel("guild-a", "drops-0")

	require.NoError(t, m.ScanMissing(ctx))

	actives, _ := repo.ListActive(ctx)
	assert.Len(t, actives, 1, "scan is strictly additive")
	assert.Empty(t, client.deletedWebhooks)
	assert.Empty(t, client.deletedChannels)
}

func TestScanMissing_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	m := newTestManager(testFleetConfig(), config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	ch := client.addChannel("guild-a", "drops-0")
	client.addWebhook(ch.ID)

	require.NoError(t, m.ScanMissing(ctx))
	require.NoError(t, m.ScanMissing(ctx))

	pendings, _ := repo.ListPending(ctx)
	assert.Len(t, pendings, 1, "second scan sees the webhook as known")
}
