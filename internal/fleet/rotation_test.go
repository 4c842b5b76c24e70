package fleet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookfleet/pkg/config"
	"hookfleet/pkg/platform"
	"hookfleet/pkg/store/mysql/model"
)

func TestRotate_MovesActiveAndCreatesBatches(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	notifier := &fakeNotifier{}
	cfg := testFleetConfig()
	guilds := config.GuildMap{
		model.PoolClassCore:   {"guild-a", "guild-b"},
		model.PoolClassBackup: {"guild-c", "guild-d"},
	}
	m := newTestManager(cfg, guilds, repo, client, notifier)
	ctx := context.Background()

	// seed two active webhooks that must rotate out
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: "old-1", URL: "https://platform.example/api/webhooks/old-1/t", ChannelID: "ch-old-1", GuildID: "guild-a", PoolClass: model.PoolClassCore,
	}))
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: "old-2", URL: "https://platform.example/api/webhooks/old-2/t", ChannelID: "ch-old-2", GuildID: "guild-c", PoolClass: model.PoolClassBackup,
	}))

	require.NoError(t, m.Rotate(ctx))

	actives, err := repo.ListActive(ctx)
	require.NoError(t, err)
	pendings, err := repo.ListPending(ctx)
	require.NoError(t, err)

	// 4 per pool class created, old rows all pending
	assert.Len(t, actives, 2*cfg.BatchSize)
	assert.Len(t, pendings, 2)
	for _, wh := range pendings {
		assert.Contains(t, []string{"old-1", "old-2"}, wh.WebhookID)
	}

	// created webhooks split evenly by pool class
	perClass := map[string]int{}
	for _, wh := range actives {
		perClass[wh.PoolClass]++
	}
	assert.Equal(t, cfg.BatchSize, perClass[model.PoolClassCore])
	assert.Equal(t, cfg.BatchSize, perClass[model.PoolClassBackup])

	messages := notifier.all()
	require.NotEmpty(t, messages)
	assert.Contains(t, messages[len(messages)-1], "rotation complete")
}

func TestRotate_CeilingGuardAbortsCycle(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	notifier := &fakeNotifier{}
	cfg := testFleetConfig()
	cfg.FleetCeiling = 3
	m := newTestManager(cfg, config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, notifier)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
			WebhookID: fmt.Sprintf("wh-%d", i),
			URL:       fmt.Sprintf("https://platform.example/api/webhooks/wh-%d/t", i),
			ChannelID: fmt.Sprintf("ch-%d", i),
			GuildID:   "guild-a",
			PoolClass: model.PoolClassCore,
		}))
	}

	require.NoError(t, m.Rotate(ctx))

	actives, _ := repo.ListActive(ctx)
	pendings, _ := repo.ListPending(ctx)
	assert.Len(t, actives, 4, "no status transitions on an aborted cycle")
	assert.Empty(t, pendings)

	messages := notifier.all()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "rotation aborted")
}

func TestRotate_SkipsSaturatedGuilds(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	notifier := &fakeNotifier{}
	cfg := testFleetConfig()
	cfg.BatchSize = 8
	cfg.GuildCapacity = 3
	guilds := config.GuildMap{
		model.PoolClassCore: {"sat-1", "sat-2", "open-1", "open-2", "open-3"},
	}
	// two guilds already at capacity
	for _, guildID := range []string{"sat-1", "sat-2"} {
		for i := 0; i < cfg.GuildCapacity; i++ {
			client.addChannel(guildID, fmt.Sprintf("drops-%d", i))
		}
	}
	m := newTestManager(cfg, guilds, repo, client, notifier)

	created := m.createBatch(context.Background(), model.PoolClassCore, cfg.BatchSize)
	assert.Equal(t, cfg.BatchSize, created)

	// saturated guilds got nothing new; no guild ever exceeds capacity
	assert.Len(t, client.channels["sat-1"], cfg.GuildCapacity)
	assert.Len(t, client.channels["sat-2"], cfg.GuildCapacity)
	total := 0
	for _, guildID := range []string{"open-1", "open-2", "open-3"} {
		n := len(client.channels[guildID])
		assert.LessOrEqual(t, n, cfg.GuildCapacity)
		total += n
	}
	assert.Equal(t, cfg.BatchSize, total)
}

func TestRotate_AbortsBatchWhenAllGuildsSaturated(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	cfg := testFleetConfig()
	cfg.GuildCapacity = 1
	guilds := config.GuildMap{model.PoolClassCore: {"full-1", "full-2"}}
	client.addChannel("full-1", "drops-0")
	client.addChannel("full-2", "drops-0")
	m := newTestManager(cfg, guilds, repo, client, &fakeNotifier{})

	created := m.createBatch(context.Background(), model.PoolClassCore, cfg.BatchSize)
	assert.Zero(t, created)

	actives, _ := repo.ListActive(context.Background())
	assert.Empty(t, actives)
}

func TestCreateWebhookOn_DuplicateURLDiscardsRemote(t *testing.T) {
	repo := newFakeRepo()
	client := newFakePlatform()
	cfg := testFleetConfig()
	m := newTestManager(cfg, config.GuildMap{model.PoolClassCore: {"guild-a"}}, repo, client, &fakeNotifier{})
	ctx := context.Background()

	// the platform hands out a url that is already recorded
	dupURL := "https://platform.example/api/webhooks/dup/t"
	require.NoError(t, repo.CreateActive(ctx, &model.ActiveWebhook{
		WebhookID: "winner", URL: dupURL, ChannelID: "ch-w", GuildID: "guild-a", PoolClass: model.PoolClassCore,
	}))
	client.createWebhookFunc = func(channelID string) (*platform.Webhook, error) {
		return &platform.Webhook{ID: "loser", ChannelID: channelID, URL: dupURL}, nil
	}

	err := m.createWebhookOn(ctx, "ch-x", "guild-a", model.PoolClassCore, true)
	require.Error(t, err)

	// exactly one row persists and the losing remote webhook was deleted
	actives, _ := repo.ListActive(ctx)
	require.Len(t, actives, 1)
	assert.Equal(t, "winner", actives[0].WebhookID)
	assert.Contains(t, client.deletedWebhooks, "loser")
	assert.Contains(t, client.deletedChannels, "ch-x")
}

func TestFirstUnusedChannelName(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		expected string
	}{
		{name: "empty guild", existing: nil, expected: "drops-0"},
		{name: "sequential", existing: []string{"drops-0", "drops-1"}, expected: "drops-2"},
		{name: "gap filled first", existing: []string{"drops-0", "drops-2"}, expected: "drops-1"},
		{name: "unrelated channels ignored", existing: []string{"general", "drops-0"}, expected: "drops-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channels := make([]platform.Channel, 0, len(tt.existing))
			for _, name := range tt.existing {
				channels = append(channels, platform.Channel{Name: name})
			}
			assert.Equal(t, tt.expected, firstUnusedChannelName(channels, "drops"))
		})
	}
}
