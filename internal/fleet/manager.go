package fleet

import (
	"context"
	"sync"
	"time"

	"hookfleet/pkg/config"
	"hookfleet/pkg/logger"
	"hookfleet/pkg/notification"
	"hookfleet/pkg/platform"
)

// webhookRef is the per-channel snapshot entry: enough to diff a live
// listing against the last observed set.
type webhookRef struct {
	ID  string
	URL string
}

// Manager is the reconciliation engine. It owns all fleet mutation:
// five loops (rotation, health check, missing-record scan, purge) plus the
// event-driven drift handler funnel through it, and nothing else writes
// fleet state.
type Manager struct {
	cfg    config.FleetConfig
	guilds config.GuildMap

	tx       txRunner
	repo     webhookRepository
	client   platform.Client
	notifier notification.Notifier
	selector GuildSelector

	// snapshot cache and suppression sets, shared between the drift handler
	// and the loops that create or delete webhooks
	mu           sync.Mutex
	snapshots    map[string][]webhookRef // channel id -> last-known webhook set
	expectDelete map[string]struct{}     // channel ids we expect a deletion event from
	selfCreated  map[string]struct{}     // webhook ids we created ourselves

	ctx context.Context

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewManager creates the reconciliation engine
func NewManager(ctx context.Context, cfg config.FleetConfig, guilds config.GuildMap, tx txRunner, repo webhookRepository, client platform.Client, notifier notification.Notifier, selector GuildSelector) *Manager {
	if selector == nil {
		selector = RandomSelector{}
	}
	return &Manager{
		cfg:          cfg,
		guilds:       guilds,
		tx:           tx,
		repo:         repo,
		client:       client,
		notifier:     notifier,
		selector:     selector,
		snapshots:    make(map[string][]webhookRef),
		expectDelete: make(map[string]struct{}),
		selfCreated:  make(map[string]struct{}),
		ctx:          ctx,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// notify sends best-effort ops text; failures are logged and swallowed
func (m *Manager) notify(ctx context.Context, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Send(ctx, text); err != nil {
		logger.WarnCtx(ctx, "failed to send ops notification: %v", err)
	}
}

// markExpectDelete flags a channel so its next platform event is treated
// as the echo of our own deletion, not drift
func (m *Manager) markExpectDelete(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectDelete[channelID] = struct{}{}
}

// consumeExpectDelete clears and reports the suppression flag for a channel
func (m *Manager) consumeExpectDelete(channelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expectDelete[channelID]; ok {
		delete(m.expectDelete, channelID)
		return true
	}
	return false
}

// markSelfCreated flags a webhook id as our own creation
func (m *Manager) markSelfCreated(webhookID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selfCreated[webhookID] = struct{}{}
}

// setSnapshot replaces the cached webhook set for a channel
func (m *Manager) setSnapshot(channelID string, refs []webhookRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[channelID] = refs
}

// appendSnapshot records a newly created webhook in its channel's snapshot
func (m *Manager) appendSnapshot(channelID string, ref webhookRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[channelID] = append(m.snapshots[channelID], ref)
}

// allGuilds returns the deduplicated union of every pool class's guilds
func (m *Manager) allGuilds() []string {
	seen := make(map[string]struct{})
	var guilds []string
	for _, ids := range m.guilds {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			guilds = append(guilds, id)
		}
	}
	return guilds
}

// FleetStatus is the ops-facing fleet summary
type FleetStatus struct {
	Active            int64            `json:"active"`
	PendingDeletion   int64            `json:"pending_deletion"`
	ActiveByPoolClass map[string]int64 `json:"active_by_pool_class"`
	Ceiling           int              `json:"ceiling"`
}

// Status reports current fleet counts
func (m *Manager) Status(ctx context.Context) (*FleetStatus, error) {
	active, pending, err := m.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	byClass, err := m.repo.CountActiveByPoolClass(ctx)
	if err != nil {
		return nil, err
	}
	return &FleetStatus{
		Active:            active,
		PendingDeletion:   pending,
		ActiveByPoolClass: byClass,
		Ceiling:           m.cfg.FleetCeiling,
	}, nil
}
