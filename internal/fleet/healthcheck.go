package fleet

import (
	"context"
	"fmt"

	"hookfleet/pkg/logger"
)

// HealthCheck probes every known webhook (active and pending-deletion)
// and removes failures from the store on first strike. Removal does not
// create a replacement inline; the next rotation restores target size.
func (m *Manager) HealthCheck(ctx context.Context) error {
	actives, err := m.repo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active webhooks: %w", err)
	}
	pendings, err := m.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending-deletion webhooks: %w", err)
	}

	type probeTarget struct {
		webhookID string
		url       string
	}
	targets := make([]probeTarget, 0, len(actives)+len(pendings))
	for _, wh := range actives {
		targets = append(targets, probeTarget{webhookID: wh.WebhookID, url: wh.URL})
	}
	for _, wh := range pendings {
		targets = append(targets, probeTarget{webhookID: wh.WebhookID, url: wh.URL})
	}

	passed, failed := 0, 0
	for i, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i > 0 {
			m.sleep(ctx, m.cfg.ProbeDelay)
		}

		status, err := m.client.Probe(ctx, target.url, m.cfg.ProbeTimeout)
		if err == nil && status < 400 {
			passed++
			continue
		}

		failed++
		if err != nil {
			logger.WarnCtx(ctx, "webhook %s failed liveness probe: %v", target.webhookID, err)
		} else {
			logger.WarnCtx(ctx, "webhook %s failed liveness probe: status %d", target.webhookID, status)
		}
		if _, _, derr := m.repo.DeleteByWebhookID(ctx, target.webhookID); derr != nil {
			logger.ErrorCtx(ctx, "failed to remove unhealthy webhook %s: %v", target.webhookID, derr)
		}
	}

	total := len(targets)
	m.notify(ctx, fmt.Sprintf("webhook health check: %d/%d passed, %d/%d failed", passed, total, failed, total))
	logger.InfoCtx(ctx, "health check complete: %d/%d passed, %d/%d failed", passed, total, failed, total)
	return nil
}
