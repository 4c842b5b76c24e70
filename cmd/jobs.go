package main

import (
	"context"
	"fmt"
	"time"

	"hookfleet/internal/fleet"
	"hookfleet/internal/jobs"
	"hookfleet/pkg/lock"
	"hookfleet/pkg/logger"
)

func (app *Application) initJobs() error {
	if app.fleetManager == nil {
		logger.WarnCtx(app.ctx, "fleet manager not initialized yet, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)
	cfg := app.config.Fleet

	// Distributed locks keep multiple replicas from reconciling the same
	// fleet at once. Without Redis they downgrade to single-instance mode.
	rotationLock := lock.NewRedisDistributedLock(app.redisClient, "fleet:rotation-lock")
	healthCheckLock := lock.NewRedisDistributedLock(app.redisClient, "fleet:health-check-lock")
	scanLock := lock.NewRedisDistributedLock(app.redisClient, "fleet:missing-scan-lock")
	purgeLock := lock.NewRedisDistributedLock(app.redisClient, "fleet:purge-lock")

	manager.Register(newRotationJob(cfg.RotationInterval, app.fleetManager, rotationLock))
	manager.Register(newHealthCheckJob(cfg.HealthCheckInterval, app.fleetManager, healthCheckLock))
	manager.Register(newMissingScanJob(cfg.ScanInterval, app.fleetManager, scanLock))
	manager.Register(newPurgeJob(cfg.PurgeInterval, app.fleetManager, purgeLock))

	app.jobsManager = manager
	return nil
}

// rotationJob replaces the whole webhook fleet on a fixed cadence.
type rotationJob struct {
	interval        time.Duration
	fleetManager    *fleet.Manager
	distributedLock lock.DistributedLock
}

func newRotationJob(interval time.Duration, mgr *fleet.Manager, distLock lock.DistributedLock) jobs.Job {
	return &rotationJob{
		interval:        interval,
		fleetManager:    mgr,
		distributedLock: distLock,
	}
}

func (j *rotationJob) Name() string {
	return "fleet-rotation"
}

func (j *rotationJob) Interval() time.Duration {
	return j.interval
}

// DelayFirstRun keeps a restart from rotating a fleet that was rotated
// minutes ago. The first rotation happens one full interval after boot.
func (j *rotationJob) DelayFirstRun() bool {
	return true
}

func (j *rotationJob) Run(ctx context.Context) error {
	if j.fleetManager == nil {
		return fmt.Errorf("fleet manager not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running fleet rotation, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.InfoCtx(ctx, "running fleet rotation job")
	return j.fleetManager.Rotate(ctx)
}

// healthCheckJob probes every tracked webhook and removes dead ones.
type healthCheckJob struct {
	interval        time.Duration
	fleetManager    *fleet.Manager
	distributedLock lock.DistributedLock
}

func newHealthCheckJob(interval time.Duration, mgr *fleet.Manager, distLock lock.DistributedLock) jobs.Job {
	return &healthCheckJob{
		interval:        interval,
		fleetManager:    mgr,
		distributedLock: distLock,
	}
}

func (j *healthCheckJob) Name() string {
	return "fleet-health-check"
}

func (j *healthCheckJob) Interval() time.Duration {
	return j.interval
}

func (j *healthCheckJob) Run(ctx context.Context) error {
	if j.fleetManager == nil {
		return fmt.Errorf("fleet manager not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running fleet health check, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.DebugCtx(ctx, "running fleet health check job")
	return j.fleetManager.HealthCheck(ctx)
}

// missingScanJob absorbs untracked remote webhooks into the pending table.
type missingScanJob struct {
	interval        time.Duration
	fleetManager    *fleet.Manager
	distributedLock lock.DistributedLock
}

func newMissingScanJob(interval time.Duration, mgr *fleet.Manager, distLock lock.DistributedLock) jobs.Job {
	return &missingScanJob{
		interval:        interval,
		fleetManager:    mgr,
		distributedLock: distLock,
	}
}

func (j *missingScanJob) Name() string {
	return "fleet-missing-scan"
}

func (j *missingScanJob) Interval() time.Duration {
	return j.interval
}

func (j *missingScanJob) Run(ctx context.Context) error {
	if j.fleetManager == nil {
		return fmt.Errorf("fleet manager not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the missing-record scan, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.DebugCtx(ctx, "running missing-record scan job")
	return j.fleetManager.ScanMissing(ctx)
}

// purgeJob deletes pending-deletion webhooks whose grace period has lapsed.
type purgeJob struct {
	interval        time.Duration
	fleetManager    *fleet.Manager
	distributedLock lock.DistributedLock
}

func newPurgeJob(interval time.Duration, mgr *fleet.Manager, distLock lock.DistributedLock) jobs.Job {
	return &purgeJob{
		interval:        interval,
		fleetManager:    mgr,
		distributedLock: distLock,
	}
}

func (j *purgeJob) Name() string {
	return "fleet-purge"
}

func (j *purgeJob) Interval() time.Duration {
	return j.interval
}

func (j *purgeJob) Run(ctx context.Context) error {
	if j.fleetManager == nil {
		return fmt.Errorf("fleet manager not configured")
	}

	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			logger.DebugCtx(ctx, "another instance is running the grace-period purge, skipping this cycle")
			return nil
		}
		defer j.distributedLock.Unlock(ctx)
	}

	logger.DebugCtx(ctx, "running grace-period purge job")
	return j.fleetManager.Purge(ctx)
}
