package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"hookfleet/pkg/logger"
)

const (
	lockTTL            = 30 * time.Second
	lockAcquireTimeout = 5 * time.Second
	lockExtendInterval = 10 * time.Second
)

// DistributedLock prevents multiple controller replicas from running the
// same reconciliation loop simultaneously
type DistributedLock interface {
	// TryLock attempts to acquire the lock without blocking
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock
	Unlock(ctx context.Context) error

	// IsHeld reports whether this instance holds the lock
	IsHeld() bool
}

// RedisDistributedLock implements DistributedLock on Redis SET NX.
// With a nil client it downgrades to single-instance mode: every TryLock
// succeeds.
type RedisDistributedLock struct {
	client    *redis.Client
	lockKey   string
	lockValue string // unique per instance so we never release another holder's lock
	ttl       time.Duration

	mu        sync.Mutex
	isHeld    bool
	stopRenew chan struct{}
}

// NewRedisDistributedLock creates a lock for the given key
// (e.g. "fleet:rotation-lock")
func NewRedisDistributedLock(client *redis.Client, lockKey string) *RedisDistributedLock {
	return &RedisDistributedLock{
		client:    client,
		lockKey:   lockKey,
		lockValue: uuid.NewString(),
		ttl:       lockTTL,
	}
}

// TryLock attempts to acquire the lock with a bounded timeout
func (l *RedisDistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.lockKey, err)
	}
	if !acquired {
		logger.DebugCtx(ctx, "lock %s already held by another instance", l.lockKey)
		return false, nil
	}

	l.mu.Lock()
	l.isHeld = true
	// fresh channel per acquisition so TryLock/Unlock cycles are reusable
	l.stopRenew = make(chan struct{})
	stop := l.stopRenew
	l.mu.Unlock()

	go l.renewLock(ctx, stop)

	return true, nil
}

// Unlock releases the lock if this instance holds it
func (l *RedisDistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld {
		l.mu.Unlock()
		return nil
	}
	l.isHeld = false
	if l.stopRenew != nil {
		close(l.stopRenew)
		l.stopRenew = nil
	}
	l.mu.Unlock()

	if l.client == nil {
		return nil
	}

	// delete only our own lock value
	luaScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	if _, err := l.client.Eval(ctx, luaScript, []string{l.lockKey}, l.lockValue).Result(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.lockKey, err)
	}
	return nil
}

// IsHeld reports whether this instance holds the lock
func (l *RedisDistributedLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

// renewLock extends the TTL while the lock is held, so a loop iteration
// longer than the TTL does not lose the lock mid-run
func (l *RedisDistributedLock) renewLock(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(lockExtendInterval)
	defer ticker.Stop()

	luaScript := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := l.client.Eval(ctx, luaScript,
				[]string{l.lockKey},
				l.lockValue,
				int(l.ttl.Seconds())).Result()
			if err != nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.lockKey, err)
				continue
			}
			if v, ok := result.(int64); ok && v == 0 {
				// lock expired or was taken over; stop renewing
				l.mu.Lock()
				l.isHeld = false
				l.mu.Unlock()
				return
			}
		}
	}
}
