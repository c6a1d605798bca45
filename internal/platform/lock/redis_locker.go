// Package lock provides distributed mutual exclusion across API instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/shared-event-wallet/internal/config"
)

var (
	// ErrNotAcquired is returned when another holder keeps the lock past all retries
	ErrNotAcquired = errors.New("lock is held by another process")
	ErrEmptyKey    = errors.New("lock key cannot be empty")
)

// RedisLocker runs functions under redsync mutexes
type RedisLocker struct {
	rs     *redsync.Redsync
	cfg    config.LockConfig
	logger *slog.Logger
}

func NewRedisLocker(logger *slog.Logger, client *redis.Client, cfg config.LockConfig) *RedisLocker {
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		cfg:    cfg,
		logger: logger,
	}
}

// WithLock holds key for the duration of fn. The error of fn is returned as is.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(l.cfg.Tries),
		redsync.WithRetryDelay(l.cfg.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken") {
			l.logger.Warn("Lock contention", "lock_key", key)
			return fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		l.logger.Error("Failed to acquire lock", "lock_key", key, "error", err)
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); !ok || err != nil {
			l.logger.Error("Failed to release lock", "lock_key", key, "unlock_ok", ok, "error", err)
		}
	}()

	return fn(ctx)
}

// SettlementExecuteKey guards a whole-event settlement execution
func SettlementExecuteKey(eventID fmt.Stringer) string {
	return "settlement:execute:" + eventID.String()
}

// SettlementRefundKey guards the payout of one participant's refund
func SettlementRefundKey(eventID, userID fmt.Stringer) string {
	return "settlement:refund:" + eventID.String() + ":" + userID.String()
}
